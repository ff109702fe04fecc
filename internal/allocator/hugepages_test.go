package allocator

import (
	"testing"

	"github.com/wasmforge/wasmforge/internal/features"
	"github.com/wasmforge/wasmforge/internal/testing/require"
)

// TestReservation_growWithHugePagesFeatureEnabled exercises the
// adviseHugePages hook Grow calls on every commit; madvise is best-effort
// so this only checks that enabling the feature never turns a successful
// Grow into a failure.
func TestReservation_growWithHugePagesFeatureEnabled(t *testing.T) {
	features.Enable("hugepages")

	r, err := NewReservation(1)
	require.NoError(t, err)
	defer r.Release()

	_, err = r.Grow(4)
	require.NoError(t, err)
	require.Equal(t, 5*PageSize, len(r.Bytes()))
}
