package allocator

import (
	"testing"

	"github.com/wasmforge/wasmforge/internal/testing/require"
)

func TestNewReservation_zeroPagesRejected(t *testing.T) {
	_, err := NewReservation(0)
	require.Error(t, err)
}

func TestReservation_growAccumulatesCommittedBytes(t *testing.T) {
	r, err := NewReservation(1)
	require.NoError(t, err)
	defer r.Release()

	require.Equal(t, PageSize, len(r.Bytes()))

	n, err := r.Grow(2)
	require.NoError(t, err)
	require.Equal(t, 3*PageSize, n)
	require.Equal(t, 3*PageSize, len(r.Bytes()))

	// Previously committed bytes survive growth.
	r.Bytes()[0] = 0x42
	if _, err := r.Grow(1); err != nil {
		t.Fatal(err)
	}
	require.Equal(t, byte(0x42), r.Bytes()[0])
}

func TestReservation_growPastLimitFails(t *testing.T) {
	r, err := NewReservation(1)
	require.NoError(t, err)
	defer r.Release()

	_, err = r.Grow(1 << 20) // far beyond the 12 GiB reservation.
	require.Error(t, err)
}
