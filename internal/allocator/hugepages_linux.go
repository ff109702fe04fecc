//go:build linux

package allocator

import (
	"golang.org/x/sys/unix"

	"github.com/wasmforge/wasmforge/internal/features"
)

// adviseHugePages hints that mem should be backed by transparent huge pages
// when the "hugepages" feature is turned on (features.Enable, or
// features.EnableFromEnvironment reading the WASMFORGEFEATURES env var).
// This only ever
// reduces TLB pressure for a large committed region; a failing madvise is
// not fatal to the reservation.
func adviseHugePages(mem []byte) {
	if len(mem) == 0 || !features.Enabled("hugepages") {
		return
	}
	_ = unix.Madvise(mem, unix.MADV_HUGEPAGE)
}
