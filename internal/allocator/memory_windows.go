//go:build windows

package allocator

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// ReservationSupported always returns true on 64-bit Windows; spec §4.6's
// VirtualAlloc(MEM_RESERVE) path. 32-bit Windows falls back.
func ReservationSupported() bool {
	return unsafe.Sizeof(uintptr(0)) == 8
}

type guardedReservation struct {
	base      uintptr
	committed int
}

func newGuardedReservation(initialPages uint32) (*guardedReservation, error) {
	base, err := windows.VirtualAlloc(0, ReservationSize, windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return nil, fmt.Errorf("allocator: VirtualAlloc reserve: %w", err)
	}
	r := &guardedReservation{base: base}
	if _, err := r.Grow(initialPages); err != nil {
		_ = windows.VirtualFree(base, 0, windows.MEM_RELEASE)
		return nil, err
	}
	return r, nil
}

func (r *guardedReservation) Bytes() []byte {
	if r.committed == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(r.base)), r.committed)
}

func (r *guardedReservation) Grow(newPages uint32) (int, error) {
	newBytes, err := validateGrowth(r.committed, newPages)
	if err != nil {
		return 0, err
	}
	addr := r.base + uintptr(r.committed)
	size := uintptr(newBytes - r.committed)
	if _, err := windows.VirtualAlloc(addr, size, windows.MEM_COMMIT, windows.PAGE_READWRITE); err != nil {
		return 0, fmt.Errorf("allocator: VirtualAlloc commit %d bytes: %w", size, err)
	}
	r.committed = newBytes
	return r.committed, nil
}

func (r *guardedReservation) Release() error {
	return windows.VirtualFree(r.base, 0, windows.MEM_RELEASE)
}
