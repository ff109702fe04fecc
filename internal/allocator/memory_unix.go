//go:build linux || darwin || freebsd

package allocator

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ReservationSupported reports whether this platform/arch can reserve a
// 12 GiB PROT_NONE region cheaply (spec §4.6's guard-page scheme). All
// 64-bit POSIX targets can; 32-bit targets cannot address 12 GiB of VA and
// fall back.
func ReservationSupported() bool {
	return unix.SizeofPtr == 8
}

type guardedReservation struct {
	// region is the full 12 GiB PROT_NONE mapping.
	region []byte
	// committed is the prefix of region currently RW, backing Wasm linear
	// memory contents. Its length is always a multiple of PageSize.
	committed int
}

func newGuardedReservation(initialPages uint32) (*guardedReservation, error) {
	region, err := unix.Mmap(-1, 0, ReservationSize, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("allocator: reserve %d bytes: %w", ReservationSize, err)
	}
	r := &guardedReservation{region: region}
	if _, err := r.Grow(initialPages); err != nil {
		_ = unix.Munmap(region)
		return nil, err
	}
	return r, nil
}

func (r *guardedReservation) Bytes() []byte {
	return r.region[:r.committed:r.committed]
}

func (r *guardedReservation) Grow(newPages uint32) (int, error) {
	newBytes, err := validateGrowth(r.committed, newPages)
	if err != nil {
		return 0, err
	}
	grown := r.region[r.committed:newBytes]
	if err := unix.Mprotect(grown, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return 0, fmt.Errorf("allocator: commit %d bytes: %w", len(grown), err)
	}
	adviseHugePages(grown)
	r.committed = newBytes
	return r.committed, nil
}

func (r *guardedReservation) Release() error {
	return unix.Munmap(r.region)
}
