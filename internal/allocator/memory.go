// Package allocator implements the reserved-virtual-address linear-memory
// scheme and the mmap/VirtualAllot-based JIT chunk allocator spec §4.6
// describes, grounded on internal/platform/mmap_test.go's
// MmapCodeSegment/MunmapCodeSegment API shape (panic on zero length, a
// second unmap of the same segment is an error, never success).
package allocator

import (
	"errors"
	"fmt"
)

// ReservationSize is the total virtual address space reserved per linear
// memory (spec §4.6): 12 GiB. The committed region, and so the base of the
// slice Bytes returns, starts at the beginning of the reservation; no part
// of the reservation lies behind the base pointer.
const ReservationSize = 12 << 30

// GuardWindow is the part of the reservation that is never committed:
// validateGrowth rejects growth past ReservationSize-GuardWindow (8 GiB),
// leaving the last 4 GiB as an uncommitted window ahead of the largest
// possible memory.
const GuardWindow = 4 << 30

// Reservation is a linear memory's backing virtual memory: either a real
// guard-paged mmap/VirtualAlloc reservation, or (per the Fallback
// paragraph of spec §4.6) a plain Go byte slice on platforms without
// sufficient VA support.
type Reservation struct {
	impl reservationImpl
}

type reservationImpl interface {
	// Bytes returns the currently committed RW region as a byte slice.
	// Indices beyond len(Bytes()) but within the reservation are backed by
	// PROT_NONE/MEM_RESERVE pages (or, on the fallback path, simply don't
	// exist) and will fault on access.
	Bytes() []byte
	// Grow commits newPages additional 65536-byte pages at the tail,
	// returning the new total byte length.
	Grow(newPages uint32) (int, error)
	// Release drops the entire reservation.
	Release() error
}

// NewReservation reserves memory for a Wasm linear memory with the given
// initial page count (65536 bytes/page, spec §3). On platforms where
// ReservationSupported() is false, this transparently falls back to a
// plain allocated-and-zeroed slice; correctness is identical, only the
// elided-bounds-check optimization and guard-page fault behavior are lost.
func NewReservation(initialPages uint32) (*Reservation, error) {
	if initialPages == 0 {
		return nil, errors.New("allocator: initial page count must be nonzero")
	}
	var impl reservationImpl
	var err error
	if ReservationSupported() {
		impl, err = newGuardedReservation(initialPages)
	} else {
		impl, err = newFallbackReservation(initialPages)
	}
	if err != nil {
		return nil, err
	}
	return &Reservation{impl: impl}, nil
}

// Bytes returns the committed region.
func (r *Reservation) Bytes() []byte { return r.impl.Bytes() }

// Grow commits newPages additional pages, returning the byte length after
// growth.
func (r *Reservation) Grow(newPages uint32) (int, error) {
	if newPages == 0 {
		return len(r.impl.Bytes()), nil
	}
	return r.impl.Grow(newPages)
}

// Release frees the entire reservation. The Reservation must not be used
// afterward.
func (r *Reservation) Release() error { return r.impl.Release() }

// PageSize is the fixed Wasm linear-memory page size (spec §3).
const PageSize = 65536

func pagesToBytes(pages uint32) int { return int(pages) * PageSize }

func validateGrowth(committedBytes int, newPages uint32) (int, error) {
	newBytes := committedBytes + pagesToBytes(newPages)
	if newBytes > ReservationSize-GuardWindow {
		return 0, fmt.Errorf("allocator: grow would exceed reservation (committed %d bytes, +%d pages)", committedBytes, newPages)
	}
	return newBytes, nil
}
