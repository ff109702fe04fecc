//go:build !(linux || darwin || freebsd || windows)

package allocator

// ReservationSupported is false on any platform without a guarded-mmap
// implementation in this package; NewReservation falls back to plain
// allocate-and-zero-fill (spec §4.6 "Fallback").
func ReservationSupported() bool { return false }
