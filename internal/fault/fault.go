// Package fault implements the non-local-escape trap boundary spec §4.4
// describes for compiled code. A hand-rolled sigaction/VEH layer exists in
// the spec's original C++ engine because that runtime has no other way to
// observe a hardware SIGSEGV/SIGBUS/SIGFPE; Go's own runtime already
// performs that OS-level translation uniformly (a panic carrying a
// runtime.Error on POSIX, an access-violation panic on Windows) before any
// application code runs, so this package's job narrows to the three things
// Go's runtime does not do for us: a scope-bound, strictly LIFO-nested
// boundary per invocation (spec §5), a FaultBlocker that lets host code
// (e.g. a cgo call) fault without this engine swallowing it, and the
// recovered-value -> Wasm trap-code mapping.
package fault

import (
	"runtime"
	"strings"

	"github.com/wasmforge/wasmforge/internal/wasmruntime"
)

// Fault is one armed boundary, scope-bound the way the teacher's own
// callWithStack defer/recover is: constructing one with Arm links it
// behind the invocation's previously-armed Fault (if any), and Disarm
// unlinks it again. Guest code never sees a Fault directly; Executor.invoke
// arms one for the lifetime of a top-level Invoke/AsyncInvoke call.
type Fault struct {
	prev    *Fault
	blocked bool
}

// Arm links a new Fault behind prev (nil for the outermost invocation on
// this goroutine), mirroring spec §4.4's "pushes itself onto a thread-local
// singly-linked list". Go has no notion of thread-local storage that
// survives a goroutine hop, but per spec §5 a single invocation never
// migrates goroutines mid-flight, so the chain only needs to be
// goroutine-scoped for the duration of one invoke call; threading *Fault
// through ExecutionContext (as Executor does) gives exactly that scope.
func Arm(prev *Fault) *Fault {
	return &Fault{prev: prev}
}

// Disarm returns the Fault this one was armed behind, for the caller to
// restore as the active boundary.
func (f *Fault) Disarm() *Fault {
	if f == nil {
		return nil
	}
	return f.prev
}

// Guard runs fn and recovers any panic it raises, translating it to a Wasm
// runtime error via Translate (spec §4.4's POSIX/Windows signal-to-trap
// tables, expressed here as a panic-value-to-trap mapping since Go's
// runtime already did the hardware-to-panic half). If a FaultBlocker is
// currently active on f, a recovered panic is re-raised unchanged instead
// of translated — spec's "used while executing host code that is allowed
// to trap natively" — letting it propagate to an outer Fault or, if none
// is armed, to the process's default panic handler.
func (f *Fault) Guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if f != nil && f.blocked {
				panic(r)
			}
			err = Translate(r)
		}
	}()
	fn()
	return nil
}

// Block unlinks f's trap translation for the returned FaultBlocker's
// lifetime; call Release to rearm. Nested Blockers on the same Fault are
// supported: Release restores exactly the blocked state Block observed,
// so an inner Block/Release pair never accidentally rearms an outer one.
func (f *Fault) Block() *FaultBlocker {
	if f == nil {
		return &FaultBlocker{}
	}
	b := &FaultBlocker{f: f, prev: f.blocked}
	f.blocked = true
	return b
}

// FaultBlocker is a scoped unlinking of one Fault's translation, per spec
// §4.4's "scoped FaultBlocker that unlinks the current handler for its
// lifetime".
type FaultBlocker struct {
	f    *Fault
	prev bool
}

// Release restores the Fault's blocked state to what it was before Block
// was called.
func (b *FaultBlocker) Release() {
	if b == nil || b.f == nil {
		return
	}
	b.f.blocked = b.prev
}

// Translate maps a value recovered from a panic to one of
// internal/wasmruntime's trap sentinels, per spec §4.4's signal-to-trap
// tables:
//
//   - an out-of-bounds slice/array access (the Go runtime's stand-in for a
//     SIGSEGV/SIGBUS on an elided bounds check, or Windows'
//     EXCEPTION_ACCESS_VIOLATION/STACK_OVERFLOW) -> MemoryOutOfBounds;
//   - an integer divide-by-zero or MinInt/-1 overflow (SIGFPE's
//     FPE_INTDIV, or Windows' EXCEPTION_INT_DIVIDE_BY_ZERO/
//     EXCEPTION_INT_OVERFLOW) -> DivideByZero/IntegerOverflow;
//   - anything else recognizable as a runtime.Error is reported as a
//     generic out-of-bounds access, since every other runtime.Error this
//     engine can provoke (nil dereference, slice bounds) indicates memory
//     was accessed where it should not have been;
//   - a value that is already one of wasmruntime's own sentinels (a trap
//     an intrinsic raised deliberately, not a hardware fault) passes
//     through unchanged.
func Translate(recovered any) error {
	if err, ok := recovered.(error); ok {
		if _, isTrap := wasmruntime.CategoryOf(err); isTrap {
			return err
		}
		if re, ok := recovered.(runtime.Error); ok {
			return translateRuntimeError(re)
		}
		return err
	}
	return wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess
}

func translateRuntimeError(re runtime.Error) error {
	msg := re.Error()
	switch {
	case strings.Contains(msg, "integer divide by zero"):
		return wasmruntime.ErrRuntimeDivideByZero
	case strings.Contains(msg, "integer overflow"):
		return wasmruntime.ErrRuntimeIntegerOverflow
	default:
		// index/slice out of range, nil pointer dereference: the
		// hardware-fault analogues spec §4.4 maps to MemoryOutOfBounds.
		return wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess
	}
}
