// Package stacktrace implements the three collectors spec §4.5 describes
// — native, interpreted, and compiled — plus the merge algorithm an
// AOT-compiled-code trap runs across all three. Each collector returns a
// freshly allocated slice (of Frame, or of raw PCs for the native
// collector); none of them allocates an OS-level stack themselves, since Go's own runtime.Callers
// already walks the native stack for us (see native.go).
package stacktrace

// Frame is one entry in a merged call stack: the Wasm function index if
// one was resolved, and a display name for it. FuncIdx is only meaningful
// when Resolved is true. Merge drops native PCs that do not map back to a
// Wasm function (an embedder's own call into Invoke, for instance), so every
// Frame it returns has Resolved true.
type Frame struct {
	FuncIdx  uint32
	Name     string
	Resolved bool
}

// MaxFrames bounds how many frames any collector in this package will
// return, so a runaway-deep guest call stack can't blow up an error
// message (mirrors internal/wasmdebug.MaxFrames).
const MaxFrames = 1000
