package stacktrace

import (
	"github.com/wasmforge/wasmforge/internal/engine/stack"
	"github.com/wasmforge/wasmforge/internal/wasmdebug"
)

// CaptureInterpreted walks frames — a StackManager's FrameStack, innermost
// (top) first — and resolves each to a display Frame via its owning
// Module's function table. Per spec §4.5 ("for each frame with a
// non-sentinel From pointer, binary-searches the module's function table
// for the enclosing function index"): this engine's interpreter already
// knows the enclosing function index at frame-push time (one Go-level
// frame is always exactly one Wasm function activation, spec §4.2), so no
// search is needed — a frame with a nil Module (the sentinel for "this
// activation wasn't a Wasm function", which never happens on FrameStack
// today but is kept as a guard for host-originated frames a future
// caller might splice in) is skipped rather than resolved.
func CaptureInterpreted(frames []stack.Frame) []Frame {
	out := make([]Frame, 0, len(frames))
	for i := len(frames) - 1; i >= 0 && len(out) < MaxFrames; i-- {
		f := frames[i]
		if f.Module == nil {
			continue
		}
		name := wasmdebug.FuncName(f.Module.Name, "", f.FuncIdx)
		if funcs := f.Module.Functions; int(f.FuncIdx) < len(funcs) && funcs[f.FuncIdx] != nil && funcs[f.FuncIdx].DebugName != "" {
			name = wasmdebug.FuncName(f.Module.Name, funcs[f.FuncIdx].DebugName, f.FuncIdx)
		}
		out = append(out, Frame{FuncIdx: f.FuncIdx, Name: name, Resolved: true})
	}
	return out
}
