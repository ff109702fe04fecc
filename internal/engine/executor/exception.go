package executor

import (
	"github.com/wasmforge/wasmforge/internal/engine/stack"
	wasm "github.com/wasmforge/wasmforge/internal/wasm"
	"github.com/wasmforge/wasmforge/internal/wasmruntime"
)

// unwind is panicked by doThrow/rethrow when the matching handler belongs
// to an ancestor Go call rather than the one currently executing. Every
// enterInterpretedFunction recovers it (runProtected), checks whether it
// owns the matching frame, and either resumes its own dispatch loop there
// or re-panics to keep unwinding — the non-local-escape pattern this
// package's calling convention otherwise avoids, needed here because
// HandlerStack is one flat stack shared across every nested call rather
// than scoped per frame.
type unwind struct {
	frameDepth int
	tryPC      int
	exn        wasm.Value
	pushExn    bool
}

// doThrow implements throw: it pops tagIdx's declared parameter values
// into an exnref payload, searches HandlerStack for a matching clause, and
// either returns the pc to resume at (same frame) or panics an unwind
// (ancestor frame). If no handler anywhere matches, returns
// wasmruntime.ErrRuntimeUncaughtException.
func (e *Executor) doThrow(sm *stack.Manager, fn *wasm.FunctionInstance, idx blockIndex, myFrameDepth int, tagIdx uint32) (int, error) {
	mod := fn.Module
	var params []wasm.ValType
	if int(tagIdx) < len(mod.Tags) {
		if ct := mod.Types[mod.Tags[tagIdx]].Composite; ct.FuncType != nil {
			params = ct.FuncType.Params
		}
	}
	payload := append([]wasm.Value(nil), sm.Top(len(params))...)
	sm.ValStack = sm.ValStack[:len(sm.ValStack)-len(params)]

	exn := wasm.RefValue(wasm.Reference{
		Type: wasm.ValType{Code: wasm.CodeRef, HeapType: wasm.HeapExn},
		Host: taggedException{tag: tagIdx, payload: payload},
	})
	return e.resolveThrow(sm, idx, myFrameDepth, tagIdx, exn, payload)
}

// taggedException is the payload carried by an exn heap reference: the
// tag it was thrown with and its parameter values, recovered by a
// catch_ref clause or by throw_ref re-raising it further out.
type taggedException struct {
	tag     uint32
	payload []wasm.Value
}

func (e *Executor) resolveThrow(sm *stack.Manager, idx blockIndex, myFrameDepth int, tagIdx uint32, exn wasm.Value, payload []wasm.Value) (int, error) {
	result, ok := sm.ThrowException(tagIdx, func(h stack.Handler, c wasm.CatchClause) bool { return !c.IsAll && c.Tag == tagIdx })
	if !ok {
		return 0, wasmruntime.ErrRuntimeUncaughtException
	}
	clause := result.Handler.Catches[result.ClauseIdx]
	pushExn := clause.CaptureExn
	if result.Handler.FrameDepth == myFrameDepth {
		for _, v := range payload {
			sm.Push(v)
		}
		if pushExn {
			sm.Push(exn)
		}
		return idx.endOf[result.Handler.TryPC] + 1, nil
	}
	sm.FrameStack = sm.FrameStack[:result.Handler.FrameDepth]
	panic(unwind{frameDepth: result.Handler.FrameDepth, tryPC: result.Handler.TryPC, exn: exn, pushExn: pushExn})
}

// rethrow implements throw_ref: re-raises an already-caught exnref value.
// Unlike throw, it carries no tag to match a typed catch clause against —
// only a catch_all (or catch_all_ref) clause further out can receive it,
// per spec's exception-handling surface.
func (e *Executor) rethrow(sm *stack.Manager, fn *wasm.FunctionInstance, idx blockIndex, myFrameDepth int, exnVal wasm.Value) (int, error) {
	te, _ := exnVal.Ref.Host.(taggedException)

	result, ok := sm.ThrowException(te.tag, func(stack.Handler, wasm.CatchClause) bool { return false })
	if !ok {
		return 0, wasmruntime.ErrRuntimeUncaughtException
	}
	clause := result.Handler.Catches[result.ClauseIdx]
	pushExn := clause.CaptureExn
	if result.Handler.FrameDepth == myFrameDepth {
		for _, v := range te.payload {
			sm.Push(v)
		}
		if pushExn {
			sm.Push(exnVal)
		}
		return idx.endOf[result.Handler.TryPC] + 1, nil
	}
	sm.FrameStack = sm.FrameStack[:result.Handler.FrameDepth]
	panic(unwind{frameDepth: result.Handler.FrameDepth, tryPC: result.Handler.TryPC, exn: exnVal, pushExn: pushExn})
}
