package stacktrace

import "runtime"

// Merge implements spec §4.5's compiled-code-trap merge algorithm: given
// the inner (captured from inside the arming Fault, i.e. still within the
// JIT-compiled call) and outer (captured from the Fault's caller, i.e.
// Invoke's own frame) native traces, it strips their common suffix — the
// frames above the JIT entry point that both traces share, contributing
// nothing about the guest call — resolves what remains of inner against
// registry, and appends interpreted for any enclosing interpreted
// activations that called into the compiled function.
func Merge(inner, outer []uintptr, registry *CompiledRegistry, interpreted []Frame) []Frame {
	shared := commonSuffixLen(inner, outer)
	trimmed := inner
	if shared > 0 {
		trimmed = inner[:len(inner)-shared]
	}

	out := make([]Frame, 0, len(trimmed)+len(interpreted))
	for _, pc := range trimmed {
		idx, ok := registry.Lookup(pc)
		if !ok {
			continue
		}
		name := funcForPC(pc)
		out = append(out, Frame{FuncIdx: idx, Name: name, Resolved: true})
		if len(out) >= MaxFrames {
			return out
		}
	}
	for _, f := range interpreted {
		if len(out) >= MaxFrames {
			break
		}
		out = append(out, f)
	}
	return out
}

// funcForPC returns a best-effort Go symbol name for pc, used only as a
// human-readable fallback label alongside the resolved Wasm function
// index; the index, not this name, is what a caller should key off of.
func funcForPC(pc uintptr) string {
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return ""
	}
	return fn.Name()
}
