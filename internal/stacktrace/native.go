package stacktrace

import (
	"runtime"
	"strings"
)

// ownModulePrefix is this module's own import path prefix; CaptureNative
// filters frames inside it out of a trace meant to describe the guest's
// (or embedder's) call stack, the same way spec §4.5's native collector
// "filters... to exclude this module's own frames".
const ownModulePrefix = "github.com/wasmforge/wasmforge/"

// systemPrefixes are well-known runtime/stdlib packages spec §4.5 asks the
// native collector to exclude alongside this module's own frames — they
// never correspond to anything a caller would recognize as part of their
// own call stack.
var systemPrefixes = []string{"runtime.", "testing."}

// CaptureNative returns up to MaxFrames program counters from the calling
// goroutine's native stack, skipping skip innermost frames (conventionally
// the call to CaptureNative itself and its immediate caller), filtered to
// exclude this module's own frames and well-known runtime/testing frames.
// The returned PCs are suitable for runtime.CallersFrames or, on a
// compiled-code trap, for CompiledRegistry.Lookup.
func CaptureNative(skip int) []uintptr {
	raw := make([]uintptr, MaxFrames)
	n := runtime.Callers(skip+2, raw)
	raw = raw[:n]

	out := make([]uintptr, 0, n)
	frames := runtime.CallersFrames(raw)
	for i := 0; i < n; i++ {
		fr, more := frames.Next()
		if !isOwnOrSystemFrame(fr.Function) {
			out = append(out, raw[i])
		}
		if !more {
			break
		}
	}
	return out
}

func isOwnOrSystemFrame(function string) bool {
	if strings.HasPrefix(function, ownModulePrefix) {
		return true
	}
	for _, p := range systemPrefixes {
		if strings.HasPrefix(function, p) {
			return true
		}
	}
	return false
}

// commonSuffixLen returns how many trailing elements inner and outer share
// in common (compared from the end of each slice backward), used by Merge
// to strip the shared tail spec §4.5 describes ("strip their common
// suffix... frames above the JIT entry") from a trap's inner (in-JIT) and
// outer (host, i.e. the call into Invoke) native traces.
func commonSuffixLen(inner, outer []uintptr) int {
	n := 0
	for n < len(inner) && n < len(outer) && inner[len(inner)-1-n] == outer[len(outer)-1-n] {
		n++
	}
	return n
}
