// Package wasmdebug collects and formats guest call stacks for error
// messages, without depending on the compiler or interpreter packages.
package wasmdebug

import (
	"fmt"
	"runtime"
	"strings"

	wasm "github.com/wasmforge/wasmforge/internal/wasm"
	"github.com/wasmforge/wasmforge/internal/wasmruntime"
)

// MaxFrames is the maximum number of frames ErrorBuilder will format into a
// wasm stack trace, to bound the size of an error message for deeply
// recursive guest code.
const MaxFrames = 1000

// FuncName returns a human-readable identifier combining moduleName and
// funcName, falling back to a positional "$%d" form when funcName is empty
// (e.g. for an unnamed function in the custom name section).
func FuncName(moduleName, funcName string, funcIdx uint32) string {
	if funcName == "" {
		funcName = fmt.Sprintf("$%d", funcIdx)
	}
	return fmt.Sprintf("%s.%s", moduleName, funcName)
}

// signature appends a parenthesized parameter list and, when present, a
// result list to name, e.g. "x.y(i32,i32) i64" or "x.y() (i64,f32)".
func signature(name string, paramTypes, resultTypes []wasm.ValType) string {
	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte('(')
	for i, t := range paramTypes {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(t.String())
	}
	sb.WriteByte(')')
	switch len(resultTypes) {
	case 0:
	case 1:
		sb.WriteByte(' ')
		sb.WriteString(resultTypes[0].String())
	default:
		sb.WriteString(" (")
		for i, t := range resultTypes {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(t.String())
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

// ErrorBuilder accumulates guest call frames, innermost first, so that a
// recovered panic can be reported together with the wasm stack trace that
// was active when it occurred.
type ErrorBuilder interface {
	// AddFrame records a call frame, innermost caller first. paramTypes and
	// resultTypes may be nil for an unknown or void signature.
	AddFrame(name string, paramTypes, resultTypes []wasm.ValType)
	// FromRecovered wraps a value recovered from a panic into an error
	// whose message includes the accumulated wasm stack trace, and whose
	// Unwrap returns the original recovered error.
	FromRecovered(recovered any) error
}

type errorBuilder struct {
	frames []string
}

// NewErrorBuilder returns an empty ErrorBuilder.
func NewErrorBuilder() ErrorBuilder {
	return &errorBuilder{}
}

func (b *errorBuilder) AddFrame(name string, paramTypes, resultTypes []wasm.ValType) {
	if len(b.frames) >= MaxFrames {
		return
	}
	b.frames = append(b.frames, signature(name, paramTypes, resultTypes))
}

func (b *errorBuilder) FromRecovered(recovered any) error {
	var wrapped error
	switch v := recovered.(type) {
	case runtime.Error:
		// A runtime.Error recovered from a guest call (e.g. an out of
		// bounds slice access surfaced by the fault subsystem) is reported
		// verbatim; its Error() text already names the failure.
		wrapped = v
	case error:
		wrapped = v
	default:
		wrapped = fmt.Errorf("%v", v)
	}

	var message string
	if wrapped == wasmruntime.ErrRuntimeCallStackOverflow {
		message = "wasm error: callstack overflow"
	} else {
		message = fmt.Sprintf("%s (recovered by runtime)", wrapped.Error())
	}

	var sb strings.Builder
	sb.WriteString(message)
	if len(b.frames) > 0 {
		sb.WriteString("\nwasm stack trace:")
		for _, f := range b.frames {
			sb.WriteString("\n\t")
			sb.WriteString(f)
		}
	}
	return &traceError{message: sb.String(), cause: wrapped}
}

// traceError is returned by ErrorBuilder.FromRecovered: its Error() is the
// formatted message plus wasm stack trace, and it unwraps to the original
// recovered error so callers can still errors.Is/As against e.g.
// wasmruntime sentinels.
type traceError struct {
	message string
	cause   error
}

func (e *traceError) Error() string { return e.message }
func (e *traceError) Unwrap() error { return e.cause }
