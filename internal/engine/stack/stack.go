// Package stack implements the StackManager spec §4.2 describes: the
// parallel value/frame/exception-handler stacks a single invocation
// threads through the executor, plus locals addressing and tail-call
// frame installation.
package stack

import (
	wasm "github.com/wasmforge/wasmforge/internal/wasm"
	"github.com/wasmforge/wasmforge/internal/wasmruntime"
)

// DefaultCallStackCeiling bounds FrameStack depth, mirroring the teacher's
// own buildoptions.CallStackCeiling constant (that package is out of
// scope; this is the equivalent fixed default).
const DefaultCallStackCeiling = 2048

// Frame is one FrameStack entry (spec §4.2): the calling module, where to
// resume after the callee returns, the callee's locals/returns arity, the
// value-stack depth recorded at entry, and whether this frame replaced its
// caller via a tail call.
type Frame struct {
	Module       *wasm.ModuleInstance
	FuncIdx      uint32
	ReturnPC     int
	LocalsArity  int
	ReturnsArity int
	ValueTop     int
	IsTailCall   bool
}

// Handler is one HandlerStack entry: a try_table region's catch clauses
// and the value-stack depth to unwind to if one of them matches.
type Handler struct {
	TryPC      int
	Catches    []wasm.CatchClause
	EntryDepth int
	// FrameDepth is len(FrameStack) at the time this handler was pushed,
	// i.e. the depth of the function activation that owns it. A thrown
	// exception resolving to a handler with a shallower FrameDepth than
	// the frame that's throwing means the catch lives in an ancestor
	// call, not the current one, and execution must unwind the
	// intervening Go call frames to resume there.
	FrameDepth int
}

// Manager holds the three parallel stacks spec §4.2 names, installed fresh
// per invocation (spec §4.3 "invoke... installs a fresh StackManager").
type Manager struct {
	ValStack     []wasm.Value
	FrameStack   []Frame
	HandlerStack []Handler

	// CallStackCeiling bounds FrameStack depth; exceeding it traps with
	// ErrRuntimeCallStackOverflow rather than exhausting the Go stack.
	CallStackCeiling int
}

// New constructs a Manager with the given call-stack depth limit. A
// ceiling of 0 uses DefaultCallStackCeiling.
func New(ceiling int) *Manager {
	if ceiling <= 0 {
		ceiling = DefaultCallStackCeiling
	}
	return &Manager{CallStackCeiling: ceiling}
}

// Push appends a single Value to the top of ValStack.
func (m *Manager) Push(v wasm.Value) {
	m.ValStack = append(m.ValStack, v)
}

// Pop removes and returns the top of ValStack. Callers never need to check
// bounds themselves: every pop site is reachable only for a function body
// FormChecker already accepted, so the stack is never empty here.
func (m *Manager) Pop() wasm.Value {
	top := len(m.ValStack) - 1
	v := m.ValStack[top]
	m.ValStack = m.ValStack[:top]
	return v
}

// Top returns the top n values of ValStack in stack order (bottom to top
// within the returned slice), without removing them. The returned slice
// aliases the live stack and is only valid until the next Push/Pop/
// EraseRange call.
func (m *Manager) Top(n int) []wasm.Value {
	if n == 0 {
		return nil
	}
	return m.ValStack[len(m.ValStack)-n:]
}

// EraseRange erases the validator-computed (StackEraseBegin, StackEraseEnd)
// span a branch attaches to its target (spec §4.1, §4.2): removes the
// begin-end values sitting strictly below the top `end` result values and
// slides those results down to close the gap, in a single O(end) move.
func (m *Manager) EraseRange(begin, end int) {
	if begin == end {
		return
	}
	n := len(m.ValStack)
	results := append([]wasm.Value(nil), m.ValStack[n-end:]...)
	m.ValStack = append(m.ValStack[:n-begin], results...)
}

// PushFrame installs a new call frame. The callee's full locals vector
// (arguments followed by defaulted declared locals) must already sit on
// top of ValStack; ValueTop is recorded as the current stack depth so
// LocalSlot can address them. A tail call instead discards the caller's
// own locals region (spec §4.2 "Tail-calls": the callee's arguments
// overwrite them) and inherits the caller's return PC rather than pushing
// a new FrameStack entry on top of it.
func (m *Manager) PushFrame(module *wasm.ModuleInstance, funcIdx uint32, returnPC, localsArity, returnsArity int, isTailCall bool) error {
	if isTailCall && len(m.FrameStack) > 0 {
		caller := m.FrameStack[len(m.FrameStack)-1]
		localsBase := caller.ValueTop - caller.LocalsArity
		n := len(m.ValStack)
		args := append([]wasm.Value(nil), m.ValStack[n-localsArity:]...)
		m.ValStack = append(m.ValStack[:localsBase], args...)
		m.FrameStack[len(m.FrameStack)-1] = Frame{
			Module:       module,
			FuncIdx:      funcIdx,
			ReturnPC:     caller.ReturnPC,
			LocalsArity:  localsArity,
			ReturnsArity: returnsArity,
			ValueTop:     localsBase + localsArity,
			IsTailCall:   true,
		}
		return nil
	}
	if len(m.FrameStack) >= m.CallStackCeiling {
		return wasmruntime.ErrRuntimeCallStackOverflow
	}
	m.FrameStack = append(m.FrameStack, Frame{
		Module:       module,
		FuncIdx:      funcIdx,
		ReturnPC:     returnPC,
		LocalsArity:  localsArity,
		ReturnsArity: returnsArity,
		ValueTop:     len(m.ValStack),
	})
	return nil
}

// PopFrame removes the top FrameStack entry and returns the PC execution
// should resume at in the caller.
func (m *Manager) PopFrame() (returnPC int) {
	top := len(m.FrameStack) - 1
	f := m.FrameStack[top]
	m.FrameStack = m.FrameStack[:top]
	return f.ReturnPC
}

// CurrentFrame returns the innermost active frame. Callers only invoke
// this while a function is executing, so FrameStack is always non-empty
// (spec §4.2 invariant).
func (m *Manager) CurrentFrame() *Frame {
	return &m.FrameStack[len(m.FrameStack)-1]
}

// LocalSlot resolves local index k within the current frame to its
// absolute ValStack index (spec §4.2 "Locals addressing": `ValStack[SP -
// (localsArity - k)]`, where SP is the frame's recorded ValueTop).
func (f *Frame) LocalSlot(k int) int {
	return f.ValueTop - (f.LocalsArity - k)
}

// PushHandler installs a try_table region's handler, recording the
// current value-stack depth as its unwind target.
func (m *Manager) PushHandler(tryPC int, catches []wasm.CatchClause) {
	m.HandlerStack = append(m.HandlerStack, Handler{
		TryPC:      tryPC,
		Catches:    catches,
		EntryDepth: len(m.ValStack),
		FrameDepth: len(m.FrameStack),
	})
}

// PopTopHandler removes and returns the innermost handler, used once its
// try_table region is exited normally (no throw reached it).
func (m *Manager) PopTopHandler() Handler {
	top := len(m.HandlerStack) - 1
	h := m.HandlerStack[top]
	m.HandlerStack = m.HandlerStack[:top]
	return h
}

// RemoveInactiveHandler drops every handler owned by the current frame
// whose try region can no longer be entered because control has passed pc
// without throwing (spec §4.2's throwException walk pops these lazily;
// this lets the normal control-flow path retire them eagerly instead). It
// never touches a handler pushed by an ancestor frame, since pc is only
// meaningful within the current function's own instruction stream.
func (m *Manager) RemoveInactiveHandler(frameDepth, pc int) {
	for len(m.HandlerStack) > 0 {
		top := m.HandlerStack[len(m.HandlerStack)-1]
		if top.FrameDepth != frameDepth || top.TryPC >= pc {
			return
		}
		m.HandlerStack = m.HandlerStack[:len(m.HandlerStack)-1]
	}
}

// ThrowResult is what ThrowException resolves a thrown tag to: the
// matching handler, the index of the matching clause, and whether that
// clause captures the exnref (the caller builds and pushes it).
type ThrowResult struct {
	Handler    Handler
	ClauseIdx  int
	CaptureExn bool
}

// ThrowException walks HandlerStack from the top looking for a clause
// matching tag (or a catch-all), per spec §4.2. On a match it unwinds
// ValStack to the handler's entry depth and returns the matching handler
// and clause index. The truncation removes everything above EntryDepth,
// including any tag values that were there, so the caller is responsible
// for pushing the tag's associated values plus an exnref if requested.
// Returns false if no handler matches, meaning the exception
// propagates as UncaughtException.
func (m *Manager) ThrowException(tag uint32, matches func(h Handler, clause wasm.CatchClause) bool) (ThrowResult, bool) {
	for len(m.HandlerStack) > 0 {
		h := m.HandlerStack[len(m.HandlerStack)-1]
		m.HandlerStack = m.HandlerStack[:len(m.HandlerStack)-1]
		for i, c := range h.Catches {
			if c.IsAll || matches(h, c) {
				m.ValStack = m.ValStack[:h.EntryDepth]
				return ThrowResult{Handler: h, ClauseIdx: i, CaptureExn: c.CaptureExn}, true
			}
		}
	}
	return ThrowResult{}, false
}
