package stack

import (
	"testing"

	wasm "github.com/wasmforge/wasmforge/internal/wasm"
	"github.com/wasmforge/wasmforge/internal/testing/require"
	"github.com/wasmforge/wasmforge/internal/wasmruntime"
)

func TestManager_PushPopTop(t *testing.T) {
	m := New(0)
	m.Push(wasm.I32(1))
	m.Push(wasm.I32(2))
	m.Push(wasm.I32(3))

	top2 := m.Top(2)
	require.Equal(t, 2, len(top2))
	require.Equal(t, uint32(2), top2[0].I32())
	require.Equal(t, uint32(3), top2[1].I32())

	v := m.Pop()
	require.Equal(t, uint32(3), v.I32())
	require.Equal(t, 2, len(m.ValStack))
}

func TestManager_EraseRange(t *testing.T) {
	m := New(0)
	for i := uint32(0); i < 5; i++ {
		m.Push(wasm.I32(i))
	}
	// Stack: [0,1,2,3,4]. Erase the middle, keeping the bottom 2 and the
	// top 1 (begin=3 spans from index 2 to the top, end=1 keeps the top
	// value): result should be [0,1,4].
	m.EraseRange(3, 1)
	require.Equal(t, 3, len(m.ValStack))
	require.Equal(t, uint32(0), m.ValStack[0].I32())
	require.Equal(t, uint32(1), m.ValStack[1].I32())
	require.Equal(t, uint32(4), m.ValStack[2].I32())
}

func TestManager_EraseRangeNoOp(t *testing.T) {
	m := New(0)
	m.Push(wasm.I32(1))
	m.Push(wasm.I32(2))
	m.EraseRange(1, 1)
	require.Equal(t, 2, len(m.ValStack))
}

func TestManager_PushPopFrame(t *testing.T) {
	m := New(0)
	m.Push(wasm.I32(10))
	m.Push(wasm.I32(20))
	err := m.PushFrame(nil, 0, 42, 2, 1, false)
	require.NoError(t, err)
	require.Equal(t, 1, len(m.FrameStack))

	f := m.CurrentFrame()
	require.Equal(t, 42, f.ReturnPC)
	require.Equal(t, 2, len(m.ValStack))
	require.Equal(t, f.ValueTop-2, f.LocalSlot(0))
	require.Equal(t, f.ValueTop-1, f.LocalSlot(1))

	pc := m.PopFrame()
	require.Equal(t, 42, pc)
	require.Equal(t, 0, len(m.FrameStack))
}

func TestManager_PushFrameOverflow(t *testing.T) {
	m := New(2)
	require.NoError(t, m.PushFrame(nil, 0, 0, 0, 0, false))
	require.NoError(t, m.PushFrame(nil, 0, 0, 0, 0, false))
	err := m.PushFrame(nil, 0, 0, 0, 0, false)
	require.Error(t, err)
	require.ErrorIs(t, err, wasmruntime.ErrRuntimeCallStackOverflow)
}

func TestManager_TailCallOverwritesCallerLocals(t *testing.T) {
	m := New(0)
	// Caller frame with 2 locals.
	m.Push(wasm.I32(1))
	m.Push(wasm.I32(2))
	require.NoError(t, m.PushFrame(nil, 0, 99, 2, 1, false))

	// Caller pushes one new argument for the tail call.
	m.Push(wasm.I32(7))
	require.NoError(t, m.PushFrame(nil, 0, 0, 1, 1, true))

	require.Equal(t, 1, len(m.FrameStack))
	f := m.CurrentFrame()
	require.Equal(t, 99, f.ReturnPC) // inherited from the caller.
	require.True(t, f.IsTailCall)
	require.Equal(t, 1, len(m.ValStack))
	require.Equal(t, uint32(7), m.ValStack[0].I32())
}

func TestManager_HandlerStack(t *testing.T) {
	m := New(0)
	m.Push(wasm.I32(1))
	m.PushHandler(10, []wasm.CatchClause{{IsAll: true, LabelIdx: 0}})
	require.Equal(t, 1, len(m.HandlerStack))

	m.Push(wasm.I32(2))
	m.Push(wasm.I32(3))

	result, ok := m.ThrowException(0, func(Handler, wasm.CatchClause) bool { return false })
	require.True(t, ok)
	require.True(t, result.Handler.Catches[0].IsAll)
	require.Equal(t, 1, len(m.ValStack)) // unwound to the handler's entry depth.
	require.Equal(t, 0, len(m.HandlerStack))
}

func TestManager_ThrowExceptionNoMatchPropagates(t *testing.T) {
	m := New(0)
	m.PushHandler(5, []wasm.CatchClause{{Tag: 1, LabelIdx: 0}})
	_, ok := m.ThrowException(2, func(h Handler, c wasm.CatchClause) bool { return c.Tag == 2 })
	require.False(t, ok)
	require.Equal(t, 0, len(m.HandlerStack))
}

func TestManager_RemoveInactiveHandler(t *testing.T) {
	m := New(0)
	m.PushHandler(1, nil)
	m.PushHandler(5, nil)
	m.RemoveInactiveHandler(0, 10)
	require.Equal(t, 0, len(m.HandlerStack))
}
