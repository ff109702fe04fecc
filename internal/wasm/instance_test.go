package internalwasm

import (
	"testing"

	"github.com/wasmforge/wasmforge/internal/testing/require"
)

func TestMemoryInstance_GrowAndBuffer(t *testing.T) {
	m, err := NewMemoryInstance(1, 3, true, false)
	require.NoError(t, err)
	defer m.Release()

	require.Equal(t, uint32(1), m.PageSize())
	require.Equal(t, MemoryPageSize, len(m.Buffer()))

	prev := m.Grow(2)
	require.Equal(t, uint32(1), prev)
	require.Equal(t, uint32(3), m.PageSize())
	require.Equal(t, 3*MemoryPageSize, len(m.Buffer()))

	// Growing past Max fails without mutating state.
	require.Equal(t, ^uint32(0), m.Grow(1))
	require.Equal(t, uint32(3), m.PageSize())
}

func TestMemoryInstance_GrowZeroMinimum(t *testing.T) {
	m, err := NewMemoryInstance(0, 0, false, false)
	require.NoError(t, err)
	defer m.Release()

	require.Equal(t, uint32(0), m.PageSize())
	require.Equal(t, 0, len(m.Buffer()))

	prev := m.Grow(1)
	require.Equal(t, uint32(0), prev)
	require.Equal(t, uint32(1), m.PageSize())
}

func TestTableInstance_Grow(t *testing.T) {
	max := uint32(2)
	tbl := NewTableInstance(ValTypeFuncref, 1, max, true)
	require.Equal(t, 1, len(tbl.Elements))
	require.True(t, tbl.Elements[0].IsNull())

	prev := tbl.Grow(1, NullRef(ValTypeFuncref))
	require.Equal(t, uint32(1), prev)
	require.Equal(t, 2, len(tbl.Elements))

	require.Equal(t, ^uint32(0), tbl.Grow(1, NullRef(ValTypeFuncref)))
	require.Equal(t, 2, len(tbl.Elements))
}

func TestGlobalInstance_GetSet(t *testing.T) {
	g := &GlobalInstance{Type: GlobalType{ValType: ValTypeI32, Mutable: true}, Val: I32(1)}
	require.Equal(t, uint32(1), g.Get().I32())

	g.Set(I32(42))
	require.Equal(t, uint32(42), g.Get().I32())
}

func TestElementAndDataInstance_Drop(t *testing.T) {
	el := &ElementInstance{Type: ValTypeFuncref}
	require.False(t, el.Dropped())
	el.Drop()
	require.True(t, el.Dropped())

	d := &DataInstance{Bytes: []byte{1, 2, 3}}
	require.False(t, d.Dropped())
	d.Drop()
	require.True(t, d.Dropped())
}
