package internalwasm

import (
	"testing"

	"github.com/wasmforge/wasmforge/internal/testing/require"
)

func TestValueConstructorsAndAccessors(t *testing.T) {
	require.Equal(t, uint32(42), I32(42).I32())
	require.Equal(t, uint64(42), I64(42).I64())
	require.Equal(t, float32(1.5), F32(1.5).F32())
	require.Equal(t, float64(1.5), F64(1.5).F64())

	lo, hi := V128(1, 2).V128()
	require.Equal(t, uint64(1), lo)
	require.Equal(t, uint64(2), hi)
}

func TestValue_ZeroUnusedBits(t *testing.T) {
	v := Value{Lo: 0xffffffffffffffff, Hi: 0xffffffffffffffff, Type: ValTypeI32}
	z := v.ZeroUnusedBits()
	require.Equal(t, uint64(0xffffffff), z.Lo)
	require.Equal(t, uint64(0), z.Hi)

	v = Value{Lo: 0xffffffffffffffff, Hi: 0xffffffffffffffff, Type: ValTypeI64}
	z = v.ZeroUnusedBits()
	require.Equal(t, uint64(0xffffffffffffffff), z.Lo)
	require.Equal(t, uint64(0), z.Hi)

	v = Value{Lo: 0xffffffffffffffff, Hi: 0xffffffffffffffff, Type: ValTypeV128}
	z = v.ZeroUnusedBits()
	require.Equal(t, uint64(0xffffffffffffffff), z.Lo)
	require.Equal(t, uint64(0xffffffffffffffff), z.Hi)

	ref := RefValue(Reference{Type: ValTypeFuncref, Index: 3})
	ref.Lo, ref.Hi = 1, 1
	z = ref.ZeroUnusedBits()
	require.Equal(t, uint64(0), z.Lo)
	require.Equal(t, uint64(0), z.Hi)
}

func TestReference_NullAndExternalize(t *testing.T) {
	r := NullRef(ValTypeFuncref)
	require.True(t, r.IsNull())

	r = Reference{Type: ValTypeFuncref, Index: 7}
	require.False(t, r.IsNull())

	ext := r.Externalize("host object")
	require.True(t, ext.Externalized)
	require.Equal(t, ValTypeExternref, ext.Type)
	require.Equal(t, "host object", ext.Unwrap())

	require.Equal(t, r, r.Unwrap())
}
