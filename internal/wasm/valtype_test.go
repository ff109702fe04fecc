package internalwasm

import (
	"testing"

	"github.com/wasmforge/wasmforge/internal/testing/require"
)

func TestValType_Predicates(t *testing.T) {
	require.True(t, ValTypeI32.IsNumeric())
	require.True(t, ValTypeV128.IsNumeric())
	require.False(t, ValTypeFuncref.IsNumeric())

	require.True(t, ValTypeFuncref.IsRef())
	require.False(t, ValTypeI32.IsRef())

	require.True(t, ValTypeI8.IsPackedStorage())
	require.True(t, ValTypeI16.IsPackedStorage())
	require.False(t, ValTypeI32.IsPackedStorage())
}

func TestValType_Defaultable(t *testing.T) {
	require.True(t, ValTypeI32.Defaultable())
	require.True(t, ValTypeFuncref.Defaultable()) // nullable ref defaults to null.

	nonNull := ValTypeFuncref.AsNonNull()
	require.False(t, nonNull.Defaultable())
}

func TestValType_TopAndBottomHeapType(t *testing.T) {
	tests := []struct {
		name     string
		t        ValType
		wantTop  byte
		wantBot  byte
	}{
		{name: "struct widens to any", t: ValType{Code: CodeRef, HeapType: HeapStruct}, wantTop: HeapAny, wantBot: HeapNone},
		{name: "array widens to any", t: ValType{Code: CodeRef, HeapType: HeapArray}, wantTop: HeapAny, wantBot: HeapNone},
		{name: "nofunc widens to func", t: ValType{Code: CodeRef, HeapType: HeapNofunc}, wantTop: HeapFunc, wantBot: HeapNofunc},
		{name: "func is its own top", t: ValType{Code: CodeRef, HeapType: HeapFunc}, wantTop: HeapFunc, wantBot: HeapNofunc},
		{name: "extern is its own top", t: ValType{Code: CodeRef, HeapType: HeapExtern}, wantTop: HeapExtern, wantBot: HeapNoextern},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			top := tc.t.TopHeapType()
			require.Equal(t, tc.wantTop, top)
			require.Equal(t, tc.wantBot, BottomHeapType(top))
		})
	}
}

func TestValType_String(t *testing.T) {
	require.Equal(t, "i32", ValTypeI32.String())
	require.Equal(t, "f64", ValTypeF64.String())
	require.Equal(t, "(ref null func)", ValTypeFuncref.String())
	require.Equal(t, "(ref extern)", ValTypeExternref.AsNonNull().String())
	require.Equal(t, "(ref null 5)", ValType{Code: CodeRef, Nullable: true, HeapType: HeapConcrete, TypeIndex: 5}.String())
}
