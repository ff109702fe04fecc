package internalwasm

import (
	"testing"

	"github.com/wasmforge/wasmforge/internal/testing/require"
)

func TestFunctionType_String(t *testing.T) {
	tests := []struct {
		name     string
		ft       *FunctionType
		expected string
	}{
		{name: "v_v", ft: &FunctionType{}, expected: "null_null"},
		{name: "i32f64_v", ft: &FunctionType{Params: []ValType{ValTypeI32, ValTypeF64}}, expected: "i32f64_null"},
		{name: "v_i64", ft: &FunctionType{Results: []ValType{ValTypeI64}}, expected: "null_i64"},
		{
			name:     "i32_i64f32",
			ft:       &FunctionType{Params: []ValType{ValTypeI32}, Results: []ValType{ValTypeI64, ValTypeF32}},
			expected: "i32_i64f32",
		},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, tc.ft.String())
		})
	}
}

func TestFunctionType_EqualSignature(t *testing.T) {
	a := &FunctionType{Params: []ValType{ValTypeI32}, Results: []ValType{ValTypeI64}}
	b := &FunctionType{Params: []ValType{ValTypeI32}, Results: []ValType{ValTypeI64}}
	c := &FunctionType{Params: []ValType{ValTypeI64}, Results: []ValType{ValTypeI64}}
	d := &FunctionType{Params: []ValType{ValTypeI32}}

	require.True(t, a.EqualSignature(b))
	require.False(t, a.EqualSignature(c))
	require.False(t, a.EqualSignature(d))
}

func TestMemoryPageSize(t *testing.T) {
	require.Equal(t, 65536, MemoryPageSize)
}
