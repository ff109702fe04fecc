package wasmforge

import (
	"context"
	"fmt"
	"testing"

	"github.com/wasmforge/wasmforge/internal/testing/require"
	wasm "github.com/wasmforge/wasmforge/internal/wasm"
)

// fixedLoader is a Loader stub that ignores its input and always returns
// the same pre-built module, standing in for a binary decoder this module
// doesn't implement.
type fixedLoader struct {
	mod *wasm.ModuleInstance
}

func (f fixedLoader) DecodeModule(wasmBinary []byte) (*wasm.ModuleInstance, error) {
	if len(wasmBinary) == 0 {
		return nil, fmt.Errorf("empty module")
	}
	return f.mod, nil
}

// mapHostModule is a HostModule stub backed by a plain map.
type mapHostModule map[string]*wasm.FunctionInstance

func (m mapHostModule) Functions() map[string]*wasm.FunctionInstance { return m }

func TestLoader_DecodeModuleThenInvoke(t *testing.T) {
	doubler := &wasm.FunctionInstance{
		Kind: wasm.FunctionKindHost,
		Type: &wasm.FunctionType{Params: []wasm.ValType{wasm.ValTypeI32}, Results: []wasm.ValType{wasm.ValTypeI32}},
		GoFunc: func(ctx *wasm.CallContext, params []wasm.Value) ([]wasm.Value, error) {
			return []wasm.Value{wasm.I32(params[0].I32() * 2)}, nil
		},
	}
	host := mapHostModule{"double": doubler}

	mod := &wasm.ModuleInstance{Name: "guest"}
	caller := &wasm.FunctionInstance{
		Kind: wasm.FunctionKindInterpreted,
		Type: &wasm.FunctionType{Params: []wasm.ValType{wasm.ValTypeI32}, Results: []wasm.ValType{wasm.ValTypeI32}},
		Body: []wasm.Instruction{
			{Op: wasm.OpLocalGet, Imm: wasm.Immediate{LocalIdx: 0}},
			{Op: wasm.OpCall, Imm: wasm.Immediate{FuncIdx: 1}},
			{Op: wasm.OpEnd},
		},
		Module:  mod,
		FuncIdx: 0,
	}
	mod.Functions = []*wasm.FunctionInstance{caller, host.Functions()["double"]}

	var loader Loader = fixedLoader{mod: mod}
	decoded, err := loader.DecodeModule([]byte{0x00, 0x61, 0x73, 0x6d})
	require.NoError(t, err)
	require.True(t, decoded == mod)

	e := NewExecutor(nil)
	results, err := e.Invoke(context.Background(), decoded.Functions[0], []wasm.Value{wasm.I32(21)})
	require.NoError(t, err)
	require.Equal(t, uint32(42), results[0].I32())
}

func TestLoader_DecodeModuleRejectsEmptyInput(t *testing.T) {
	var loader Loader = fixedLoader{mod: &wasm.ModuleInstance{}}
	_, err := loader.DecodeModule(nil)
	require.Error(t, err)
}
