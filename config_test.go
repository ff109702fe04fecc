package wasmforge

import (
	"context"
	"errors"
	"testing"

	"github.com/wasmforge/wasmforge/internal/engine/executor"
	"github.com/wasmforge/wasmforge/internal/engine/stack"
	"github.com/wasmforge/wasmforge/internal/testing/require"
	wasm "github.com/wasmforge/wasmforge/internal/wasm"
	"github.com/wasmforge/wasmforge/internal/wasmruntime"
)

func addFunction() *wasm.FunctionInstance {
	mod := &wasm.ModuleInstance{Name: "m"}
	fn := &wasm.FunctionInstance{
		Kind: wasm.FunctionKindInterpreted,
		Type: &wasm.FunctionType{
			Params:  []wasm.ValType{wasm.ValTypeI32, wasm.ValTypeI32},
			Results: []wasm.ValType{wasm.ValTypeI32},
		},
		Body: []wasm.Instruction{
			{Op: wasm.OpLocalGet, Imm: wasm.Immediate{LocalIdx: 0}},
			{Op: wasm.OpLocalGet, Imm: wasm.Immediate{LocalIdx: 1}},
			{Op: wasm.OpNumeric, Imm: wasm.Immediate{NumericOp: wasm.NumI32Add}},
			{Op: wasm.OpEnd},
		},
		Module:  mod,
		FuncIdx: 0,
	}
	mod.Functions = []*wasm.FunctionInstance{fn}
	return fn
}

func TestNewRuntimeConfig_Defaults(t *testing.T) {
	cfg := NewRuntimeConfig()
	require.Equal(t, stack.DefaultCallStackCeiling, cfg.callStackCeiling)
	require.Equal(t, uint64(0), cfg.costLimit)
	require.True(t, cfg.faultHandlerEnabled)
}

func TestRuntimeConfig_WithMethodsDoNotMutateReceiver(t *testing.T) {
	base := NewRuntimeConfig()
	specialized := base.WithCallStackCeiling(4).WithCostLimit(100)

	require.Equal(t, stack.DefaultCallStackCeiling, base.callStackCeiling)
	require.Equal(t, uint64(0), base.costLimit)
	require.Equal(t, 4, specialized.callStackCeiling)
	require.Equal(t, uint64(100), specialized.costLimit)
}

func TestNewExecutor_NilConfigUsesDefaults(t *testing.T) {
	e := NewExecutor(nil)
	results, err := e.Invoke(context.Background(), addFunction(), []wasm.Value{wasm.I32(2), wasm.I32(3)})
	require.NoError(t, err)
	require.Equal(t, uint32(5), results[0].I32())
}

func TestNewExecutor_CallStackCeilingWired(t *testing.T) {
	mod := &wasm.ModuleInstance{}
	loop := &wasm.FunctionInstance{
		Kind: wasm.FunctionKindInterpreted,
		Type: &wasm.FunctionType{},
		Body: []wasm.Instruction{
			{Op: wasm.OpCall, Imm: wasm.Immediate{FuncIdx: 0}},
			{Op: wasm.OpEnd},
		},
		Module:  mod,
		FuncIdx: 0,
	}
	mod.Functions = []*wasm.FunctionInstance{loop}

	e := NewExecutor(NewRuntimeConfig().WithCallStackCeiling(4))
	_, err := e.Invoke(context.Background(), loop, nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, wasmruntime.ErrRuntimeCallStackOverflow))
}

func TestNewExecutor_CostTableWired(t *testing.T) {
	e := NewExecutor(NewRuntimeConfig().
		WithCostLimit(2).
		WithCostTable(executor.CostTable{wasm.OpNumeric: 100}))

	_, err := e.Invoke(context.Background(), addFunction(), []wasm.Value{wasm.I32(2), wasm.I32(3)})
	require.Error(t, err)
	require.True(t, errors.Is(err, wasmruntime.ErrRuntimeCostLimitExceeded))
}

func TestNewExecutor_FaultHandlerDisabledRepanics(t *testing.T) {
	mod := &wasm.ModuleInstance{}
	unreachable := &wasm.FunctionInstance{
		Kind: wasm.FunctionKindInterpreted,
		Type: &wasm.FunctionType{},
		Body: []wasm.Instruction{
			{Op: wasm.OpUnreachable},
		},
		Module:  mod,
		FuncIdx: 0,
	}
	mod.Functions = []*wasm.FunctionInstance{unreachable}

	e := NewExecutor(NewRuntimeConfig().WithFaultHandler(false))

	err := require.CapturePanic(func() {
		_, _ = e.Invoke(context.Background(), unreachable, nil)
	})
	require.Error(t, err)
	require.Equal(t, wasmruntime.ErrRuntimeUnreachable, err)
}
