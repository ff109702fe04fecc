package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmforge/wasmforge/internal/wasmruntime"
	wasm "github.com/wasmforge/wasmforge/internal/wasm"
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
		Module:    mod,
		DebugName: "add",
		FuncIdx:   0,
	}
	mod.Functions = []*wasm.FunctionInstance{fn}
	return fn
}

func TestInvoke_SimpleAdd(t *testing.T) {
	e := New(nil)
	results, err := e.Invoke(context.Background(), addFunction(), []wasm.Value{wasm.I32(3), wasm.I32(4)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, uint32(7), results[0].I32())
}

func TestInvoke_WrongArgCount(t *testing.T) {
	e := New(nil)
	_, err := e.Invoke(context.Background(), addFunction(), []wasm.Value{wasm.I32(3)})
	require.Error(t, err)
}

func divByZeroFunction() *wasm.FunctionInstance {
	mod := &wasm.ModuleInstance{Name: "m"}
	fn := &wasm.FunctionInstance{
		Kind: wasm.FunctionKindInterpreted,
		Type: &wasm.FunctionType{Results: []wasm.ValType{wasm.ValTypeI32}},
		Body: []wasm.Instruction{
			{Op: wasm.OpConstI32, Imm: wasm.Immediate{ConstI32: 1}},
			{Op: wasm.OpConstI32, Imm: wasm.Immediate{ConstI32: 0}},
			{Op: wasm.OpNumeric, Imm: wasm.Immediate{NumericOp: wasm.NumI32DivS}},
			{Op: wasm.OpEnd},
		},
		Module:    mod,
		DebugName: "div0",
		FuncIdx:   0,
	}
	mod.Functions = []*wasm.FunctionInstance{fn}
	return fn
}

func TestInvoke_DivideByZeroTraps(t *testing.T) {
	e := New(nil)
	_, err := e.Invoke(context.Background(), divByZeroFunction(), nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, wasmruntime.ErrRuntimeIntegerDivideByZero))
}

// infiniteRecursionFunction calls itself with no base case, so any finite
// MaxFrameDepth must eventually reject the call with a stack-overflow trap
// rather than growing the Go call stack without bound.
func infiniteRecursionFunction() *wasm.FunctionInstance {
	mod := &wasm.ModuleInstance{Name: "m"}
	fn := &wasm.FunctionInstance{
		Kind: wasm.FunctionKindInterpreted,
		Type: &wasm.FunctionType{},
		Body: []wasm.Instruction{
			{Op: wasm.OpCall, Imm: wasm.Immediate{FuncIdx: 0}},
			{Op: wasm.OpEnd},
		},
		Module:    mod,
		DebugName: "loop",
		FuncIdx:   0,
	}
	mod.Functions = []*wasm.FunctionInstance{fn}
	return fn
}

func TestInvoke_CallStackOverflow(t *testing.T) {
	e := New(nil)
	e.MaxFrameDepth = 8
	_, err := e.Invoke(context.Background(), infiniteRecursionFunction(), nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, wasmruntime.ErrRuntimeCallStackOverflow))
}

// callerCalleeFunctions builds a two-function module: function 0 calls
// function 1 (a host function doubling its argument) and returns its
// result plus one.
func callerCalleeFunctions() (caller *wasm.FunctionInstance, callee *wasm.FunctionInstance) {
	mod := &wasm.ModuleInstance{}
	callee = &wasm.FunctionInstance{
		Kind: wasm.FunctionKindHost,
		Type: &wasm.FunctionType{Params: []wasm.ValType{wasm.ValTypeI32}, Results: []wasm.ValType{wasm.ValTypeI32}},
		GoFunc: func(ctx *wasm.CallContext, params []wasm.Value) ([]wasm.Value, error) {
			return []wasm.Value{wasm.I32(params[0].I32() * 2)}, nil
		},
		Module:    mod,
		DebugName: "double",
		FuncIdx:   1,
	}
	caller = &wasm.FunctionInstance{
		Kind: wasm.FunctionKindInterpreted,
		Type: &wasm.FunctionType{Params: []wasm.ValType{wasm.ValTypeI32}, Results: []wasm.ValType{wasm.ValTypeI32}},
		Body: []wasm.Instruction{
			{Op: wasm.OpLocalGet, Imm: wasm.Immediate{LocalIdx: 0}},
			{Op: wasm.OpCall, Imm: wasm.Immediate{FuncIdx: 1}},
			{Op: wasm.OpConstI32, Imm: wasm.Immediate{ConstI32: 1}},
			{Op: wasm.OpNumeric, Imm: wasm.Immediate{NumericOp: wasm.NumI32Add}},
			{Op: wasm.OpEnd},
		},
		Module:    mod,
		DebugName: "caller",
		FuncIdx:   0,
	}
	mod.Functions = []*wasm.FunctionInstance{caller, callee}
	return caller, callee
}

func TestInvoke_HostFunctionRoundTrip(t *testing.T) {
	e := New(nil)
	caller, _ := callerCalleeFunctions()
	results, err := e.Invoke(context.Background(), caller, []wasm.Value{wasm.I32(10)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, uint32(21), results[0].I32())
}

func TestInvoke_HostFunctionHooksFire(t *testing.T) {
	e := New(nil)
	caller, _ := callerCalleeFunctions()

	var preCalls, postCalls int
	e.RegisterPreHostFunction(nil, func(data any, frame CallingFrame, paramTypes []wasm.ValType, params []wasm.Value) {
		preCalls++
		require.Equal(t, uint32(10), params[0].I32())
	})
	e.RegisterPostHostFunction(nil, func(data any, frame CallingFrame, resultTypes []wasm.ValType, results []wasm.Value) {
		postCalls++
		require.Equal(t, uint32(20), results[0].I32())
	})

	_, err := e.Invoke(context.Background(), caller, []wasm.Value{wasm.I32(10)})
	require.NoError(t, err)
	require.Equal(t, 1, preCalls)
	require.Equal(t, 1, postCalls)
}

func TestInvoke_HostFunctionErrorWrapped(t *testing.T) {
	e := New(nil)
	mod := &wasm.ModuleInstance{}
	boom := errors.New("boom")
	fn := &wasm.FunctionInstance{
		Kind: wasm.FunctionKindHost,
		Type: &wasm.FunctionType{},
		GoFunc: func(ctx *wasm.CallContext, params []wasm.Value) ([]wasm.Value, error) {
			return nil, boom
		},
		Module:  mod,
		FuncIdx: 0,
	}
	mod.Functions = []*wasm.FunctionInstance{fn}

	_, err := e.Invoke(context.Background(), fn, nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, wasmruntime.ErrRuntimeHostFuncError))
}

// mutualRecursionFunctions builds a module where an interpreted function
// calls a host function that reenters the guest via CallContext.Invoke,
// which calls the same interpreted function again, forever. Depth sharing
// across that reentrant Invoke is what keeps this bounded.
func mutualRecursionFunctions() (guest *wasm.FunctionInstance) {
	mod := &wasm.ModuleInstance{}
	guest = &wasm.FunctionInstance{
		Kind: wasm.FunctionKindInterpreted,
		Type: &wasm.FunctionType{},
		Body: []wasm.Instruction{
			{Op: wasm.OpCall, Imm: wasm.Immediate{FuncIdx: 1}},
			{Op: wasm.OpEnd},
		},
		Module:    mod,
		DebugName: "guest",
		FuncIdx:   0,
	}
	host := &wasm.FunctionInstance{
		Kind: wasm.FunctionKindHost,
		Type: &wasm.FunctionType{},
		GoFunc: func(ctx *wasm.CallContext, params []wasm.Value) ([]wasm.Value, error) {
			return ctx.Invoke(ctx.Ctx, guest, nil)
		},
		Module:    mod,
		DebugName: "reenter",
		FuncIdx:   1,
	}
	mod.Functions = []*wasm.FunctionInstance{guest, host}
	return guest
}

func TestInvoke_HostGuestMutualRecursionStackOverflow(t *testing.T) {
	e := New(nil)
	e.MaxFrameDepth = 8
	_, err := e.Invoke(context.Background(), mutualRecursionFunctions(), nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, wasmruntime.ErrRuntimeCallStackOverflow))
}

func TestInvoke_HostFunctionCostCharged(t *testing.T) {
	e := New(nil)
	e.DefaultCostLimit = 5
	mod := &wasm.ModuleInstance{}
	fn := &wasm.FunctionInstance{
		Kind: wasm.FunctionKindHost,
		Type: &wasm.FunctionType{},
		Cost: 10,
		GoFunc: func(ctx *wasm.CallContext, params []wasm.Value) ([]wasm.Value, error) {
			return nil, nil
		},
		Module:  mod,
		FuncIdx: 0,
	}
	mod.Functions = []*wasm.FunctionInstance{fn}

	_, err := e.Invoke(context.Background(), fn, nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, wasmruntime.ErrRuntimeCostLimitExceeded))
}

func TestInvoke_CostTableChargesPerInstruction(t *testing.T) {
	e := New(nil)
	e.DefaultCostLimit = 2
	e.CostTable = CostTable{wasm.OpNumeric: 100}
	fn := addFunction()

	_, err := e.Invoke(context.Background(), fn, []wasm.Value{wasm.I32(1), wasm.I32(2)})
	require.Error(t, err)
	require.True(t, errors.Is(err, wasmruntime.ErrRuntimeCostLimitExceeded))
}

func TestAsyncInvoke_DeliversResultOnChannel(t *testing.T) {
	e := New(nil)
	ch := e.AsyncInvoke(context.Background(), addFunction(), []wasm.Value{wasm.I32(5), wasm.I32(6)})
	res := <-ch
	require.NoError(t, res.Err)
	require.Equal(t, uint32(11), res.Results[0].I32())
}

func TestAsyncInvoke_CanceledContextInterrupts(t *testing.T) {
	e := New(nil)
	e.MaxFrameDepth = 1_000_000

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := e.AsyncInvoke(ctx, infiniteRecursionFunction(), nil)
	res := <-ch
	require.Error(t, res.Err)
	// Whichever poll point notices first: function-entry interruption, or
	// (if the recursion outran the watcher goroutine) the frame ceiling.
	require.True(t,
		errors.Is(res.Err, wasmruntime.ErrRuntimeInterrupted) || errors.Is(res.Err, wasmruntime.ErrRuntimeCallStackOverflow),
		"unexpected error: %v", res.Err,
	)
}

func TestExecutionContext_ChargeCost(t *testing.T) {
	ec := &ExecutionContext{CostLimit: 10}
	require.NoError(t, ec.ChargeCost(6))
	require.NoError(t, ec.ChargeCost(4))
	err := ec.ChargeCost(1)
	require.True(t, errors.Is(err, wasmruntime.ErrRuntimeCostLimitExceeded))
	require.Equal(t, ExitCodeTrap, ec.ExitCode)
}

func TestExecutionContext_ChargeCostDisabledWhenLimitZero(t *testing.T) {
	ec := &ExecutionContext{}
	require.NoError(t, ec.ChargeCost(1<<40))
}

func TestExecutionContext_Interrupt(t *testing.T) {
	ec := &ExecutionContext{}
	require.False(t, ec.Interrupted())
	require.NoError(t, ec.pollStopToken())

	ec.RequestInterrupt()
	require.True(t, ec.Interrupted())
	err := ec.pollStopToken()
	require.True(t, errors.Is(err, wasmruntime.ErrRuntimeInterrupted))
	require.Equal(t, ExitCodeInterrupted, ec.ExitCode)
}

func TestNormalizeReturn_ExternalizedRefBecomesExternref(t *testing.T) {
	e := New(nil)
	v := wasm.RefValue(wasm.Reference{Type: wasm.ValTypeFuncref, Externalized: true})
	out := e.normalizeReturn(nil, v)
	require.Equal(t, wasm.ValTypeExternref, out.Type)
}
