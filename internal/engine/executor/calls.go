package executor

import (
	"context"

	"github.com/wasmforge/wasmforge/internal/engine/stack"
	wasm "github.com/wasmforge/wasmforge/internal/wasm"
	"github.com/wasmforge/wasmforge/internal/wasmruntime"
)

// doCall runs the function at funcIdx in mod's own index space. Its
// arguments are already the top len(params) values of sm.ValStack, per
// call's own operand order; its results are pushed back onto sm.ValStack
// in the same place, uniformly across every FunctionKind.
func (e *Executor) doCall(ctx context.Context, execCtx *ExecutionContext, sm *stack.Manager, mod *wasm.ModuleInstance, funcIdx uint32) error {
	callee := mod.Functions[funcIdx]
	results, err := e.enterFunction(ctx, execCtx, callee, sm)
	if err != nil {
		return err
	}
	for _, v := range results {
		sm.Push(v)
	}
	return nil
}

// doCallIndirect resolves instr's dynamic table index to a concrete
// function, checks its signature against the declared type index, and
// calls it the same way doCall does.
func (e *Executor) doCallIndirect(ctx context.Context, execCtx *ExecutionContext, sm *stack.Manager, mod *wasm.ModuleInstance, instr wasm.Instruction) error {
	elemIdx := sm.Pop().I32()
	table := mod.Tables[instr.Imm.TableIdx]
	if int(elemIdx) >= len(table.Elements) {
		return wasmruntime.ErrRuntimeInvalidTableAccess
	}
	ref := table.Elements[elemIdx]
	if ref.IsNull() {
		return wasmruntime.ErrRuntimeUninitializedElement
	}
	callee := mod.Functions[ref.Index]
	want := mod.Types[instr.Imm.TypeIdx].Composite.FuncType
	if !want.EqualSignature(callee.Type) {
		return wasmruntime.ErrRuntimeIndirectCallTypeMismatch
	}
	results, err := e.enterFunction(ctx, execCtx, callee, sm)
	if err != nil {
		return err
	}
	for _, v := range results {
		sm.Push(v)
	}
	return nil
}

// doCallRef calls the funcref sitting on top of sm.ValStack directly,
// the function-references proposal's typed alternative to call_indirect.
func (e *Executor) doCallRef(ctx context.Context, execCtx *ExecutionContext, sm *stack.Manager, mod *wasm.ModuleInstance) error {
	ref := sm.Pop().Ref
	if ref.IsNull() {
		return wasmruntime.ErrRuntimeNonNullRequired
	}
	callee := mod.Functions[ref.Index]
	results, err := e.enterFunction(ctx, execCtx, callee, sm)
	if err != nil {
		return err
	}
	for _, v := range results {
		sm.Push(v)
	}
	return nil
}

// refMatchesCastTarget reports whether ref's runtime type matches target
// (br_on_cast/br_on_cast_fail, ref.test, ref.cast): target's nullability
// admits a null ref, and otherwise the concrete or abstract heap type must
// be reachable from ref's own declared type via the module's subtype
// forest.
func (e *Executor) refMatchesCastTarget(mod *wasm.ModuleInstance, v wasm.Value, target wasm.ValType) bool {
	if v.Ref.IsNull() {
		return target.Nullable
	}
	t := v.Type
	if target.HeapType == wasm.HeapConcrete {
		return t.HeapType == wasm.HeapConcrete && wasm.MatchConcreteType(mod.Types, t.TypeIndex, target.TypeIndex)
	}
	top := t.HeapType
	if top == wasm.HeapConcrete {
		top = mod.Types[t.TypeIndex].Composite.TopHeapType()
	}
	return top == target.HeapType
}
