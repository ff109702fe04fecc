package executor

import (
	"github.com/wasmforge/wasmforge/internal/engine/stack"
	wasm "github.com/wasmforge/wasmforge/internal/wasm"
	"github.com/wasmforge/wasmforge/internal/wasmruntime"
)

// execGC runs a reference-types/GC instruction: ref.null/is_null/func/
// as_non_null/eq/test/cast, struct.new(_default)/get/set, array.new(_default)/
// get/set/len, i31.new/get, any.convert_extern, extern.convert_any.
func (e *Executor) execGC(mod *wasm.ModuleInstance, sm *stack.Manager, instr wasm.Instruction) error {
	switch instr.Op {
	case wasm.OpRefNull:
		sm.Push(wasm.RefValue(wasm.NullRef(instr.Imm.ValType)))
		return nil

	case wasm.OpRefIsNull:
		v := sm.Pop()
		sm.Push(boolVal(v.Ref.IsNull()))
		return nil

	case wasm.OpRefFunc:
		sm.Push(wasm.RefValue(wasm.Reference{
			Type:  wasm.ValType{Code: wasm.CodeRef, HeapType: wasm.HeapFunc},
			Index: instr.Imm.FuncIdx,
		}))
		return nil

	case wasm.OpRefAsNonNull:
		v := sm.Pop()
		if v.Ref.IsNull() {
			return wasmruntime.ErrRuntimeNonNullRequired
		}
		v.Type = v.Type.AsNonNull()
		v.Ref.Type = v.Type
		sm.Push(v)
		return nil

	case wasm.OpRefEq:
		v2, v1 := sm.Pop(), sm.Pop()
		eq := v1.Ref.Null == v2.Ref.Null && (v1.Ref.Null || v1.Ref.Index == v2.Ref.Index)
		sm.Push(boolVal(eq))
		return nil

	case wasm.OpRefTest:
		v := sm.Pop()
		sm.Push(boolVal(e.refMatchesCastTarget(mod, v, instr.Imm.ValType)))
		return nil

	case wasm.OpRefCast:
		v := sm.Pop()
		if !e.refMatchesCastTarget(mod, v, instr.Imm.ValType) {
			return wasmruntime.ErrRuntimeCastFailed
		}
		v.Type = instr.Imm.ValType
		v.Ref.Type = instr.Imm.ValType
		sm.Push(v)
		return nil

	case wasm.OpStructNew, wasm.OpStructNewDefault:
		ct := mod.Types[instr.Imm.TypeIdx].Composite
		fields := make([]wasm.Value, len(ct.Fields))
		if instr.Op == wasm.OpStructNew {
			for i := len(fields) - 1; i >= 0; i-- {
				fields[i] = sm.Pop()
			}
		} else {
			for i, f := range ct.Fields {
				fields[i] = defaultValue(f.Storage)
			}
		}
		idx := mod.Heap.Alloc(&wasm.StructObject{TypeIndex: instr.Imm.TypeIdx, Fields: fields})
		sm.Push(wasm.RefValue(wasm.Reference{
			Type:  wasm.ValType{Code: wasm.CodeRef, HeapType: wasm.HeapConcrete, TypeIndex: instr.Imm.TypeIdx},
			Index: idx,
		}))
		return nil

	case wasm.OpStructGet:
		ref := sm.Pop().Ref
		if ref.IsNull() {
			return wasmruntime.ErrRuntimeNonNullRequired
		}
		obj := mod.Heap.Get(ref.Index).(*wasm.StructObject)
		sm.Push(obj.Fields[instr.Imm.FieldIdx])
		return nil

	case wasm.OpStructSet:
		v := sm.Pop()
		ref := sm.Pop().Ref
		if ref.IsNull() {
			return wasmruntime.ErrRuntimeNonNullRequired
		}
		obj := mod.Heap.Get(ref.Index).(*wasm.StructObject)
		obj.Fields[instr.Imm.FieldIdx] = v
		return nil

	case wasm.OpArrayNew, wasm.OpArrayNewDefault:
		ct := mod.Types[instr.Imm.TypeIdx].Composite
		n := sm.Pop().I32()
		var fill wasm.Value
		if instr.Op == wasm.OpArrayNew {
			fill = sm.Pop()
		} else {
			fill = defaultValue(ct.Element.Storage)
		}
		elems := make([]wasm.Value, n)
		for i := range elems {
			elems[i] = fill
		}
		idx := mod.Heap.Alloc(&wasm.ArrayObject{TypeIndex: instr.Imm.TypeIdx, Elems: elems})
		sm.Push(wasm.RefValue(wasm.Reference{
			Type:  wasm.ValType{Code: wasm.CodeRef, HeapType: wasm.HeapConcrete, TypeIndex: instr.Imm.TypeIdx},
			Index: idx,
		}))
		return nil

	case wasm.OpArrayGet:
		idx := sm.Pop().I32()
		ref := sm.Pop().Ref
		if ref.IsNull() {
			return wasmruntime.ErrRuntimeAccessNullArray
		}
		obj := mod.Heap.Get(ref.Index).(*wasm.ArrayObject)
		if int(idx) >= len(obj.Elems) {
			return wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess
		}
		sm.Push(obj.Elems[idx])
		return nil

	case wasm.OpArraySet:
		v := sm.Pop()
		idx := sm.Pop().I32()
		ref := sm.Pop().Ref
		if ref.IsNull() {
			return wasmruntime.ErrRuntimeAccessNullArray
		}
		obj := mod.Heap.Get(ref.Index).(*wasm.ArrayObject)
		if int(idx) >= len(obj.Elems) {
			return wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess
		}
		obj.Elems[idx] = v
		return nil

	case wasm.OpArrayLen:
		ref := sm.Pop().Ref
		if ref.IsNull() {
			return wasmruntime.ErrRuntimeAccessNullArray
		}
		obj := mod.Heap.Get(ref.Index).(*wasm.ArrayObject)
		sm.Push(wasm.I32(uint32(len(obj.Elems))))
		return nil

	case wasm.OpI31New:
		v := sm.Pop().I32()
		sm.Push(wasm.RefValue(wasm.Reference{
			Type:  wasm.ValType{Code: wasm.CodeRef, HeapType: wasm.HeapI31},
			Index: v & 0x7fffffff,
		}))
		return nil

	case wasm.OpI31Get:
		ref := sm.Pop().Ref
		if ref.IsNull() {
			return wasmruntime.ErrRuntimeNonNullRequired
		}
		// Sign-extends the packed 31-bit payload back to i32 (i31.get_s);
		// this module models only one i31.get variant.
		v := ref.Index << 1
		sm.Push(wasm.I32(uint32(int32(v) >> 1)))
		return nil

	case wasm.OpAnyConvertExtern:
		v := sm.Pop()
		if !v.Ref.IsNull() {
			v.Type = wasm.ValType{Code: wasm.CodeRef, Nullable: true, HeapType: wasm.HeapAny}
			v.Ref.Type = v.Type
		} else {
			v = wasm.RefValue(wasm.NullRef(wasm.ValType{Code: wasm.CodeRef, Nullable: true, HeapType: wasm.HeapAny}))
		}
		sm.Push(v)
		return nil

	case wasm.OpExternConvertAny:
		v := sm.Pop()
		if !v.Ref.IsNull() {
			v.Type = wasm.ValTypeExternref
			v.Ref.Type = v.Type
		} else {
			v = wasm.RefValue(wasm.NullRef(wasm.ValTypeExternref))
		}
		sm.Push(v)
		return nil
	}
	return nil
}
