package executor

import (
	"encoding/binary"

	"github.com/wasmforge/wasmforge/internal/engine/stack"
	wasm "github.com/wasmforge/wasmforge/internal/wasm"
	"github.com/wasmforge/wasmforge/internal/wasmruntime"
)

// execMemoryOp runs a memory instruction (load/store/size/grow/init/copy/
// fill) against mod's single linear memory. Loads and stores only cover the
// plain full-width i32/i64/f32/f64 forms (instr.Imm.ValType names the
// value's declared type, Align/Offset the memarg); packed sub-width
// load/store variants (i32.load8_s and friends) would need a separate
// field the validator never records, so they aren't modeled.
func (e *Executor) execMemoryOp(execCtx *ExecutionContext, mod *wasm.ModuleInstance, sm *stack.Manager, instr wasm.Instruction) error {
	mem := mod.Memory

	switch instr.Op {
	case wasm.OpMemoryLoad:
		addr, err := effectiveAddress(sm.Pop().I32(), instr.Imm.Offset, valWidth(instr.Imm.ValType), mem)
		if err != nil {
			return err
		}
		buf := mem.Buffer()
		switch instr.Imm.ValType.Code {
		case wasm.CodeI32, wasm.CodeF32:
			sm.Push(wasm.Value{Lo: uint64(binary.LittleEndian.Uint32(buf[addr:])), Type: instr.Imm.ValType})
		default: // i64, f64
			sm.Push(wasm.Value{Lo: binary.LittleEndian.Uint64(buf[addr:]), Type: instr.Imm.ValType})
		}
		return nil

	case wasm.OpMemoryStore:
		v := sm.Pop()
		addr, err := effectiveAddress(sm.Pop().I32(), instr.Imm.Offset, valWidth(instr.Imm.ValType), mem)
		if err != nil {
			return err
		}
		buf := mem.Buffer()
		switch instr.Imm.ValType.Code {
		case wasm.CodeI32, wasm.CodeF32:
			binary.LittleEndian.PutUint32(buf[addr:], uint32(v.Lo))
		default:
			binary.LittleEndian.PutUint64(buf[addr:], v.Lo)
		}
		return nil

	case wasm.OpMemorySize:
		sm.Push(wasm.I32(mem.PageSize()))
		return nil

	case wasm.OpMemoryGrow:
		n := sm.Pop().I32()
		sm.Push(wasm.I32(mem.Grow(n)))
		return nil

	case wasm.OpMemoryInit:
		seg := mod.DataSegs[instr.Imm.DataIdx]
		copySize, srcOff, dstOff := sm.Pop().I32(), sm.Pop().I32(), sm.Pop().I32()
		if seg.Dropped() {
			if copySize != 0 {
				return wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess
			}
			return nil
		}
		if uint64(srcOff)+uint64(copySize) > uint64(len(seg.Bytes)) || uint64(dstOff)+uint64(copySize) > uint64(len(mem.Buffer())) {
			return wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess
		}
		if copySize != 0 {
			copy(mem.Buffer()[dstOff:dstOff+copySize], seg.Bytes[srcOff:])
		}
		return nil

	case wasm.OpMemoryCopy:
		copySize, srcOff, dstOff := sm.Pop().I32(), sm.Pop().I32(), sm.Pop().I32()
		buf := mem.Buffer()
		if uint64(srcOff)+uint64(copySize) > uint64(len(buf)) || uint64(dstOff)+uint64(copySize) > uint64(len(buf)) {
			return wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess
		}
		if copySize != 0 {
			copy(buf[dstOff:], buf[srcOff:srcOff+copySize])
		}
		return nil

	case wasm.OpMemoryFill:
		fillSize, value, off := sm.Pop().I32(), byte(sm.Pop().I32()), sm.Pop().I32()
		buf := mem.Buffer()
		if uint64(off)+uint64(fillSize) > uint64(len(buf)) {
			return wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess
		}
		if fillSize != 0 {
			region := buf[off : off+fillSize]
			region[0] = value
			for i := 1; i < len(region); i *= 2 {
				copy(region[i:], region[:i])
			}
		}
		return nil
	}
	return nil
}

func valWidth(t wasm.ValType) uint32 {
	switch t.Code {
	case wasm.CodeI32, wasm.CodeF32:
		return 4
	default:
		return 8
	}
}

func effectiveAddress(base, offset, width uint32, mem *wasm.MemoryInstance) (uint64, error) {
	addr := uint64(base) + uint64(offset)
	if addr+uint64(width) > uint64(len(mem.Buffer())) {
		return 0, wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess
	}
	return addr, nil
}

// execAtomicNotify implements memory.atomic.notify. This module has no
// actual multi-agent thread support (spec's threads proposal surface is
// limited to the instruction set, not a scheduler), so there is never
// anyone blocked in memory.atomic.wait to wake: it validates the address
// and always reports zero waiters notified.
func (e *Executor) execAtomicNotify(mod *wasm.ModuleInstance, sm *stack.Manager) error {
	count := sm.Pop().I32()
	addr := sm.Pop().I32()
	_ = count
	if _, err := effectiveAddress(addr, 0, 4, mod.Memory); err != nil {
		return err
	}
	sm.Push(wasm.I32(0))
	return nil
}

// execAtomicWait implements memory.atomic.wait32/64. With no other agent
// ever able to notify this one, a wait either traps (OOB) or returns
// immediately 1 ("not-equal"), since the expected value was read
// non-atomically from a memory no concurrent thread actually shares here.
func (e *Executor) execAtomicWait(mod *wasm.ModuleInstance, sm *stack.Manager, instr wasm.Instruction) error {
	_ = sm.Pop() // timeout
	_ = sm.Pop() // expected
	addr := sm.Pop().I32()
	if _, err := effectiveAddress(addr, 0, valWidth(instr.Imm.ValType), mod.Memory); err != nil {
		return err
	}
	sm.Push(wasm.I32(1))
	return nil
}

// execTableOp runs a table instruction (get/set/grow/size/fill/init/copy)
// against one of mod's tables.
func (e *Executor) execTableOp(mod *wasm.ModuleInstance, sm *stack.Manager, instr wasm.Instruction) error {
	switch instr.Op {
	case wasm.OpTableGet:
		table := mod.Tables[instr.Imm.TableIdx]
		idx := sm.Pop().I32()
		if int(idx) >= len(table.Elements) {
			return wasmruntime.ErrRuntimeInvalidTableAccess
		}
		sm.Push(wasm.RefValue(table.Elements[idx]))
		return nil

	case wasm.OpTableSet:
		table := mod.Tables[instr.Imm.TableIdx]
		v := sm.Pop().Ref
		idx := sm.Pop().I32()
		if int(idx) >= len(table.Elements) {
			return wasmruntime.ErrRuntimeInvalidTableAccess
		}
		table.Elements[idx] = v
		return nil

	case wasm.OpTableGrow:
		table := mod.Tables[instr.Imm.TableIdx]
		n := sm.Pop().I32()
		init := sm.Pop().Ref
		sm.Push(wasm.I32(table.Grow(n, init)))
		return nil

	case wasm.OpTableSize:
		table := mod.Tables[instr.Imm.TableIdx]
		sm.Push(wasm.I32(uint32(len(table.Elements))))
		return nil

	case wasm.OpTableFill:
		table := mod.Tables[instr.Imm.TableIdx]
		fillSize := sm.Pop().I32()
		v := sm.Pop().Ref
		off := sm.Pop().I32()
		if uint64(off)+uint64(fillSize) > uint64(len(table.Elements)) {
			return wasmruntime.ErrRuntimeInvalidTableAccess
		}
		for i := uint32(0); i < fillSize; i++ {
			table.Elements[off+i] = v
		}
		return nil

	case wasm.OpTableInit:
		seg := mod.Elements[instr.Imm.ElemIdx]
		table := mod.Tables[instr.Imm.TableIdx]
		copySize, srcOff, dstOff := sm.Pop().I32(), sm.Pop().I32(), sm.Pop().I32()
		if seg.Dropped() {
			if copySize != 0 {
				return wasmruntime.ErrRuntimeInvalidTableAccess
			}
			return nil
		}
		if uint64(srcOff)+uint64(copySize) > uint64(len(seg.Elements)) || uint64(dstOff)+uint64(copySize) > uint64(len(table.Elements)) {
			return wasmruntime.ErrRuntimeInvalidTableAccess
		}
		if copySize != 0 {
			copy(table.Elements[dstOff:dstOff+copySize], seg.Elements[srcOff:])
		}
		return nil

	case wasm.OpTableCopy:
		// Immediate carries a single TableIdx (no separate src/dst table
		// index), so table.copy only moves elements within one table.
		dst := mod.Tables[instr.Imm.TableIdx]
		src := mod.Tables[instr.Imm.TableIdx]
		copySize, srcOff, dstOff := sm.Pop().I32(), sm.Pop().I32(), sm.Pop().I32()
		if uint64(srcOff)+uint64(copySize) > uint64(len(src.Elements)) || uint64(dstOff)+uint64(copySize) > uint64(len(dst.Elements)) {
			return wasmruntime.ErrRuntimeInvalidTableAccess
		}
		if copySize != 0 {
			copy(dst.Elements[dstOff:], src.Elements[srcOff:srcOff+copySize])
		}
		return nil
	}
	return nil
}
