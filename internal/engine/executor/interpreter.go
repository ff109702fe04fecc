package executor

import (
	"context"
	"sync"

	"github.com/wasmforge/wasmforge/internal/engine/stack"
	wasm "github.com/wasmforge/wasmforge/internal/wasm"
	"github.com/wasmforge/wasmforge/internal/wasmruntime"
)

// blockIndex is structural metadata over an interpreted function's
// instruction stream the validator computes internally (ctrlFrame's
// loopStartPC/pendingForward) but never exposes, since its own job ends
// once a function type-checks. block/loop/if bodies fall through without
// ever branching, so the interpreter needs its own record of where each
// block ends and, for if, where its else begins — the same bookkeeping
// shape, rebuilt here for execution instead of validation.
type blockIndex struct {
	endOf    map[int]int // Block/Loop/If pc -> its End pc.
	elseOf   map[int]int // If pc -> its Else pc, defaulting to its End pc when absent.
	openerOf map[int]int // Else pc -> its If's pc, for resuming after a true branch falls through.
}

func buildBlockIndex(body []wasm.Instruction) blockIndex {
	idx := blockIndex{endOf: map[int]int{}, elseOf: map[int]int{}, openerOf: map[int]int{}}
	var open []int
	for pc, instr := range body {
		switch instr.Op {
		case wasm.OpBlock, wasm.OpLoop, wasm.OpIf, wasm.OpTryTable:
			open = append(open, pc)
		case wasm.OpElse:
			top := open[len(open)-1]
			idx.elseOf[top] = pc
			idx.openerOf[pc] = top
		case wasm.OpEnd:
			top := open[len(open)-1]
			open = open[:len(open)-1]
			idx.endOf[top] = pc
			if _, ok := idx.elseOf[top]; !ok {
				idx.elseOf[top] = pc
			}
		}
	}
	return idx
}

// blockIndexCache memoizes buildBlockIndex per FunctionInstance so a
// recursive or frequently-called function only pays for the structural
// pass once.
type blockIndexCache struct {
	mu   sync.Mutex
	byFn map[*wasm.FunctionInstance]blockIndex
}

func (c *blockIndexCache) get(fn *wasm.FunctionInstance) blockIndex {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.byFn == nil {
		c.byFn = map[*wasm.FunctionInstance]blockIndex{}
	}
	idx, ok := c.byFn[fn]
	if !ok {
		idx = buildBlockIndex(fn.Body)
		c.byFn[fn] = idx
	}
	return idx
}

// defaultValue constructs the zero-initialized runtime Value for a
// defaultable local/global type: zero for a numeric type, the null
// reference of the declared heap type for a reference. The validator
// already rejects any local.get preceding a non-defaultable local's first
// local.set, so this is never asked to default-initialize one of those.
func defaultValue(t wasm.ValType) wasm.Value {
	if t.IsRef() {
		return wasm.RefValue(wasm.NullRef(t))
	}
	return wasm.Value{Type: t}
}

// enterInterpretedFunction runs fn's instruction stream to completion. The
// caller's arguments are already the top len(fn.Type.Params) values of
// sm.ValStack; this pushes fn's declared locals' default values, installs
// a frame, and dispatches until a return path pops that frame.
//
// A caught exception (spec's try_table) resumes the dispatch loop at the
// handler's target instead of unwinding further, so this runs the body in
// a loop: each iteration is one protected dispatch run, and catching an
// exception here starts the next iteration at the handler's pc instead of
// returning.
func (e *Executor) enterInterpretedFunction(ctx context.Context, execCtx *ExecutionContext, fn *wasm.FunctionInstance, sm *stack.Manager) ([]wasm.Value, error) {
	for _, t := range fn.LocalTypes {
		sm.Push(defaultValue(t))
	}
	localsArity := len(fn.Type.Params) + len(fn.LocalTypes)
	if err := sm.PushFrame(fn.Module, fn.FuncIdx, 0, localsArity, len(fn.Type.Results), false); err != nil {
		return nil, err
	}
	myFrameDepth := len(sm.FrameStack)
	idx := e.blocks.get(fn)

	pc := 0
	for {
		results, err, resumePC, caught := e.runProtected(ctx, execCtx, fn, sm, idx, pc, myFrameDepth)
		if caught {
			pc = resumePC
			continue
		}
		return results, err
	}
}

// runProtected runs the dispatch loop starting at pc, recovering an
// unwind panic that resolves to this exact frame (myFrameDepth) and
// reporting where to resume; an unwind meant for an ancestor frame is
// re-panicked so the Go call stack keeps unwinding toward it.
func (e *Executor) runProtected(
	ctx context.Context, execCtx *ExecutionContext, fn *wasm.FunctionInstance, sm *stack.Manager,
	idx blockIndex, pc, myFrameDepth int,
) (results []wasm.Value, err error, resumePC int, caught bool) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		u, ok := r.(unwind)
		if !ok || u.frameDepth != myFrameDepth {
			panic(r)
		}
		if u.pushExn {
			sm.Push(u.exn)
		}
		resumePC = idx.endOf[u.tryPC] + 1
		caught = true
	}()
	results, err = e.runFrom(ctx, execCtx, fn, sm, idx, pc, myFrameDepth)
	return results, err, 0, false
}

// runFrom dispatches fn's body starting at pc until an explicit or
// implicit return, a tail call, or an error (including an uncaught
// exception) ends the frame.
func (e *Executor) runFrom(
	ctx context.Context, execCtx *ExecutionContext, fn *wasm.FunctionInstance, sm *stack.Manager,
	idx blockIndex, pc, myFrameDepth int,
) ([]wasm.Value, error) {
	for pc < len(fn.Body) {
		if err := execCtx.pollStopToken(); err != nil {
			return nil, err
		}
		instr := fn.Body[pc]
		if err := execCtx.ChargeCost(execCtx.CostTable.cost(instr.Op)); err != nil {
			return nil, err
		}
		next, results, done, err := e.step(ctx, execCtx, fn, sm, idx, pc, myFrameDepth, instr)
		if err != nil {
			return nil, err
		}
		if done {
			return results, nil
		}
		pc = next
	}
	return e.doReturn(sm), nil
}

// step executes one instruction, returning the next pc, or (results, true)
// when this instruction concluded the current frame (an explicit return or
// a tail call).
func (e *Executor) step(
	ctx context.Context, execCtx *ExecutionContext, fn *wasm.FunctionInstance, sm *stack.Manager,
	idx blockIndex, pc, myFrameDepth int, instr wasm.Instruction,
) (next int, results []wasm.Value, done bool, err error) {
	mod := fn.Module

	switch instr.Op {
	case wasm.OpUnreachable:
		panic(wasmruntime.ErrRuntimeUnreachable)

	case wasm.OpNop, wasm.OpBlock, wasm.OpLoop:
		return pc + 1, nil, false, nil

	case wasm.OpIf:
		cond := sm.Pop()
		if cond.I32() == 0 {
			return idx.elseOf[pc] + 1, nil, false, nil
		}
		return pc + 1, nil, false, nil

	case wasm.OpElse:
		opener := idx.openerOf[pc]
		return idx.endOf[opener] + 1, nil, false, nil

	case wasm.OpEnd:
		sm.RemoveInactiveHandler(myFrameDepth, pc)
		return pc + 1, nil, false, nil

	case wasm.OpBr:
		return e.applyBranch(sm, fn, myFrameDepth, pc, 0)

	case wasm.OpBrIf:
		cond := sm.Pop()
		if cond.I32() == 0 {
			return pc + 1, nil, false, nil
		}
		return e.applyBranch(sm, fn, myFrameDepth, pc, 0)

	case wasm.OpBrTable:
		n := sm.Pop().I32()
		targets := instr.Imm.LabelIdxs
		choice := int(n)
		if choice < 0 || choice >= len(targets) {
			choice = len(targets) // the default entry, appended last by the validator.
		}
		return e.applyBranch(sm, fn, myFrameDepth, pc, choice)

	case wasm.OpBrOnNull:
		top := sm.Top(1)[0]
		if top.Ref.IsNull() {
			sm.Pop()
			return e.applyBranch(sm, fn, myFrameDepth, pc, 0)
		}
		return pc + 1, nil, false, nil

	case wasm.OpBrOnNonNull:
		top := sm.Top(1)[0]
		if !top.Ref.IsNull() {
			return e.applyBranch(sm, fn, myFrameDepth, pc, 0)
		}
		sm.Pop()
		return pc + 1, nil, false, nil

	case wasm.OpBrOnCast:
		top := sm.Top(1)[0]
		if e.refMatchesCastTarget(mod, top, instr.Imm.ValType) {
			return e.applyBranch(sm, fn, myFrameDepth, pc, 0)
		}
		return pc + 1, nil, false, nil

	case wasm.OpBrOnCastFail:
		top := sm.Top(1)[0]
		if !e.refMatchesCastTarget(mod, top, instr.Imm.ValType) {
			return e.applyBranch(sm, fn, myFrameDepth, pc, 0)
		}
		return pc + 1, nil, false, nil

	case wasm.OpReturn:
		return 0, e.doReturn(sm), true, nil

	case wasm.OpCall:
		if err := e.doCall(ctx, execCtx, sm, mod, instr.Imm.FuncIdx); err != nil {
			return 0, nil, false, err
		}
		return pc + 1, nil, false, nil

	case wasm.OpReturnCall:
		if err := e.doCall(ctx, execCtx, sm, mod, instr.Imm.FuncIdx); err != nil {
			return 0, nil, false, err
		}
		return 0, e.doReturn(sm), true, nil

	case wasm.OpCallIndirect:
		if err := e.doCallIndirect(ctx, execCtx, sm, mod, instr); err != nil {
			return 0, nil, false, err
		}
		return pc + 1, nil, false, nil

	case wasm.OpReturnCallIndirect:
		if err := e.doCallIndirect(ctx, execCtx, sm, mod, instr); err != nil {
			return 0, nil, false, err
		}
		return 0, e.doReturn(sm), true, nil

	case wasm.OpCallRef:
		if err := e.doCallRef(ctx, execCtx, sm, mod); err != nil {
			return 0, nil, false, err
		}
		return pc + 1, nil, false, nil

	case wasm.OpReturnCallRef:
		if err := e.doCallRef(ctx, execCtx, sm, mod); err != nil {
			return 0, nil, false, err
		}
		return 0, e.doReturn(sm), true, nil

	case wasm.OpDrop:
		sm.Pop()
		return pc + 1, nil, false, nil

	case wasm.OpSelect, wasm.OpSelectT:
		cond := sm.Pop()
		b := sm.Pop()
		a := sm.Pop()
		if cond.I32() != 0 {
			sm.Push(a)
		} else {
			sm.Push(b)
		}
		return pc + 1, nil, false, nil

	case wasm.OpLocalGet:
		f := sm.CurrentFrame()
		sm.Push(sm.ValStack[f.LocalSlot(int(instr.Imm.LocalIdx))])
		return pc + 1, nil, false, nil

	case wasm.OpLocalSet:
		f := sm.CurrentFrame()
		sm.ValStack[f.LocalSlot(int(instr.Imm.LocalIdx))] = sm.Pop()
		return pc + 1, nil, false, nil

	case wasm.OpLocalTee:
		f := sm.CurrentFrame()
		sm.ValStack[f.LocalSlot(int(instr.Imm.LocalIdx))] = sm.Top(1)[0]
		return pc + 1, nil, false, nil

	case wasm.OpGlobalGet:
		sm.Push(mod.Globals[instr.Imm.GlobalIdx].Get())
		return pc + 1, nil, false, nil

	case wasm.OpGlobalSet:
		mod.Globals[instr.Imm.GlobalIdx].Set(sm.Pop())
		return pc + 1, nil, false, nil

	case wasm.OpRefNull, wasm.OpRefIsNull, wasm.OpRefFunc, wasm.OpRefAsNonNull, wasm.OpRefEq,
		wasm.OpRefTest, wasm.OpRefCast, wasm.OpStructNew, wasm.OpStructNewDefault, wasm.OpStructGet,
		wasm.OpStructSet, wasm.OpArrayNew, wasm.OpArrayNewDefault, wasm.OpArrayGet, wasm.OpArraySet,
		wasm.OpArrayLen, wasm.OpI31New, wasm.OpI31Get, wasm.OpAnyConvertExtern, wasm.OpExternConvertAny:
		if err := e.execGC(mod, sm, instr); err != nil {
			return 0, nil, false, err
		}
		return pc + 1, nil, false, nil

	case wasm.OpTableGet, wasm.OpTableSet, wasm.OpTableGrow, wasm.OpTableSize, wasm.OpTableFill,
		wasm.OpTableInit, wasm.OpTableCopy:
		if err := e.execTableOp(mod, sm, instr); err != nil {
			return 0, nil, false, err
		}
		return pc + 1, nil, false, nil

	case wasm.OpElemDrop:
		mod.Elements[instr.Imm.ElemIdx].Drop()
		return pc + 1, nil, false, nil

	case wasm.OpMemoryLoad, wasm.OpMemoryStore, wasm.OpMemorySize, wasm.OpMemoryGrow,
		wasm.OpMemoryInit, wasm.OpMemoryCopy, wasm.OpMemoryFill:
		if err := e.execMemoryOp(execCtx, mod, sm, instr); err != nil {
			return 0, nil, false, err
		}
		return pc + 1, nil, false, nil

	case wasm.OpDataDrop:
		mod.DataSegs[instr.Imm.DataIdx].Drop()
		return pc + 1, nil, false, nil

	case wasm.OpMemoryAtomicNotify:
		if err := e.execAtomicNotify(mod, sm); err != nil {
			return 0, nil, false, err
		}
		return pc + 1, nil, false, nil

	case wasm.OpMemoryAtomicWait:
		if err := e.execAtomicWait(mod, sm, instr); err != nil {
			return 0, nil, false, err
		}
		return pc + 1, nil, false, nil

	case wasm.OpTryTable:
		sm.PushHandler(pc, instr.Imm.Catches)
		return pc + 1, nil, false, nil

	case wasm.OpThrow:
		resumePC, err := e.doThrow(sm, fn, idx, myFrameDepth, instr.Imm.FuncIdx)
		if err != nil {
			return 0, nil, false, err
		}
		return resumePC, nil, false, nil

	case wasm.OpThrowRef:
		exn := sm.Pop()
		if exn.Ref.IsNull() {
			return 0, nil, false, wasmruntime.ErrRuntimeNonNullRequired
		}
		resumePC, err := e.rethrow(sm, fn, idx, myFrameDepth, exn)
		if err != nil {
			return 0, nil, false, err
		}
		return resumePC, nil, false, nil

	default: // OpConstI32/I64/F32/F64/V128, OpNumeric.
		if err := e.execNumeric(instr, sm); err != nil {
			return 0, nil, false, err
		}
		return pc + 1, nil, false, nil
	}
}

// applyBranch resolves the BranchDescriptor the validator recorded at
// site for the choice'th target (always 0 except for br_table, which
// attaches one descriptor per table entry plus the default at the end),
// erases the validator-computed span, and returns the pc to resume at.
func (e *Executor) applyBranch(sm *stack.Manager, fn *wasm.FunctionInstance, myFrameDepth, site, choice int) (int, []wasm.Value, bool, error) {
	descs := fn.BranchSites[site]
	if choice >= len(descs) {
		choice = len(descs) - 1
	}
	d := descs[choice]
	sm.EraseRange(d.StackEraseBegin, d.StackEraseEnd)
	target := site + d.PCOffset
	sm.RemoveInactiveHandler(myFrameDepth, target)
	return target, nil, false, nil
}

// doReturn pops the current frame's declared results off the top of
// sm.ValStack, discards everything else belonging to this frame (its
// locals and any leftover operand-stack depth), and pops the frame.
func (e *Executor) doReturn(sm *stack.Manager) []wasm.Value {
	f := sm.CurrentFrame()
	base := f.ValueTop - f.LocalsArity
	n := len(sm.ValStack)
	results := append([]wasm.Value(nil), sm.ValStack[n-f.ReturnsArity:]...)
	sm.ValStack = sm.ValStack[:base]
	sm.PopFrame()
	return results
}
