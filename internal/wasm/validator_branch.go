package internalwasm

// ctrlFrame is one entry of the control-frame stack (spec §4.1): the
// block's declared input/output types, the value-stack height at entry,
// whether the frame has gone unreachable, and bookkeeping for patching
// forward branches once this frame's `end` is reached.
type ctrlFrame struct {
	op         Opcode
	startTypes []ValType
	endTypes   []ValType
	height     int
	unreachable bool

	// loopStartPC is this frame's own instruction index, the branch target
	// for br targeting a loop (spec §4.1: branching to a loop re-enters
	// it, taking its StartTypes).
	loopStartPC int

	// pendingForward collects every branch descriptor targeting this
	// frame's `end` (every non-loop frame) along with the originating
	// instruction's index, so PCOffset can be filled in once the `end`
	// index is known.
	pendingForward []pendingBranch

	// sawElse is used only by OpIf frames, to reject a second `else` and
	// to know whether an implicit else (no value on the if-branch) must
	// still be type-checked against startTypes at `end`.
	sawElse bool
}

// pendingBranch is a forward branch awaiting its target frame's `end`
// index, so its descriptor's PCOffset can be computed relative to the
// instruction that issued the branch.
type pendingBranch struct {
	desc *BranchDescriptor
	site int
}

// labelTypes returns the types a branch to this frame must carry: a
// loop's StartTypes (re-entering the loop takes its parameters again) or
// a block/if/try_table's EndTypes (spec §4.1).
func (c *ctrlFrame) labelTypes() []ValType {
	if c.op == OpLoop {
		return c.startTypes
	}
	return c.endTypes
}

// ValidateFunction type-checks body against functype and the module
// context, returning the per-instruction branch descriptors the executor
// needs (spec §4.1, §4.3). locals is the full locals vector (parameters
// followed by declared locals); localsDefaultable marks which entries may
// start zero-initialized without an explicit local.set first.
func ValidateFunction(
	mod *ModuleContext,
	functype *FunctionType,
	body []Instruction,
	locals []ValType,
	localsDefaultable []bool,
	maxStackValues int,
) (map[int][]*BranchDescriptor, error) {
	f := newFormChecker(mod, nil)
	f.locals = locals
	f.localsInit = make([]bool, len(locals))
	for i, d := range localsDefaultable {
		f.localsInit[i] = d
	}

	f.ctrlStack = append(f.ctrlStack, ctrlFrame{
		op: OpBlock, startTypes: functype.Params, endTypes: functype.Results, height: 0,
	})

	for pc := 0; pc < len(body); pc++ {
		instr := body[pc]
		if err := f.checkInstr(pc, instr); err != nil {
			return nil, err
		}
		if len(f.valStack) > maxStackValues && maxStackValues > 0 {
			return nil, newErr(StackLimitExceeded,
				"function may have %d stack values, which exceeds limit %d", len(f.valStack), maxStackValues)
		}
	}
	if len(f.ctrlStack) != 0 {
		return nil, newErr(TypeCheckFailed, "function body missing final end")
	}
	return f.branchSites, nil
}

func (f *FormChecker) checkInstr(pc int, instr Instruction) error {
	switch instr.Op {
	case OpUnreachable:
		f.unreachable()
		return nil
	case OpNop:
		return nil

	case OpBlock, OpLoop, OpIf:
		in, out, err := f.resolveBlockType(instr.Imm)
		if err != nil {
			return err
		}
		if instr.Op == OpIf {
			if err := f.popExpect(ValTypeI32); err != nil {
				return err
			}
		}
		if err := f.popAll(in); err != nil {
			return err
		}
		frame := ctrlFrame{op: instr.Op, startTypes: in, endTypes: out, height: len(f.valStack), loopStartPC: pc}
		f.ctrlStack = append(f.ctrlStack, frame)
		f.pushAll(in)
		return nil

	case OpElse:
		top := &f.ctrlStack[len(f.ctrlStack)-1]
		if top.op != OpIf || top.sawElse {
			return newErr(TypeCheckFailed, "else: not inside a matching if")
		}
		if err := f.popAll(top.endTypes); err != nil {
			return err
		}
		if len(f.valStack) != top.height {
			return newErr(TypeCheckFailed, "if branch: unconsumed values before else")
		}
		top.sawElse = true
		top.unreachable = false
		f.pushAll(top.startTypes)
		return nil

	case OpEnd:
		top := f.ctrlStack[len(f.ctrlStack)-1]
		if err := f.popAll(top.endTypes); err != nil {
			return err
		}
		if len(f.valStack) != top.height {
			return newErr(TypeCheckFailed, "block: unconsumed values at end")
		}
		if top.op == OpIf && !top.sawElse && !sameTypes(top.startTypes, top.endTypes) {
			return newErr(TypeCheckFailed, "if without else must not change the value stack type")
		}
		// Patch every forward branch recorded against this frame: the
		// target is the position right after this end (pc+1), so a
		// branch at site s jumps PCOffset = (pc+1) - s instructions.
		for _, pb := range top.pendingForward {
			pb.desc.PCOffset = (pc + 1) - pb.site
		}
		f.ctrlStack = f.ctrlStack[:len(f.ctrlStack)-1]
		if len(f.ctrlStack) > 0 {
			f.pushAll(top.endTypes)
		}
		return nil

	case OpBr:
		return f.checkBranch(pc, instr.Imm.LabelIdx, true)
	case OpBrIf:
		if err := f.popExpect(ValTypeI32); err != nil {
			return err
		}
		return f.checkBranch(pc, instr.Imm.LabelIdx, false)
	case OpBrTable:
		if err := f.popExpect(ValTypeI32); err != nil {
			return err
		}
		arity := -1
		for _, l := range instr.Imm.LabelIdxs {
			frame, err := f.frameAt(l)
			if err != nil {
				return err
			}
			lt := frame.labelTypes()
			if arity == -1 {
				arity = len(lt)
			} else if arity != len(lt) {
				return newErr(TypeCheckFailed, "br_table: inconsistent arity across targets")
			}
		}
		if _, err := f.frameAt(instr.Imm.LabelIdx); err != nil {
			return err
		}
		for _, l := range instr.Imm.LabelIdxs {
			if err := f.checkBranch(pc, l, false); err != nil {
				return err
			}
		}
		if err := f.checkBranch(pc, instr.Imm.LabelIdx, true); err != nil {
			return err
		}
		f.unreachable()
		return nil

	case OpBrOnNull:
		t, err := f.pop()
		if err != nil {
			return err
		}
		if !isBottom(t) && !t.IsRef() {
			return newErr(TypeCheckFailed, "br_on_null: expected a reference type, got %s", t)
		}
		if err := f.checkBranch(pc, instr.Imm.LabelIdx, false); err != nil {
			return err
		}
		if !isBottom(t) {
			f.push(t.AsNonNull())
		} else {
			f.push(bottomType)
		}
		return nil

	case OpBrOnNonNull:
		t, err := f.pop()
		if err != nil {
			return err
		}
		if !isBottom(t) {
			f.push(t.AsNonNull())
		}
		if err := f.checkBranch(pc, instr.Imm.LabelIdx, false); err != nil {
			return err
		}
		return nil

	case OpBrOnCast, OpBrOnCastFail:
		t, err := f.pop()
		if err != nil {
			return err
		}
		if err := f.checkBranch(pc, instr.Imm.LabelIdx, false); err != nil {
			return err
		}
		f.push(t)
		return nil

	case OpReturn:
		top := f.ctrlStack[0]
		if err := f.popAll(top.endTypes); err != nil {
			return err
		}
		f.unreachable()
		return nil

	case OpCall, OpReturnCall:
		ft, err := f.funcType(instr.Imm.FuncIdx)
		if err != nil {
			return err
		}
		if err := f.popAll(ft.Params); err != nil {
			return err
		}
		if instr.Op == OpReturnCall {
			if !sameTypes(ft.Results, f.ctrlStack[0].endTypes) {
				return newErr(TypeCheckFailed, "return_call: callee results do not match enclosing function results")
			}
			f.unreachable()
			return nil
		}
		f.pushAll(ft.Results)
		return nil

	case OpCallIndirect, OpReturnCallIndirect:
		if err := f.popExpect(ValTypeI32); err != nil {
			return err
		}
		if int(instr.Imm.TableIdx) >= len(f.mod.Tables) {
			return newErr(InvalidTableIdx, "call_indirect: invalid table index %d", instr.Imm.TableIdx)
		}
		if int(instr.Imm.TypeIdx) >= len(f.mod.Types) {
			return newErr(InvalidSubType, "call_indirect: invalid type index %d", instr.Imm.TypeIdx)
		}
		ft := f.mod.Types[instr.Imm.TypeIdx].Composite.FuncType
		if err := f.popAll(ft.Params); err != nil {
			return err
		}
		if instr.Op == OpReturnCallIndirect {
			if !sameTypes(ft.Results, f.ctrlStack[0].endTypes) {
				return newErr(TypeCheckFailed, "return_call_indirect: callee results do not match enclosing function results")
			}
			f.unreachable()
			return nil
		}
		f.pushAll(ft.Results)
		return nil

	case OpCallRef, OpReturnCallRef:
		t, err := f.pop()
		if err != nil {
			return err
		}
		if !isBottom(t) {
			if !t.IsRef() || t.HeapType != HeapConcrete {
				return newErr(TypeCheckFailed, "call_ref: expected a concrete function reference, got %s", t)
			}
			ft := f.mod.Types[t.TypeIndex].Composite.FuncType
			if err := f.popAll(ft.Params); err != nil {
				return err
			}
			if instr.Op == OpReturnCallRef {
				f.unreachable()
				return nil
			}
			f.pushAll(ft.Results)
		}
		return nil

	case OpDrop:
		_, err := f.pop()
		return err

	case OpSelect:
		if err := f.popExpect(ValTypeI32); err != nil {
			return err
		}
		b, err := f.pop()
		if err != nil {
			return err
		}
		a, err := f.pop()
		if err != nil {
			return err
		}
		if !isBottom(a) && !isBottom(b) && a != b {
			return newErr(TypeCheckFailed, "select: operand types %s and %s differ", a, b)
		}
		if isBottom(a) {
			a = b
		}
		f.push(a)
		return nil

	case OpSelectT:
		if err := f.popExpect(ValTypeI32); err != nil {
			return err
		}
		want := instr.Imm.SelectTypes[0]
		if err := f.popExpect(want); err != nil {
			return err
		}
		if err := f.popExpect(want); err != nil {
			return err
		}
		f.push(want)
		return nil

	case OpLocalGet:
		t, err := f.localType(instr.Imm.LocalIdx)
		if err != nil {
			return err
		}
		if !f.localsInit[instr.Imm.LocalIdx] {
			return newErr(InvalidUninitLocal, "local.get %d: local is not initialized", instr.Imm.LocalIdx)
		}
		f.push(t)
		return nil

	case OpLocalSet, OpLocalTee:
		t, err := f.localType(instr.Imm.LocalIdx)
		if err != nil {
			return err
		}
		if instr.Op == OpLocalSet {
			if err := f.popExpect(t); err != nil {
				return err
			}
		} else {
			got, err := f.pop()
			if err != nil {
				return err
			}
			if !isBottom(got) && !f.matchType(got, t) {
				return newErr(TypeCheckFailed, "local.tee: type mismatch")
			}
			f.push(got)
		}
		f.localsInit[instr.Imm.LocalIdx] = true
		return nil

	case OpGlobalGet:
		if int(instr.Imm.GlobalIdx) >= len(f.mod.Globals) {
			return newErr(InvalidGlobalIdx, "global.get: invalid global index %d", instr.Imm.GlobalIdx)
		}
		f.push(f.mod.Globals[instr.Imm.GlobalIdx].ValType)
		return nil

	case OpGlobalSet:
		if int(instr.Imm.GlobalIdx) >= len(f.mod.Globals) {
			return newErr(InvalidGlobalIdx, "global.set: invalid global index %d", instr.Imm.GlobalIdx)
		}
		g := f.mod.Globals[instr.Imm.GlobalIdx]
		if !g.Mutable {
			return newErr(TypeCheckFailed, "global.set: global %d is immutable", instr.Imm.GlobalIdx)
		}
		return f.popExpect(g.ValType)

	case OpMemoryLoad:
		if err := checkAlignment(instr.Imm.Align, instr.Imm.ValType); err != nil {
			return err
		}
		if err := f.popExpect(ValTypeI32); err != nil {
			return err
		}
		f.push(instr.Imm.ValType)
		return nil

	case OpMemoryStore:
		if err := checkAlignment(instr.Imm.Align, instr.Imm.ValType); err != nil {
			return err
		}
		if err := f.popExpect(instr.Imm.ValType); err != nil {
			return err
		}
		return f.popExpect(ValTypeI32)

	case OpMemorySize:
		f.push(ValTypeI32)
		return nil
	case OpMemoryGrow:
		if err := f.popExpect(ValTypeI32); err != nil {
			return err
		}
		f.push(ValTypeI32)
		return nil
	case OpMemoryInit, OpMemoryCopy, OpMemoryFill:
		if err := f.popExpect(ValTypeI32); err != nil {
			return err
		}
		if err := f.popExpect(ValTypeI32); err != nil {
			return err
		}
		return f.popExpect(ValTypeI32)
	case OpDataDrop:
		if f.mod.HasDataCount && int(instr.Imm.DataIdx) >= f.mod.DataCount {
			return newErr(InvalidDataIdx, "data.drop: invalid data index %d", instr.Imm.DataIdx)
		}
		return nil

	case OpTableGet:
		if err := f.popExpect(ValTypeI32); err != nil {
			return err
		}
		et, err := f.tableElemType(instr.Imm.TableIdx)
		if err != nil {
			return err
		}
		f.push(et)
		return nil
	case OpTableSet:
		et, err := f.tableElemType(instr.Imm.TableIdx)
		if err != nil {
			return err
		}
		if err := f.popExpect(et); err != nil {
			return err
		}
		return f.popExpect(ValTypeI32)
	case OpTableSize:
		if _, err := f.tableElemType(instr.Imm.TableIdx); err != nil {
			return err
		}
		f.push(ValTypeI32)
		return nil
	case OpTableGrow:
		et, err := f.tableElemType(instr.Imm.TableIdx)
		if err != nil {
			return err
		}
		if err := f.popExpect(ValTypeI32); err != nil {
			return err
		}
		if err := f.popExpect(et); err != nil {
			return err
		}
		f.push(ValTypeI32)
		return nil
	case OpTableFill:
		if err := f.popExpect(ValTypeI32); err != nil {
			return err
		}
		et, err := f.tableElemType(instr.Imm.TableIdx)
		if err != nil {
			return err
		}
		if err := f.popExpect(et); err != nil {
			return err
		}
		return f.popExpect(ValTypeI32)
	case OpTableCopy, OpTableInit:
		if err := f.popExpect(ValTypeI32); err != nil {
			return err
		}
		if err := f.popExpect(ValTypeI32); err != nil {
			return err
		}
		return f.popExpect(ValTypeI32)
	case OpElemDrop:
		if int(instr.Imm.ElemIdx) >= len(f.mod.Elems) {
			return newErr(InvalidElemIdx, "elem.drop: invalid element index %d", instr.Imm.ElemIdx)
		}
		return nil

	case OpRefNull:
		f.push(ValType{Code: CodeRef, Nullable: true, HeapType: instr.Imm.ValType.HeapType, TypeIndex: instr.Imm.ValType.TypeIndex})
		return nil
	case OpRefIsNull:
		t, err := f.pop()
		if err != nil {
			return err
		}
		if !isBottom(t) && !t.IsRef() {
			return newErr(TypeCheckFailed, "ref.is_null: expected a reference type")
		}
		f.push(ValTypeI32)
		return nil
	case OpRefFunc:
		if _, err := f.funcType(instr.Imm.FuncIdx); err != nil {
			return err
		}
		f.push(ValType{Code: CodeRef, HeapType: HeapFunc})
		return nil
	case OpRefAsNonNull:
		t, err := f.pop()
		if err != nil {
			return err
		}
		if isBottom(t) {
			f.push(bottomType)
			return nil
		}
		if !t.IsRef() {
			return newErr(TypeCheckFailed, "ref.as_non_null: expected a reference type")
		}
		f.push(t.AsNonNull())
		return nil
	case OpRefEq:
		if err := f.popExpect(ValType{Code: CodeRef, Nullable: true, HeapType: HeapEq}); err != nil {
			return err
		}
		if err := f.popExpect(ValType{Code: CodeRef, Nullable: true, HeapType: HeapEq}); err != nil {
			return err
		}
		f.push(ValTypeI32)
		return nil
	case OpRefTest:
		if _, err := f.pop(); err != nil {
			return err
		}
		f.push(ValTypeI32)
		return nil
	case OpRefCast:
		if _, err := f.pop(); err != nil {
			return err
		}
		f.push(instr.Imm.ValType)
		return nil

	case OpStructNew, OpStructNewDefault:
		ct, err := f.compositeType(instr.Imm.TypeIdx, CompositeStruct)
		if err != nil {
			return err
		}
		if instr.Op == OpStructNew {
			for i := len(ct.Fields) - 1; i >= 0; i-- {
				if err := f.popExpect(widenStorage(ct.Fields[i].Storage)); err != nil {
					return err
				}
			}
		}
		f.push(ValType{Code: CodeRef, HeapType: HeapConcrete, TypeIndex: instr.Imm.TypeIdx})
		return nil
	case OpStructGet:
		ct, err := f.compositeType(instr.Imm.TypeIdx, CompositeStruct)
		if err != nil {
			return err
		}
		if err := f.popExpect(ValType{Code: CodeRef, Nullable: true, HeapType: HeapConcrete, TypeIndex: instr.Imm.TypeIdx}); err != nil {
			return err
		}
		if int(instr.Imm.FieldIdx) >= len(ct.Fields) {
			return newErr(TypeCheckFailed, "struct.get: invalid field index %d", instr.Imm.FieldIdx)
		}
		f.push(widenStorage(ct.Fields[instr.Imm.FieldIdx].Storage))
		return nil
	case OpStructSet:
		ct, err := f.compositeType(instr.Imm.TypeIdx, CompositeStruct)
		if err != nil {
			return err
		}
		if int(instr.Imm.FieldIdx) >= len(ct.Fields) {
			return newErr(TypeCheckFailed, "struct.set: invalid field index %d", instr.Imm.FieldIdx)
		}
		if !ct.Fields[instr.Imm.FieldIdx].Mutable {
			return newErr(TypeCheckFailed, "struct.set: field %d is immutable", instr.Imm.FieldIdx)
		}
		if err := f.popExpect(widenStorage(ct.Fields[instr.Imm.FieldIdx].Storage)); err != nil {
			return err
		}
		return f.popExpect(ValType{Code: CodeRef, Nullable: true, HeapType: HeapConcrete, TypeIndex: instr.Imm.TypeIdx})

	case OpArrayNew, OpArrayNewDefault:
		ct, err := f.compositeType(instr.Imm.TypeIdx, CompositeArray)
		if err != nil {
			return err
		}
		if err := f.popExpect(ValTypeI32); err != nil {
			return err
		}
		if instr.Op == OpArrayNew {
			if err := f.popExpect(widenStorage(ct.Element.Storage)); err != nil {
				return err
			}
		}
		f.push(ValType{Code: CodeRef, HeapType: HeapConcrete, TypeIndex: instr.Imm.TypeIdx})
		return nil
	case OpArrayGet:
		ct, err := f.compositeType(instr.Imm.TypeIdx, CompositeArray)
		if err != nil {
			return err
		}
		if err := f.popExpect(ValTypeI32); err != nil {
			return err
		}
		if err := f.popExpect(ValType{Code: CodeRef, Nullable: true, HeapType: HeapConcrete, TypeIndex: instr.Imm.TypeIdx}); err != nil {
			return err
		}
		f.push(widenStorage(ct.Element.Storage))
		return nil
	case OpArraySet:
		ct, err := f.compositeType(instr.Imm.TypeIdx, CompositeArray)
		if err != nil {
			return err
		}
		if !ct.Element.Mutable {
			return newErr(TypeCheckFailed, "array.set: element is immutable")
		}
		if err := f.popExpect(widenStorage(ct.Element.Storage)); err != nil {
			return err
		}
		if err := f.popExpect(ValTypeI32); err != nil {
			return err
		}
		return f.popExpect(ValType{Code: CodeRef, Nullable: true, HeapType: HeapConcrete, TypeIndex: instr.Imm.TypeIdx})
	case OpArrayLen:
		if _, err := f.pop(); err != nil {
			return err
		}
		f.push(ValTypeI32)
		return nil

	case OpI31New:
		if err := f.popExpect(ValTypeI32); err != nil {
			return err
		}
		f.push(ValType{Code: CodeRef, HeapType: HeapI31})
		return nil
	case OpI31Get:
		if _, err := f.pop(); err != nil {
			return err
		}
		f.push(ValTypeI32)
		return nil
	case OpAnyConvertExtern:
		if _, err := f.pop(); err != nil {
			return err
		}
		f.push(ValType{Code: CodeRef, Nullable: true, HeapType: HeapAny})
		return nil
	case OpExternConvertAny:
		if _, err := f.pop(); err != nil {
			return err
		}
		f.push(ValTypeExternref)
		return nil

	case OpTryTable:
		in, out, err := f.resolveBlockType(instr.Imm)
		if err != nil {
			return err
		}
		if err := f.popAll(in); err != nil {
			return err
		}
		for _, c := range instr.Imm.Catches {
			frame, err := f.frameAt(c.LabelIdx)
			if err != nil {
				return err
			}
			want := frame.labelTypes()
			if c.CaptureExn {
				if len(want) == 0 || !want[len(want)-1].IsRef() {
					return newErr(TypeCheckFailed, "try_table: catch clause expects a trailing exnref label type")
				}
			}
		}
		frame := ctrlFrame{op: OpTryTable, startTypes: in, endTypes: out, height: len(f.valStack), loopStartPC: pc}
		f.ctrlStack = append(f.ctrlStack, frame)
		f.pushAll(in)
		return nil
	case OpThrow:
		if int(instr.Imm.FuncIdx) >= len(f.mod.Tags) {
			return newErr(InvalidFuncIdx, "throw: invalid tag index %d", instr.Imm.FuncIdx)
		}
		ft := f.mod.Types[f.mod.Tags[instr.Imm.FuncIdx]].Composite.FuncType
		if err := f.popAll(ft.Params); err != nil {
			return err
		}
		f.unreachable()
		return nil
	case OpThrowRef:
		if err := f.popExpect(ValType{Code: CodeRef, Nullable: true, HeapType: HeapExn}); err != nil {
			return err
		}
		f.unreachable()
		return nil

	case OpLegacyTry, OpLegacyCatch, OpLegacyCatchAll, OpLegacyDelegate, OpLegacyRethrow:
		return newErr(InvalidLegacyException,
			"legacy exception handling instructions (try/catch/delegate/rethrow) are not supported, use try_table")

	default:
		return f.checkNumeric(instr)
	}
}

// checkBranch validates and records a branch to relative depth labelIdx.
// terminal indicates this branch unconditionally leaves the current
// instruction stream (br, the default br_table target), which marks the
// frame unreachable afterward.
func (f *FormChecker) checkBranch(pc int, labelIdx uint32, terminal bool) error {
	depth := int(labelIdx)
	if depth >= len(f.ctrlStack) {
		return newErr(InvalidLabelIdx, "invalid label index %d", labelIdx)
	}
	targetFrame := &f.ctrlStack[len(f.ctrlStack)-1-depth]
	want := targetFrame.labelTypes()

	// currentHeight is measured before consuming the branch's own result
	// values, which at runtime still sit on top of the stack at this
	// point; popAll below only validates their types without shrinking
	// the frame's logical height for any instruction that follows.
	currentHeight := len(f.valStack)
	saved := append([]ValType{}, f.valStack...)
	if err := f.popAll(want); err != nil {
		return err
	}
	f.valStack = saved

	desc := &BranchDescriptor{
		StackEraseBegin: currentHeight - targetFrame.height,
		StackEraseEnd:   len(want),
	}
	if targetFrame.op == OpLoop {
		desc.PCOffset = targetFrame.loopStartPC - pc
	} else {
		targetFrame.pendingForward = append(targetFrame.pendingForward, pendingBranch{desc: desc, site: pc})
		desc.PCOffset = 0 // patched when the target frame's `end` is reached.
	}
	f.branchSites[pc] = append(f.branchSites[pc], desc)

	if terminal {
		f.unreachable()
	}
	return nil
}

// frameAt resolves a relative label index to its control frame, erroring
// if it names a depth beyond the current control stack (spec
// InvalidLabelIdx).
func (f *FormChecker) frameAt(labelIdx uint32) (*ctrlFrame, error) {
	depth := int(labelIdx)
	if depth >= len(f.ctrlStack) {
		return nil, newErr(InvalidLabelIdx, "invalid label index %d", labelIdx)
	}
	return &f.ctrlStack[len(f.ctrlStack)-1-depth], nil
}

func (f *FormChecker) localType(idx uint32) (ValType, error) {
	if int(idx) >= len(f.locals) {
		return ValType{}, newErr(InvalidLocalIdx, "invalid local index %d", idx)
	}
	return f.locals[idx], nil
}

func (f *FormChecker) funcType(idx uint32) (*FunctionType, error) {
	if int(idx) >= len(f.mod.FuncTypes) {
		return nil, newErr(InvalidFuncIdx, "invalid function index %d", idx)
	}
	ti := f.mod.FuncTypes[idx]
	if int(ti) >= len(f.mod.Types) {
		return nil, newErr(InvalidSubType, "function %d: invalid type index %d", idx, ti)
	}
	return f.mod.Types[ti].Composite.FuncType, nil
}

func (f *FormChecker) compositeType(idx uint32, kind CompositeKind) (*CompositeType, error) {
	if int(idx) >= len(f.mod.Types) {
		return nil, newErr(InvalidSubType, "invalid type index %d", idx)
	}
	ct := &f.mod.Types[idx].Composite
	if ct.Kind != kind {
		return nil, newErr(InvalidSubType, "type %d: expected composite kind %d, got %d", idx, kind, ct.Kind)
	}
	return ct, nil
}

func (f *FormChecker) tableElemType(idx uint32) (ValType, error) {
	if int(idx) >= len(f.mod.Tables) {
		return ValType{}, newErr(InvalidTableIdx, "invalid table index %d", idx)
	}
	return f.mod.Tables[idx].ElemType, nil
}

// resolveBlockType expands a block/loop/if/try_table's blocktype encoding
// into explicit parameter and result type lists.
func (f *FormChecker) resolveBlockType(imm Immediate) (params, results []ValType, err error) {
	switch imm.BlockKind {
	case BlockKindEmpty:
		return nil, nil, nil
	case BlockKindValue:
		return nil, []ValType{imm.ValType}, nil
	case BlockKindFuncType:
		if int(imm.TypeIdx) >= len(f.mod.Types) {
			return nil, nil, newErr(InvalidSubType, "invalid block type index %d", imm.TypeIdx)
		}
		ft := f.mod.Types[imm.TypeIdx].Composite.FuncType
		return ft.Params, ft.Results, nil
	default:
		return nil, nil, newErr(TypeCheckFailed, "invalid block type kind")
	}
}

func sameTypes(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// widenStorage expands a packed storage type (i8/i16) to the i32 type it
// presents as once read off a struct/array field (spec §3).
func widenStorage(t ValType) ValType {
	if t.IsPackedStorage() {
		return ValTypeI32
	}
	return t
}

func checkAlignment(align uint32, t ValType) error {
	width := numericWidth(t)
	if uint32(1)<<align > width/8 {
		return newErr(InvalidAlignment, "alignment 2**%d exceeds natural alignment for width %d", align, width)
	}
	return nil
}

func numericWidth(t ValType) uint32 {
	switch t.Code {
	case CodeI32, CodeF32:
		return 32
	case CodeI64, CodeF64:
		return 64
	case CodeV128:
		return 128
	default:
		return 8
	}
}

// opSignature is the fixed pop/push shape of a "plain" numeric
// instruction (consts, arithmetic, comparisons, conversions): those
// instructions don't need the full checkInstr switch since their effect
// is always "pop these, push these".
type opSignature struct {
	Pop  []ValType
	Push []ValType
}

func (f *FormChecker) checkNumeric(instr Instruction) error {
	switch instr.Op {
	case OpConstI32:
		f.push(ValTypeI32)
		return nil
	case OpConstI64:
		f.push(ValTypeI64)
		return nil
	case OpConstF32:
		f.push(ValTypeF32)
		return nil
	case OpConstF64:
		f.push(ValTypeF64)
		return nil
	case OpConstV128:
		f.push(ValTypeV128)
		return nil
	case OpMemoryAtomicNotify:
		if err := f.popExpect(ValTypeI32); err != nil {
			return err
		}
		if err := f.popExpect(ValTypeI32); err != nil {
			return err
		}
		f.push(ValTypeI32)
		return nil
	case OpMemoryAtomicWait:
		if err := f.popExpect(ValTypeI64); err != nil {
			return err
		}
		if err := f.popExpect(instr.Imm.ValType); err != nil {
			return err
		}
		if err := f.popExpect(ValTypeI32); err != nil {
			return err
		}
		f.push(ValTypeI32)
		return nil
	case OpNumeric:
		sig, ok := numericSignatures[instr.Imm.FuncIdx]
		if !ok {
			return newErr(TypeCheckFailed, "unknown numeric instruction %d", instr.Imm.FuncIdx)
		}
		if err := f.popAll(sig.Pop); err != nil {
			return err
		}
		f.pushAll(sig.Push)
		return nil
	default:
		return newErr(TypeCheckFailed, "unsupported opcode %d", instr.Op)
	}
}

// numericSignatures maps a numeric sub-opcode (carried in
// Instruction.Imm.FuncIdx for an OpNumeric instruction, since the
// identity doesn't need its own Opcode constant) to its pop/push
// signature. A representative set covering every arity shape the
// remainder follow (unary, binary, comparison, conversion); embedders
// extending this table for opcodes not listed here follow the same
// pattern.
var numericSignatures = map[uint32]opSignature{
	0: {Pop: []ValType{ValTypeI32, ValTypeI32}, Push: []ValType{ValTypeI32}}, // i32 binop
	1: {Pop: []ValType{ValTypeI64, ValTypeI64}, Push: []ValType{ValTypeI64}}, // i64 binop
	2: {Pop: []ValType{ValTypeF32, ValTypeF32}, Push: []ValType{ValTypeF32}}, // f32 binop
	3: {Pop: []ValType{ValTypeF64, ValTypeF64}, Push: []ValType{ValTypeF64}}, // f64 binop
	4: {Pop: []ValType{ValTypeI32}, Push: []ValType{ValTypeI32}},            // i32 unop
	5: {Pop: []ValType{ValTypeI64}, Push: []ValType{ValTypeI64}},            // i64 unop
	6: {Pop: []ValType{ValTypeF32}, Push: []ValType{ValTypeF32}},            // f32 unop
	7: {Pop: []ValType{ValTypeF64}, Push: []ValType{ValTypeF64}},            // f64 unop
	8: {Pop: []ValType{ValTypeI32, ValTypeI32}, Push: []ValType{ValTypeI32}},  // i32 relop -> i32
	9: {Pop: []ValType{ValTypeI64, ValTypeI64}, Push: []ValType{ValTypeI32}},  // i64 relop -> i32
	10: {Pop: []ValType{ValTypeF32, ValTypeF32}, Push: []ValType{ValTypeI32}}, // f32 relop -> i32
	11: {Pop: []ValType{ValTypeF64, ValTypeF64}, Push: []ValType{ValTypeI32}}, // f64 relop -> i32
	12: {Pop: []ValType{ValTypeI32}, Push: []ValType{ValTypeI64}}, // i64.extend_i32_*
	13: {Pop: []ValType{ValTypeI64}, Push: []ValType{ValTypeI32}}, // i32.wrap_i64
	14: {Pop: []ValType{ValTypeF32}, Push: []ValType{ValTypeI32}}, // i32.trunc_f32_*
	15: {Pop: []ValType{ValTypeF64}, Push: []ValType{ValTypeI32}}, // i32.trunc_f64_*
	16: {Pop: []ValType{ValTypeF32}, Push: []ValType{ValTypeI64}}, // i64.trunc_f32_*
	17: {Pop: []ValType{ValTypeF64}, Push: []ValType{ValTypeI64}}, // i64.trunc_f64_*
	18: {Pop: []ValType{ValTypeI32}, Push: []ValType{ValTypeF32}}, // f32.convert_i32_*
	19: {Pop: []ValType{ValTypeI64}, Push: []ValType{ValTypeF32}}, // f32.convert_i64_*
	20: {Pop: []ValType{ValTypeF64}, Push: []ValType{ValTypeF32}}, // f32.demote_f64
	21: {Pop: []ValType{ValTypeI32}, Push: []ValType{ValTypeF64}}, // f64.convert_i32_*
	22: {Pop: []ValType{ValTypeI64}, Push: []ValType{ValTypeF64}}, // f64.convert_i64_*
	23: {Pop: []ValType{ValTypeF32}, Push: []ValType{ValTypeF64}}, // f64.promote_f32
	24: {Pop: []ValType{ValTypeF32}, Push: []ValType{ValTypeI32}}, // i32.reinterpret_f32
	25: {Pop: []ValType{ValTypeF64}, Push: []ValType{ValTypeI64}}, // i64.reinterpret_f64
	26: {Pop: []ValType{ValTypeI32}, Push: []ValType{ValTypeF32}}, // f32.reinterpret_i32
	27: {Pop: []ValType{ValTypeI64}, Push: []ValType{ValTypeF64}}, // f64.reinterpret_i64
}
