package internalwasm

import "fmt"

// Opcode is the small instruction set this validator understands. Binary
// decoding into this representation is the Loader's job and is out of
// scope for this module; callers construct a []Instruction directly (e.g.
// from a test fixture, or from an embedder's own decoder).
type Opcode uint16

const (
	OpUnreachable Opcode = iota
	OpNop
	OpBlock
	OpLoop
	OpIf
	OpElse
	OpEnd
	OpBr
	OpBrIf
	OpBrTable
	OpBrOnNull
	OpBrOnNonNull
	OpBrOnCast
	OpBrOnCastFail
	OpReturn
	OpCall
	OpCallIndirect
	OpCallRef
	OpReturnCall
	OpReturnCallIndirect
	OpReturnCallRef
	OpDrop
	OpSelect
	OpSelectT
	OpLocalGet
	OpLocalSet
	OpLocalTee
	OpGlobalGet
	OpGlobalSet
	OpTableGet
	OpTableSet
	OpTableGrow
	OpTableSize
	OpTableFill
	OpTableInit
	OpElemDrop
	OpTableCopy
	OpMemoryLoad  // generic i32/i64/f32/f64 load family; Immediate.ValType selects width.
	OpMemoryStore // generic store family.
	OpMemorySize
	OpMemoryGrow
	OpMemoryInit
	OpDataDrop
	OpMemoryCopy
	OpMemoryFill
	OpMemoryAtomicNotify
	OpMemoryAtomicWait
	OpRefNull
	OpRefIsNull
	OpRefFunc
	OpRefAsNonNull
	OpRefEq
	OpRefTest
	OpRefCast
	OpStructNew
	OpStructNewDefault
	OpStructGet
	OpStructSet
	OpArrayNew
	OpArrayNewDefault
	OpArrayGet
	OpArraySet
	OpArrayLen
	OpI31New
	OpI31Get
	OpAnyConvertExtern
	OpExternConvertAny
	OpTryTable
	OpThrow
	OpThrowRef
	OpLegacyTry
	OpLegacyCatch
	OpLegacyCatchAll
	OpLegacyDelegate
	OpLegacyRethrow
	// Numeric opcodes: every instruction with a fixed pop/push signature
	// (consts, arithmetic, comparisons, conversions) and no side effect on
	// control flow or the context. opSignatures supplies the type table.
	OpConstI32
	OpConstI64
	OpConstF32
	OpConstF64
	OpConstV128
	OpNumeric // a numeric op whose exact identity only opSignatures needs.
)

// BlockKind selects how Immediate.TypeIdx/ValType should be read for a
// block/loop/if, mirroring the binary format's blocktype encoding.
type BlockKind byte

const (
	BlockKindEmpty BlockKind = iota
	BlockKindValue           // a single result type, Immediate.ValType.
	BlockKindFuncType        // Immediate.TypeIdx indexes the module's type section.
)

// CatchClause is one try_table handler clause (spec's exception-handling
// surface, §4.1): either tagged or catch-all, optionally capturing the
// exnref.
type CatchClause struct {
	IsAll      bool
	Tag        uint32
	CaptureExn bool
	LabelIdx   uint32
}

// Immediate bundles every instruction's optional operands. Only the fields
// relevant to Op are populated; this is simpler than N almost-identical
// structs and mirrors how a single-pass validator actually reads operands.
type Immediate struct {
	BlockKind   BlockKind
	ValType     ValType
	TypeIdx     uint32
	LabelIdx    uint32
	LabelIdxs   []uint32 // br_table.
	FuncIdx     uint32
	TableIdx    uint32
	MemIdx      uint32
	LocalIdx    uint32
	GlobalIdx   uint32
	DataIdx     uint32
	ElemIdx     uint32
	FieldIdx    uint32
	Align       uint32
	// Offset is a memory instruction's static memarg offset, added to the
	// popped dynamic address before every load/store/atomic access. The
	// validator itself never reads it (alignment is the only memarg field
	// it checks), but the executor needs it to compute an effective
	// address.
	Offset      uint32
	SelectTypes []ValType
	Catches     []CatchClause

	// NumericOp identifies exactly which numeric instruction an OpNumeric
	// carries (e.g. i32.add vs. i32.sub), for the executor's dispatch.
	// FuncIdx instead carries the coarser pop/push *shape* class
	// (numericSignatures' key) the validator needs and nothing finer: many
	// distinct NumericOp values share one shape, the same way the
	// teacher's decoder and its wazeroir lowering use two different
	// granularities for the same instruction.
	NumericOp NumericOp

	// ConstI32/ConstI64/ConstF32/ConstF64/ConstV128Lo/ConstV128Hi carry an
	// OpConstI32/I64/F32/F64/V128 instruction's literal operand. The
	// validator itself never reads these (a const's push type is fixed by
	// Op alone), but the executor needs the actual value to push, the same
	// way it needs NumericOp for OpNumeric.
	ConstI32     int32
	ConstI64     int64
	ConstF32     float32
	ConstF64     float64
	ConstV128Lo  uint64
	ConstV128Hi  uint64
}

// NumericOp is the executor's fine-grained identity for an OpNumeric
// instruction. Unlike Immediate.FuncIdx (the validator's coarse pop/push
// shape class), this distinguishes every numeric operation the executor
// actually has to compute.
type NumericOp uint16

const (
	NumI32Eqz NumericOp = iota
	NumI32Eq
	NumI32Ne
	NumI32LtS
	NumI32LtU
	NumI32GtS
	NumI32GtU
	NumI32LeS
	NumI32LeU
	NumI32GeS
	NumI32GeU
	NumI64Eqz
	NumI64Eq
	NumI64Ne
	NumI64LtS
	NumI64LtU
	NumI64GtS
	NumI64GtU
	NumI64LeS
	NumI64LeU
	NumI64GeS
	NumI64GeU
	NumF32Eq
	NumF32Ne
	NumF32Lt
	NumF32Gt
	NumF32Le
	NumF32Ge
	NumF64Eq
	NumF64Ne
	NumF64Lt
	NumF64Gt
	NumF64Le
	NumF64Ge
	NumI32Clz
	NumI32Ctz
	NumI32Popcnt
	NumI32Add
	NumI32Sub
	NumI32Mul
	NumI32DivS
	NumI32DivU
	NumI32RemS
	NumI32RemU
	NumI32And
	NumI32Or
	NumI32Xor
	NumI32Shl
	NumI32ShrS
	NumI32ShrU
	NumI32Rotl
	NumI32Rotr
	NumI64Clz
	NumI64Ctz
	NumI64Popcnt
	NumI64Add
	NumI64Sub
	NumI64Mul
	NumI64DivS
	NumI64DivU
	NumI64RemS
	NumI64RemU
	NumI64And
	NumI64Or
	NumI64Xor
	NumI64Shl
	NumI64ShrS
	NumI64ShrU
	NumI64Rotl
	NumI64Rotr
	NumF32Abs
	NumF32Neg
	NumF32Ceil
	NumF32Floor
	NumF32Trunc
	NumF32Nearest
	NumF32Sqrt
	NumF32Add
	NumF32Sub
	NumF32Mul
	NumF32Div
	NumF32Min
	NumF32Max
	NumF32Copysign
	NumF64Abs
	NumF64Neg
	NumF64Ceil
	NumF64Floor
	NumF64Trunc
	NumF64Nearest
	NumF64Sqrt
	NumF64Add
	NumF64Sub
	NumF64Mul
	NumF64Div
	NumF64Min
	NumF64Max
	NumF64Copysign
	NumI32WrapI64
	NumI32TruncF32S
	NumI32TruncF32U
	NumI32TruncF64S
	NumI32TruncF64U
	NumI64ExtendI32S
	NumI64ExtendI32U
	NumI64TruncF32S
	NumI64TruncF32U
	NumI64TruncF64S
	NumI64TruncF64U
	NumF32ConvertI32S
	NumF32ConvertI32U
	NumF32ConvertI64S
	NumF32ConvertI64U
	NumF32DemoteF64
	NumF64ConvertI32S
	NumF64ConvertI32U
	NumF64ConvertI64S
	NumF64ConvertI64U
	NumF64PromoteF32
	NumI32ReinterpretF32
	NumI64ReinterpretF64
	NumF32ReinterpretI32
	NumF64ReinterpretI64
	NumI32Extend8S
	NumI32Extend16S
	NumI64Extend8S
	NumI64Extend16S
	NumI64Extend32S
	NumI32TruncSatF32S
	NumI32TruncSatF32U
	NumI32TruncSatF64S
	NumI32TruncSatF64U
	NumI64TruncSatF32S
	NumI64TruncSatF32U
	NumI64TruncSatF64S
	NumI64TruncSatF64U
)

// Instruction is one validated unit: an opcode plus its immediate operands.
type Instruction struct {
	Op  Opcode
	Imm Immediate
}

// ValidationErrorKind classifies a validation failure for embedders that
// branch on error category rather than parsing Error() text (spec §4.1).
type ValidationErrorKind int

const (
	TypeCheckFailed ValidationErrorKind = iota
	InvalidLocalIdx
	InvalidGlobalIdx
	InvalidFuncIdx
	InvalidTableIdx
	InvalidMemIdx
	InvalidDataIdx
	InvalidElemIdx
	InvalidLabelIdx
	InvalidAlignment
	InvalidSubType
	InvalidUninitLocal
	UncaughtException
	InvalidLegacyException
	StackLimitExceeded
)

// ValidationError is returned by ValidateFunction; Kind lets embedders
// switch on the failure category without string-matching Error().
type ValidationError struct {
	Kind ValidationErrorKind
	Msg  string
}

func (e *ValidationError) Error() string { return e.Msg }

func newErr(kind ValidationErrorKind, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// bottomType is the synthetic value pushed by unreachable(): it unifies
// with any type demand until the enclosing control frame's unreachable
// code is exited (spec §4.1 "pops a synthetic bottom type").
var bottomType = ValType{Code: 0xff}

func isBottom(t ValType) bool { return t.Code == 0xff }

// ModuleContext is everything about the enclosing module the validator
// needs to resolve indices. Construction of this (from a decoded Module)
// is store/instantiation machinery and out of scope; callers that only
// want to validate a single function signature in isolation may pass a
// zero-value ModuleContext with just Types populated.
type ModuleContext struct {
	Types        []*SubType
	FuncTypes    []uint32 // FuncTypes[i] indexes Types for function i.
	Tables       []TableType
	Memories     []MemoryType
	Globals      []GlobalType
	Elems        []ValType
	DataCount    int
	HasDataCount bool
	Tags         []uint32 // Tags[i] indexes Types for exception tag i (func type, no results).
}

// FormChecker validates a single function body against its signature and
// the module context that declares it, maintaining the bidirectional
// value/control stacks described in spec §4.1. The zero value is not
// usable; construct with newFormChecker.
type FormChecker struct {
	mod *ModuleContext

	valStack  []ValType
	ctrlStack []ctrlFrame

	locals     []ValType
	localsInit []bool

	// branchSites accumulates every BranchDescriptor produced, keyed by
	// the originating instruction's index. A br_table produces more than
	// one descriptor for the same index (one per table target, plus the
	// default), in the order they appear in the instruction's targets.
	branchSites map[int][]*BranchDescriptor
}

// BranchDescriptor is the validator-computed jump metadata spec §4.1
// attaches to every branch target, consumed by the executor's
// branchToLabel (spec §4.3).
type BranchDescriptor struct {
	StackEraseBegin int
	StackEraseEnd   int
	PCOffset        int
}

func newFormChecker(mod *ModuleContext, params []ValType) *FormChecker {
	return &FormChecker{
		mod:         mod,
		valStack:    append([]ValType{}, params...),
		branchSites: map[int][]*BranchDescriptor{},
	}
}

func (f *FormChecker) push(t ValType) { f.valStack = append(f.valStack, t) }

func (f *FormChecker) pushAll(ts []ValType) {
	f.valStack = append(f.valStack, ts...)
}

// pop removes and returns the top value type, or the bottom type if the
// enclosing frame is already unreachable and the real stack is exhausted
// (spec §4.1, "Unreachable code pops a synthetic bottom type").
func (f *FormChecker) pop() (ValType, error) {
	top := &f.ctrlStack[len(f.ctrlStack)-1]
	if len(f.valStack) == top.height {
		if top.unreachable {
			return bottomType, nil
		}
		return ValType{}, newErr(TypeCheckFailed, "type mismatch: expected 1 value, stack is empty")
	}
	v := f.valStack[len(f.valStack)-1]
	f.valStack = f.valStack[:len(f.valStack)-1]
	return v, nil
}

// popExpect pops one value and checks it matches want (spec matchType),
// allowing the bottom type to satisfy any want.
func (f *FormChecker) popExpect(want ValType) error {
	got, err := f.pop()
	if err != nil {
		return err
	}
	if isBottom(got) || isBottom(want) {
		return nil
	}
	if !f.matchType(got, want) {
		return newErr(TypeCheckFailed, "type mismatch: expected %s, got %s", want, got)
	}
	return nil
}

func (f *FormChecker) popAll(want []ValType) error {
	for i := len(want) - 1; i >= 0; i-- {
		if err := f.popExpect(want[i]); err != nil {
			return err
		}
	}
	return nil
}

// matchType holds iff got is a subtype of want: identical value types,
// got is bottom, or a concrete/abstract reference widening per spec §4.1's
// matchType definition (sharing a top heap type and, for concrete types,
// walking the declared subtype forest).
func (f *FormChecker) matchType(got, want ValType) bool {
	if got == want {
		return true
	}
	if !got.IsRef() || !want.IsRef() {
		return false
	}
	if !want.Nullable && got.Nullable {
		return false
	}
	if got.HeapType == HeapConcrete && want.HeapType == HeapConcrete {
		return MatchConcreteType(f.mod.Types, got.TypeIndex, want.TypeIndex)
	}
	if want.HeapType == HeapConcrete {
		return false // a concrete want needs an identical concrete got, handled above.
	}
	gotTop := got.TopHeapType()
	if got.HeapType == HeapConcrete && f.mod != nil && int(got.TypeIndex) < len(f.mod.Types) {
		gotTop = f.mod.Types[got.TypeIndex].Composite.TopHeapType()
	}
	wantTop := want.TopHeapType()
	if gotTop != wantTop {
		return false
	}
	// want is an abstract heap type at or above got's top: any bottom
	// heap type (none/nofunc/noextern/noexn) matches every type sharing
	// its top; the top type itself only matches want == top.
	switch want.HeapType {
	case HeapAny, HeapFunc, HeapExtern, HeapExn:
		return true
	case HeapEq:
		return got.HeapType == HeapEq || got.HeapType == HeapI31 ||
			got.HeapType == HeapStruct || got.HeapType == HeapArray ||
			got.HeapType == HeapNone || got.HeapType == HeapConcrete
	default:
		return got.HeapType == want.HeapType || got.HeapType == BottomHeapType(wantTop)
	}
}

// unreachable marks the current control frame unreachable: subsequent
// pops are satisfied by the bottom type and pushes are discarded (spec
// §4.1's polymorphic stack after an unconditional control transfer).
func (f *FormChecker) unreachable() {
	top := &f.ctrlStack[len(f.ctrlStack)-1]
	f.valStack = f.valStack[:top.height]
	top.unreachable = true
}
