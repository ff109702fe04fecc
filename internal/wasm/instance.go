package internalwasm

import (
	"context"
	"fmt"
	"sync"

	"github.com/wasmforge/wasmforge/internal/allocator"
)

// FunctionKind distinguishes how a FunctionInstance is actually invoked.
// The executor (internal/engine/executor) switches on this once per call,
// rather than on every instruction, per spec §2.
type FunctionKind byte

const (
	// FunctionKindInterpreted is executed by the bytecode interpreter.
	FunctionKindInterpreted FunctionKind = iota
	// FunctionKindCompiled is an AOT-compiled native function, entered
	// through CompiledEntrypoint's calling convention (spec §2.2). This
	// module does not implement the code generator producing Compiled;
	// it only implements the entry/exit contract a generator must honor.
	FunctionKindCompiled
	// FunctionKindHost is a Go function registered by the embedder.
	FunctionKindHost
)

// FunctionInstance is a function reachable at runtime: its signature, its
// home module (for locals/globals/memory addressing), and the code to run
// for FunctionKindInterpreted, or an opaque native entry point for
// FunctionKindCompiled (spec §2, §2.2).
type FunctionInstance struct {
	Kind FunctionKind
	Type *FunctionType

	// Body is the instruction stream this function runs, set only when
	// Kind == FunctionKindInterpreted. Decoding a binary function body
	// into this form is the Loader's job (out of scope, spec §1); callers
	// construct it directly, the same contract ValidateFunction's own
	// body parameter uses.
	Body []Instruction
	// BranchSites is ValidateFunction's returned per-instruction branch
	// metadata for Body, computed once at validation time and reused by
	// every subsequent call instead of re-validating per invocation.
	BranchSites map[int][]*BranchDescriptor
	// NumLocal is the count of declared (non-parameter) locals, addressed
	// frame-relative starting after the parameters (spec §2.1).
	NumLocal uint32
	// LocalTypes gives the declared type of each of the NumLocal locals,
	// in order, so the executor can default-initialize them (zero for a
	// defaultable type, the null reference of the declared heap type for
	// a nullable reference) without re-deriving types the validator
	// already resolved once.
	LocalTypes []ValType

	// CompiledEntry is the native entry point for Kind ==
	// FunctionKindCompiled, called through CompiledEntrypoint's calling
	// convention; this module treats it as an opaque function pointer it
	// never generates (spec §2.2, "AOT back-end code generator... is not
	// in scope").
	CompiledEntry uintptr

	// GoFunc is the embedder-supplied implementation for Kind ==
	// FunctionKindHost.
	GoFunc func(ctx *CallContext, params []Value) ([]Value, error)

	// Cost is this function's declared metered cost for a single
	// invocation, charged against the caller's ExecutionContext.CostLimit
	// when Kind == FunctionKindHost, same budget the interpreter's
	// per-opcode CostTable draws from. 0 charges the executor's default
	// per-call cost.
	Cost uint64

	// Module is this function's defining instance, used to resolve the
	// local memory/table/global index spaces it closes over.
	Module *ModuleInstance
	// DebugName is used in stack traces (internal/wasmdebug), e.g.
	// "mymodule.add".
	DebugName string
	// TypeIndex is this function's index into Module's type section, used
	// by call_indirect to check signatures without re-deriving them.
	TypeIndex uint32
	// FuncIdx is this function's index into Module.Functions, used by the
	// interpreter stack-trace collector (internal/stacktrace) to name a
	// frame without a linear search over the module's function table.
	FuncIdx uint32
}

// CallContext carries per-call state the executor threads through a host
// function invocation: the calling module instance (for accessing its own
// memory/globals from a host callback), a cancelable context, and a way to
// reenter the guest that shares this invocation's cost/depth accounting
// instead of starting a fresh one.
type CallContext struct {
	Module *ModuleInstance
	Ctx    context.Context

	// Invoke reenters the guest, sharing the calling invocation's frame
	// depth and cost budget rather than resetting them the way starting a
	// brand-new top-level invocation would. Set by the executor for every
	// host call; a host function that calls back into the guest should use
	// this instead of holding onto and reinvoking its own Executor.
	Invoke func(ctx context.Context, fn *FunctionInstance, args []Value) ([]Value, error)
}

// MemoryInstance is a Wasm linear memory: a reserved virtual address range
// (internal/allocator) with a page-granular committed prefix, optionally
// shared across threads for the threads/atomics proposal (spec §3, §4.6).
type MemoryInstance struct {
	reservation    *allocator.Reservation
	Min            uint32
	Max            uint32
	HasMax         bool
	Shared         bool
	committedPages uint32

	// mux guards Grow against concurrent growth on a shared memory; reads
	// and writes to already-committed bytes are not synchronized here,
	// matching the Wasm threads proposal's relaxed-by-default semantics.
	mux sync.Mutex
}

// NewMemoryInstance reserves backing virtual memory for a linear memory
// declared with the given limits, committing Min pages up front. The
// allocator always backs at least one page even when min is 0, but
// PageSize()/Buffer() report the memory's true (possibly empty) size.
func NewMemoryInstance(min, max uint32, hasMax, shared bool) (*MemoryInstance, error) {
	pages := min
	if pages == 0 {
		pages = 1
	}
	r, err := allocator.NewReservation(pages)
	if err != nil {
		return nil, fmt.Errorf("wasm: allocating memory: %w", err)
	}
	return &MemoryInstance{
		reservation: r, Min: min, Max: max, HasMax: hasMax, Shared: shared,
		committedPages: min,
	}, nil
}

// Buffer returns the committed region backing this memory, sized to
// PageSize() * 65536 bytes.
func (m *MemoryInstance) Buffer() []byte {
	return m.reservation.Bytes()[:m.committedPages*MemoryPageSize]
}

// PageSize returns the number of committed 65536-byte pages.
func (m *MemoryInstance) PageSize() uint32 { return m.committedPages }

// Grow commits delta additional pages, returning the previous page count,
// or ^uint32(0) if growth would exceed Max or the underlying reservation
// (spec §3's memory.grow failure semantics: report failure, never trap).
func (m *MemoryInstance) Grow(delta uint32) uint32 {
	m.mux.Lock()
	defer m.mux.Unlock()

	prev := m.committedPages
	if delta == 0 {
		return prev
	}
	next := prev + delta
	if next < prev { // overflow
		return ^uint32(0)
	}
	if m.HasMax && next > m.Max {
		return ^uint32(0)
	}
	if _, err := m.reservation.Grow(next); err != nil {
		return ^uint32(0)
	}
	m.committedPages = next
	return prev
}

// Release returns this memory's virtual address reservation to the OS.
func (m *MemoryInstance) Release() error { return m.reservation.Release() }

// TableInstance is an ordered, resizable array of typed references (spec
// §3): funcref for the original MVP call_indirect use case, or any
// reference type under the GC/function-references proposals.
type TableInstance struct {
	ElemType ValType
	Min      uint32
	Max      uint32
	HasMax   bool
	Elements []Reference
}

// NewTableInstance constructs a table with Min elements, all initialized
// to the null reference of elemType.
func NewTableInstance(elemType ValType, min, max uint32, hasMax bool) *TableInstance {
	elems := make([]Reference, min)
	for i := range elems {
		elems[i] = NullRef(elemType)
	}
	return &TableInstance{ElemType: elemType, Min: min, Max: max, HasMax: hasMax, Elements: elems}
}

// Grow appends delta elements initialized to init, returning the previous
// size, or ^uint32(0) on failure (spec §3's table.grow failure semantics).
func (t *TableInstance) Grow(delta uint32, init Reference) uint32 {
	prev := uint32(len(t.Elements))
	next := prev + delta
	if next < prev {
		return ^uint32(0)
	}
	if t.HasMax && next > t.Max {
		return ^uint32(0)
	}
	grown := make([]Reference, delta)
	for i := range grown {
		grown[i] = init
	}
	t.Elements = append(t.Elements, grown...)
	return prev
}

// GlobalInstance is a single mutable or immutable global cell (spec §3).
type GlobalInstance struct {
	Type    GlobalType
	Val     Value
	mux     sync.Mutex
}

// Get returns the current value, synchronized so a shared-memory host
// thread can safely read a global concurrently with a guest write.
func (g *GlobalInstance) Get() Value {
	g.mux.Lock()
	defer g.mux.Unlock()
	return g.Val
}

// Set overwrites the current value; callers must have already validated
// g.Type.Mutable (the validator rejects global.set on an immutable global
// statically, spec §4).
func (g *GlobalInstance) Set(v Value) {
	g.mux.Lock()
	defer g.mux.Unlock()
	g.Val = v
}

// ElementInstance is a passive element segment: a list of references
// available to table.init until dropped by elem.drop (spec §3).
type ElementInstance struct {
	Type     ValType
	Elements []Reference
	dropped  bool
}

// Drop marks this segment unavailable to future table.init calls.
func (e *ElementInstance) Drop() { e.dropped = true }

// Dropped reports whether elem.drop has already run on this segment.
func (e *ElementInstance) Dropped() bool { return e.dropped }

// DataInstance is a passive data segment: raw bytes available to
// memory.init until dropped by data.drop (spec §3).
type DataInstance struct {
	Bytes   []byte
	dropped bool
}

// Drop marks this segment unavailable to future memory.init calls.
func (d *DataInstance) Drop() { d.dropped = true }

// Dropped reports whether data.drop has already run on this segment.
func (d *DataInstance) Dropped() bool { return d.dropped }

// StructObject is a GC struct heap object: its declared type and field
// values in declaration order, storage-widened per ValType.Defaultable's
// packed-field rule (spec §3's GC proposal).
type StructObject struct {
	TypeIndex uint32
	Fields    []Value
}

// ArrayObject is a GC array heap object: its declared type, element
// values, and length (spec §3's GC proposal).
type ArrayObject struct {
	TypeIndex uint32
	Elems     []Value
}

// GCHeap is the arena struct/array references index into (Reference.Index),
// analogous to Functions/Tables being the arenas funcref/externref-wrapped
// indices address. One heap per ModuleInstance: the teacher's engine
// snapshot predates the GC proposal and has no equivalent allocator, so
// this is sized to spec §3/§4.6's description of GC objects as
// individually heap-allocated rather than living in linear memory.
type GCHeap struct {
	objects []any
}

// Alloc appends obj (a *StructObject or *ArrayObject) and returns its index.
func (h *GCHeap) Alloc(obj any) uint32 {
	h.objects = append(h.objects, obj)
	return uint32(len(h.objects) - 1)
}

// Get returns the object previously stored at idx by Alloc.
func (h *GCHeap) Get(idx uint32) any { return h.objects[idx] }

// ModuleInstance is the minimal runtime-addressable view of an
// instantiated module this package needs: its own function/memory/table/
// global index spaces. Binding imports, running start functions, and
// building this from a decoded Module is store/instantiation machinery
// (spec §1, out of scope); callers construct a ModuleInstance directly.
type ModuleInstance struct {
	Name      string
	Functions []*FunctionInstance
	Memory    *MemoryInstance
	Tables    []*TableInstance
	Globals   []*GlobalInstance
	Elements  []*ElementInstance
	DataSegs  []*DataInstance
	Types     []*SubType
	Heap      GCHeap
	// Tags mirrors the validator's ModuleContext.Tags: Tags[i] indexes
	// Types for exception tag i's function type (params only, no
	// results), so the executor can recover a thrown tag's payload arity
	// without re-deriving it from the module that declared it.
	Tags []uint32
}
