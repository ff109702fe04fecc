package internalwasm

import "strings"

// FunctionType is a function signature: ordered parameter and result value
// types. String renders the same "params_results" shorthand the teacher's
// FunctionType.String uses (e.g. "i32f64_null"), extended to ValType's
// richer String for reference/v128 types.
type FunctionType struct {
	Params  []ValType
	Results []ValType
}

func (t *FunctionType) String() string {
	var b strings.Builder
	writeTypes(&b, t.Params)
	b.WriteByte('_')
	writeTypes(&b, t.Results)
	return b.String()
}

func writeTypes(b *strings.Builder, types []ValType) {
	if len(types) == 0 {
		b.WriteString("null")
		return
	}
	for _, t := range types {
		b.WriteString(t.String())
	}
}

// EqualSignature reports whether t and u have identical parameter and
// result type sequences, value-type for value-type. Numeric/v128 types
// compare by Code; reference types additionally need heap-type identity,
// which for concrete indices is left to the caller (matchType handles
// cross-module subtyping, this is plain equality for e.g. call_indirect's
// declared-vs-actual check fast path).
func (t *FunctionType) EqualSignature(u *FunctionType) bool {
	if len(t.Params) != len(u.Params) || len(t.Results) != len(u.Results) {
		return false
	}
	for i, p := range t.Params {
		if p != u.Params[i] {
			return false
		}
	}
	for i, r := range t.Results {
		if r != u.Results[i] {
			return false
		}
	}
	return true
}

// GlobalType describes a declared global: its value type and whether it
// may be mutated after initialization.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// MemoryType describes a declared memory's page-count bounds. Page size is
// fixed at 65536 bytes (spec §3).
type MemoryType struct {
	Min    uint32
	Max    uint32
	HasMax bool
	Shared bool
}

const MemoryPageSize = 65536

// TableType describes a declared table's element type and size bounds.
type TableType struct {
	ElemType ValType
	Min      uint32
	Max      uint32
	HasMax   bool
}
