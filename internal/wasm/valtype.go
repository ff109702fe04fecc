package internalwasm

import "fmt"

// ValType is the closed set of codes spec §3 describes: the four numeric
// types, v128, the two packed storage types used only inside struct/array
// fields, and ref/refnull over either an abstract heap type or a concrete
// type index.
//
// This mirrors api.ValueType's encoding (see the teacher's api/wasm.go,
// ValueTypeI32 == 0x7f etc.) but widens it to carry the GC proposal's
// reference surface, which the binary-format byte alone cannot express for
// concrete type indices.
type ValType struct {
	// Code is one of the Code* constants below.
	Code byte
	// Nullable is only meaningful when Code is CodeRef.
	Nullable bool
	// HeapType is only meaningful when Code is CodeRef. It is one of the
	// Heap* abstract constants, or HeapConcrete with TypeIndex set.
	HeapType byte
	// TypeIndex indexes into the module's declared type section when
	// HeapType == HeapConcrete.
	TypeIndex uint32
}

const (
	CodeI32 byte = iota
	CodeI64
	CodeF32
	CodeF64
	CodeV128
	CodeI8  // packed struct/array storage type only.
	CodeI16 // packed struct/array storage type only.
	CodeRef
)

// Abstract heap types, spec §3/GLOSSARY "top heap type".
const (
	HeapFunc byte = iota
	HeapExtern
	HeapAny
	HeapEq
	HeapI31
	HeapStruct
	HeapArray
	HeapExn
	HeapNone
	HeapNofunc
	HeapNoextern
	HeapNoexn
	HeapConcrete // HeapType field unused; TypeIndex names the declared type.
)

var (
	ValTypeI32  = ValType{Code: CodeI32}
	ValTypeI64  = ValType{Code: CodeI64}
	ValTypeF32  = ValType{Code: CodeF32}
	ValTypeF64  = ValType{Code: CodeF64}
	ValTypeV128 = ValType{Code: CodeV128}
	ValTypeI8   = ValType{Code: CodeI8}
	ValTypeI16  = ValType{Code: CodeI16}

	ValTypeFuncref   = ValType{Code: CodeRef, Nullable: true, HeapType: HeapFunc}
	ValTypeExternref = ValType{Code: CodeRef, Nullable: true, HeapType: HeapExtern}
	ValTypeAnyref    = ValType{Code: CodeRef, Nullable: true, HeapType: HeapAny}
)

// IsNumeric reports whether t is i32/i64/f32/f64/v128.
func (t ValType) IsNumeric() bool { return t.Code <= CodeV128 }

// IsRef reports whether t is a (possibly non-nullable) reference type.
func (t ValType) IsRef() bool { return t.Code == CodeRef }

// IsPackedStorage reports whether t is only valid as a struct/array field
// storage type (i8/i16), never as an operand type.
func (t ValType) IsPackedStorage() bool { return t.Code == CodeI8 || t.Code == CodeI16 }

// Defaultable reports whether a local/global of this type may be
// zero-initialized. Non-nullable references are not defaultable (spec §4.1,
// "Locals carry an initialization flag").
func (t ValType) Defaultable() bool {
	return !t.IsRef() || t.Nullable
}

// AsNonNull strips nullability, the effect of ref.as_non_null (spec §4.1).
func (t ValType) AsNonNull() ValType {
	t.Nullable = false
	return t
}

// TopHeapType lowers t to the maximal abstract heap type reachable by
// widening (spec GLOSSARY "Top heap type"): none/eq/i31/struct/array widen
// to any, and nofunc/noextern/noexn to func/extern/exn; func/extern/any/exn
// are their own top. A concrete type index always yields any here, whatever
// its composite kind.
func (t ValType) TopHeapType() byte {
	switch t.HeapType {
	case HeapNone, HeapEq, HeapI31, HeapStruct, HeapArray:
		return HeapAny
	case HeapNofunc:
		return HeapFunc
	case HeapNoextern:
		return HeapExtern
	case HeapNoexn:
		return HeapExn
	case HeapConcrete:
		// A concrete type's top is whichever of func/any its composite
		// kind belongs to; callers that need this resolve it via the
		// module's declared SubType (see SubType.TopHeapType).
		return HeapAny
	default:
		return t.HeapType
	}
}

// BottomHeapType returns the minimal (uninhabited-by-default) heap type
// below t's top, used for null-ref typing: none/nofunc/noextern/noexn.
func BottomHeapType(top byte) byte {
	switch top {
	case HeapFunc:
		return HeapNofunc
	case HeapExtern:
		return HeapNoextern
	case HeapExn:
		return HeapNoexn
	default:
		return HeapNone
	}
}

func (t ValType) String() string {
	switch t.Code {
	case CodeI32:
		return "i32"
	case CodeI64:
		return "i64"
	case CodeF32:
		return "f32"
	case CodeF64:
		return "f64"
	case CodeV128:
		return "v128"
	case CodeI8:
		return "i8"
	case CodeI16:
		return "i16"
	case CodeRef:
		name := heapTypeName(t.HeapType, t.TypeIndex)
		if t.Nullable {
			return fmt.Sprintf("(ref null %s)", name)
		}
		return fmt.Sprintf("(ref %s)", name)
	default:
		return fmt.Sprintf("unknown(0x%x)", t.Code)
	}
}

func heapTypeName(h byte, idx uint32) string {
	switch h {
	case HeapFunc:
		return "func"
	case HeapExtern:
		return "extern"
	case HeapAny:
		return "any"
	case HeapEq:
		return "eq"
	case HeapI31:
		return "i31"
	case HeapStruct:
		return "struct"
	case HeapArray:
		return "array"
	case HeapExn:
		return "exn"
	case HeapNone:
		return "none"
	case HeapNofunc:
		return "nofunc"
	case HeapNoextern:
		return "noextern"
	case HeapNoexn:
		return "noexn"
	case HeapConcrete:
		return fmt.Sprintf("%d", idx)
	default:
		return "unknown"
	}
}
