package internalwasm

import "math"

// Value is a tagged carrier for a single Wasm operand, per spec §3. It holds
// one of i32/i64/f32/f64/v128 or a Reference, tagged by its ValType so the
// validator's and executor's bookkeeping never has to carry types alongside
// values separately.
//
// The numeric variants are stored left-aligned in Lo/Hi so a v128 lane load
// and an i32 load use the same field; ZeroUnusedBits clears everything the
// declared width doesn't cover, which is what invoke and the host boundary
// call before a Value crosses into or out of the engine (spec invariant 2).
type Value struct {
	Lo, Hi uint64
	Type   ValType
	Ref    Reference
}

// I32 constructs an i32 Value: v occupies the 32 low bits of Lo, zero-extended,
// and every other bit is zero.
func I32(v uint32) Value { return Value{Lo: uint64(v), Type: ValTypeI32} }

// I64 constructs an i64 Value.
func I64(v uint64) Value { return Value{Lo: v, Type: ValTypeI64} }

// F32 constructs an f32 Value from its bit pattern.
func F32(v float32) Value { return Value{Lo: uint64(math.Float32bits(v)), Type: ValTypeF32} }

// F64 constructs an f64 Value from its bit pattern.
func F64(v float64) Value { return Value{Lo: math.Float64bits(v), Type: ValTypeF64} }

// V128 constructs a v128 Value from its two 64-bit lanes.
func V128(lo, hi uint64) Value { return Value{Lo: lo, Hi: hi, Type: ValTypeV128} }

// RefValue constructs a reference-typed Value.
func RefValue(r Reference) Value { return Value{Type: r.Type, Ref: r} }

func (v Value) I32() uint32    { return uint32(v.Lo) }
func (v Value) I64() uint64    { return v.Lo }
func (v Value) F32() float32   { return math.Float32frombits(uint32(v.Lo)) }
func (v Value) F64() float64   { return math.Float64frombits(v.Lo) }
func (v Value) V128() (lo, hi uint64) { return v.Lo, v.Hi }

// ZeroUnusedBits overwrites the carrier's bits beyond the declared width with
// zero, so neither side of a host/invoke boundary can observe uninitialized
// or leaked bits (spec §3, invariant 2).
func (v Value) ZeroUnusedBits() Value {
	switch v.Type {
	case ValTypeI32, ValTypeF32:
		v.Lo = uint64(uint32(v.Lo))
		v.Hi = 0
	case ValTypeI64, ValTypeF64:
		v.Hi = 0
	case ValTypeV128:
		// both lanes are significant.
	default:
		// reference types: Lo/Hi carry no numeric payload.
		v.Lo, v.Hi = 0, 0
	}
	return v
}

// Reference is either null or a typed pointer into the store (spec §3). An
// externalized reference wraps an arbitrary host object as externref; Cast
// and Test operations unwrap it transparently via Unwrap.
type Reference struct {
	Type        ValType
	Index       uint32      // index into the owning arena, valid when !Null.
	Null        bool
	Externalized bool
	Host        any // the wrapped host object, set only when Externalized.
}

// NullRef constructs the null reference of the given heap type.
func NullRef(t ValType) Reference { return Reference{Type: t, Null: true} }

// IsNull reports whether r is the null reference.
func (r Reference) IsNull() bool { return r.Null }

// Externalize wraps r as an opaque externref carrying obj, used when a
// concrete GC/func reference crosses into host code as externref.
func (r Reference) Externalize(obj any) Reference {
	r.Externalized = true
	r.Host = obj
	r.Type = ValTypeExternref
	return r
}

// Unwrap returns the underlying host object for an externalized reference,
// transparently passing through non-externalized references unchanged. This
// is what ref.cast/ref.test use so dynamic typing never has to special-case
// externalization.
func (r Reference) Unwrap() any {
	if r.Externalized {
		return r.Host
	}
	return r
}
