package executor

import (
	"math"
	"math/bits"

	"github.com/wasmforge/wasmforge/internal/engine/stack"
	"github.com/wasmforge/wasmforge/internal/moremath"
	wasm "github.com/wasmforge/wasmforge/internal/wasm"
	"github.com/wasmforge/wasmforge/internal/wasmruntime"
)

// execNumeric runs a const push or a NumericOp-tagged arithmetic/comparison/
// conversion instruction against sm. OpConstI32/I64/F32/F64/V128 read their
// literal straight out of instr.Imm; everything else switches on
// instr.Imm.NumericOp, the fine-grained identity FuncIdx's shape class
// doesn't carry.
func (e *Executor) execNumeric(instr wasm.Instruction, sm *stack.Manager) error {
	switch instr.Op {
	case wasm.OpConstI32:
		sm.Push(wasm.I32(uint32(instr.Imm.ConstI32)))
		return nil
	case wasm.OpConstI64:
		sm.Push(wasm.I64(uint64(instr.Imm.ConstI64)))
		return nil
	case wasm.OpConstF32:
		sm.Push(wasm.F32(instr.Imm.ConstF32))
		return nil
	case wasm.OpConstF64:
		sm.Push(wasm.F64(instr.Imm.ConstF64))
		return nil
	case wasm.OpConstV128:
		sm.Push(wasm.V128(instr.Imm.ConstV128Lo, instr.Imm.ConstV128Hi))
		return nil
	}

	switch instr.Imm.NumericOp {
	// i32 comparisons
	case wasm.NumI32Eqz:
		sm.Push(boolVal(sm.Pop().I32() == 0))
	case wasm.NumI32Eq:
		v2, v1 := sm.Pop().I32(), sm.Pop().I32()
		sm.Push(boolVal(v1 == v2))
	case wasm.NumI32Ne:
		v2, v1 := sm.Pop().I32(), sm.Pop().I32()
		sm.Push(boolVal(v1 != v2))
	case wasm.NumI32LtS:
		v2, v1 := int32(sm.Pop().I32()), int32(sm.Pop().I32())
		sm.Push(boolVal(v1 < v2))
	case wasm.NumI32LtU:
		v2, v1 := sm.Pop().I32(), sm.Pop().I32()
		sm.Push(boolVal(v1 < v2))
	case wasm.NumI32GtS:
		v2, v1 := int32(sm.Pop().I32()), int32(sm.Pop().I32())
		sm.Push(boolVal(v1 > v2))
	case wasm.NumI32GtU:
		v2, v1 := sm.Pop().I32(), sm.Pop().I32()
		sm.Push(boolVal(v1 > v2))
	case wasm.NumI32LeS:
		v2, v1 := int32(sm.Pop().I32()), int32(sm.Pop().I32())
		sm.Push(boolVal(v1 <= v2))
	case wasm.NumI32LeU:
		v2, v1 := sm.Pop().I32(), sm.Pop().I32()
		sm.Push(boolVal(v1 <= v2))
	case wasm.NumI32GeS:
		v2, v1 := int32(sm.Pop().I32()), int32(sm.Pop().I32())
		sm.Push(boolVal(v1 >= v2))
	case wasm.NumI32GeU:
		v2, v1 := sm.Pop().I32(), sm.Pop().I32()
		sm.Push(boolVal(v1 >= v2))

	// i64 comparisons
	case wasm.NumI64Eqz:
		sm.Push(boolVal(sm.Pop().I64() == 0))
	case wasm.NumI64Eq:
		v2, v1 := sm.Pop().I64(), sm.Pop().I64()
		sm.Push(boolVal(v1 == v2))
	case wasm.NumI64Ne:
		v2, v1 := sm.Pop().I64(), sm.Pop().I64()
		sm.Push(boolVal(v1 != v2))
	case wasm.NumI64LtS:
		v2, v1 := int64(sm.Pop().I64()), int64(sm.Pop().I64())
		sm.Push(boolVal(v1 < v2))
	case wasm.NumI64LtU:
		v2, v1 := sm.Pop().I64(), sm.Pop().I64()
		sm.Push(boolVal(v1 < v2))
	case wasm.NumI64GtS:
		v2, v1 := int64(sm.Pop().I64()), int64(sm.Pop().I64())
		sm.Push(boolVal(v1 > v2))
	case wasm.NumI64GtU:
		v2, v1 := sm.Pop().I64(), sm.Pop().I64()
		sm.Push(boolVal(v1 > v2))
	case wasm.NumI64LeS:
		v2, v1 := int64(sm.Pop().I64()), int64(sm.Pop().I64())
		sm.Push(boolVal(v1 <= v2))
	case wasm.NumI64LeU:
		v2, v1 := sm.Pop().I64(), sm.Pop().I64()
		sm.Push(boolVal(v1 <= v2))
	case wasm.NumI64GeS:
		v2, v1 := int64(sm.Pop().I64()), int64(sm.Pop().I64())
		sm.Push(boolVal(v1 >= v2))
	case wasm.NumI64GeU:
		v2, v1 := sm.Pop().I64(), sm.Pop().I64()
		sm.Push(boolVal(v1 >= v2))

	// float comparisons
	case wasm.NumF32Eq:
		v2, v1 := sm.Pop().F32(), sm.Pop().F32()
		sm.Push(boolVal(v1 == v2))
	case wasm.NumF32Ne:
		v2, v1 := sm.Pop().F32(), sm.Pop().F32()
		sm.Push(boolVal(v1 != v2))
	case wasm.NumF32Lt:
		v2, v1 := sm.Pop().F32(), sm.Pop().F32()
		sm.Push(boolVal(v1 < v2))
	case wasm.NumF32Gt:
		v2, v1 := sm.Pop().F32(), sm.Pop().F32()
		sm.Push(boolVal(v1 > v2))
	case wasm.NumF32Le:
		v2, v1 := sm.Pop().F32(), sm.Pop().F32()
		sm.Push(boolVal(v1 <= v2))
	case wasm.NumF32Ge:
		v2, v1 := sm.Pop().F32(), sm.Pop().F32()
		sm.Push(boolVal(v1 >= v2))
	case wasm.NumF64Eq:
		v2, v1 := sm.Pop().F64(), sm.Pop().F64()
		sm.Push(boolVal(v1 == v2))
	case wasm.NumF64Ne:
		v2, v1 := sm.Pop().F64(), sm.Pop().F64()
		sm.Push(boolVal(v1 != v2))
	case wasm.NumF64Lt:
		v2, v1 := sm.Pop().F64(), sm.Pop().F64()
		sm.Push(boolVal(v1 < v2))
	case wasm.NumF64Gt:
		v2, v1 := sm.Pop().F64(), sm.Pop().F64()
		sm.Push(boolVal(v1 > v2))
	case wasm.NumF64Le:
		v2, v1 := sm.Pop().F64(), sm.Pop().F64()
		sm.Push(boolVal(v1 <= v2))
	case wasm.NumF64Ge:
		v2, v1 := sm.Pop().F64(), sm.Pop().F64()
		sm.Push(boolVal(v1 >= v2))

	// i32 arithmetic
	case wasm.NumI32Clz:
		sm.Push(wasm.I32(uint32(bits.LeadingZeros32(sm.Pop().I32()))))
	case wasm.NumI32Ctz:
		sm.Push(wasm.I32(uint32(bits.TrailingZeros32(sm.Pop().I32()))))
	case wasm.NumI32Popcnt:
		sm.Push(wasm.I32(uint32(bits.OnesCount32(sm.Pop().I32()))))
	case wasm.NumI32Add:
		v2, v1 := sm.Pop().I32(), sm.Pop().I32()
		sm.Push(wasm.I32(v1 + v2))
	case wasm.NumI32Sub:
		v2, v1 := sm.Pop().I32(), sm.Pop().I32()
		sm.Push(wasm.I32(v1 - v2))
	case wasm.NumI32Mul:
		v2, v1 := sm.Pop().I32(), sm.Pop().I32()
		sm.Push(wasm.I32(v1 * v2))
	case wasm.NumI32DivS:
		d, n := int32(sm.Pop().I32()), int32(sm.Pop().I32())
		if d == 0 {
			return wasmruntime.ErrRuntimeIntegerDivideByZero
		}
		if n == math.MinInt32 && d == -1 {
			return wasmruntime.ErrRuntimeIntegerOverflow
		}
		sm.Push(wasm.I32(uint32(n / d)))
	case wasm.NumI32DivU:
		d, n := sm.Pop().I32(), sm.Pop().I32()
		if d == 0 {
			return wasmruntime.ErrRuntimeIntegerDivideByZero
		}
		sm.Push(wasm.I32(n / d))
	case wasm.NumI32RemS:
		d, n := int32(sm.Pop().I32()), int32(sm.Pop().I32())
		if d == 0 {
			return wasmruntime.ErrRuntimeIntegerDivideByZero
		}
		sm.Push(wasm.I32(uint32(n % d)))
	case wasm.NumI32RemU:
		d, n := sm.Pop().I32(), sm.Pop().I32()
		if d == 0 {
			return wasmruntime.ErrRuntimeIntegerDivideByZero
		}
		sm.Push(wasm.I32(n % d))
	case wasm.NumI32And:
		v2, v1 := sm.Pop().I32(), sm.Pop().I32()
		sm.Push(wasm.I32(v1 & v2))
	case wasm.NumI32Or:
		v2, v1 := sm.Pop().I32(), sm.Pop().I32()
		sm.Push(wasm.I32(v1 | v2))
	case wasm.NumI32Xor:
		v2, v1 := sm.Pop().I32(), sm.Pop().I32()
		sm.Push(wasm.I32(v1 ^ v2))
	case wasm.NumI32Shl:
		v2, v1 := sm.Pop().I32(), sm.Pop().I32()
		sm.Push(wasm.I32(v1 << (v2 % 32)))
	case wasm.NumI32ShrS:
		v2, v1 := sm.Pop().I32(), int32(sm.Pop().I32())
		sm.Push(wasm.I32(uint32(v1 >> (v2 % 32))))
	case wasm.NumI32ShrU:
		v2, v1 := sm.Pop().I32(), sm.Pop().I32()
		sm.Push(wasm.I32(v1 >> (v2 % 32)))
	case wasm.NumI32Rotl:
		v2, v1 := sm.Pop().I32(), sm.Pop().I32()
		sm.Push(wasm.I32(bits.RotateLeft32(v1, int(v2))))
	case wasm.NumI32Rotr:
		v2, v1 := sm.Pop().I32(), sm.Pop().I32()
		sm.Push(wasm.I32(bits.RotateLeft32(v1, -int(v2))))

	// i64 arithmetic
	case wasm.NumI64Clz:
		sm.Push(wasm.I64(uint64(bits.LeadingZeros64(sm.Pop().I64()))))
	case wasm.NumI64Ctz:
		sm.Push(wasm.I64(uint64(bits.TrailingZeros64(sm.Pop().I64()))))
	case wasm.NumI64Popcnt:
		sm.Push(wasm.I64(uint64(bits.OnesCount64(sm.Pop().I64()))))
	case wasm.NumI64Add:
		v2, v1 := sm.Pop().I64(), sm.Pop().I64()
		sm.Push(wasm.I64(v1 + v2))
	case wasm.NumI64Sub:
		v2, v1 := sm.Pop().I64(), sm.Pop().I64()
		sm.Push(wasm.I64(v1 - v2))
	case wasm.NumI64Mul:
		v2, v1 := sm.Pop().I64(), sm.Pop().I64()
		sm.Push(wasm.I64(v1 * v2))
	case wasm.NumI64DivS:
		d, n := int64(sm.Pop().I64()), int64(sm.Pop().I64())
		if d == 0 {
			return wasmruntime.ErrRuntimeIntegerDivideByZero
		}
		if n == math.MinInt64 && d == -1 {
			return wasmruntime.ErrRuntimeIntegerOverflow
		}
		sm.Push(wasm.I64(uint64(n / d)))
	case wasm.NumI64DivU:
		d, n := sm.Pop().I64(), sm.Pop().I64()
		if d == 0 {
			return wasmruntime.ErrRuntimeIntegerDivideByZero
		}
		sm.Push(wasm.I64(n / d))
	case wasm.NumI64RemS:
		d, n := int64(sm.Pop().I64()), int64(sm.Pop().I64())
		if d == 0 {
			return wasmruntime.ErrRuntimeIntegerDivideByZero
		}
		sm.Push(wasm.I64(uint64(n % d)))
	case wasm.NumI64RemU:
		d, n := sm.Pop().I64(), sm.Pop().I64()
		if d == 0 {
			return wasmruntime.ErrRuntimeIntegerDivideByZero
		}
		sm.Push(wasm.I64(n % d))
	case wasm.NumI64And:
		v2, v1 := sm.Pop().I64(), sm.Pop().I64()
		sm.Push(wasm.I64(v1 & v2))
	case wasm.NumI64Or:
		v2, v1 := sm.Pop().I64(), sm.Pop().I64()
		sm.Push(wasm.I64(v1 | v2))
	case wasm.NumI64Xor:
		v2, v1 := sm.Pop().I64(), sm.Pop().I64()
		sm.Push(wasm.I64(v1 ^ v2))
	case wasm.NumI64Shl:
		v2, v1 := sm.Pop().I64(), sm.Pop().I64()
		sm.Push(wasm.I64(v1 << (v2 % 64)))
	case wasm.NumI64ShrS:
		v2, v1 := sm.Pop().I64(), int64(sm.Pop().I64())
		sm.Push(wasm.I64(uint64(v1 >> (v2 % 64))))
	case wasm.NumI64ShrU:
		v2, v1 := sm.Pop().I64(), sm.Pop().I64()
		sm.Push(wasm.I64(v1 >> (v2 % 64)))
	case wasm.NumI64Rotl:
		v2, v1 := sm.Pop().I64(), sm.Pop().I64()
		sm.Push(wasm.I64(bits.RotateLeft64(v1, int(v2))))
	case wasm.NumI64Rotr:
		v2, v1 := sm.Pop().I64(), sm.Pop().I64()
		sm.Push(wasm.I64(bits.RotateLeft64(v1, -int(v2))))

	// f32 unary/binary
	case wasm.NumF32Abs:
		sm.Push(wasm.F32(float32(math.Abs(float64(sm.Pop().F32())))))
	case wasm.NumF32Neg:
		sm.Push(wasm.F32(-sm.Pop().F32()))
	case wasm.NumF32Ceil:
		sm.Push(wasm.F32(float32(math.Ceil(float64(sm.Pop().F32())))))
	case wasm.NumF32Floor:
		sm.Push(wasm.F32(float32(math.Floor(float64(sm.Pop().F32())))))
	case wasm.NumF32Trunc:
		sm.Push(wasm.F32(float32(math.Trunc(float64(sm.Pop().F32())))))
	case wasm.NumF32Nearest:
		sm.Push(wasm.F32(moremath.WasmCompatNearestF32(sm.Pop().F32())))
	case wasm.NumF32Sqrt:
		sm.Push(wasm.F32(float32(math.Sqrt(float64(sm.Pop().F32())))))
	case wasm.NumF32Add:
		v2, v1 := sm.Pop().F32(), sm.Pop().F32()
		sm.Push(wasm.F32(v1 + v2))
	case wasm.NumF32Sub:
		v2, v1 := sm.Pop().F32(), sm.Pop().F32()
		sm.Push(wasm.F32(v1 - v2))
	case wasm.NumF32Mul:
		v2, v1 := sm.Pop().F32(), sm.Pop().F32()
		sm.Push(wasm.F32(v1 * v2))
	case wasm.NumF32Div:
		v2, v1 := sm.Pop().F32(), sm.Pop().F32()
		sm.Push(wasm.F32(v1 / v2))
	case wasm.NumF32Min:
		v2, v1 := sm.Pop().F32(), sm.Pop().F32()
		sm.Push(wasm.F32(float32(moremath.WasmCompatMin(float64(v1), float64(v2)))))
	case wasm.NumF32Max:
		v2, v1 := sm.Pop().F32(), sm.Pop().F32()
		sm.Push(wasm.F32(float32(moremath.WasmCompatMax(float64(v1), float64(v2)))))
	case wasm.NumF32Copysign:
		v2, v1 := sm.Pop().F32(), sm.Pop().F32()
		sm.Push(wasm.F32(float32(math.Copysign(float64(v1), float64(v2)))))

	// f64 unary/binary
	case wasm.NumF64Abs:
		sm.Push(wasm.F64(math.Abs(sm.Pop().F64())))
	case wasm.NumF64Neg:
		sm.Push(wasm.F64(-sm.Pop().F64()))
	case wasm.NumF64Ceil:
		sm.Push(wasm.F64(math.Ceil(sm.Pop().F64())))
	case wasm.NumF64Floor:
		sm.Push(wasm.F64(math.Floor(sm.Pop().F64())))
	case wasm.NumF64Trunc:
		sm.Push(wasm.F64(math.Trunc(sm.Pop().F64())))
	case wasm.NumF64Nearest:
		sm.Push(wasm.F64(moremath.WasmCompatNearestF64(sm.Pop().F64())))
	case wasm.NumF64Sqrt:
		sm.Push(wasm.F64(math.Sqrt(sm.Pop().F64())))
	case wasm.NumF64Add:
		v2, v1 := sm.Pop().F64(), sm.Pop().F64()
		sm.Push(wasm.F64(v1 + v2))
	case wasm.NumF64Sub:
		v2, v1 := sm.Pop().F64(), sm.Pop().F64()
		sm.Push(wasm.F64(v1 - v2))
	case wasm.NumF64Mul:
		v2, v1 := sm.Pop().F64(), sm.Pop().F64()
		sm.Push(wasm.F64(v1 * v2))
	case wasm.NumF64Div:
		v2, v1 := sm.Pop().F64(), sm.Pop().F64()
		sm.Push(wasm.F64(v1 / v2))
	case wasm.NumF64Min:
		v2, v1 := sm.Pop().F64(), sm.Pop().F64()
		sm.Push(wasm.F64(moremath.WasmCompatMin(v1, v2)))
	case wasm.NumF64Max:
		v2, v1 := sm.Pop().F64(), sm.Pop().F64()
		sm.Push(wasm.F64(moremath.WasmCompatMax(v1, v2)))
	case wasm.NumF64Copysign:
		v2, v1 := sm.Pop().F64(), sm.Pop().F64()
		sm.Push(wasm.F64(math.Copysign(v1, v2)))

	// conversions
	case wasm.NumI32WrapI64:
		sm.Push(wasm.I32(uint32(sm.Pop().I64())))
	case wasm.NumI32TruncF32S:
		v, err := truncToInt(float64(sm.Pop().F32()), math.MinInt32, math.MaxInt32, false, false)
		if err != nil {
			return err
		}
		sm.Push(wasm.I32(uint32(int32(v))))
	case wasm.NumI32TruncF32U:
		v, err := truncToInt(float64(sm.Pop().F32()), 0, math.MaxUint32, false, false)
		if err != nil {
			return err
		}
		sm.Push(wasm.I32(uint32(v)))
	case wasm.NumI32TruncF64S:
		v, err := truncToInt(sm.Pop().F64(), math.MinInt32, math.MaxInt32, false, false)
		if err != nil {
			return err
		}
		sm.Push(wasm.I32(uint32(int32(v))))
	case wasm.NumI32TruncF64U:
		v, err := truncToInt(sm.Pop().F64(), 0, math.MaxUint32, false, false)
		if err != nil {
			return err
		}
		sm.Push(wasm.I32(uint32(v)))
	case wasm.NumI64ExtendI32S:
		sm.Push(wasm.I64(uint64(int64(int32(sm.Pop().I32())))))
	case wasm.NumI64ExtendI32U:
		sm.Push(wasm.I64(uint64(sm.Pop().I32())))
	case wasm.NumI64TruncF32S:
		v, err := truncToInt(float64(sm.Pop().F32()), math.MinInt64, math.MaxInt64, true, false)
		if err != nil {
			return err
		}
		sm.Push(wasm.I64(uint64(int64(v))))
	case wasm.NumI64TruncF32U:
		v, err := truncToInt(float64(sm.Pop().F32()), 0, math.MaxUint64, true, false)
		if err != nil {
			return err
		}
		sm.Push(wasm.I64(uint64(v)))
	case wasm.NumI64TruncF64S:
		v, err := truncToInt(sm.Pop().F64(), math.MinInt64, math.MaxInt64, true, false)
		if err != nil {
			return err
		}
		sm.Push(wasm.I64(uint64(int64(v))))
	case wasm.NumI64TruncF64U:
		v, err := truncToInt(sm.Pop().F64(), 0, math.MaxUint64, true, false)
		if err != nil {
			return err
		}
		sm.Push(wasm.I64(uint64(v)))
	case wasm.NumF32ConvertI32S:
		sm.Push(wasm.F32(float32(int32(sm.Pop().I32()))))
	case wasm.NumF32ConvertI32U:
		sm.Push(wasm.F32(float32(sm.Pop().I32())))
	case wasm.NumF32ConvertI64S:
		sm.Push(wasm.F32(float32(int64(sm.Pop().I64()))))
	case wasm.NumF32ConvertI64U:
		sm.Push(wasm.F32(float32(sm.Pop().I64())))
	case wasm.NumF32DemoteF64:
		sm.Push(wasm.F32(float32(sm.Pop().F64())))
	case wasm.NumF64ConvertI32S:
		sm.Push(wasm.F64(float64(int32(sm.Pop().I32()))))
	case wasm.NumF64ConvertI32U:
		sm.Push(wasm.F64(float64(sm.Pop().I32())))
	case wasm.NumF64ConvertI64S:
		sm.Push(wasm.F64(float64(int64(sm.Pop().I64()))))
	case wasm.NumF64ConvertI64U:
		sm.Push(wasm.F64(float64(sm.Pop().I64())))
	case wasm.NumF64PromoteF32:
		sm.Push(wasm.F64(float64(sm.Pop().F32())))
	case wasm.NumI32ReinterpretF32:
		sm.Push(wasm.I32(uint32(math.Float32bits(sm.Pop().F32()))))
	case wasm.NumI64ReinterpretF64:
		sm.Push(wasm.I64(math.Float64bits(sm.Pop().F64())))
	case wasm.NumF32ReinterpretI32:
		sm.Push(wasm.F32(math.Float32frombits(sm.Pop().I32())))
	case wasm.NumF64ReinterpretI64:
		sm.Push(wasm.F64(math.Float64frombits(sm.Pop().I64())))
	case wasm.NumI32Extend8S:
		sm.Push(wasm.I32(uint32(int32(int8(sm.Pop().I32())))))
	case wasm.NumI32Extend16S:
		sm.Push(wasm.I32(uint32(int32(int16(sm.Pop().I32())))))
	case wasm.NumI64Extend8S:
		sm.Push(wasm.I64(uint64(int64(int8(sm.Pop().I64())))))
	case wasm.NumI64Extend16S:
		sm.Push(wasm.I64(uint64(int64(int16(sm.Pop().I64())))))
	case wasm.NumI64Extend32S:
		sm.Push(wasm.I64(uint64(int64(int32(sm.Pop().I64())))))

	// saturating truncations (never trap; clamp to range instead)
	case wasm.NumI32TruncSatF32S:
		v, _ := truncToInt(float64(sm.Pop().F32()), math.MinInt32, math.MaxInt32, false, true)
		sm.Push(wasm.I32(uint32(int32(v))))
	case wasm.NumI32TruncSatF32U:
		v, _ := truncToInt(float64(sm.Pop().F32()), 0, math.MaxUint32, false, true)
		sm.Push(wasm.I32(uint32(v)))
	case wasm.NumI32TruncSatF64S:
		v, _ := truncToInt(sm.Pop().F64(), math.MinInt32, math.MaxInt32, false, true)
		sm.Push(wasm.I32(uint32(int32(v))))
	case wasm.NumI32TruncSatF64U:
		v, _ := truncToInt(sm.Pop().F64(), 0, math.MaxUint32, false, true)
		sm.Push(wasm.I32(uint32(v)))
	case wasm.NumI64TruncSatF32S:
		// float64(MaxInt64) is 2^63, which int64 cannot hold: clamp explicitly.
		if v, _ := truncToInt(float64(sm.Pop().F32()), math.MinInt64, math.MaxInt64, true, true); v >= math.MaxInt64 {
			sm.Push(wasm.I64(math.MaxInt64))
		} else {
			sm.Push(wasm.I64(uint64(int64(v))))
		}
	case wasm.NumI64TruncSatF32U:
		if v, _ := truncToInt(float64(sm.Pop().F32()), 0, math.MaxUint64, true, true); v >= math.MaxUint64 {
			sm.Push(wasm.I64(math.MaxUint64))
		} else {
			sm.Push(wasm.I64(uint64(v)))
		}
	case wasm.NumI64TruncSatF64S:
		if v, _ := truncToInt(sm.Pop().F64(), math.MinInt64, math.MaxInt64, true, true); v >= math.MaxInt64 {
			sm.Push(wasm.I64(math.MaxInt64))
		} else {
			sm.Push(wasm.I64(uint64(int64(v))))
		}
	case wasm.NumI64TruncSatF64U:
		if v, _ := truncToInt(sm.Pop().F64(), 0, math.MaxUint64, true, true); v >= math.MaxUint64 {
			sm.Push(wasm.I64(math.MaxUint64))
		} else {
			sm.Push(wasm.I64(uint64(v)))
		}

	default:
		return wasmruntime.ErrRuntimeUnreachable
	}
	return nil
}

func boolVal(b bool) wasm.Value {
	if b {
		return wasm.I32(1)
	}
	return wasm.I32(0)
}

// truncToInt implements trunc_f*_i* / trunc_sat_f*_i*'s shared NaN/overflow
// handling. is64 widens the float-domain bounds check the same way the
// interpreter's i64 variants need (math.MaxInt64/MaxUint64 round up when
// represented as float64, so the overflow test uses >= rather than >).
// saturating selects clamp-on-overflow instead of a trap.
func truncToInt(f float64, min, max float64, is64, saturating bool) (float64, error) {
	v := math.Trunc(f)
	if math.IsNaN(v) {
		if saturating {
			return 0, nil
		}
		return 0, wasmruntime.ErrRuntimeInvalidConversionToInteger
	}
	overflow := v < min || v > max
	if is64 {
		overflow = v < min || v >= max
	}
	if overflow {
		if saturating {
			if v < 0 {
				return min, nil
			}
			return max, nil
		}
		return 0, wasmruntime.ErrRuntimeIntegerOverflow
	}
	return v, nil
}
