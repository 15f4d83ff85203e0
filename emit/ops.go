package emit

import (
	"math"
	"math/bits"

	"github.com/gowavm/wavm/trap"
	"github.com/gowavm/wavm/wasm"
)

func emitUnary(n *wasm.Unary) opFunc {
	value := emit(n.Value)
	srcTy := n.Value.ResultType()
	dstTy := n.ResultType()
	op := n.Op
	unsigned := n.Unsigned
	return func(f *Frame) (ctl, uint64) {
		c, v := value(f)
		if c.kind != ctlNormal {
			return c, v
		}
		return ctl{}, evalUnary(f, op, srcTy, dstTy, v, unsigned)
	}
}

// evalUnary evaluates a unary op. For same-type ops (clz, neg, ceil, ...)
// srcTy == dstTy and either can be used; conversion ops (convert, trunc,
// wrap, extend) need both: the source width/signedness to interpret v,
// the destination width to shape the result.
func evalUnary(f *Frame, op wasm.UnaryOp, srcTy, dstTy wasm.ValType, v uint64, unsigned bool) uint64 {
	ty := srcTy
	switch op {
	case wasm.OpClz:
		if ty == wasm.I64 {
			return uint64(bits.LeadingZeros64(v))
		}
		return uint64(bits.LeadingZeros32(uint32(v)))
	case wasm.OpCtz:
		if ty == wasm.I64 {
			return uint64(bits.TrailingZeros64(v))
		}
		return uint64(bits.TrailingZeros32(uint32(v)))
	case wasm.OpPopcnt:
		if ty == wasm.I64 {
			return uint64(bits.OnesCount64(v))
		}
		return uint64(bits.OnesCount32(uint32(v)))
	case wasm.OpAbs:
		if ty == wasm.F32 {
			return uint64(math.Float32bits(float32(math.Abs(float64(math.Float32frombits(uint32(v)))))))
		}
		return math.Float64bits(math.Abs(math.Float64frombits(v)))
	case wasm.OpNeg:
		if ty == wasm.F32 {
			return uint64(math.Float32bits(-math.Float32frombits(uint32(v))))
		}
		return math.Float64bits(-math.Float64frombits(v))
	case wasm.OpCeil:
		return floatUnary(ty, v, math.Ceil)
	case wasm.OpFloor:
		return floatUnary(ty, v, math.Floor)
	case wasm.OpTrunc:
		return floatUnary(ty, v, math.Trunc)
	case wasm.OpNearest:
		return floatUnary(ty, v, math.RoundToEven)
	case wasm.OpSqrt:
		return floatUnary(ty, v, math.Sqrt)
	case wasm.OpWrap:
		return uint64(uint32(v))
	case wasm.OpExtendS32:
		return uint64(int64(int32(v)))
	case wasm.OpExtendU32:
		return uint64(uint32(v))
	case wasm.OpExtendS8:
		return uint64(int64(int8(v)))
	case wasm.OpExtendS16:
		return uint64(int64(int16(v)))
	case wasm.OpExtendS32in64:
		return uint64(int64(int32(v)))
	case wasm.OpConvertSToFloat:
		return convertIntToFloat(srcTy, dstTy, v, true)
	case wasm.OpConvertUToFloat:
		return convertIntToFloat(srcTy, dstTy, v, false)
	case wasm.OpTruncToInt:
		return truncFloatToInt(f, srcTy, dstTy, v, unsigned, false)
	case wasm.OpTruncToIntSat:
		return truncFloatToInt(f, srcTy, dstTy, v, unsigned, true)
	case wasm.OpDemote:
		return uint64(math.Float32bits(float32(math.Float64frombits(v))))
	case wasm.OpPromote:
		return math.Float64bits(float64(math.Float32frombits(uint32(v))))
	case wasm.OpBitcast:
		return v
	case wasm.OpEqz:
		if v == 0 {
			return 1
		}
		return 0
	default:
		panic("emit: unhandled unary op")
	}
}

func floatUnary(ty wasm.ValType, v uint64, fn func(float64) float64) uint64 {
	if ty == wasm.F32 {
		return uint64(math.Float32bits(float32(fn(float64(math.Float32frombits(uint32(v)))))))
	}
	return math.Float64bits(fn(math.Float64frombits(v)))
}

// convertIntToFloat lowers an integer bit pattern v of source type srcTy
// (I32 or I64) to a float bit pattern of destination type dstTy.
func convertIntToFloat(srcTy, dstTy wasm.ValType, v uint64, signed bool) uint64 {
	var f float64
	switch {
	case signed && srcTy == wasm.I32:
		f = float64(int64(int32(uint32(v))))
	case signed:
		f = float64(int64(v))
	case srcTy == wasm.I32:
		f = float64(uint32(v))
	default:
		f = float64(v)
	}
	if dstTy == wasm.F32 {
		return uint64(math.Float32bits(float32(f)))
	}
	return math.Float64bits(f)
}

// truncFloatToInt lowers a float bit pattern of source type srcTy to an
// integer of destination width dstTy (I32 or I64). Non-saturating
// truncation traps on NaN or out-of-range input (InvalidFloatOperation);
// the saturating variant clamps instead.
func truncFloatToInt(f *Frame, srcTy, dstTy wasm.ValType, v uint64, unsigned, saturating bool) uint64 {
	var val float64
	if srcTy == wasm.F32 {
		val = float64(math.Float32frombits(uint32(v)))
	} else {
		val = math.Float64frombits(v)
	}

	if math.IsNaN(val) {
		if saturating {
			return 0
		}
		f.Instance.Trap(trap.InvalidFloatOperation, nil)
		panic("unreachable")
	}

	trunc := math.Trunc(val)
	is64 := dstTy == wasm.I64

	if unsigned {
		maxVal := 4294967296.0
		if is64 {
			maxVal = 18446744073709551616.0
		}
		if trunc < 0 || trunc >= maxVal {
			if saturating {
				if trunc < 0 {
					return 0
				}
				if is64 {
					return math.MaxUint64
				}
				return uint64(uint32(math.MaxUint32))
			}
			f.Instance.Trap(trap.InvalidFloatOperation, nil)
			panic("unreachable")
		}
		if is64 {
			return uint64(trunc)
		}
		return uint64(uint32(trunc))
	}

	minVal, maxVal := -2147483648.0, 2147483648.0
	if is64 {
		minVal, maxVal = -9223372036854775808.0, 9223372036854775808.0
	}
	if trunc < minVal || trunc >= maxVal {
		if saturating {
			if trunc < 0 {
				if is64 {
					v := int64(math.MinInt64)
					return uint64(v)
				}
				v := int32(math.MinInt32)
				return uint64(uint32(v))
			}
			if is64 {
				return uint64(int64(math.MaxInt64))
			}
			return uint64(uint32(int32(math.MaxInt32)))
		}
		f.Instance.Trap(trap.InvalidFloatOperation, nil)
		panic("unreachable")
	}
	if is64 {
		return uint64(int64(trunc))
	}
	return uint64(uint32(int32(trunc)))
}

func emitBinary(n *wasm.Binary) opFunc {
	left := emit(n.Left)
	right := emit(n.Right)
	ty := n.ResultType()
	op := n.Op
	return func(f *Frame) (ctl, uint64) {
		lc, lv := left(f)
		if lc.kind != ctlNormal {
			return lc, lv
		}
		rc, rv := right(f)
		if rc.kind != ctlNormal {
			return rc, rv
		}
		return ctl{}, evalBinary(f, op, ty, lv, rv)
	}
}

func evalBinary(f *Frame, op wasm.BinaryOp, ty wasm.ValType, l, r uint64) uint64 {
	switch ty {
	case wasm.F32:
		return evalBinaryF32(f, op, l, r)
	case wasm.F64:
		return evalBinaryF64(f, op, l, r)
	default:
		return evalBinaryInt(f, op, ty, l, r)
	}
}

func evalBinaryInt(f *Frame, op wasm.BinaryOp, ty wasm.ValType, l, r uint64) uint64 {
	is64 := ty == wasm.I64
	switch op {
	case wasm.OpAdd:
		return l + r
	case wasm.OpSub:
		return l - r
	case wasm.OpMul:
		return l * r
	case wasm.OpDivS:
		return intDivS(f, is64, l, r)
	case wasm.OpDivU:
		return intDivU(f, is64, l, r)
	case wasm.OpRemS:
		return intRemS(f, is64, l, r)
	case wasm.OpRemU:
		return intRemU(f, is64, l, r)
	case wasm.OpAnd:
		return l & r
	case wasm.OpOr:
		return l | r
	case wasm.OpXor:
		return l ^ r
	case wasm.OpShl:
		if is64 {
			return l << (r & 63)
		}
		return uint64(uint32(l) << (uint32(r) & 31))
	case wasm.OpShrS:
		if is64 {
			return uint64(int64(l) >> (r & 63))
		}
		return uint64(uint32(int32(uint32(l)) >> (uint32(r) & 31)))
	case wasm.OpShrU:
		if is64 {
			return l >> (r & 63)
		}
		return uint64(uint32(l) >> (uint32(r) & 31))
	case wasm.OpRotl:
		if is64 {
			return bits.RotateLeft64(l, int(r&63))
		}
		return uint64(bits.RotateLeft32(uint32(l), int(r&31)))
	case wasm.OpRotr:
		if is64 {
			return bits.RotateLeft64(l, -int(r&63))
		}
		return uint64(bits.RotateLeft32(uint32(l), -int(r&31)))
	default:
		panic("emit: unhandled integer binary op")
	}
}

func intDivS(f *Frame, is64 bool, l, r uint64) uint64 {
	if is64 {
		a, b := int64(l), int64(r)
		if b == 0 {
			f.Instance.Trap(trap.IntegerDivideByZeroOrOverflow, nil)
		}
		if a == math.MinInt64 && b == -1 {
			f.Instance.Trap(trap.IntegerDivideByZeroOrOverflow, nil)
		}
		return uint64(a / b)
	}
	a, b := int32(uint32(l)), int32(uint32(r))
	if b == 0 {
		f.Instance.Trap(trap.IntegerDivideByZeroOrOverflow, nil)
	}
	if a == math.MinInt32 && b == -1 {
		f.Instance.Trap(trap.IntegerDivideByZeroOrOverflow, nil)
	}
	return uint64(uint32(a / b))
}

func intDivU(f *Frame, is64 bool, l, r uint64) uint64 {
	if is64 {
		if r == 0 {
			f.Instance.Trap(trap.IntegerDivideByZeroOrOverflow, nil)
		}
		return l / r
	}
	a, b := uint32(l), uint32(r)
	if b == 0 {
		f.Instance.Trap(trap.IntegerDivideByZeroOrOverflow, nil)
	}
	return uint64(a / b)
}

func intRemS(f *Frame, is64 bool, l, r uint64) uint64 {
	if is64 {
		a, b := int64(l), int64(r)
		if b == 0 {
			f.Instance.Trap(trap.IntegerDivideByZeroOrOverflow, nil)
		}
		if a == math.MinInt64 && b == -1 {
			return 0
		}
		return uint64(a % b)
	}
	a, b := int32(uint32(l)), int32(uint32(r))
	if b == 0 {
		f.Instance.Trap(trap.IntegerDivideByZeroOrOverflow, nil)
	}
	if a == math.MinInt32 && b == -1 {
		return 0
	}
	return uint64(uint32(a % b))
}

func intRemU(f *Frame, is64 bool, l, r uint64) uint64 {
	if is64 {
		if r == 0 {
			f.Instance.Trap(trap.IntegerDivideByZeroOrOverflow, nil)
		}
		return l % r
	}
	a, b := uint32(l), uint32(r)
	if b == 0 {
		f.Instance.Trap(trap.IntegerDivideByZeroOrOverflow, nil)
	}
	return uint64(a % b)
}

func evalBinaryF32(f *Frame, op wasm.BinaryOp, l, r uint64) uint64 {
	a, b := math.Float32frombits(uint32(l)), math.Float32frombits(uint32(r))
	switch op {
	case wasm.OpAdd:
		return uint64(math.Float32bits(a + b))
	case wasm.OpSub:
		return uint64(math.Float32bits(a - b))
	case wasm.OpMul:
		return uint64(math.Float32bits(a * b))
	case wasm.OpDivS, wasm.OpDivU:
		return uint64(math.Float32bits(a / b))
	case wasm.OpMin:
		return uint64(math.Float32bits(float32(wasmFMin(float64(a), float64(b)))))
	case wasm.OpMax:
		return uint64(math.Float32bits(float32(wasmFMax(float64(a), float64(b)))))
	case wasm.OpCopysign:
		return uint64(math.Float32bits(float32(math.Copysign(float64(a), float64(b)))))
	default:
		panic("emit: unhandled f32 binary op")
	}
}

func evalBinaryF64(f *Frame, op wasm.BinaryOp, l, r uint64) uint64 {
	a, b := math.Float64frombits(l), math.Float64frombits(r)
	switch op {
	case wasm.OpAdd:
		return math.Float64bits(a + b)
	case wasm.OpSub:
		return math.Float64bits(a - b)
	case wasm.OpMul:
		return math.Float64bits(a * b)
	case wasm.OpDivS, wasm.OpDivU:
		return math.Float64bits(a / b)
	case wasm.OpMin:
		return math.Float64bits(wasmFMin(a, b))
	case wasm.OpMax:
		return math.Float64bits(wasmFMax(a, b))
	case wasm.OpCopysign:
		return math.Float64bits(math.Copysign(a, b))
	default:
		panic("emit: unhandled f64 binary op")
	}
}

// wasmFMin/wasmFMax implement Wasm's NaN-propagating min/max: if either operand is NaN, the result is NaN, unlike IEEE 754
// minNum/maxNum which prefer the non-NaN operand.
func wasmFMin(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	if a == 0 && b == 0 {
		if math.Signbit(a) {
			return a
		}
		return b
	}
	return math.Min(a, b)
}

func wasmFMax(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	if a == 0 && b == 0 {
		if !math.Signbit(a) {
			return a
		}
		return b
	}
	return math.Max(a, b)
}

func emitCompare(n *wasm.Compare) opFunc {
	left := emit(n.Left)
	right := emit(n.Right)
	ty := n.Left.ResultType()
	op := n.Op
	return func(f *Frame) (ctl, uint64) {
		lc, lv := left(f)
		if lc.kind != ctlNormal {
			return lc, lv
		}
		rc, rv := right(f)
		if rc.kind != ctlNormal {
			return rc, rv
		}
		return ctl{}, evalCompare(op, ty, lv, rv)
	}
}

func evalCompare(op wasm.CompareOp, ty wasm.ValType, l, r uint64) uint64 {
	if ty == wasm.F32 || ty == wasm.F64 {
		return evalCompareFloat(op, ty, l, r)
	}
	is64 := ty == wasm.I64
	var cmp bool
	switch op {
	case wasm.CmpEq:
		cmp = l == r
	case wasm.CmpNe:
		cmp = l != r
	case wasm.CmpLtS:
		if is64 {
			cmp = int64(l) < int64(r)
		} else {
			cmp = int32(uint32(l)) < int32(uint32(r))
		}
	case wasm.CmpLtU:
		if is64 {
			cmp = l < r
		} else {
			cmp = uint32(l) < uint32(r)
		}
	case wasm.CmpGtS:
		if is64 {
			cmp = int64(l) > int64(r)
		} else {
			cmp = int32(uint32(l)) > int32(uint32(r))
		}
	case wasm.CmpGtU:
		if is64 {
			cmp = l > r
		} else {
			cmp = uint32(l) > uint32(r)
		}
	case wasm.CmpLeS:
		if is64 {
			cmp = int64(l) <= int64(r)
		} else {
			cmp = int32(uint32(l)) <= int32(uint32(r))
		}
	case wasm.CmpLeU:
		if is64 {
			cmp = l <= r
		} else {
			cmp = uint32(l) <= uint32(r)
		}
	case wasm.CmpGeS:
		if is64 {
			cmp = int64(l) >= int64(r)
		} else {
			cmp = int32(uint32(l)) >= int32(uint32(r))
		}
	case wasm.CmpGeU:
		if is64 {
			cmp = l >= r
		} else {
			cmp = uint32(l) >= uint32(r)
		}
	default:
		panic("emit: unhandled compare op")
	}
	if cmp {
		return 1
	}
	return 0
}

func evalCompareFloat(op wasm.CompareOp, ty wasm.ValType, l, r uint64) uint64 {
	var a, b float64
	if ty == wasm.F32 {
		a, b = float64(math.Float32frombits(uint32(l))), float64(math.Float32frombits(uint32(r)))
	} else {
		a, b = math.Float64frombits(l), math.Float64frombits(r)
	}
	var cmp bool
	switch op {
	case wasm.CmpEq:
		cmp = a == b
	case wasm.CmpNe:
		cmp = a != b
	case wasm.CmpLtS, wasm.CmpLtU:
		cmp = a < b
	case wasm.CmpGtS, wasm.CmpGtU:
		cmp = a > b
	case wasm.CmpLeS, wasm.CmpLeU:
		cmp = a <= b
	case wasm.CmpGeS, wasm.CmpGeU:
		cmp = a >= b
	default:
		panic("emit: unhandled float compare op")
	}
	if cmp {
		return 1
	}
	return 0
}
