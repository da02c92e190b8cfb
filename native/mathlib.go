package native

import (
	"math"
	"math/rand"

	"raya/interp"
	"raya/value"
)

// registerMath installs the math range (0x2000-0x20FF), grounded on
// builtins/math.go's builtinAbs/builtinMin/builtinMax/builtinSqrt/
// builtinRandom family, generalized from MOO's dynamically-typed
// IntValue/FloatValue union to this runtime's typed int32/float64
// Value kinds. The float-valued natives accept an int32 argument and
// widen it to float64; math.abs keeps its argument's kind, and
// math.min/max compare as float64 but return the winning argument as is.
func (t *Table) registerMath() {
	t.Register(rangeMathStart+0, "math.abs", unaryNumeric(math.Abs, func(i int32) int32 {
		if i < 0 {
			return -i
		}
		return i
	}))
	t.Register(rangeMathStart+1, "math.sqrt", floatFunc(math.Sqrt))
	t.Register(rangeMathStart+2, "math.sin", floatFunc(math.Sin))
	t.Register(rangeMathStart+3, "math.cos", floatFunc(math.Cos))
	t.Register(rangeMathStart+4, "math.tan", floatFunc(math.Tan))
	t.Register(rangeMathStart+5, "math.floor", floatFunc(math.Floor))
	t.Register(rangeMathStart+6, "math.ceil", floatFunc(math.Ceil))
	t.Register(rangeMathStart+7, "math.round", floatFunc(math.Round))
	t.Register(rangeMathStart+8, "math.log", floatFunc(math.Log))
	t.Register(rangeMathStart+9, "math.exp", floatFunc(math.Exp))
	t.Register(rangeMathStart+10, "math.pow", binaryFloatFunc(math.Pow))
	t.Register(rangeMathStart+11, "math.min", minMax(false))
	t.Register(rangeMathStart+12, "math.max", minMax(true))
	t.Register(rangeMathStart+13, "math.random", mathRandom)
}

func asFloat(v value.Value) (float64, bool) {
	switch v.Kind() {
	case value.KindFloat64:
		return v.AsFloat64(), true
	case value.KindInt32:
		return float64(v.AsInt32()), true
	default:
		return 0, false
	}
}

func floatFunc(f func(float64) float64) interp.NativeHandler {
	return func(ctx *interp.NativeContext, args []value.Value) interp.NativeDirective {
		if len(args) != 1 {
			return argErr("math native expects exactly one argument")
		}
		x, ok := asFloat(args[0])
		if !ok {
			return argErr("math native expects a numeric argument")
		}
		return valueResult(value.Float64(f(x)))
	}
}

func binaryFloatFunc(f func(float64, float64) float64) interp.NativeHandler {
	return func(ctx *interp.NativeContext, args []value.Value) interp.NativeDirective {
		if len(args) != 2 {
			return argErr("math native expects exactly two arguments")
		}
		a, ok1 := asFloat(args[0])
		b, ok2 := asFloat(args[1])
		if !ok1 || !ok2 {
			return argErr("math native expects numeric arguments")
		}
		return valueResult(value.Float64(f(a, b)))
	}
}

// unaryNumeric preserves int32-in/int32-out for integer arguments
// (builtinAbs's own behavior: abs(int) stays an int, abs(float) stays a
// float) rather than always widening to float64.
func unaryNumeric(floatFn func(float64) float64, intFn func(int32) int32) interp.NativeHandler {
	return func(ctx *interp.NativeContext, args []value.Value) interp.NativeDirective {
		if len(args) != 1 {
			return argErr("math native expects exactly one argument")
		}
		switch args[0].Kind() {
		case value.KindInt32:
			return valueResult(value.Int32(intFn(args[0].AsInt32())))
		case value.KindFloat64:
			return valueResult(value.Float64(floatFn(args[0].AsFloat64())))
		default:
			return argErr("math native expects a numeric argument")
		}
	}
}

func minMax(wantMax bool) interp.NativeHandler {
	return func(ctx *interp.NativeContext, args []value.Value) interp.NativeDirective {
		if len(args) == 0 {
			return argErr("math.min/max expects at least one argument")
		}
		best := args[0]
		bestF, ok := asFloat(best)
		if !ok {
			return argErr("math.min/max expects numeric arguments")
		}
		for _, v := range args[1:] {
			f, ok := asFloat(v)
			if !ok {
				return argErr("math.min/max expects numeric arguments")
			}
			if (wantMax && f > bestF) || (!wantMax && f < bestF) {
				best, bestF = v, f
			}
		}
		return valueResult(best)
	}
}

// mathRandom mirrors builtinRandom's arity overloads: no args yields a
// non-negative int32; one arg n yields a uniform value in [1, n].
func mathRandom(ctx *interp.NativeContext, args []value.Value) interp.NativeDirective {
	switch len(args) {
	case 0:
		return valueResult(value.Int32(rand.Int31()))
	case 1:
		n := args[0]
		if n.Kind() != value.KindInt32 || n.AsInt32() <= 0 {
			return argErr("math.random(n) expects a positive int argument")
		}
		return valueResult(value.Int32(rand.Int31n(n.AsInt32()) + 1))
	default:
		return argErr("math.random expects 0 or 1 arguments")
	}
}
