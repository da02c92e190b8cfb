package interp

import (
	"raya/bytecode"
	"raya/rerr"
	"raya/value"
	"raya/vmtask"
)

// execArith handles groups 4 and 5 (typed arithmetic and comparisons).
// Grounded on barn/vm/operations.go's per-operator helpers (e.g.
// evalAdd/evalSub/evalCompare), generalized from MOO's dynamically typed
// operators (which branch on runtime type at every op) to Raya's
// statically typed IADD/FADD pairs, where the compiler has already picked
// the operand type and the interpreter only needs to assert it.
//
// Stack order matches spec.md section 4.1 group 4: "push a; push b; op →
// push result" with b popped first (it is on top).
func (in *Interpreter) execArith(t *vmtask.Task, op bytecode.Opcode) (Result, bool) {
	if op == bytecode.OpINeg || op == bytecode.OpFNeg {
		a, ok := in.pop(t)
		if !ok {
			return in.stackUnderflow(t, op)
		}
		return in.unary(t, op, a)
	}

	vs, ok := in.popN(t, 2)
	if !ok {
		return in.stackUnderflow(t, op)
	}
	a, b := vs[0], vs[1]
	return in.binary(t, op, a, b)
}

func (in *Interpreter) unary(t *vmtask.Task, op bytecode.Opcode, a value.Value) (Result, bool) {
	switch op {
	case bytecode.OpINeg:
		i, err := in.requireInt32(t, a)
		if err != nil {
			return in.raise(t, err)
		}
		in.push(t, value.Int32(-i))
	case bytecode.OpFNeg:
		f, err := in.requireFloat64(t, a)
		if err != nil {
			return in.raise(t, err)
		}
		in.push(t, value.Float64(-f))
	}
	return Result{}, false
}

func (in *Interpreter) binary(t *vmtask.Task, op bytecode.Opcode, a, b value.Value) (Result, bool) {
	switch op {
	case bytecode.OpIAdd, bytecode.OpISub, bytecode.OpIMul, bytecode.OpIDiv, bytecode.OpIMod,
		bytecode.OpIEq, bytecode.OpINe, bytecode.OpILt, bytecode.OpILe, bytecode.OpIGt, bytecode.OpIGe:
		ai, err := in.requireInt32(t, a)
		if err != nil {
			return in.raise(t, err)
		}
		bi, err := in.requireInt32(t, b)
		if err != nil {
			return in.raise(t, err)
		}
		return in.intOp(t, op, ai, bi)

	case bytecode.OpFAdd, bytecode.OpFSub, bytecode.OpFMul, bytecode.OpFDiv,
		bytecode.OpFEq, bytecode.OpFNe, bytecode.OpFLt, bytecode.OpFLe, bytecode.OpFGt, bytecode.OpFGe:
		af, err := in.requireFloat64(t, a)
		if err != nil {
			return in.raise(t, err)
		}
		bf, err := in.requireFloat64(t, b)
		if err != nil {
			return in.raise(t, err)
		}
		return in.floatOp(t, op, af, bf)
	}
	return in.failTask(t, rerr.New(rerr.KindInvalidOpcode, "unreachable arithmetic opcode %s", op)), true
}

// intOp implements IADD/ISUB/IMUL with wrapping semantics (spec.md
// section 4.1 group 4: "wrapping semantics") and IDIV/IMOD failing on a
// zero divisor.
func (in *Interpreter) intOp(t *vmtask.Task, op bytecode.Opcode, a, b int32) (Result, bool) {
	switch op {
	case bytecode.OpIAdd:
		in.push(t, value.Int32(int32(uint32(a)+uint32(b))))
	case bytecode.OpISub:
		in.push(t, value.Int32(int32(uint32(a)-uint32(b))))
	case bytecode.OpIMul:
		in.push(t, value.Int32(int32(uint32(a)*uint32(b))))
	case bytecode.OpIDiv:
		if b == 0 {
			return in.raise(t, rerr.New(rerr.KindDivisionByZero, "integer division by zero"))
		}
		in.push(t, value.Int32(a/b))
	case bytecode.OpIMod:
		if b == 0 {
			return in.raise(t, rerr.New(rerr.KindDivisionByZero, "integer modulo by zero"))
		}
		in.push(t, value.Int32(a%b))
	case bytecode.OpIEq:
		in.push(t, value.Bool(a == b))
	case bytecode.OpINe:
		in.push(t, value.Bool(a != b))
	case bytecode.OpILt:
		in.push(t, value.Bool(a < b))
	case bytecode.OpILe:
		in.push(t, value.Bool(a <= b))
	case bytecode.OpIGt:
		in.push(t, value.Bool(a > b))
	case bytecode.OpIGe:
		in.push(t, value.Bool(a >= b))
	}
	return Result{}, false
}

func (in *Interpreter) floatOp(t *vmtask.Task, op bytecode.Opcode, a, b float64) (Result, bool) {
	switch op {
	case bytecode.OpFAdd:
		in.push(t, value.Float64(a+b))
	case bytecode.OpFSub:
		in.push(t, value.Float64(a-b))
	case bytecode.OpFMul:
		in.push(t, value.Float64(a*b))
	case bytecode.OpFDiv:
		in.push(t, value.Float64(a/b))
	case bytecode.OpFEq:
		in.push(t, value.Bool(a == b))
	case bytecode.OpFNe:
		in.push(t, value.Bool(a != b))
	case bytecode.OpFLt:
		in.push(t, value.Bool(a < b))
	case bytecode.OpFLe:
		in.push(t, value.Bool(a <= b))
	case bytecode.OpFGt:
		in.push(t, value.Bool(a > b))
	case bytecode.OpFGe:
		in.push(t, value.Bool(a >= b))
	}
	return Result{}, false
}

func (in *Interpreter) requireInt32(t *vmtask.Task, v value.Value) (int32, *rerr.RuntimeError) {
	if !v.IsInt32() {
		return 0, rerr.New(rerr.KindTypeError, "expected int32, got %s", v.Kind())
	}
	return v.AsInt32(), nil
}

func (in *Interpreter) requireFloat64(t *vmtask.Task, v value.Value) (float64, *rerr.RuntimeError) {
	if !v.IsFloat64() {
		return 0, rerr.New(rerr.KindTypeError, "expected float64, got %s", v.Kind())
	}
	return v.AsFloat64(), nil
}
