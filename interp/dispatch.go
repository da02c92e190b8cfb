package interp

import (
	"raya/bytecode"
	"raya/rerr"
	"raya/vmtask"
)

// dispatch executes one decoded opcode against frame. It returns (res,
// true) when execution of the task is over (Completed/Suspended/Failed)
// and the caller's Run loop must return res immediately; otherwise it
// returns (zero, false) and Run continues its loop.
//
// Grounded on barn/vm.Evaluator.Execute's opcode switch (vm/vm.go) and
// vm/operations.go's per-opcode helper functions, split by spec.md
// section 4.1's twelve groups into this file plus arith.go, calls.go,
// exceptions.go, concurrency.go and native.go.
func (in *Interpreter) dispatch(t *vmtask.Task, frame *vmtask.Frame, fn *bytecode.Function, op bytecode.Opcode) (Result, bool) {
	switch op {

	// Group 1: stack manipulation.
	case bytecode.OpNop:
		return Result{}, false
	case bytecode.OpPop:
		if _, ok := in.pop(t); !ok {
			return in.stackUnderflow(t, op)
		}
		return Result{}, false
	case bytecode.OpDup:
		v, ok := in.pop(t)
		if !ok {
			return in.stackUnderflow(t, op)
		}
		in.push(t, v)
		in.push(t, v)
		return Result{}, false
	case bytecode.OpSwap:
		vs, ok := in.popN(t, 2)
		if !ok {
			return in.stackUnderflow(t, op)
		}
		in.push(t, vs[1])
		in.push(t, vs[0])
		return Result{}, false

	// Group 2: constants.
	case bytecode.OpConstNull, bytecode.OpConstTrue, bytecode.OpConstFalse,
		bytecode.OpConstI32, bytecode.OpConstF64, bytecode.OpConstString:
		return in.execConst(t, frame, fn, op)

	// Group 3: locals/globals.
	case bytecode.OpLoadLocal, bytecode.OpStoreLocal, bytecode.OpLoadGlobal, bytecode.OpStoreGlobal:
		return in.execLocalsGlobals(t, frame, fn, op)

	// Group 4/5: arithmetic and comparisons.
	case bytecode.OpIAdd, bytecode.OpISub, bytecode.OpIMul, bytecode.OpIDiv, bytecode.OpIMod, bytecode.OpINeg,
		bytecode.OpFAdd, bytecode.OpFSub, bytecode.OpFMul, bytecode.OpFDiv, bytecode.OpFNeg,
		bytecode.OpIEq, bytecode.OpINe, bytecode.OpILt, bytecode.OpILe, bytecode.OpIGt, bytecode.OpIGe,
		bytecode.OpFEq, bytecode.OpFNe, bytecode.OpFLt, bytecode.OpFLe, bytecode.OpFGt, bytecode.OpFGe:
		return in.execArith(t, op)

	// Group 6: control flow.
	case bytecode.OpJmp, bytecode.OpJmpIfTrue, bytecode.OpJmpIfFalse:
		return in.execJump(t, frame, fn, op)

	// Group 7: calls/returns.
	case bytecode.OpCall, bytecode.OpCallMethod, bytecode.OpCallClosure:
		return in.execCall(t, frame, fn, op)
	case bytecode.OpReturn:
		return in.execReturn(t)

	// Group 8: object/array.
	case bytecode.OpNewObject, bytecode.OpLoadField, bytecode.OpStoreField,
		bytecode.OpNewArray, bytecode.OpArrayGet, bytecode.OpArraySet, bytecode.OpArrayLen:
		return in.execObjectArray(t, frame, fn, op)

	// Group 9: exceptions.
	case bytecode.OpPushHandler, bytecode.OpPopHandler, bytecode.OpThrow,
		bytecode.OpRethrow, bytecode.OpEndCatch, bytecode.OpEndFinally:
		return in.execException(t, frame, fn, op)

	// Group 10: concurrency.
	case bytecode.OpSpawn, bytecode.OpAwait, bytecode.OpSleep,
		bytecode.OpNewMutex, bytecode.OpMutexLock, bytecode.OpMutexUnlock,
		bytecode.OpChannelSend, bytecode.OpChannelRecv, bytecode.OpYield:
		return in.execConcurrency(t, frame, fn, op)

	// Group 11: native call.
	case bytecode.OpNativeCall:
		return in.execNativeCall(t, frame, fn)

	default:
		res := in.failTask(t, rerr.New(rerr.KindInvalidOpcode, "unimplemented opcode %s", op))
		return res, true
	}
}

func (in *Interpreter) stackUnderflow(t *vmtask.Task, op bytecode.Opcode) (Result, bool) {
	return in.failTask(t, rerr.New(rerr.KindStackUnderflow, "stack underflow at %s", op)), true
}
