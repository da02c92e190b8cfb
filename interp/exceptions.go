package interp

import (
	"raya/bytecode"
	"raya/rerr"
	"raya/value"
	"raya/vmtask"
)

// execException handles group 9, grounded on barn/vm's exception-frame
// handling (vm/vm.go's TRY/EXCEPT/FINALLY opcodes), generalized from
// MOO's list-of-(codes, handler) try clauses to a single PUSH_HANDLER
// installing one Handler{CatchIP, FinallyIP} per try construct (spec.md
// section 4.1 group 9).
func (in *Interpreter) execException(t *vmtask.Task, frame *vmtask.Frame, fn *bytecode.Function, op bytecode.Opcode) (Result, bool) {
	switch op {
	case bytecode.OpPushHandler:
		catchOff := int(readI32(fn, frame.IP))
		frame.IP += 4
		finallyOff := int(readI32(fn, frame.IP))
		frame.IP += 4

		h := vmtask.Handler{FinallyIP: -1, VarIndex: -1}
		if catchOff >= 0 {
			h.CatchIP = catchOff
		} else {
			h.CatchIP = -1
		}
		if finallyOff >= 0 {
			h.FinallyIP = finallyOff
		}
		frame.ExceptStack = append(frame.ExceptStack, h)

	case bytecode.OpPopHandler:
		if len(frame.ExceptStack) == 0 {
			return in.failTask(t, rerr.New(rerr.KindInvalidOpcode, "POP_HANDLER with empty handler stack")), true
		}
		frame.ExceptStack = frame.ExceptStack[:len(frame.ExceptStack)-1]

	case bytecode.OpThrow:
		v, ok := in.pop(t)
		if !ok {
			return in.stackUnderflow(t, op)
		}
		err := rerr.New(rerr.KindUserException, "user exception").WithValue(v.ToBits())
		return in.raise(t, err)

	case bytecode.OpRethrow:
		if t.LastCaught == nil {
			return in.failTask(t, rerr.New(rerr.KindInvalidOpcode, "RETHROW with no caught exception")), true
		}
		return in.raise(t, t.LastCaught)

	case bytecode.OpEndCatch:
		// Control simply falls through past the construct; the compiler
		// emits the jump target as ordinary code layout, not an operand of
		// this opcode (spec.md section 4.1 group 9: "move control past the
		// construct").

	case bytecode.OpEndFinally:
		// A finally region reached by normal fall-through has nothing
		// pending and simply falls through like END_CATCH. One reached by
		// exception propagation through a handler with no matching catch
		// (raise's FinallyIP branch) left the original error on
		// frame.PendingError; resume propagating it now that cleanup ran.
		if frame.PendingError != nil {
			err := frame.PendingError
			frame.PendingError = nil
			return in.raise(t, err)
		}

	}
	return Result{}, false
}

// raise is the THROW/fault-unwind mechanism shared by every catchable
// runtime fault site (TypeError, IndexOutOfBounds, DivisionByZero,
// NullDereference, UserException) and by RETHROW. It walks the call
// stack innermost-frame-first, and within each frame its handler stack
// innermost-first, for a Handler whose except clause matches err.Kind
// (spec.md section 4.1, "Exception unwinding": "THROW walks the current
// frame's handler stack then unwinds frames popping locals and handlers
// until a catch is found").
//
// If a handler matches, execution resumes at its CatchIP with the
// exception payload placed in the handler's VarIndex local, and raise
// returns (zero Result, false) so the dispatch loop continues. A handler
// that doesn't match but still carries a finally region is entered too,
// per the requirement that a finally region runs on exception propagation
// as well as normal exit; err is parked on frame.PendingError and resumed
// once that region completes. If no frame has a matching handler, the
// task Fails with UnhandledException wrapping the original error,
// matching the per-task failure bucket of the error taxonomy.
func (in *Interpreter) raise(t *vmtask.Task, err *rerr.RuntimeError) (Result, bool) {
	t.ThrownException = err
	for fi := len(t.Frames) - 1; fi >= 0; fi-- {
		frame := t.Frames[fi]
		for hi := len(frame.ExceptStack) - 1; hi >= 0; hi-- {
			h := frame.ExceptStack[hi]
			if h.Matches(err.Kind) {
				t.Frames = t.Frames[:fi+1]
				frame.ExceptStack = frame.ExceptStack[:hi]
				if frame.BasePointer <= len(t.OperandStack) {
					t.OperandStack = t.OperandStack[:frame.BasePointer]
				}
				if h.VarIndex >= 0 && h.VarIndex < len(frame.Locals) {
					frame.Locals[h.VarIndex] = caughtValue(err)
				}
				t.LastCaught = err
				t.ThrownException = nil
				frame.IP = h.CatchIP
				return Result{}, false
			}

			if h.FinallyIP >= 0 {
				// No except clause matched (or none exists) but this try
				// construct still has a finally region: enter it for
				// cleanup before continuing to unwind. The original error
				// rides along on frame.PendingError and t.ThrownException
				// stays set; execException's OpEndFinally case re-raises
				// it once the finally region completes.
				t.Frames = t.Frames[:fi+1]
				frame.ExceptStack = frame.ExceptStack[:hi]
				if frame.BasePointer <= len(t.OperandStack) {
					t.OperandStack = t.OperandStack[:frame.BasePointer]
				}
				frame.PendingError = err
				frame.IP = h.FinallyIP
				return Result{}, false
			}
		}
	}

	unhandled := rerr.New(rerr.KindUnhandledException, "unhandled %s: %s", err.Kind, err.Message)
	unhandled.Cause = err
	t.ThrownException = nil
	return in.failTask(t, unhandled), true
}

// caughtValue extracts the Value an except clause's variable should bind
// to: the raw thrown payload for a THROW/RETHROW of a user value, or Null
// for an opcode-level fault (rerr.RuntimeError.ExceptionValue is nil in
// that case, per its doc comment).
func caughtValue(err *rerr.RuntimeError) value.Value {
	if err.ExceptionValue == nil {
		return value.Null()
	}
	return value.FromBits(*err.ExceptionValue)
}
