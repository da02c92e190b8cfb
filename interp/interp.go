package interp

import (
	"encoding/binary"
	"math"

	"raya/bytecode"
	"raya/rerr"
	"raya/runtimelog"
	"raya/safepoint"
	"raya/value"
	"raya/vmtask"
)

// pollInterval is K from spec.md section 4.1 group 12: "every K
// instructions (K ≈ 1024)".
const pollInterval = 1024

// maxFrames bounds recursion depth; exceeding it is StackOverflow rather
// than an unbounded Go stack growth (spec.md section 7).
const maxFrames = 4096

// Interpreter drives one task's opcode dispatch loop to one of the three
// terminal Results. A single Interpreter is shared by every worker; it
// holds no per-task state itself.
type Interpreter struct {
	host   Host
	safept *safepoint.Coordinator
}

// New creates an Interpreter bound to host and the scheduler's shared
// safepoint coordinator.
func New(host Host, safept *safepoint.Coordinator) *Interpreter {
	return &Interpreter{host: host, safept: safept}
}

// Run executes task until it completes, suspends, or fails. Grounded on
// barn/vm.Evaluator.Execute's instruction loop (vm/vm.go), generalized
// from a single compute-to-completion call to one that can return midway
// with Suspended and be re-entered later by the scheduler.
func (in *Interpreter) Run(t *vmtask.Task) Result {
	if t.GetState() == vmtask.Resumed {
		if res, done := in.applyResume(t); done {
			return res
		}
	}
	t.SetState(vmtask.Running)
	instr := 0

	for {
		if t.IsCancelled() {
			return in.cancelTask(t)
		}

		frame := t.CurrentFrame()
		if frame == nil {
			// All frames returned; the last RETURN already produced the
			// task's result via completeTask, so this path is unreachable
			// in well-formed bytecode, but guard it anyway.
			return completed(t.Result)
		}

		mod := in.host.Module(frame.ModuleID)
		if mod == nil || frame.FunctionID >= len(mod.Functions) {
			return in.failTask(t, rerr.New(rerr.KindInvalidOpcode, "unknown function %d in module %d", frame.FunctionID, frame.ModuleID))
		}
		fn := &mod.Functions[frame.FunctionID]

		if frame.IP >= len(fn.Code) {
			return in.failTask(t, rerr.New(rerr.KindStackUnderflow, "ip %d past end of function %q", frame.IP, fn.Name))
		}

		op := bytecode.Opcode(fn.Code[frame.IP])
		if !op.Valid() {
			return in.failTask(t, rerr.New(rerr.KindInvalidOpcode, "invalid opcode 0x%x at ip %d", fn.Code[frame.IP], frame.IP))
		}

		opStart := frame.IP
		frame.IP++

		res, handled := in.dispatch(t, frame, fn, op)
		if handled {
			return res
		}

		instr++
		if instr%pollInterval == 0 || isBackwardJump(op, fn, opStart) || isCallOrReturn(op) {
			in.safept.Poll()
		}
	}
}

func isBackwardJump(op bytecode.Opcode, fn *bytecode.Function, opStart int) bool {
	if op != bytecode.OpJmp && op != bytecode.OpJmpIfTrue && op != bytecode.OpJmpIfFalse {
		return false
	}
	if opStart+3 > len(fn.Code) {
		return false
	}
	offset := int16(binary.LittleEndian.Uint16(fn.Code[opStart+1 : opStart+3]))
	return offset < 0
}

func isCallOrReturn(op bytecode.Opcode) bool {
	return op == bytecode.OpCall || op == bytecode.OpCallMethod || op == bytecode.OpCallClosure || op == bytecode.OpReturn
}

// completeTask finalizes a task that ran its last RETURN, recording the
// result and returning the Result the scheduler sees (spec.md section
// 3 invariant (e): waiters are the scheduler's responsibility to wake,
// recorded here only as state for it to act on).
func (in *Interpreter) completeTask(t *vmtask.Task, v value.Value) Result {
	t.Result = v
	t.SetState(vmtask.Completed)
	return completed(v)
}

func (in *Interpreter) failTask(t *vmtask.Task, err *rerr.RuntimeError) Result {
	err = err.WithStack(in.buildStack(t))
	t.ResultError = err
	t.SetState(vmtask.Failed)
	in.releaseHeldMutexes(t)
	runtimelog.Component("interp").Debug().Str("kind", string(err.Kind)).Int64("task", t.ID).Msg("task failed")
	return failed(err)
}

func (in *Interpreter) cancelTask(t *vmtask.Task) Result {
	return in.failTask(t, rerr.New(rerr.KindCancelled, "task cancelled"))
}

func (in *Interpreter) suspendTask(t *vmtask.Task, reason vmtask.SuspendReason) Result {
	t.SuspendReason = &reason
	t.SetState(vmtask.Suspended)
	return suspended()
}

func (in *Interpreter) releaseHeldMutexes(t *vmtask.Task) {
	held := t.HeldMutexIDs()
	if len(held) == 0 {
		return
	}
	wakeups := in.host.Mutexes().ReleaseAllHeldBy(t.ID, held)
	for _, h := range held {
		t.ReleaseMutex(h)
	}
	for _, w := range wakeups {
		in.wakeMutexWaiter(w.Task, w.MutexID)
	}
}

func (in *Interpreter) buildStack(t *vmtask.Task) []rerr.Frame {
	frames := make([]rerr.Frame, 0, len(t.Frames))
	for i := len(t.Frames) - 1; i >= 0; i-- {
		f := t.Frames[i]
		mod := in.host.Module(f.ModuleID)
		name := "?"
		line := 0
		if mod != nil && f.FunctionID < len(mod.Functions) {
			fn := &mod.Functions[f.FunctionID]
			name = fn.Name
			line = fn.LineForIP(f.IP)
		}
		frames = append(frames, rerr.Frame{FunctionName: name, InstrOffset: f.IP, Line: line})
	}
	return frames
}

// --- operand stack helpers ---

func (in *Interpreter) push(t *vmtask.Task, v value.Value) {
	t.OperandStack = append(t.OperandStack, v)
}

func (in *Interpreter) pop(t *vmtask.Task) (value.Value, bool) {
	n := len(t.OperandStack)
	if n == 0 {
		return value.Null(), false
	}
	v := t.OperandStack[n-1]
	t.OperandStack = t.OperandStack[:n-1]
	return v, true
}

func (in *Interpreter) popN(t *vmtask.Task, n int) ([]value.Value, bool) {
	if len(t.OperandStack) < n {
		return nil, false
	}
	start := len(t.OperandStack) - n
	out := make([]value.Value, n)
	copy(out, t.OperandStack[start:])
	t.OperandStack = t.OperandStack[:start]
	return out, true
}

// --- operand decoding ---

func readU8(fn *bytecode.Function, ip int) uint8 { return fn.Code[ip] }

func readU16(fn *bytecode.Function, ip int) uint16 {
	return binary.LittleEndian.Uint16(fn.Code[ip : ip+2])
}

func readI16(fn *bytecode.Function, ip int) int16 { return int16(readU16(fn, ip)) }

func readU32(fn *bytecode.Function, ip int) uint32 {
	return binary.LittleEndian.Uint32(fn.Code[ip : ip+4])
}

func readI32(fn *bytecode.Function, ip int) int32 { return int32(readU32(fn, ip)) }

func readF64(fn *bytecode.Function, ip int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(fn.Code[ip : ip+8]))
}
