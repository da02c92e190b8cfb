package interp

import (
	"time"

	"raya/bytecode"
	"raya/channels"
	"raya/mutexes"
	"raya/rerr"
	"raya/value"
	"raya/vmtask"
)

// execConcurrency handles group 10, grounded on barn/task's spawn/suspend
// machinery (task/task.go, task/scheduler.go) generalized from MOO's
// fork/suspend/resume verb primitives to spec.md's explicit SPAWN/AWAIT/
// SLEEP/mutex/channel/YIELD opcodes (section 4.1 group 10). Task, mutex
// and channel handles are passed around as plain int32 Values carrying the
// registry id, since the Value model has no dedicated handle tag.
func (in *Interpreter) execConcurrency(t *vmtask.Task, frame *vmtask.Frame, fn *bytecode.Function, op bytecode.Opcode) (Result, bool) {
	switch op {
	case bytecode.OpSpawn:
		return in.execSpawn(t, frame, fn)

	case bytecode.OpAwait:
		handle, ok := in.pop(t)
		if !ok {
			return in.stackUnderflow(t, op)
		}
		return in.execAwait(t, handle)

	case bytecode.OpSleep:
		ms, ok := in.pop(t)
		if !ok {
			return in.stackUnderflow(t, op)
		}
		d, err := in.requireInt32(t, ms)
		if err != nil {
			return in.raise(t, err)
		}
		wakeAt := in.host.NowMillis() + int64(d)
		return in.suspendTask(t, vmtask.SuspendReason{Kind: vmtask.ReasonSleep, WakeAt: time.UnixMilli(wakeAt)}), true

	case bytecode.OpNewMutex:
		id := in.host.Mutexes().New()
		in.push(t, value.Int32(int32(id)))

	case bytecode.OpMutexLock:
		handle, ok := in.pop(t)
		if !ok {
			return in.stackUnderflow(t, op)
		}
		return in.execMutexLock(t, uint64(handle.AsInt32()))

	case bytecode.OpMutexUnlock:
		handle, ok := in.pop(t)
		if !ok {
			return in.stackUnderflow(t, op)
		}
		return in.execMutexUnlock(t, uint64(handle.AsInt32()))

	case bytecode.OpChannelSend:
		vs, ok := in.popN(t, 2)
		if !ok {
			return in.stackUnderflow(t, op)
		}
		return in.execChannelSend(t, uint64(vs[0].AsInt32()), vs[1])

	case bytecode.OpChannelRecv:
		handle, ok := in.pop(t)
		if !ok {
			return in.stackUnderflow(t, op)
		}
		return in.execChannelRecv(t, uint64(handle.AsInt32()))

	case bytecode.OpYield:
		return in.suspendTask(t, vmtask.SuspendReason{Kind: vmtask.ReasonYield}), true
	}
	return Result{}, false
}

// execSpawn allocates a new task running funcIdx in the caller's module,
// transferring the callee's declared parameter count of arguments off the
// caller's stack, and hands it to the scheduler without blocking the
// caller (spec.md section 4.1 group 10, SPAWN).
func (in *Interpreter) execSpawn(t *vmtask.Task, frame *vmtask.Frame, fn *bytecode.Function) (Result, bool) {
	funcIdx := int(readU16(fn, frame.IP))
	frame.IP += 2

	mod := in.host.Module(frame.ModuleID)
	if mod == nil || funcIdx < 0 || funcIdx >= len(mod.Functions) {
		return in.failTask(t, rerr.New(rerr.KindInvalidOpcode, "SPAWN of unknown function %d", funcIdx)), true
	}
	callee := &mod.Functions[funcIdx]

	args, ok := in.popN(t, callee.ParamCount)
	if !ok {
		return in.stackUnderflow(t, bytecode.OpSpawn)
	}

	newTask := in.host.NewTask(funcIdx, frame.ModuleID, args, t.ID)
	in.host.ScheduleTask(newTask.ID)
	in.push(t, value.Int32(int32(newTask.ID)))
	return Result{}, false
}

// execAwait implements AWAIT's three-way outcome (spec.md section 4.1
// group 10): push the result of an already-Completed target, fail
// directly on an already-Failed target (UnhandledException is per-task,
// not catchable — spec.md section 7), or register as a waiter and
// suspend.
func (in *Interpreter) execAwait(t *vmtask.Task, handle value.Value) (Result, bool) {
	targetID := int64(handle.AsInt32())
	target := in.host.TaskByID(targetID)
	if target == nil {
		return in.raise(t, rerr.New(rerr.KindTypeError, "AWAIT of unknown task handle %d", targetID))
	}

	// AddWaiterIfPending performs the state check and waiter registration
	// under a single lock acquisition on target, so a target that
	// completes between a separate check and AddWaiter call can never
	// drain its waiter list before this one is appended (a lost wakeup
	// that would leave t Suspended forever).
	switch target.AddWaiterIfPending(t.ID) {
	case vmtask.Completed:
		in.push(t, target.Result)
		return Result{}, false
	case vmtask.Failed:
		err := rerr.New(rerr.KindUnhandledException, "awaited task %d failed", targetID)
		err.Cause = target.ResultError
		return in.failTask(t, err), true
	default:
		return in.suspendTask(t, vmtask.SuspendReason{Kind: vmtask.ReasonAwaitTask, AwaitTarget: targetID}), true
	}
}

// execMutexLock implements MUTEX_LOCK's atomic try-acquire-or-enqueue
// (spec.md section 4.1 group 10 and section 4.5). Reentry by the holding
// task is a catchable TypeError.
func (in *Interpreter) execMutexLock(t *vmtask.Task, id uint64) (Result, bool) {
	acquired, err := in.host.Mutexes().Lock(id, t.ID)
	switch err {
	case nil:
	case mutexes.ErrReentrant:
		return in.raise(t, rerr.New(rerr.KindTypeError, "reentrant MUTEX_LOCK by owning task"))
	case mutexes.ErrUnknownMutex:
		return in.raise(t, rerr.New(rerr.KindTypeError, "MUTEX_LOCK of unknown mutex handle %d", id))
	default:
		return in.raise(t, rerr.New(rerr.KindTypeError, "%v", err))
	}

	if acquired {
		t.HoldMutex(id)
		return Result{}, false
	}
	return in.suspendTask(t, vmtask.SuspendReason{Kind: vmtask.ReasonMutexLock, MutexID: id}), true
}

// execMutexUnlock implements MUTEX_UNLOCK: a non-owner unlock is a
// catchable TypeError; a successful unlock transfers ownership to the
// next FIFO waiter, if any, and wakes it (spec.md section 4.5).
func (in *Interpreter) execMutexUnlock(t *vmtask.Task, id uint64) (Result, bool) {
	next, transferred, err := in.host.Mutexes().Unlock(id, t.ID)
	switch err {
	case nil:
	case mutexes.ErrNotOwner:
		return in.raise(t, rerr.New(rerr.KindTypeError, "MUTEX_UNLOCK by non-owner"))
	case mutexes.ErrUnknownMutex:
		return in.raise(t, rerr.New(rerr.KindTypeError, "MUTEX_UNLOCK of unknown mutex handle %d", id))
	default:
		return in.raise(t, rerr.New(rerr.KindTypeError, "%v", err))
	}

	t.ReleaseMutex(id)
	if transferred {
		in.wakeMutexWaiter(next, id)
	}
	return Result{}, false
}

// execChannelSend implements CHANNEL_SEND: a direct handoff to a waiting
// receiver, a buffered enqueue, or suspension with the value staged on
// the task's own SuspendReason (spec.md section 4.1 group 10).
func (in *Interpreter) execChannelSend(t *vmtask.Task, id uint64, v value.Value) (Result, bool) {
	res, err := in.host.Channels().Send(id, t.ID, v)
	switch err {
	case nil:
	case channels.ErrUnknownChannel:
		return in.raise(t, rerr.New(rerr.KindTypeError, "CHANNEL_SEND on unknown channel handle %d", id))
	case channels.ErrClosed:
		return in.raise(t, rerr.New(rerr.KindRuntimeError, "CHANNEL_SEND on closed channel"))
	default:
		return in.raise(t, rerr.New(rerr.KindRuntimeError, "%v", err))
	}

	if res.Delivered {
		if res.WokeReceiver != 0 {
			in.wakeChannelReceiver(res.WokeReceiver, v)
		}
		return Result{}, false
	}
	return in.suspendTask(t, vmtask.SuspendReason{Kind: vmtask.ReasonChannelSend, ChannelID: id, PendingSend: v}), true
}

// execChannelRecv implements CHANNEL_RECV: immediate delivery from the
// buffer or a waiting sender, or suspension to wait for one.
func (in *Interpreter) execChannelRecv(t *vmtask.Task, id uint64) (Result, bool) {
	res, err := in.host.Channels().Recv(id, t.ID)
	if err == channels.ErrUnknownChannel {
		return in.raise(t, rerr.New(rerr.KindTypeError, "CHANNEL_RECV on unknown channel handle %d", id))
	}

	if res.Ready {
		if res.WokeSender != 0 {
			in.wakeChannelSender(res.WokeSender)
		}
		in.push(t, res.Value)
		return Result{}, false
	}
	return in.suspendTask(t, vmtask.SuspendReason{Kind: vmtask.ReasonChannelRecv, ChannelID: id}), true
}

// applyResume runs the "resume protocol" of spec.md section 4.1 once,
// when a worker re-selects a Suspended→Resumed task: it consults the
// task's suspension reason and resume slot, does whatever that reason's
// wake-up implies (push a value, join the held-mutex set, or nothing),
// then clears the reason so Run's ordinary dispatch loop continues.
// Returns (res, true) only for AwaitTask on a failed target, which ends
// the task directly rather than resuming its bytecode.
func (in *Interpreter) applyResume(t *vmtask.Task) (Result, bool) {
	reason := t.SuspendReason
	t.SuspendReason = nil
	if reason == nil {
		return Result{}, false
	}

	switch reason.Kind {
	case vmtask.ReasonAwaitTask:
		target := in.host.TaskByID(reason.AwaitTarget)
		if target == nil {
			return Result{}, false
		}
		if target.GetState() == vmtask.Failed {
			err := rerr.New(rerr.KindUnhandledException, "awaited task %d failed", reason.AwaitTarget)
			err.Cause = target.ResultError
			return in.failTask(t, err), true
		}
		in.push(t, target.Result)

	case vmtask.ReasonMutexLock:
		t.HoldMutex(reason.MutexID)

	case vmtask.ReasonChannelRecv:
		in.push(t, t.ResumeValue)

	case vmtask.ReasonNativeSuspend:
		in.push(t, t.ResumeValue)

	case vmtask.ReasonSleep, vmtask.ReasonYield, vmtask.ReasonChannelSend:
		// Nothing to push.
	}
	t.ResumeValue = value.Null()
	return Result{}, false
}

// wakeMutexWaiter resumes a task that just acquired a mutex via FIFO
// transfer on someone else's UNLOCK (spec.md section 4.5). The waiter's
// own resume protocol (adding id to its held set) runs when it is next
// selected by a worker, via applyResume.
func (in *Interpreter) wakeMutexWaiter(taskID int64, mutexID uint64) {
	wt := in.host.TaskByID(taskID)
	if wt == nil {
		return
	}
	wt.SuspendReason = &vmtask.SuspendReason{Kind: vmtask.ReasonMutexLock, MutexID: mutexID}
	wt.SetState(vmtask.Resumed)
	in.host.ScheduleTask(taskID)
}

// wakeChannelReceiver resumes a task that was parked in CHANNEL_RECV,
// staging v as its resume value (spec.md: "ChannelRecv: push the received
// value").
func (in *Interpreter) wakeChannelReceiver(taskID int64, v value.Value) {
	wt := in.host.TaskByID(taskID)
	if wt == nil {
		return
	}
	wt.ResumeValue = v
	wt.SuspendReason = &vmtask.SuspendReason{Kind: vmtask.ReasonChannelRecv}
	wt.SetState(vmtask.Resumed)
	in.host.ScheduleTask(taskID)
}

// wakeChannelSender resumes a task that was parked in CHANNEL_SEND; its
// staged value is simply discarded on resume, since it has already been
// delivered (spec.md: "ChannelSend: discard the now-delivered staged
// value").
func (in *Interpreter) wakeChannelSender(taskID int64) {
	wt := in.host.TaskByID(taskID)
	if wt == nil {
		return
	}
	wt.SuspendReason = &vmtask.SuspendReason{Kind: vmtask.ReasonChannelSend}
	wt.SetState(vmtask.Resumed)
	in.host.ScheduleTask(taskID)
}
