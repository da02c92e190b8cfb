package vmhost

import (
	"raya/interp"
	"raya/scheduler"
	"raya/vmtask"
)

// runTask is the scheduler.RunFunc this context hands to scheduler.New.
// Mutex and channel wake-ups are already handled inside package interp
// via direct host.ScheduleTask calls (wakeMutexWaiter,
// wakeChannelReceiver, wakeChannelSender); this wrapper covers what the
// interpreter cannot do without a scheduler handle: arming the timer
// thread on a Sleep suspension, reporting Yield as immediately
// re-runnable, and draining/waking a finished task's waiters.
func (vc *VmContext) runTask(taskID int64) scheduler.RunResult {
	t := vc.TaskByID(taskID)
	if t == nil {
		return scheduler.RunCompleted
	}

	res := vc.interp.Run(t)
	vc.maybeTriggerGC()

	switch res.Kind {
	case interp.Completed, interp.Failed:
		vc.finishTask(t)
		return scheduler.RunCompleted
	case interp.Suspended:
		return vc.afterSuspend(t)
	default:
		return scheduler.RunCompleted
	}
}

func (vc *VmContext) afterSuspend(t *vmtask.Task) scheduler.RunResult {
	reason := t.SuspendReason
	if reason == nil {
		return scheduler.RunSuspended
	}
	switch reason.Kind {
	case vmtask.ReasonSleep:
		vc.scheduler.ScheduleSleep(t.ID, reason.WakeAt)
		return scheduler.RunSuspended
	case vmtask.ReasonYield:
		return scheduler.RunYielded
	default:
		// Mutex/channel suspensions are woken by package interp calling
		// host.ScheduleTask, and await suspensions by finishTask when the
		// target ends; nothing to do here.
		return scheduler.RunSuspended
	}
}

// finishTask drains t's waiter list and wakes each one, then signals any
// host goroutine blocked in AwaitHandle. The waiter's SuspendReason is
// left untouched: applyResume's ReasonAwaitTask branch needs
// reason.AwaitTarget intact to re-read the now-completed target's
// Result/ResultError.
func (vc *VmContext) finishTask(t *vmtask.Task) {
	for _, waiterID := range t.TakeWaiters() {
		waiter := vc.TaskByID(waiterID)
		if waiter == nil {
			continue
		}
		waiter.SetState(vmtask.Resumed)
		vc.scheduler.Wake(waiterID)
	}
	vc.closeDone(t.ID)
}
