package vmhost

import (
	"context"
	"fmt"

	"raya/rerr"
	"raya/value"
	"raya/vmtask"
)

// doneChannel returns the channel that closes when taskID completes or
// fails, creating it on first reference. Grounded on server.Task's Done
// field (server/scheduler.go: CreateVerbTask builds t.Done and returns it
// so callers can block on task completion), generalized from one channel
// assigned at task creation to a lazily-created map entry, since any
// task may later become the target of a host-level AwaitHandle call, not
// only tasks created through a host-facing constructor.
func (vc *VmContext) doneChannel(taskID int64) chan struct{} {
	vc.doneMu.Lock()
	defer vc.doneMu.Unlock()
	ch, ok := vc.done[taskID]
	if !ok {
		ch = make(chan struct{})
		vc.done[taskID] = ch
	}
	return ch
}

func (vc *VmContext) closeDone(taskID int64) {
	close(vc.doneChannel(taskID))
}

// Spawn creates and schedules a top-level task running entryName in
// moduleID, returning its task handle. Distinct from the SPAWN opcode,
// which is only ever reached from inside already-running bytecode.
func (vc *VmContext) Spawn(moduleID int, entryName string, args []value.Value) (int64, error) {
	mod := vc.Module(moduleID)
	if mod == nil {
		return 0, fmt.Errorf("vmhost: unknown module id %d", moduleID)
	}
	funcIdx, ok := mod.FunctionByName(entryName)
	if !ok {
		return 0, fmt.Errorf("vmhost: module %q has no entry point %q", mod.Name, entryName)
	}
	t := vc.NewTask(funcIdx, moduleID, args, 0)
	vc.scheduler.Spawn(t.ID)
	return t.ID, nil
}

// AwaitHandle blocks the calling goroutine until taskID completes, fails,
// or ctx is done, whichever comes first.
func (vc *VmContext) AwaitHandle(ctx context.Context, taskID int64) (value.Value, *rerr.RuntimeError, error) {
	t := vc.TaskByID(taskID)
	if t == nil {
		return value.Null(), nil, fmt.Errorf("vmhost: unknown task handle %d", taskID)
	}
	select {
	case <-vc.doneChannel(taskID):
		if t.GetState() == vmtask.Failed {
			return value.Null(), t.ResultError, nil
		}
		return t.Result, nil, nil
	case <-ctx.Done():
		return value.Null(), nil, ctx.Err()
	}
}
