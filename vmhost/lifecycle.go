package vmhost

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"raya/bytecode"
	"raya/runtimelog"
	"raya/safepoint"
	"raya/snapshot"
	"raya/vmtask"
)

// Pause stops every worker at its next safepoint and returns a release
// function the caller must invoke exactly once to resume them. GC and
// snapshot share the same coordinator and may not overlap; a second
// concurrent Pause fails with safepoint.ErrAlreadyPaused.
func (vc *VmContext) Pause(ctx context.Context) (safepoint.ReleaseFunc, error) {
	return vc.scheduler.Safepoint().RequestPause(ctx)
}

// Snapshot pauses the context, serializes its full state to path via an
// atomic temp-file-then-rename, and resumes workers before returning.
// Concurrent calls for the same path are collapsed into one actual write
// via singleflight, so two embedder goroutines racing to checkpoint the
// same file don't both pause the scheduler and fight over the same temp
// file.
//
// Grounded on db/checkpoint.go's CheckpointManager.Checkpoint: write to a
// sibling temp file, close it, then rename over the destination so a
// reader never observes a partially-written file.
func (vc *VmContext) Snapshot(ctx context.Context, path string) error {
	_, err, _ := vc.snapSF.Do(path, func() (any, error) {
		return nil, vc.snapshotOnce(ctx, path)
	})
	return err
}

func (vc *VmContext) snapshotOnce(ctx context.Context, path string) error {
	release, err := vc.Pause(ctx)
	if err != nil {
		return err
	}
	defer release()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "vmhost: creating snapshot temp file")
	}
	if err := snapshot.Write(f, vc.snapshotSource(), vc.NowMillis()); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "vmhost: closing snapshot temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "vmhost: publishing snapshot file")
	}
	runtimelog.Component("vmhost").Info().Str("path", path).Msg("snapshot written")
	return nil
}

func (vc *VmContext) snapshotSource() snapshot.Source {
	vc.mu.RLock()
	modules := append([]*bytecode.Module(nil), vc.modules...)
	vc.mu.RUnlock()

	vc.tasksMu.RLock()
	tasks := make([]*vmtask.Task, 0, len(vc.tasks))
	for _, t := range vc.tasks {
		tasks = append(tasks, t)
	}
	vc.tasksMu.RUnlock()

	return snapshot.Source{
		Heap:     vc.heap,
		Mutexes:  vc.mx,
		Channels: vc.ch,
		Tasks:    tasks,
		Modules:  modules,
	}
}

// Restore builds a fresh VmContext from a snapshot file previously
// produced by Snapshot. modules must be the same set (by name and
// checksum) the paused context had registered; vc is used only as a
// template for Config and the type registry, and is otherwise untouched.
//
// Task re-scheduling follows each task's recorded state rather than
// blanket re-submitting everything: a task suspended on a mutex, channel
// or awaited task is left Suspended, to be woken the normal way once that
// mutex unlocks, that channel op completes, or that task finishes. The
// mutex registry is restored with its owners and queues intact; the
// channel registry is not restored (it starts empty), so a task suspended
// on a channel stays Suspended after restore. Only Created
// tasks (never yet run), Resumed tasks (already decided to run when the
// snapshot was taken) and Yield-suspended tasks (which always want
// another turn) are put back on the scheduler directly; sleeping tasks
// get their timer re-armed from the snapshot's timer list instead.
func (vc *VmContext) Restore(path string, modules []*bytecode.Module) (*VmContext, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "vmhost: opening snapshot file")
	}
	defer f.Close()

	restored, err := snapshot.Read(f, vc.registry)
	if err != nil {
		return nil, err
	}
	if err := snapshot.VerifyModules(restored.Modules, modules); err != nil {
		return nil, err
	}

	out := New(vc.cfg)
	out.modules = append(out.modules, modules...)
	for i := range out.modules {
		out.linked[i] = true
	}
	out.heap = restored.Heap
	out.mx = restored.Mutexes
	out.ch = restored.Channels

	var maxID int64
	for _, t := range restored.Tasks {
		out.tasks[t.ID] = t
		if t.ID > maxID {
			maxID = t.ID
		}
	}
	out.nextTaskID = maxID

	for _, t := range restored.Tasks {
		switch t.GetState() {
		case vmtask.Created:
			out.scheduler.Spawn(t.ID)
		case vmtask.Resumed:
			out.scheduler.Wake(t.ID)
		case vmtask.Suspended:
			if t.SuspendReason != nil && t.SuspendReason.Kind == vmtask.ReasonYield {
				out.scheduler.Wake(t.ID)
			}
			// Sleep is re-armed via restored.Timers below; MutexLock,
			// ChannelSend, ChannelRecv, AwaitTask and NativeSuspend are
			// woken later by their owning subsystem's normal wake path.
		case vmtask.Completed, vmtask.Failed:
			out.closeDone(t.ID)
		}
	}
	for _, timer := range restored.Timers {
		out.scheduler.ScheduleSleep(timer.TaskID, timer.WakeAt())
	}

	return out, nil
}
