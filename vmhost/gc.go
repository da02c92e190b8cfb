package vmhost

import (
	"context"
	"sync/atomic"
	"time"

	"raya/runtimelog"
	"raya/value"
)

// gcPauseTimeout bounds how long a collection waits for every worker to
// reach a safepoint, so a task stuck in a long compute loop with polling
// disabled can't wedge the collector forever (spec.md section 4.3,
// "Bounded wait protects against a task stuck in a long compute loop").
const gcPauseTimeout = 2 * time.Second

// Roots implements heap.RootSource: every live task's operand stack,
// frame locals and closure stack, every stored global, and every
// channel's buffered values (spec.md section 4.2's root set). A
// suspended sender's staged value lives on its own task's
// SuspendReason.PendingSend, already covered by vmtask.Task.Roots.
func (vc *VmContext) Roots() []value.Value {
	var roots []value.Value

	vc.tasksMu.RLock()
	for _, t := range vc.tasks {
		roots = append(roots, t.Roots()...)
	}
	vc.tasksMu.RUnlock()

	roots = append(roots, vc.globals.Values()...)
	roots = append(roots, vc.ch.Roots()...)
	return roots
}

// gcInFlight is set while a collection's pause is being requested or
// run, so a second trigger observed by another worker is a no-op rather
// than a second concurrent RequestPause (which would just fail with
// safepoint.ErrAlreadyPaused anyway, but checking first avoids the
// wasted goroutine).
func (vc *VmContext) maybeTriggerGC() {
	if !vc.heap.NeedsGC() {
		return
	}
	if !atomic.CompareAndSwapInt32(&vc.gcInFlight, 0, 1) {
		return
	}
	go vc.runGC()
}

func (vc *VmContext) runGC() {
	defer atomic.StoreInt32(&vc.gcInFlight, 0)
	ctx, cancel := context.WithTimeout(context.Background(), gcPauseTimeout)
	defer cancel()
	release, err := vc.Pause(ctx)
	if err != nil {
		return
	}
	defer release()
	stats := vc.heap.Collect(vc.Roots())
	runtimelog.Component("vmhost").Debug().
		Int("marked", stats.Marked).
		Int("freed", stats.Freed).
		Uint64("live_bytes", stats.LiveBytes).
		Msg("gc collection")
}
