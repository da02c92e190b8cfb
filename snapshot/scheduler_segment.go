package snapshot

import (
	"time"

	"raya/vmtask"
)

// TimerEntry is one pending wakeup, used to re-arm the timer heap on
// restore.
type TimerEntry struct {
	TaskID     int64
	WakeAtMs   int64
}

// writeSchedulerSegment encodes the timer heap: the (wake_at_ms, task_id)
// pairs spec.md section 4.6 calls for. Work-stealing deque and injector
// contents are not persisted — a sleeping task's wake time already lives
// on the task itself (vmtask.SuspendReason.WakeAt), so the timer heap is
// fully recoverable from the Task segment alone, and which worker's deque
// a runnable task lands in after restore has no observable effect (the
// scheduler's own stealing order is explicitly unordered); see DESIGN.md.
func writeSchedulerSegment(tasks []*vmtask.Task) []byte {
	w := &byteWriter{}
	var entries []TimerEntry
	for _, t := range tasks {
		sr := t.SuspendReason
		if sr != nil && sr.Kind == vmtask.ReasonSleep {
			entries = append(entries, TimerEntry{TaskID: t.ID, WakeAtMs: sr.WakeAt.UnixMilli()})
		}
	}
	w.u32(uint32(len(entries)))
	for _, e := range entries {
		w.i64(e.WakeAtMs)
		w.i64(e.TaskID)
	}
	return w.buf.Bytes()
}

func readSchedulerSegment(payload []byte) ([]TimerEntry, error) {
	r := newByteReader(payload)
	count := r.u32()
	out := make([]TimerEntry, 0, count)
	for i := uint32(0); i < count && r.err == nil; i++ {
		wakeAt := r.i64()
		taskID := r.i64()
		out = append(out, TimerEntry{TaskID: taskID, WakeAtMs: wakeAt})
	}
	if r.err != nil {
		return nil, newError(ErrCorruptedData, "scheduler segment: %v", r.err)
	}
	return out, nil
}

// WakeAt converts the stored millisecond timestamp back to a time.Time for
// handing to scheduler.Scheduler.ScheduleSleep.
func (e TimerEntry) WakeAt() time.Time { return time.UnixMilli(e.WakeAtMs) }
