package snapshot

import (
	"time"

	"raya/rerr"
	"raya/vmtask"
)

// writeTaskSegment encodes every task's execution state. Grounded on
// db/writer_task.go's per-task field-at-a-time encoding (frame stack,
// operand stack, call state), generalized from a MOO verb-call task to
// this runtime's bytecode Frame/LoopState/Handler shapes.
//
// A task's thrown/caught exception chains and any frame's PendingError
// are not serialized (written as "absent"): resuming a task that was
// paused mid-finally-region re-raise across a snapshot boundary is an
// edge case this format does not yet cover, tracked in DESIGN.md.
func writeTaskSegment(tasks []*vmtask.Task) []byte {
	w := &byteWriter{}
	w.u64(uint64(len(tasks)))
	for _, t := range tasks {
		writeTask(w, t)
	}
	return w.buf.Bytes()
}

func writeTask(w *byteWriter, t *vmtask.Task) {
	w.i64(t.ID)
	w.u8(uint8(t.GetState()))
	w.u32(uint32(t.FunctionID))
	w.u32(uint32(t.ModuleID))
	w.u32(uint32(t.IP))
	w.values(t.OperandStack)
	w.values(t.ClosureStack)

	w.u32(uint32(len(t.Frames)))
	for _, f := range t.Frames {
		writeFrame(w, f)
	}

	w.uints64(t.HeldMutexIDs())
	w.i64(t.ParentID)
	w.ints64(t.Waiters)

	writeSuspendReason(w, t.SuspendReason)

	w.value(t.ResumeValue)
	w.value(t.Result)
	w.boolean(t.ResultError != nil)
	if t.ResultError != nil {
		w.str(string(t.ResultError.Kind))
		w.str(t.ResultError.Message)
	}
	w.boolean(t.Cancelled)
	w.i64(t.CreatedAt.UnixMilli())
	w.i64(t.StartedAt.UnixMilli())
}

func writeFrame(w *byteWriter, f *vmtask.Frame) {
	w.u32(uint32(f.FunctionID))
	w.u32(uint32(f.ModuleID))
	w.u32(uint32(f.ReturnIP))
	w.u32(uint32(f.BasePointer))
	w.u32(uint32(f.IP))
	w.values(f.Locals)

	w.u32(uint32(len(f.LoopStack)))
	for _, l := range f.LoopStack {
		w.str(l.Kind)
		w.u32(uint32(l.Index))
		w.u32(uint32(l.Limit))
		w.u32(uint32(l.VarSlot))
	}

	w.u32(uint32(len(f.ExceptStack)))
	for _, h := range f.ExceptStack {
		w.u32(uint32(h.CatchIP))
		w.u32(uint32(h.FinallyIP))
		w.u32(uint32(len(h.Codes)))
		for _, c := range h.Codes {
			w.str(string(c))
		}
		w.u32(uint32(h.VarIndex))
	}
}

// reasonTag discriminates the on-disk SuspendReason shape; "none" means the
// task was not suspended (Created, Running at pause, Completed, or Failed).
const reasonTagNone uint8 = 0xFF

func writeSuspendReason(w *byteWriter, sr *vmtask.SuspendReason) {
	if sr == nil {
		w.u8(reasonTagNone)
		return
	}
	w.u8(uint8(sr.Kind))
	w.i64(sr.AwaitTarget)
	w.i64(sr.WakeAt.UnixMilli())
	w.u64(sr.MutexID)
	w.u64(sr.ChannelID)
	w.value(sr.PendingSend)
	w.str(sr.Other)
}

func readTaskSegment(payload []byte) ([]*vmtask.Task, error) {
	r := newByteReader(payload)
	count := r.u64()
	tasks := make([]*vmtask.Task, 0, count)
	for i := uint64(0); i < count && r.err == nil; i++ {
		tasks = append(tasks, readTask(r))
	}
	if r.err != nil {
		return nil, newError(ErrCorruptedData, "task segment: %v", r.err)
	}
	return tasks, nil
}

func readTask(r *byteReader) *vmtask.Task {
	t := &vmtask.Task{HeldMutexes: make(map[uint64]struct{})}
	t.ID = r.i64()
	t.SetState(vmtask.State(r.u8()))
	t.FunctionID = int(r.u32())
	t.ModuleID = int(r.u32())
	t.IP = int(r.u32())
	t.OperandStack = r.values()
	t.ClosureStack = r.values()

	frameCount := r.u32()
	t.Frames = make([]*vmtask.Frame, 0, frameCount)
	for i := uint32(0); i < frameCount && r.err == nil; i++ {
		t.Frames = append(t.Frames, readFrame(r))
	}

	for _, id := range r.uints64() {
		t.HeldMutexes[id] = struct{}{}
	}
	t.ParentID = r.i64()
	t.Waiters = r.ints64()

	t.SuspendReason = readSuspendReason(r)

	t.ResumeValue = r.value()
	t.Result = r.value()
	if r.boolean() {
		kind := r.str()
		msg := r.str()
		t.ResultError = &rerr.RuntimeError{Kind: rerr.Kind(kind), Message: msg}
	}
	t.Cancelled = r.boolean()
	t.CreatedAt = time.UnixMilli(r.i64())
	t.StartedAt = time.UnixMilli(r.i64())
	return t
}

func readFrame(r *byteReader) *vmtask.Frame {
	f := &vmtask.Frame{}
	f.FunctionID = int(r.u32())
	f.ModuleID = int(r.u32())
	f.ReturnIP = int(r.u32())
	f.BasePointer = int(r.u32())
	f.IP = int(r.u32())
	f.Locals = r.values()

	loopCount := r.u32()
	f.LoopStack = make([]vmtask.LoopState, 0, loopCount)
	for i := uint32(0); i < loopCount && r.err == nil; i++ {
		kind := r.str()
		index := int(r.u32())
		limit := int(r.u32())
		varSlot := int(r.u32())
		f.LoopStack = append(f.LoopStack, vmtask.LoopState{Kind: kind, Index: index, Limit: limit, VarSlot: varSlot})
	}

	handlerCount := r.u32()
	f.ExceptStack = make([]vmtask.Handler, 0, handlerCount)
	for i := uint32(0); i < handlerCount && r.err == nil; i++ {
		catchIP := int(r.u32())
		finallyIP := int(r.u32())
		codeCount := r.u32()
		codes := make([]rerr.Kind, 0, codeCount)
		for j := uint32(0); j < codeCount; j++ {
			codes = append(codes, rerr.Kind(r.str()))
		}
		varIndex := int(r.u32())
		f.ExceptStack = append(f.ExceptStack, vmtask.Handler{
			CatchIP: catchIP, FinallyIP: finallyIP, Codes: codes, VarIndex: varIndex,
		})
	}
	return f
}

// readSuspendReason returns nil when the task was not suspended at pause
// time (it had either not yet started, or already completed/failed),
// mirroring vmtask.Task.SuspendReason's own nil-means-not-suspended
// convention.
func readSuspendReason(r *byteReader) *vmtask.SuspendReason {
	tag := r.u8()
	if tag == reasonTagNone {
		return nil
	}
	sr := &vmtask.SuspendReason{Kind: vmtask.SuspendReasonKind(tag)}
	sr.AwaitTarget = r.i64()
	sr.WakeAt = time.UnixMilli(r.i64())
	sr.MutexID = r.u64()
	sr.ChannelID = r.u64()
	sr.PendingSend = r.value()
	sr.Other = r.str()
	return sr
}
