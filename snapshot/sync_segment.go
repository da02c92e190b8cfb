package snapshot

import "raya/mutexes"

// writeSyncSegment encodes every mutex's id, owner and FIFO wait queue
// (spec.md section 4.6, Sync segment: "mutex count; per-mutex id/owner/
// FIFO waiters"). Channels have no equivalent segment in the format —
// their queues and waiter lists are not restored by this package; see
// DESIGN.md.
func writeSyncSegment(reg *mutexes.Registry) []byte {
	all := reg.All()
	w := &byteWriter{}
	w.u64(uint64(len(all)))
	for _, m := range all {
		w.u64(m.ID())
		w.i64(m.Owner())
		w.ints64(m.Queue())
	}
	return w.buf.Bytes()
}

func readSyncSegment(payload []byte, target *mutexes.Registry) error {
	r := newByteReader(payload)
	count := r.u64()
	for i := uint64(0); i < count && r.err == nil; i++ {
		id := r.u64()
		owner := r.i64()
		queue := r.ints64()
		if r.err != nil {
			break
		}
		target.Restore(id, owner, queue)
	}
	if r.err != nil {
		return newError(ErrCorruptedData, "sync segment: %v", r.err)
	}
	return nil
}
