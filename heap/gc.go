package heap

import "raya/value"

// CollectionStats summarizes one mark-sweep pass, surfaced to callers (the
// vmhost GC driver logs it through runtimelog) for observability.
type CollectionStats struct {
	Marked    int
	Freed     int
	LiveBytes uint64
}

// Collect performs a full precise mark-sweep collection (spec.md section
// 4.2). The caller (normally the safepoint coordinator's GC driver) is
// responsible for having already brought every worker to a safepoint;
// Collect itself does not pause anything — it assumes exclusive access to
// the heap for its duration, matching "Pause / Mark / Sweep / Resume" being
// separate named steps in the spec with Mark+Sweep the part this method
// implements.
//
// roots is the flattened set of every GC root in the VM context: operand
// stacks, frame locals, globals, closure captures, held-mutex references,
// pending exception slots, waiter-list payloads, and timer-heap entries.
func (h *Heap) Collect(roots []value.Value) CollectionStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Mark: clear all mark bits, then do an iterative, explicit-worklist
	// traversal from roots (no recursion — spec.md section 4.2 is explicit
	// about this, and it is exactly the shape of
	// vm/anonymous_gc.go:AutoRecycleOrphanAnonymousWith's reachable-set
	// worklist, generalized from "anonymous objects reachable from
	// persistent properties" to "every heap object reachable from every VM
	// root").
	for _, o := range h.objects {
		if o != nil {
			o.Header.Mark = false
		}
	}

	marked := make(map[uint64]struct{})
	var worklist []uint64
	for _, r := range roots {
		if r.IsPointer() {
			worklist = append(worklist, r.AsPointer())
		}
	}

	for len(worklist) > 0 {
		n := len(worklist) - 1
		id := worklist[n]
		worklist = worklist[:n]

		if _, seen := marked[id]; seen {
			continue
		}
		if int(id) >= len(h.objects) {
			continue
		}
		obj := h.objects[id]
		if obj == nil {
			continue
		}
		marked[id] = struct{}{}
		obj.Header.Mark = true

		for _, edge := range h.refs(obj) {
			worklist = append(worklist, edge.AsPointer())
		}
	}

	// Sweep: free every unmarked object, invoking its drop function if any.
	stats := CollectionStats{Marked: len(marked)}
	var liveBytes uint64
	for id, o := range h.objects {
		if o == nil {
			continue
		}
		if !o.Header.Mark {
			info := h.registry.Lookup(o.Header.TypeID)
			if info.Drop != nil {
				info.Drop(o)
			}
			h.objects[id] = nil
			h.freeList = append(h.freeList, uint64(id))
			stats.Freed++
			continue
		}
		liveBytes += uint64(o.Header.Size)
	}

	h.liveBytes = liveBytes
	stats.LiveBytes = liveBytes

	// Resume: adjust the threshold for the next cycle and clear the pause
	// flag. next threshold = 2x live-bytes, bounded below.
	next := liveBytes * 2
	if next < minThreshold {
		next = minThreshold
	}
	h.threshold = next
	h.pauseForGC = false

	return stats
}
