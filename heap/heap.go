package heap

import (
	"sync"

	"raya/value"
)

// defaultInitialThreshold is the live-byte count at which the first
// collection is requested; doubled (bounded below) after every sweep per
// spec.md section 4.2 ("next threshold = 2x live-bytes, bounded below").
const defaultInitialThreshold = 1 << 20 // 1 MiB

const minThreshold = 1 << 16 // 64 KiB

// RootSource supplies GC roots from outside the heap package: every task's
// operand stack and frame locals, globals, closure captures, mutex-held
// references, pending exception slots, waiter-list payloads, and the timer
// thread's heap entries (spec.md section 4.2). The VM context
// (vmhost.VmContext) implements this.
type RootSource interface {
	Roots() []value.Value
}

// Heap owns all object allocations for one VM context. Grounded on
// barn/db.Store's id-indexed object table (db/store.go) generalized from
// MOO object storage to the spec's GC'd heap.
type Heap struct {
	mu        sync.Mutex
	objects   []*Object // nil entries are free slots
	freeList  []uint64
	liveBytes uint64
	threshold uint64
	registry  *TypeRegistry

	// pauseForGC is set when liveBytes crosses threshold; the safepoint
	// coordinator (or an embedder polling loop) observes it and drives a
	// collection. Using an atomic-ish bool guarded by mu keeps allocation
	// and the flag consistent without requiring the heap to depend on the
	// safepoint package (avoiding a heap<->safepoint import cycle).
	pauseForGC bool
}

// NewHeap creates an empty heap using the given type registry.
func NewHeap(registry *TypeRegistry) *Heap {
	return &Heap{
		registry:  registry,
		threshold: defaultInitialThreshold,
	}
}

// Allocate installs a new object with the given type and body, returning a
// Value referencing it. size is the logical byte size charged against the
// live-bytes counter and GC threshold (spec.md section 4.2: "Allocation
// increments a live-bytes counter and, when the counter exceeds a
// threshold, sets the safepoint pause-for-GC flag").
func (h *Heap) Allocate(typeID TypeID, size uint32, body any) value.Value {
	h.mu.Lock()
	defer h.mu.Unlock()

	obj := &Object{Header: Header{Mark: false, TypeID: typeID, Size: size}, Body: body}

	var id uint64
	if n := len(h.freeList); n > 0 {
		id = h.freeList[n-1]
		h.freeList = h.freeList[:n-1]
		obj.id = id
		h.objects[id] = obj
	} else {
		id = uint64(len(h.objects))
		obj.id = id
		h.objects = append(h.objects, obj)
	}

	h.liveBytes += uint64(size)
	if h.liveBytes > h.threshold {
		h.pauseForGC = true
	}

	return value.Pointer(id)
}

// Get returns the live object a pointer Value refers to, or nil if v isn't a
// pointer or its slot has been freed (a dangling reference, which should
// never occur for a correctly rooted program but is handled defensively at
// heap boundaries). Callers raise TypeError on a nil result rather than
// assuming v was a pointer.
func (h *Heap) Get(v value.Value) *Object {
	if !v.IsPointer() {
		return nil
	}
	id := v.AsPointer()
	h.mu.Lock()
	defer h.mu.Unlock()
	if int(id) >= len(h.objects) {
		return nil
	}
	return h.objects[id]
}

// GetByID returns the object at a raw object id, used by the GC and by
// snapshot restore.
func (h *Heap) GetByID(id uint64) *Object {
	h.mu.Lock()
	defer h.mu.Unlock()
	if int(id) >= len(h.objects) {
		return nil
	}
	return h.objects[id]
}

// RestoreObject installs obj directly at the given stable id, extending the
// backing slice with free (nil) slots as needed. Used only by the snapshot
// reader, which must preserve original object ids so that pointer Values
// decoded from a snapshot (which embed the target id directly, per
// package value's NaN-boxing) resolve correctly without a separate
// relocation pass (spec.md section 4.6's "allocate all objects first,
// then patch references by id" two-pass restore collapses to one pass
// here, since a Value's pointer payload is an opaque stable id rather
// than a live Go pointer that would need fixing up).
func (h *Heap) RestoreObject(id uint64, typeID TypeID, size uint32, body any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for uint64(len(h.objects)) <= id {
		h.objects = append(h.objects, nil)
	}
	h.objects[id] = &Object{Header: Header{Mark: false, TypeID: typeID, Size: size}, Body: body, id: id}
	h.liveBytes += uint64(size)
}

// NeedsGC reports whether an allocation has crossed the threshold since the
// last collection.
func (h *Heap) NeedsGC() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pauseForGC
}

// LiveBytes returns the current live-byte count (for diagnostics/metrics).
func (h *Heap) LiveBytes() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.liveBytes
}

// Count returns the number of allocated slots, including freed ones still
// held in the backing slice (for diagnostics).
func (h *Heap) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.objects)
}

// All returns every live object, in id order. Used by the snapshot writer.
func (h *Heap) All() []*Object {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Object, 0, len(h.objects))
	for _, o := range h.objects {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

// refs enumerates the outgoing heap-pointer Values reachable directly from
// an object's body, consulting the type registry's pointer map (spec.md
// section 4.2, mark phase: "consult the type registry's pointer map to
// enumerate outgoing edges"). Grounded on
// vm/anonymous_gc.go:collectAnonymousRefsForGC, generalized from
// MOO-specific list/map/obj-property traversal to the spec's body shapes.
func (h *Heap) refs(o *Object) []value.Value {
	info := h.registry.Lookup(o.Header.TypeID)
	if info.PointerMap == PointerMapNone {
		return nil
	}
	switch b := o.Body.(type) {
	case ArrayBody:
		return filterPointers(b.Elements)
	case InstanceBody:
		return filterPointers(b.Fields)
	case ClosureBody:
		return filterPointers(b.Captures)
	default:
		return nil
	}
}

func filterPointers(vs []value.Value) []value.Value {
	out := make([]value.Value, 0, len(vs))
	for _, v := range vs {
		if v.IsPointer() {
			out = append(out, v)
		}
	}
	return out
}
