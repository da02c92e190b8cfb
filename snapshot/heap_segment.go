package snapshot

import (
	"raya/heap"
)

// writeHeapSegment encodes every live object's id, type and body. Pointer
// fields inside a body (array elements, instance fields, closure captures)
// are written as raw Value bits, which embed the target object's stable id
// directly (package value's NaN-boxing, not a Go pointer) — so a single
// pass of "allocate the object at its original id, then decode its body"
// is sufficient on restore; there is no separate from/to edge table to
// reconcile (see heap.Heap.RestoreObject's doc comment).
func writeHeapSegment(h *heap.Heap) []byte {
	objs := h.All()
	w := &byteWriter{}
	w.u64(uint64(len(objs)))
	for _, o := range objs {
		w.u64(o.ID())
		w.u16(uint16(o.Header.TypeID))
		w.u32(o.Header.Size)
		writeBody(w, o.Header.TypeID, o.Body)
	}
	return w.buf.Bytes()
}

func writeBody(w *byteWriter, typeID heap.TypeID, body any) {
	switch b := body.(type) {
	case heap.StringBody:
		w.bytesBlob(b.Bytes)
	case heap.ArrayBody:
		w.values(b.Elements)
	case heap.InstanceBody:
		w.u32(uint32(b.ClassID))
		w.values(b.Fields)
	case heap.ClosureBody:
		w.u32(uint32(b.FunctionID))
		w.values(b.Captures)
	case heap.MutexBody:
		w.u64(b.MutexID)
	case heap.ChannelBody:
		w.u64(b.ChannelID)
	case heap.BufferBody:
		w.bytesBlob(b.Data)
	case heap.DateBody:
		w.i64(b.UnixMillis)
	case heap.RegexBody:
		w.str(b.Pattern)
		w.str(b.Flags)
	default:
		// Unknown body shape (a host-registered class type this package
		// predates): persist nothing beyond the header. The reader
		// reconstructs an empty InstanceBody-shaped placeholder for it;
		// a host carrying custom body kinds must supply its own codec,
		// tracked as an open question for richer host extensions.
	}
}

func readHeapSegment(payload []byte, target *heap.Heap) error {
	r := newByteReader(payload)
	count := r.u64()
	for i := uint64(0); i < count && r.err == nil; i++ {
		id := r.u64()
		typeID := heap.TypeID(r.u16())
		size := r.u32()
		body := readBody(r, typeID)
		if r.err != nil {
			break
		}
		target.RestoreObject(id, typeID, size, body)
	}
	if r.err != nil {
		return newError(ErrCorruptedData, "heap segment: %v", r.err)
	}
	return nil
}

func readBody(r *byteReader, typeID heap.TypeID) any {
	switch typeID {
	case heap.TypeString:
		return heap.StringBody{Bytes: r.bytesBlob()}
	case heap.TypeArray:
		return heap.ArrayBody{Elements: r.values()}
	case heap.TypeInstance:
		classID := int(r.u32())
		return heap.InstanceBody{ClassID: classID, Fields: r.values()}
	case heap.TypeClosure:
		fn := int(r.u32())
		return heap.ClosureBody{FunctionID: fn, Captures: r.values()}
	case heap.TypeMutex:
		return heap.MutexBody{MutexID: r.u64()}
	case heap.TypeChannel:
		return heap.ChannelBody{ChannelID: r.u64()}
	case heap.TypeBuffer:
		return heap.BufferBody{Data: r.bytesBlob()}
	case heap.TypeDate:
		return heap.DateBody{UnixMillis: r.i64()}
	case heap.TypeRegex:
		pattern := r.str()
		flags := r.str()
		return heap.RegexBody{Pattern: pattern, Flags: flags}
	default:
		return nil
	}
}
