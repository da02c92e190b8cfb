package snapshot

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"raya/bytecode"
	"raya/channels"
	"raya/heap"
	"raya/mutexes"
	"raya/vmtask"
)

// Source gathers the live state a VM context hands to Write. Channels is
// accepted for symmetry with the running VM's shape but is not persisted
// (see sync_segment.go's doc comment) — buffered channel contents are
// lost across a snapshot boundary, a documented limitation rather than an
// oversight.
type Source struct {
	Heap     *heap.Heap
	Mutexes  *mutexes.Registry
	Channels *channels.Registry
	Tasks    []*vmtask.Task
	Modules  []*bytecode.Module
}

// Write serializes src to w as one complete snapshot file: header, then
// the five segments in a fixed order (Metadata, Heap, Task, Scheduler,
// Sync), then a SHA-256 trailer over the concatenated segment payloads
// (spec.md section 4.6's writer sequence). The caller is responsible for
// having already paused every worker at a safepoint before calling Write;
// this package has no knowledge of the scheduler or safepoint coordinator.
func Write(w io.Writer, src Source, nowMillis int64) error {
	segments := []struct {
		typ     SegmentType
		payload []byte
	}{
		{SegmentMetadata, writeMetadataSegment(src.Modules)},
		{SegmentHeap, writeHeapSegment(src.Heap)},
		{SegmentTask, writeTaskSegment(src.Tasks)},
		{SegmentScheduler, writeSchedulerSegment(src.Tasks)},
		{SegmentSync, writeSyncSegment(src.Mutexes)},
	}

	sum := sha256.New()
	for _, s := range segments {
		sum.Write(s.payload)
	}
	checksum := sum.Sum(nil)

	hdr := Header{
		Magic:          Magic,
		Version:        FormatVersion,
		Flags:          0,
		Endianness:     endiannessMarker,
		TimestampMs:    uint64(nowMillis),
		ChecksumOffset: 0, // filled in below once the body length is known
	}

	bodyLen := 0
	for _, s := range segments {
		bodyLen += segmentHeaderSize + len(s.payload)
	}
	hdr.ChecksumOffset = uint32(HeaderSize + bodyLen)

	if err := writeHeader(w, hdr); err != nil {
		return newError(ErrIoError, "writing header: %v", err)
	}
	for _, s := range segments {
		if err := writeSegment(w, s.typ, s.payload); err != nil {
			return newError(ErrIoError, "writing %s segment: %v", s.typ, err)
		}
	}
	if _, err := w.Write(checksum); err != nil {
		return newError(ErrIoError, "writing checksum trailer: %v", err)
	}
	return nil
}

const segmentHeaderSize = 1 + 1 + 2 + 8 // type + flags + reserved + length

func writeHeader(w io.Writer, h Header) error {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], h.Magic)
	binary.LittleEndian.PutUint32(buf[8:12], h.Version)
	binary.LittleEndian.PutUint32(buf[12:16], h.Flags)
	binary.LittleEndian.PutUint32(buf[16:20], h.Endianness)
	binary.LittleEndian.PutUint64(buf[20:28], h.TimestampMs)
	binary.LittleEndian.PutUint32(buf[28:32], h.ChecksumOffset)
	_, err := w.Write(buf[:])
	return err
}

func writeSegment(w io.Writer, typ SegmentType, payload []byte) error {
	var hdr [segmentHeaderSize]byte
	hdr[0] = byte(typ)
	hdr[1] = 0
	binary.LittleEndian.PutUint16(hdr[2:4], 0)
	binary.LittleEndian.PutUint64(hdr[4:12], uint64(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
