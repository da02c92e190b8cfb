package snapshot

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"raya/channels"
	"raya/heap"
	"raya/mutexes"
	"raya/vmtask"
)

// Restored holds everything Read reconstructs. The caller (vmhost) owns
// wiring these back into a live VM context: installing Heap and Mutexes
// as the context's registries, handing Tasks to the scheduler via
// Spawn/Wake per their state, and re-arming Timers via
// scheduler.Scheduler.ScheduleSleep.
type Restored struct {
	Modules   []ModuleSummary
	Heap      *heap.Heap
	Mutexes   *mutexes.Registry
	Channels  *channels.Registry
	Tasks     []*vmtask.Task
	Timers    []TimerEntry
	Timestamp int64
}

// Read parses a snapshot produced by Write, validating the header,
// endianness marker and trailing checksum before reconstructing any
// state (spec.md section 4.6's reader sequence, steps 1-3). reg seeds the
// restored heap's type registry, since a freshly restored heap needs to
// know the pointer-map shape of any host-registered class types before
// objects are allocated into it.
func Read(r io.Reader, reg *heap.TypeRegistry) (*Restored, error) {
	all, err := io.ReadAll(r)
	if err != nil {
		return nil, newError(ErrIoError, "reading snapshot: %v", err)
	}
	if len(all) < HeaderSize {
		return nil, newError(ErrCorruptedData, "snapshot shorter than header")
	}

	hdr, err := parseHeader(all[:HeaderSize])
	if err != nil {
		return nil, err
	}

	body := all[HeaderSize:]
	if int(hdr.ChecksumOffset) < HeaderSize || int(hdr.ChecksumOffset)+32 > len(all) {
		return nil, newError(ErrCorruptedData, "checksum offset out of range")
	}
	payloadEnd := int(hdr.ChecksumOffset) - HeaderSize
	if payloadEnd < 0 || payloadEnd > len(body) {
		return nil, newError(ErrCorruptedData, "checksum offset out of range")
	}
	segmentBytes := body[:payloadEnd]
	storedChecksum := all[hdr.ChecksumOffset : hdr.ChecksumOffset+32]

	segments, payloadsOnly, err := parseSegments(segmentBytes)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(payloadsOnly)
	if !bytes.Equal(sum[:], storedChecksum) {
		return nil, newError(ErrChecksumMismatch, "trailer does not match recomputed segment checksum")
	}

	out := &Restored{
		Heap:      heap.NewHeap(reg),
		Mutexes:   mutexes.NewRegistry(),
		Channels:  channels.NewRegistry(),
		Timestamp: int64(hdr.TimestampMs),
	}

	for _, seg := range segments {
		switch seg.typ {
		case SegmentMetadata:
			modules, err := readMetadataSegment(seg.payload)
			if err != nil {
				return nil, err
			}
			out.Modules = modules
		case SegmentHeap:
			if err := readHeapSegment(seg.payload, out.Heap); err != nil {
				return nil, err
			}
		case SegmentTask:
			tasks, err := readTaskSegment(seg.payload)
			if err != nil {
				return nil, err
			}
			out.Tasks = tasks
		case SegmentScheduler:
			timers, err := readSchedulerSegment(seg.payload)
			if err != nil {
				return nil, err
			}
			out.Timers = timers
		case SegmentSync:
			if err := readSyncSegment(seg.payload, out.Mutexes); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func parseHeader(b []byte) (Header, error) {
	var h Header
	h.Magic = binary.LittleEndian.Uint64(b[0:8])
	if h.Magic != Magic {
		return h, newError(ErrInvalidMagic, "got %#x", h.Magic)
	}
	h.Version = binary.LittleEndian.Uint32(b[8:12])
	if h.Version != FormatVersion {
		return h, newError(ErrIncompatibleVersion, "expected %d, got %d", FormatVersion, h.Version)
	}
	h.Flags = binary.LittleEndian.Uint32(b[12:16])
	h.Endianness = binary.LittleEndian.Uint32(b[16:20])
	if h.Endianness != endiannessMarker {
		return h, newError(ErrEndiannessMismatch, "got %#x, expected %#x", h.Endianness, endiannessMarker)
	}
	h.TimestampMs = binary.LittleEndian.Uint64(b[20:28])
	h.ChecksumOffset = binary.LittleEndian.Uint32(b[28:32])
	return h, nil
}

type parsedSegment struct {
	typ     SegmentType
	payload []byte
}

// parseSegments splits the region between the header and the checksum
// trailer into individual segments, also returning the concatenation of
// their payloads (without per-segment headers) for checksum verification.
func parseSegments(b []byte) ([]parsedSegment, []byte, error) {
	var segments []parsedSegment
	var payloads bytes.Buffer
	off := 0
	for off < len(b) {
		if off+segmentHeaderSize > len(b) {
			return nil, nil, newError(ErrCorruptedData, "truncated segment header")
		}
		typ := SegmentType(b[off])
		length := binary.LittleEndian.Uint64(b[off+4 : off+12])
		off += segmentHeaderSize
		if off+int(length) > len(b) {
			return nil, nil, newError(ErrCorruptedData, "truncated segment payload")
		}
		payload := b[off : off+int(length)]
		segments = append(segments, parsedSegment{typ: typ, payload: payload})
		payloads.Write(payload)
		off += int(length)
	}
	return segments, payloads.Bytes(), nil
}
