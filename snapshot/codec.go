package snapshot

import (
	"bytes"
	"encoding/binary"

	"raya/value"
)

// byteWriter is a small typed-write-helper wrapper over a growing buffer,
// grounded on db/writer.go's Writer (writeInt/writeInt64/writeIntRaw):
// the same idiom of one method per fixed-width field, applied here to a
// binary rather than a "%d\n" text encoding.
type byteWriter struct {
	buf bytes.Buffer
}

func (w *byteWriter) u8(v uint8)   { w.buf.WriteByte(v) }
func (w *byteWriter) u16(v uint16) { var b [2]byte; binary.LittleEndian.PutUint16(b[:], v); w.buf.Write(b[:]) }
func (w *byteWriter) u32(v uint32) { var b [4]byte; binary.LittleEndian.PutUint32(b[:], v); w.buf.Write(b[:]) }
func (w *byteWriter) u64(v uint64) { var b [8]byte; binary.LittleEndian.PutUint64(b[:], v); w.buf.Write(b[:]) }
func (w *byteWriter) i64(v int64)  { w.u64(uint64(v)) }
func (w *byteWriter) boolean(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *byteWriter) bytesBlob(b []byte) {
	w.u32(uint32(len(b)))
	w.buf.Write(b)
}

func (w *byteWriter) str(s string) { w.bytesBlob([]byte(s)) }

func (w *byteWriter) value(v value.Value) { w.u64(v.ToBits()) }

func (w *byteWriter) values(vs []value.Value) {
	w.u32(uint32(len(vs)))
	for _, v := range vs {
		w.value(v)
	}
}

func (w *byteWriter) ints64(ids []int64) {
	w.u32(uint32(len(ids)))
	for _, id := range ids {
		w.i64(id)
	}
}

func (w *byteWriter) uints64(ids []uint64) {
	w.u32(uint32(len(ids)))
	for _, id := range ids {
		w.u64(id)
	}
}

// byteReader mirrors byteWriter, sticking its first error so call sites can
// chain reads and check err once at the end (the same sticky-error idiom
// bufio.Writer uses).
type byteReader struct {
	r   *bytes.Reader
	err error
}

func newByteReader(b []byte) *byteReader { return &byteReader{r: bytes.NewReader(b)} }

func (r *byteReader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	b, err := r.r.ReadByte()
	if err != nil {
		r.err = err
		return 0
	}
	return b
}

func (r *byteReader) read(n int) []byte {
	if r.err != nil {
		return nil
	}
	b := make([]byte, n)
	if _, err := r.r.Read(b); err != nil {
		r.err = err
		return nil
	}
	return b
}

func (r *byteReader) u16() uint16 {
	b := r.read(2)
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *byteReader) u32() uint32 {
	b := r.read(4)
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *byteReader) u64() uint64 {
	b := r.read(8)
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *byteReader) i64() int64 { return int64(r.u64()) }

func (r *byteReader) boolean() bool { return r.u8() != 0 }

func (r *byteReader) bytesBlob() []byte {
	n := r.u32()
	if r.err != nil {
		return nil
	}
	return r.read(int(n))
}

func (r *byteReader) str() string { return string(r.bytesBlob()) }

func (r *byteReader) value() value.Value { return value.FromBits(r.u64()) }

func (r *byteReader) values() []value.Value {
	n := r.u32()
	if r.err != nil || n == 0 {
		return nil
	}
	out := make([]value.Value, n)
	for i := range out {
		out[i] = r.value()
	}
	return out
}

func (r *byteReader) ints64() []int64 {
	n := r.u32()
	if r.err != nil || n == 0 {
		return nil
	}
	out := make([]int64, n)
	for i := range out {
		out[i] = r.i64()
	}
	return out
}

func (r *byteReader) uints64() []uint64 {
	n := r.u32()
	if r.err != nil || n == 0 {
		return nil
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = r.u64()
	}
	return out
}
