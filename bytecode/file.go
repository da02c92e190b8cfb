// .ryb container encode/decode (spec.md section 6, "Compiled module
// file"): an 8-byte magic, a u32 version, a u32 checksum-offset,
// segments for the module header/constants/functions/classes/exports/
// imports/metadata, and a SHA-256 trailer over the segment payload.
//
// Grounded on the same segment-header-plus-trailer shape the snapshot
// package uses for its own file format (snapshot/writer.go,
// snapshot/reader.go), itself generalized from db/writer.go and
// db/reader.go's line-oriented checkpoint format into a binary one.
// Unlike a snapshot, a .ryb file is the sole on-disk representation of
// a module (there is no separate "reload from source" path in this
// core, since compilation is out of scope), so every field the Module
// struct holds round-trips here, not just an identity summary.
package bytecode

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"raya/value"
)

// fileMagic is Magic padded to the 8 bytes spec.md's external-interface
// section specifies for the .ryb header (Magic itself stays 4 bytes,
// matching the in-memory Module doc comment's `"RAYA"` literal).
var fileMagic = [8]byte{'R', 'A', 'Y', 'A', 0, 0, 0, 0}

const fileHeaderSize = 8 + 4 + 4 // magic + version + checksum offset

type fileSegmentType uint8

const (
	segModuleInfo fileSegmentType = iota
	segConstants
	segFunctions
	segClasses
	segExports
	segImports
	segMetadata
)

const fileSegmentHeaderSize = 1 + 8 // type + length

// FileError reports a .ryb load failure, distinguishing the cases a
// reference CLI needs to map onto spec.md section 6's load/link exit
// code versus a plain I/O failure.
type FileError struct {
	Message string
}

func (e *FileError) Error() string { return "bytecode: " + e.Message }

func fileErrorf(format string, args ...any) *FileError {
	return &FileError{Message: fmt.Sprintf(format, args...)}
}

// WriteModule encodes m as a complete .ryb file. The module's stored
// Checksum is written verbatim (not recomputed), so a caller that wants
// the written file to verify must call m.ComputeChecksum() into
// m.Checksum first.
func WriteModule(w io.Writer, m *Module) error {
	segments := []struct {
		typ     fileSegmentType
		payload []byte
	}{
		{segModuleInfo, writeModuleInfoSegment(m)},
		{segConstants, writeConstantsSegment(m)},
		{segFunctions, writeFunctionsSegment(m)},
		{segClasses, writeClassesSegment(m)},
		{segExports, writeExportsSegment(m)},
		{segImports, writeImportsSegment(m)},
		{segMetadata, writeMetadataSegment(m)},
	}

	sum := sha256.New()
	for _, s := range segments {
		sum.Write(s.payload)
	}
	trailer := sum.Sum(nil)

	bodyLen := 0
	for _, s := range segments {
		bodyLen += fileSegmentHeaderSize + len(s.payload)
	}
	checksumOffset := uint32(fileHeaderSize + bodyLen)

	var hdr [fileHeaderSize]byte
	copy(hdr[0:8], fileMagic[:])
	binary.LittleEndian.PutUint32(hdr[8:12], FormatVersion)
	binary.LittleEndian.PutUint32(hdr[12:16], checksumOffset)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	for _, s := range segments {
		var sh [fileSegmentHeaderSize]byte
		sh[0] = byte(s.typ)
		binary.LittleEndian.PutUint64(sh[1:9], uint64(len(s.payload)))
		if _, err := w.Write(sh[:]); err != nil {
			return err
		}
		if _, err := w.Write(s.payload); err != nil {
			return err
		}
	}
	_, err := w.Write(trailer)
	return err
}

// ReadModule parses a .ryb file written by WriteModule, verifying the
// magic, format version and trailing checksum before reconstructing the
// module. A version mismatch is reported distinctly so a caller can
// surface "cross-version load" per spec.md section 6 rather than a
// generic corruption error.
func ReadModule(r io.Reader) (*Module, error) {
	all, err := io.ReadAll(r)
	if err != nil {
		return nil, fileErrorf("reading module file: %v", err)
	}
	if len(all) < fileHeaderSize {
		return nil, fileErrorf("file shorter than header")
	}
	if !bytes.Equal(all[0:8], fileMagic[:]) {
		return nil, fileErrorf("invalid magic")
	}
	version := binary.LittleEndian.Uint32(all[8:12])
	if version != FormatVersion {
		return nil, fileErrorf("incompatible format version: got %d, want %d", version, FormatVersion)
	}
	checksumOffset := binary.LittleEndian.Uint32(all[12:16])
	if int(checksumOffset) < fileHeaderSize || int(checksumOffset)+32 > len(all) {
		return nil, fileErrorf("checksum offset out of range")
	}

	body := all[fileHeaderSize:checksumOffset]
	storedTrailer := all[checksumOffset : checksumOffset+32]

	segments, payloadsOnly, err := parseFileSegments(body)
	if err != nil {
		return nil, err
	}
	trailer := sha256.Sum256(payloadsOnly)
	if !bytes.Equal(trailer[:], storedTrailer) {
		return nil, fileErrorf("trailer does not match recomputed segment checksum")
	}

	m := &Module{}
	for _, seg := range segments {
		switch seg.typ {
		case segModuleInfo:
			if err := readModuleInfoSegment(seg.payload, m); err != nil {
				return nil, err
			}
		case segConstants:
			if err := readConstantsSegment(seg.payload, m); err != nil {
				return nil, err
			}
		case segFunctions:
			if err := readFunctionsSegment(seg.payload, m); err != nil {
				return nil, err
			}
		case segClasses:
			if err := readClassesSegment(seg.payload, m); err != nil {
				return nil, err
			}
		case segExports:
			if err := readExportsSegment(seg.payload, m); err != nil {
				return nil, err
			}
		case segImports:
			if err := readImportsSegment(seg.payload, m); err != nil {
				return nil, err
			}
		case segMetadata:
			if err := readMetadataFileSegment(seg.payload, m); err != nil {
				return nil, err
			}
		}
	}
	if !m.VerifyChecksum() {
		return nil, fileErrorf("module %q content checksum does not match stored checksum", m.Name)
	}
	return m, nil
}

type parsedFileSegment struct {
	typ     fileSegmentType
	payload []byte
}

func parseFileSegments(b []byte) ([]parsedFileSegment, []byte, error) {
	var segments []parsedFileSegment
	var payloads bytes.Buffer
	off := 0
	for off < len(b) {
		if off+fileSegmentHeaderSize > len(b) {
			return nil, nil, fileErrorf("truncated segment header")
		}
		typ := fileSegmentType(b[off])
		length := binary.LittleEndian.Uint64(b[off+1 : off+9])
		off += fileSegmentHeaderSize
		if off+int(length) > len(b) {
			return nil, nil, fileErrorf("truncated segment payload")
		}
		payload := b[off : off+int(length)]
		segments = append(segments, parsedFileSegment{typ: typ, payload: payload})
		payloads.Write(payload)
		off += int(length)
	}
	return segments, payloads.Bytes(), nil
}

// --- byteWriter/byteReader: a package-local copy of the snapshot
// package's typed read/write helpers (raya/snapshot's codec.go), kept
// separate since bytecode must not import snapshot (snapshot already
// imports bytecode, and a cycle would follow).

type fileWriter struct {
	buf bytes.Buffer
}

func (w *fileWriter) u8(v uint8)  { w.buf.WriteByte(v) }
func (w *fileWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}
func (w *fileWriter) i32(v int) { w.u32(uint32(int32(v))) }
func (w *fileWriter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *fileWriter) bytesBlob(b []byte) {
	w.u32(uint32(len(b)))
	w.buf.Write(b)
}

func (w *fileWriter) str(s string) { w.bytesBlob([]byte(s)) }

func (w *fileWriter) strs(ss []string) {
	w.u32(uint32(len(ss)))
	for _, s := range ss {
		w.str(s)
	}
}

type fileReader struct {
	r   *bytes.Reader
	err error
}

func newFileReader(b []byte) *fileReader { return &fileReader{r: bytes.NewReader(b)} }

func (r *fileReader) u8() uint8 {
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

func (r *fileReader) read(n int) []byte {
	if r.err != nil {
		return nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		r.err = err
		return nil
	}
	return b
}

func (r *fileReader) u32() uint32 {
	b := r.read(4)
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *fileReader) i32() int { return int(int32(r.u32())) }

func (r *fileReader) u64() uint64 {
	b := r.read(8)
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *fileReader) bytesBlob() []byte {
	n := r.u32()
	if r.err != nil {
		return nil
	}
	return r.read(int(n))
}

func (r *fileReader) str() string { return string(r.bytesBlob()) }

func (r *fileReader) strs() []string {
	n := r.u32()
	if r.err != nil || n == 0 {
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = r.str()
	}
	return out
}

// --- segment codecs ---

func writeModuleInfoSegment(m *Module) []byte {
	w := &fileWriter{}
	w.str(m.Name)
	w.u32(m.Version)
	w.bytesBlob(m.Checksum[:])
	return w.buf.Bytes()
}

func readModuleInfoSegment(payload []byte, m *Module) error {
	r := newFileReader(payload)
	m.Name = r.str()
	m.Version = r.u32()
	checksum := r.bytesBlob()
	if r.err != nil {
		return fileErrorf("module info segment: %v", r.err)
	}
	copy(m.Checksum[:], checksum)
	return nil
}

func writeConstantsSegment(m *Module) []byte {
	w := &fileWriter{}
	w.u32(uint32(len(m.Constants)))
	for _, c := range m.Constants {
		w.u64(c.ToBits())
	}
	w.strs(m.ConstantStrings)
	return w.buf.Bytes()
}

func readConstantsSegment(payload []byte, m *Module) error {
	r := newFileReader(payload)
	n := r.u32()
	consts := make([]value.Value, 0, n)
	for i := uint32(0); i < n && r.err == nil; i++ {
		consts = append(consts, value.FromBits(r.u64()))
	}
	m.Constants = consts
	m.ConstantStrings = r.strs()
	if r.err != nil {
		return fileErrorf("constants segment: %v", r.err)
	}
	return nil
}

func writeFunctionsSegment(m *Module) []byte {
	w := &fileWriter{}
	w.u32(uint32(len(m.Functions)))
	for _, fn := range m.Functions {
		w.str(fn.Name)
		w.u32(uint32(fn.ParamCount))
		w.u32(uint32(fn.LocalCount))
		w.bytesBlob(fn.Code)
		w.u32(uint32(len(fn.LineTable)))
		for _, e := range fn.LineTable {
			w.u32(uint32(e.StartIP))
			w.u32(uint32(e.Line))
		}
	}
	return w.buf.Bytes()
}

func readFunctionsSegment(payload []byte, m *Module) error {
	r := newFileReader(payload)
	n := r.u32()
	fns := make([]Function, 0, n)
	for i := uint32(0); i < n && r.err == nil; i++ {
		var fn Function
		fn.Name = r.str()
		fn.ParamCount = int(r.u32())
		fn.LocalCount = int(r.u32())
		fn.Code = r.bytesBlob()
		lineCount := r.u32()
		for j := uint32(0); j < lineCount && r.err == nil; j++ {
			start := int(r.u32())
			line := int(r.u32())
			fn.LineTable = append(fn.LineTable, LineEntry{StartIP: start, Line: line})
		}
		fns = append(fns, fn)
	}
	if r.err != nil {
		return fileErrorf("functions segment: %v", r.err)
	}
	m.Functions = fns
	return nil
}

func writeClassesSegment(m *Module) []byte {
	w := &fileWriter{}
	w.u32(uint32(len(m.Classes)))
	for _, c := range m.Classes {
		w.str(c.Name)
		w.i32(c.SuperID)
		w.u32(uint32(c.FieldCount))
		w.strs(c.FieldNames)
		w.u32(uint32(len(c.Vtable)))
		for _, meth := range c.Vtable {
			w.str(meth.Name)
			w.u32(uint32(meth.FunctionID))
		}
	}
	return w.buf.Bytes()
}

func readClassesSegment(payload []byte, m *Module) error {
	r := newFileReader(payload)
	n := r.u32()
	classes := make([]Class, 0, n)
	for i := uint32(0); i < n && r.err == nil; i++ {
		var c Class
		c.Name = r.str()
		c.SuperID = r.i32()
		c.FieldCount = int(r.u32())
		c.FieldNames = r.strs()
		vtableLen := r.u32()
		for j := uint32(0); j < vtableLen && r.err == nil; j++ {
			name := r.str()
			fid := int(r.u32())
			c.Vtable = append(c.Vtable, Method{Name: name, FunctionID: fid})
		}
		classes = append(classes, c)
	}
	if r.err != nil {
		return fileErrorf("classes segment: %v", r.err)
	}
	m.Classes = classes
	return nil
}

func writeExportsSegment(m *Module) []byte {
	w := &fileWriter{}
	w.u32(uint32(len(m.Exports)))
	for _, e := range m.Exports {
		w.str(e.Name)
		w.u8(uint8(e.Kind))
		w.u32(uint32(e.Index))
	}
	return w.buf.Bytes()
}

func readExportsSegment(payload []byte, m *Module) error {
	r := newFileReader(payload)
	n := r.u32()
	exports := make([]Export, 0, n)
	for i := uint32(0); i < n && r.err == nil; i++ {
		name := r.str()
		kind := SymbolKind(r.u8())
		index := int(r.u32())
		exports = append(exports, Export{Name: name, Kind: kind, Index: index})
	}
	if r.err != nil {
		return fileErrorf("exports segment: %v", r.err)
	}
	m.Exports = exports
	return nil
}

func writeImportsSegment(m *Module) []byte {
	w := &fileWriter{}
	w.u32(uint32(len(m.Imports)))
	for _, imp := range m.Imports {
		w.str(imp.Specifier)
		w.str(imp.Name)
		w.u8(uint8(imp.ExpectedKind))
	}
	return w.buf.Bytes()
}

func readImportsSegment(payload []byte, m *Module) error {
	r := newFileReader(payload)
	n := r.u32()
	imports := make([]Import, 0, n)
	for i := uint32(0); i < n && r.err == nil; i++ {
		spec := r.str()
		name := r.str()
		kind := SymbolKind(r.u8())
		imports = append(imports, Import{Specifier: spec, Name: name, ExpectedKind: kind})
	}
	if r.err != nil {
		return fileErrorf("imports segment: %v", r.err)
	}
	m.Imports = imports
	return nil
}

func writeMetadataSegment(m *Module) []byte {
	w := &fileWriter{}
	w.u32(uint32(len(m.Metadata)))
	for k, v := range m.Metadata {
		w.str(k)
		w.str(v)
	}
	return w.buf.Bytes()
}

func readMetadataFileSegment(payload []byte, m *Module) error {
	r := newFileReader(payload)
	n := r.u32()
	meta := make(map[string]string, n)
	for i := uint32(0); i < n && r.err == nil; i++ {
		k := r.str()
		v := r.str()
		meta[k] = v
	}
	if r.err != nil {
		return fileErrorf("metadata segment: %v", r.err)
	}
	m.Metadata = meta
	return nil
}
