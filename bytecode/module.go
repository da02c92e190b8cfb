// Package bytecode holds the in-memory representation of a loaded Raya
// compilation unit: the module header, constant pool, function table, class
// table, and import/export tables described by spec.md section 3 ("Module").
//
// Grounded on barn/vm's Program (vm/program.go) for the function/constant
// layout, and on barn/db's object/checksum handling (db/object.go,
// db/writer.go) for the segment-oriented, checksum-trailered file format
// generalized here into the .ryb container of spec.md section 6.
package bytecode

import (
	"crypto/sha256"
	"fmt"

	"raya/value"
)

// Magic is the fixed 4-byte module identifier ("RAYA").
const Magic = "RAYA"

// FormatVersion is the module format version this core understands.
const FormatVersion uint32 = 1

// SymbolKind distinguishes exported function vs. class symbols.
type SymbolKind uint8

const (
	SymbolFunction SymbolKind = iota
	SymbolClass
	// SymbolAny marks an Import that does not constrain which kind of
	// symbol it expects, so linking never reports TypeMismatch for it.
	SymbolAny
)

// Export maps an exported name to a symbol kind and table index.
type Export struct {
	Name string
	Kind SymbolKind
	Index int
}

// Import names a symbol a module expects to resolve from another module.
// ExpectedKind lets the linker catch a function imported as a class (or
// vice versa) as TypeMismatch rather than a confusing later failure;
// SymbolAny opts out of the check.
type Import struct {
	Specifier    string // module specifier, e.g. an import path
	Name         string
	ExpectedKind SymbolKind
}

// Function is a bytecode blob plus the counts the interpreter needs to set
// up a call frame: parameter count, local slot count, and the code itself.
// Opcodes are variable length; the instruction pointer is a byte offset
// into Code (spec.md section 3, "Function").
type Function struct {
	Name        string
	ParamCount  int
	LocalCount  int
	Code        []byte
	LineTable   []LineEntry // optional debug info, see SPEC_FULL.md supplements
}

// LineEntry maps a byte offset (first IP at or after StartIP) to a source
// line, grounded on barn/vm/program.go's Program.LineForIP helper.
type LineEntry struct {
	StartIP int
	Line    int
}

// LineForIP returns the source line active at ip, or 0 if no line table is
// present. Mirrors barn's Program.LineForIP.
func (f *Function) LineForIP(ip int) int {
	line := 0
	for _, e := range f.LineTable {
		if e.StartIP > ip {
			break
		}
		line = e.Line
	}
	return line
}

// Method is one vtable slot: a method name bound to a function index.
type Method struct {
	Name       string
	FunctionID int
}

// Class is a single-inheritance class with a flat vtable resolved at link
// time (spec.md section 9, "Deep inheritance"). SuperID is -1 for a class
// with no superclass.
type Class struct {
	Name       string
	SuperID    int
	FieldCount int
	FieldNames []string
	Vtable     []Method // flat array indexed by method slot
}

// MethodSlot returns the vtable slot index for name, or -1 if not present.
func (c *Class) MethodSlot(name string) int {
	for i, m := range c.Vtable {
		if m.Name == name {
			return i
		}
	}
	return -1
}

// Module is an immutable, loaded compilation unit (spec.md section 3).
type Module struct {
	Name      string
	Version   uint32
	Checksum  [32]byte
	Constants []value.Value
	ConstantStrings []string // side table: string constants by constant-pool index (strings live on the heap, not in Value)
	Functions []Function
	Classes   []Class
	Exports   []Export
	Imports   []Import
	Metadata  map[string]string
}

// FunctionByName looks up a function index by name, used by the loader's
// export table and by the host's spawn(module, entry_name, args) call.
func (m *Module) FunctionByName(name string) (int, bool) {
	for i, fn := range m.Functions {
		if fn.Name == name {
			return i, true
		}
	}
	return -1, false
}

// ComputeChecksum returns the SHA-256 of the module's constant, function and
// class tables, matching the "content checksum" field of spec.md section 3.
func (m *Module) ComputeChecksum() [32]byte {
	h := sha256.New()
	fmt.Fprintf(h, "module:%s:v%d\n", m.Name, m.Version)
	for _, s := range m.ConstantStrings {
		fmt.Fprintf(h, "const:%s\n", s)
	}
	for _, fn := range m.Functions {
		fmt.Fprintf(h, "fn:%s:%d:%d:%x\n", fn.Name, fn.ParamCount, fn.LocalCount, fn.Code)
	}
	for _, c := range m.Classes {
		fmt.Fprintf(h, "class:%s:%d\n", c.Name, c.SuperID)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// VerifyChecksum reports whether the module's stored Checksum matches its
// recomputed content checksum.
func (m *Module) VerifyChecksum() bool {
	return m.ComputeChecksum() == m.Checksum
}
