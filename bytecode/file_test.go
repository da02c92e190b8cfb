package bytecode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"raya/value"
)

func sampleModule() *Module {
	m := &Module{
		Name:            "math",
		Version:         1,
		Constants:       []value.Value{value.Int32(7), value.Bool(true)},
		ConstantStrings: []string{"pi"},
		Functions: []Function{
			{
				Name:       "add",
				ParamCount: 2,
				LocalCount: 2,
				Code:       []byte{0x01, 0x02, 0x03},
				LineTable:  []LineEntry{{StartIP: 0, Line: 1}, {StartIP: 2, Line: 2}},
			},
		},
		Classes: []Class{
			{
				Name:       "Point",
				SuperID:    -1,
				FieldCount: 2,
				FieldNames: []string{"x", "y"},
				Vtable:     []Method{{Name: "length", FunctionID: 0}},
			},
		},
		Exports: []Export{{Name: "add", Kind: SymbolFunction, Index: 0}},
		Imports: []Import{{Specifier: "std/io", Name: "print", ExpectedKind: SymbolFunction}},
		Metadata: map[string]string{
			"source": "math.raya",
		},
	}
	m.Checksum = m.ComputeChecksum()
	return m
}

func TestWriteModuleThenReadModuleRoundTrips(t *testing.T) {
	m := sampleModule()

	var buf bytes.Buffer
	require.NoError(t, WriteModule(&buf, m))

	got, err := ReadModule(&buf)
	require.NoError(t, err)

	require.Equal(t, m.Name, got.Name)
	require.Equal(t, m.Version, got.Version)
	require.Equal(t, m.Checksum, got.Checksum)
	require.Equal(t, m.Constants, got.Constants)
	require.Equal(t, m.ConstantStrings, got.ConstantStrings)
	require.Equal(t, m.Functions, got.Functions)
	require.Equal(t, m.Classes, got.Classes)
	require.Equal(t, m.Exports, got.Exports)
	require.Equal(t, m.Imports, got.Imports)
	require.Equal(t, m.Metadata, got.Metadata)
	require.True(t, got.VerifyChecksum())
}

func TestReadModuleRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteModule(&buf, sampleModule()))
	corrupted := buf.Bytes()
	corrupted[0] = 'X'

	_, err := ReadModule(bytes.NewReader(corrupted))
	require.Error(t, err)
}

func TestReadModuleRejectsTamperedPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteModule(&buf, sampleModule()))
	corrupted := buf.Bytes()
	// Flip a byte inside the segment region, after the fixed header and
	// before the trailer, so the stored magic/version stay valid but the
	// recomputed trailer no longer matches.
	corrupted[fileHeaderSize+fileSegmentHeaderSize] ^= 0xFF

	_, err := ReadModule(bytes.NewReader(corrupted))
	require.Error(t, err)
}

func TestReadModuleRejectsWrongVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteModule(&buf, sampleModule()))
	corrupted := buf.Bytes()
	corrupted[8] = 0xFF

	_, err := ReadModule(bytes.NewReader(corrupted))
	require.Error(t, err)
}
