// Package native implements Raya's process-wide NATIVE_CALL dispatch
// table (spec.md section 4.7): a dense u16 id space split into ranges
// (logger, math, json, reflect, runtime, crypto), each handler receiving
// a *interp.NativeContext and the popped argument Values.
//
// Grounded on builtins/registry.go's Registry (a name-to-id-to-handler
// dual map plus a VerbCallerFunc hook), generalized from MOO's
// name-keyed builtin lookup to spec.md's dense u16 id ranges. The
// by-name map survives as a debug/introspection aid, matching the
// teacher's own GetID/Has accessors.
package native

import "raya/interp"

// Range boundaries from spec.md section 4.7.
const (
	rangeJSONStart    = 0x0C00
	rangeJSONEnd      = 0x0CFF
	rangeReflectStart = 0x0D00
	rangeReflectEnd   = 0x0E2F
	rangeLoggerStart  = 0x1000
	rangeLoggerEnd    = 0x100F
	rangeMathStart    = 0x2000
	rangeMathEnd      = 0x20FF
	rangeRuntimeStart = 0x3000
	rangeRuntimeEnd   = 0x30FF
	rangeCryptoStart  = 0x4000
	rangeCryptoEnd    = 0x40FF
)

// Table is the process-wide native dispatch table, implementing
// interp.NativeTable. One Table is normally shared by every VM context.
type Table struct {
	byID   map[uint16]interp.NativeHandler
	byName map[string]uint16
}

// New builds a Table with every standard-library range registered.
func New() *Table {
	t := &Table{
		byID:   make(map[uint16]interp.NativeHandler),
		byName: make(map[string]uint16),
	}
	t.registerLogger()
	t.registerMath()
	t.registerJSON()
	t.registerReflect()
	t.registerRuntime()
	t.registerCrypto()
	return t
}

// Register installs handler at id under name, for introspection by name
// (NATIVE_CALL itself only ever dispatches by id).
func (t *Table) Register(id uint16, name string, handler interp.NativeHandler) {
	t.byID[id] = handler
	t.byName[name] = id
}

// Lookup implements interp.NativeTable.
func (t *Table) Lookup(id uint16) (interp.NativeHandler, bool) {
	h, ok := t.byID[id]
	return h, ok
}

// GetID returns the id a handler was registered under by name, mirroring
// builtins.Registry.GetID for host-side introspection.
func (t *Table) GetID(name string) (uint16, bool) {
	id, ok := t.byName[name]
	return id, ok
}
