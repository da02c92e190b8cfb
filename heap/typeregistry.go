package heap

import "sync"

// PointerMapKind describes which fields of a type's body are outgoing
// references the GC mark phase must follow (spec.md Glossary, "Pointer
// map").
type PointerMapKind uint8

const (
	// PointerMapNone means the body holds no outgoing references (e.g. a
	// string or raw byte buffer).
	PointerMapNone PointerMapKind = iota
	// PointerMapAll means every value.Value the body exposes via Heap.refs is a
	// potential reference (arrays, instances, closures).
	PointerMapAll
)

// DropFunc runs when the sweeper frees an unmarked object, e.g. to release
// an externally-held resource. Most Raya types need none.
type DropFunc func(*Object)

// TypeInfo is the registry's per-type metadata: how the GC should treat a
// body, and an optional destructor.
type TypeInfo struct {
	Name       string
	PointerMap PointerMapKind
	Drop       DropFunc
}

// TypeRegistry maps a TypeID to its TypeInfo. Grounded on barn/db's object
// flags plus vm/anonymous_gc.go's implicit "which fields hold object
// references" knowledge, generalized into an explicit, lockable table so
// host-registered class types can be added at module-load time (spec.md
// section 5, "type registry... guarded by fine-grained locks (read-mostly)").
type TypeRegistry struct {
	mu    sync.RWMutex
	infos map[TypeID]TypeInfo
}

// NewTypeRegistry creates a registry pre-seeded with the built-in type ids.
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{infos: make(map[TypeID]TypeInfo)}
	r.Register(TypeString, TypeInfo{Name: "string", PointerMap: PointerMapNone})
	r.Register(TypeArray, TypeInfo{Name: "array", PointerMap: PointerMapAll})
	r.Register(TypeInstance, TypeInfo{Name: "instance", PointerMap: PointerMapAll})
	r.Register(TypeClosure, TypeInfo{Name: "closure", PointerMap: PointerMapAll})
	r.Register(TypeMutex, TypeInfo{Name: "mutex", PointerMap: PointerMapNone})
	r.Register(TypeChannel, TypeInfo{Name: "channel", PointerMap: PointerMapNone})
	r.Register(TypeBuffer, TypeInfo{Name: "buffer", PointerMap: PointerMapNone})
	r.Register(TypeDate, TypeInfo{Name: "date", PointerMap: PointerMapNone})
	r.Register(TypeRegex, TypeInfo{Name: "regex", PointerMap: PointerMapNone})
	return r
}

// Register installs or replaces a type's metadata. NewTypeRegistry calls it
// for the built-in ids; nothing else in this module registers types.
func (r *TypeRegistry) Register(id TypeID, info TypeInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos[id] = info
}

// Lookup returns the TypeInfo for id, or the zero value (PointerMapNone, no
// drop) if unregistered — treating unknown types conservatively as leaves.
func (r *TypeRegistry) Lookup(id TypeID) TypeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.infos[id]
}
