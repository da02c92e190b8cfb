package interp

import (
	"sync"

	"raya/bytecode"
	"raya/channels"
	"raya/heap"
	"raya/mutexes"
	"raya/rerr"
	"raya/value"
	"raya/vmtask"
)

// Host is everything the interpreter needs from the surrounding VM
// context but does not own itself: the heap, the loaded module table,
// the mutex registry, task lookup/creation, scheduler hand-off, the
// global variable table, and the native dispatch table. Implemented by
// package vmhost; kept as an interface here so interp never imports
// vmhost (vmhost imports interp, not the reverse).
type Host interface {
	Heap() *heap.Heap
	Module(moduleID int) *bytecode.Module
	Mutexes() *mutexes.Registry
	Channels() *channels.Registry

	// NewTask allocates a task row (Created state) for a SPAWN opcode or
	// a host-level spawn() call, without scheduling it.
	NewTask(functionID, moduleID int, args []value.Value, parentID int64) *vmtask.Task

	// ScheduleTask hands a freshly created or freshly woken task to the
	// scheduler's global injector.
	ScheduleTask(taskID int64)

	TaskByID(taskID int64) *vmtask.Task

	Globals() *Globals

	Natives() NativeTable

	// NowMillis returns the current wall-clock time in Unix milliseconds,
	// used by SLEEP to compute wake_at. A method rather than time.Now()
	// directly so tests can inject a deterministic clock.
	NowMillis() int64
}

// Globals is the module-level variable table, guarded for concurrent
// access from multiple tasks running on different workers (spec.md
// section 5: "globals ... guarded by fine-grained locks").
type Globals struct {
	mu      sync.RWMutex
	byIndex map[uint16]value.Value
}

// NewGlobals creates an empty global table.
func NewGlobals() *Globals { return &Globals{byIndex: make(map[uint16]value.Value)} }

// Load returns the value at index, or Null if never stored.
func (g *Globals) Load(index uint16) value.Value {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if v, ok := g.byIndex[index]; ok {
		return v
	}
	return value.Null()
}

// Store sets the value at index.
func (g *Globals) Store(index uint16, v value.Value) {
	g.mu.Lock()
	g.byIndex[index] = v
	g.mu.Unlock()
}

// Values returns every stored global, for GC root enumeration.
func (g *Globals) Values() []value.Value {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]value.Value, 0, len(g.byIndex))
	for _, v := range g.byIndex {
		out = append(out, v)
	}
	return out
}

// NativeDirective is what a native handler returns: either a value, an
// exception, or a request to suspend the calling task (spec.md section
// 4.7: "produce-value, produce-exception, suspend-with-reason").
type NativeDirective struct {
	Kind      NativeDirectiveKind
	Value     value.Value
	Err       *rerr.RuntimeError
	Suspend   *vmtask.SuspendReason
}

type NativeDirectiveKind int

const (
	NativeValue NativeDirectiveKind = iota
	NativeException
	NativeSuspend
)

// NativeHandler implements one native-call id. ctx gives it heap and
// task access without depending on the whole Host interface.
type NativeHandler func(ctx *NativeContext, args []value.Value) NativeDirective

// NativeContext is the "context (heap access, current task, shared
// state)" a native handler receives per spec.md section 4.7.
type NativeContext struct {
	Host Host
	Task *vmtask.Task
}

// NativeTable routes a u16 native-call id to its handler (spec.md
// section 4.7's "process-wide table"). Implemented by package native.
type NativeTable interface {
	Lookup(id uint16) (NativeHandler, bool)
}
