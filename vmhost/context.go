package vmhost

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"raya/bytecode"
	"raya/channels"
	"raya/heap"
	"raya/interp"
	"raya/mutexes"
	"raya/native"
	"raya/scheduler"
	"raya/value"
	"raya/vmtask"
)

// VmContext is Raya's embedding surface: it owns every subsystem a
// running program needs and implements interp.Host so the interpreter
// never depends on any of them directly.
//
// Grounded on server.Server's ownership shape (server/server.go): one
// struct gluing together storage, a scheduler and live connection state,
// generalized from barn's single embedded MOO database to a
// configurable set of loaded modules plus their live task/heap state.
type VmContext struct {
	cfg Config

	mu      sync.RWMutex
	modules []*bytecode.Module
	linked  map[int]bool

	registry *heap.TypeRegistry
	heap     *heap.Heap
	mx       *mutexes.Registry
	ch       *channels.Registry
	globals  *interp.Globals
	natives  *overlayNatives

	tasksMu    sync.RWMutex
	tasks      map[int64]*vmtask.Task
	nextTaskID int64

	doneMu sync.Mutex
	done   map[int64]chan struct{}

	interp    *interp.Interpreter
	scheduler *scheduler.Scheduler

	gcInFlight int32
	snapSF     singleflight.Group

	clock func() int64
}

// New creates a VmContext ready to register modules into: a fresh heap,
// mutex/channel registries, the standard native table, and a scheduler
// sized from cfg.WorkerCount.
func New(cfg Config) *VmContext {
	cfg = cfg.withDefaults()
	registry := heap.NewTypeRegistry()
	vc := &VmContext{
		cfg:      cfg,
		linked:   make(map[int]bool),
		registry: registry,
		heap:     heap.NewHeap(registry),
		mx:       mutexes.NewRegistry(),
		ch:       channels.NewRegistry(),
		globals:  interp.NewGlobals(),
		natives:  newOverlayNatives(native.New()),
		tasks:    make(map[int64]*vmtask.Task),
		done:     make(map[int64]chan struct{}),
		clock:    func() int64 { return time.Now().UnixMilli() },
	}
	vc.scheduler = scheduler.New(cfg.WorkerCount, vc.runTask)
	vc.interp = interp.New(vc, vc.scheduler.Safepoint())
	return vc
}

// Start launches the scheduler's worker pool.
func (vc *VmContext) Start() { vc.scheduler.Start() }

// Stop shuts the scheduler's worker pool down.
func (vc *VmContext) Stop() { vc.scheduler.Stop() }

// --- interp.Host ---

func (vc *VmContext) Heap() *heap.Heap            { return vc.heap }
func (vc *VmContext) Mutexes() *mutexes.Registry   { return vc.mx }
func (vc *VmContext) Channels() *channels.Registry { return vc.ch }
func (vc *VmContext) Globals() *interp.Globals     { return vc.globals }
func (vc *VmContext) Natives() interp.NativeTable  { return vc.natives }
func (vc *VmContext) NowMillis() int64             { return vc.clock() }

func (vc *VmContext) Module(moduleID int) *bytecode.Module {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	if moduleID < 0 || moduleID >= len(vc.modules) {
		return nil
	}
	return vc.modules[moduleID]
}

func (vc *VmContext) TaskByID(taskID int64) *vmtask.Task {
	vc.tasksMu.RLock()
	defer vc.tasksMu.RUnlock()
	return vc.tasks[taskID]
}

// ScheduleTask hands taskID to the scheduler to run or re-run. Called by
// package interp directly when SPAWN creates a task or when a mutex unlock
// or channel operation wakes a suspended waiter.
func (vc *VmContext) ScheduleTask(taskID int64) { vc.scheduler.Wake(taskID) }

// NewTask allocates a task row in the Created state with its initial
// frame already pushed: locals sized to the callee's declared local
// count with args copied into the front slots, mirroring enterFunction's
// calling convention (interp/calls.go) since a spawned task's first
// frame is never entered through an ordinary CALL.
func (vc *VmContext) NewTask(functionID, moduleID int, args []value.Value, parentID int64) *vmtask.Task {
	mod := vc.Module(moduleID)
	localCount := len(args)
	if mod != nil && functionID >= 0 && functionID < len(mod.Functions) {
		if n := mod.Functions[functionID].LocalCount; n > localCount {
			localCount = n
		}
	}
	locals := make([]value.Value, localCount)
	copy(locals, args)

	vc.tasksMu.Lock()
	vc.nextTaskID++
	id := vc.nextTaskID
	t := vmtask.New(id, functionID, moduleID, parentID)
	t.PushFrame(&vmtask.Frame{FunctionID: functionID, ModuleID: moduleID, ReturnIP: -1, Locals: locals})
	vc.tasks[id] = t
	vc.tasksMu.Unlock()
	return t
}
