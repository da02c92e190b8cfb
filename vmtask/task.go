// Package vmtask implements Raya's green-task execution state (spec.md
// section 3, "Task"): per-task stack, frames, closures, exception handler
// stack, suspension reason, and the invariants (a)-(g) listed there.
//
// Grounded on barn/task.Task (task/task.go) for the state-machine shape
// (id, state, call stack, cancellation) and on barn/task.ActivationFrame
// for the per-frame trace fields, generalized from a MOO verb-call task
// (tied to objects/verbs/players) to a general bytecode green task whose
// frames reference bytecode functions directly.
package vmtask

import (
	"sync"
	"time"

	"raya/rerr"
	"raya/value"
)

// State is the task lifecycle state from spec.md section 3.
type State int

const (
	Created State = iota
	Running
	Suspended
	Resumed
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Resumed:
		return "resumed"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// SuspendReasonKind discriminates why a task yielded (spec.md Glossary,
// "Suspension reason").
type SuspendReasonKind int

const (
	ReasonNone SuspendReasonKind = iota
	ReasonAwaitTask
	ReasonSleep
	ReasonYield
	ReasonMutexLock
	ReasonChannelSend
	ReasonChannelRecv
	ReasonNativeSuspend
)

// SuspendReason is the tagged union a suspended task carries, used by the
// scheduler to register the task with the correct wake source (spec.md
// section 4.1, "Resume protocol").
type SuspendReason struct {
	Kind SuspendReasonKind

	AwaitTarget int64     // ReasonAwaitTask
	WakeAt      time.Time // ReasonSleep
	MutexID     uint64    // ReasonMutexLock
	ChannelID   uint64    // ReasonChannelSend / ReasonChannelRecv
	PendingSend value.Value // ReasonChannelSend: the value staged to deliver
	Other       string    // free-form description for native suspensions
}

// Handler is one entry of a frame's exception-handler stack, pushed by a
// single PUSH_HANDLER(catch_offset, finally_offset) instruction (spec.md
// section 4.1 group 9). Either offset may be absent (-1): a try with only
// a finally has CatchIP == -1; a try with only except clauses has
// FinallyIP == -1. Grounded on barn/vm.Handler (vm/vm.go), retyped from
// MOO's ErrorCode list to rerr.Kind and merged into one struct since
// PUSH_HANDLER installs both targets atomically for a single try
// construct.
type Handler struct {
	CatchIP   int         // byte offset of the except body, -1 if none
	FinallyIP int         // byte offset of the finally body, -1 if none
	Codes     []rerr.Kind // error kinds the except clause catches; empty matches all
	VarIndex  int         // local slot to receive the caught value, -1 if none
}

// HasCatch reports whether this handler has an except clause at all.
func (h Handler) HasCatch() bool { return h.CatchIP >= 0 }

// Matches reports whether this handler's except clause catches kind.
func (h Handler) Matches(kind rerr.Kind) bool {
	if !h.HasCatch() {
		return false
	}
	if len(h.Codes) == 0 {
		return true
	}
	for _, c := range h.Codes {
		if c == kind {
			return true
		}
	}
	return false
}

// Frame is one call-frame activation (spec.md section 3, "Call frame").
// Grounded on barn/vm.StackFrame (vm/vm.go), stripped of MOO verb/object
// fields and generalized to reference bytecode functions by id.
type Frame struct {
	FunctionID  int
	ModuleID    int
	ReturnIP    int // offset to resume the caller at
	BasePointer int // stack base for this frame
	Locals      []value.Value
	IP          int // current instruction pointer within this frame

	LoopStack   []LoopState
	ExceptStack []Handler
	PendingError *rerr.RuntimeError // set by a finally region mid-re-raise
}

// LoopState tracks nested loop iteration state that must survive
// suspension, grounded on barn/vm's loop-state handling for FOR_RANGE/
// FOR_LIST style opcodes.
type LoopState struct {
	Kind    string
	Index   int
	Limit   int
	VarSlot int
}

// Task is a Raya green task (spec.md section 3, "Task").
type Task struct {
	mu sync.RWMutex

	ID       int64
	State    State
	FunctionID int
	ModuleID   int

	IP          int
	OperandStack []value.Value
	Frames       []*Frame
	ClosureStack []value.Value // active closure Values, for CALL_CLOSURE

	ThrownException *rerr.RuntimeError
	LastCaught      *rerr.RuntimeError

	HeldMutexes map[uint64]struct{}

	ParentID int64 // 0 if spawned by the host directly, not another task
	Waiters  []int64

	SuspendReason *SuspendReason
	ResumeValue   value.Value
	Result        value.Value
	ResultError   *rerr.RuntimeError

	Cancelled bool

	CreatedAt time.Time
	StartedAt time.Time
}

// New creates a task in the Created state, ready to have its initial frame
// pushed by the interpreter.
func New(id int64, functionID, moduleID int, parentID int64) *Task {
	return &Task{
		ID:          id,
		State:       Created,
		FunctionID:  functionID,
		ModuleID:    moduleID,
		HeldMutexes: make(map[uint64]struct{}),
		ParentID:    parentID,
		CreatedAt:   time.Now(),
	}
}

// GetState returns the task's state (thread-safe; the scheduler reads this
// from workers other than the one executing the task at safepoints).
func (t *Task) GetState() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.State
}

// SetState sets the task's state.
func (t *Task) SetState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.State = s
}

// AddWaiter registers another task as waiting on this one's completion
// (invariant (e): "a Completed task's waiters have been scheduled for
// resume").
func (t *Task) AddWaiter(waiterID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Waiters = append(t.Waiters, waiterID)
}

// AddWaiterIfPending registers waiterID atomically with a state check,
// closing the race where the target completes between a caller's state
// read and its AddWaiter call (which would append to an already-drained
// waiter list and leave the waiter suspended forever). Returns the
// target's state at the time of the check; waiterID is only appended when
// that state is neither Completed nor Failed.
func (t *Task) AddWaiterIfPending(waiterID int64) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.State == Completed || t.State == Failed {
		return t.State
	}
	t.Waiters = append(t.Waiters, waiterID)
	return t.State
}

// TakeWaiters atomically drains and returns the waiter list, used once by
// the scheduler when the task completes or fails.
func (t *Task) TakeWaiters() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	w := t.Waiters
	t.Waiters = nil
	return w
}

// HoldMutex records that this task currently holds mutex id (invariant
// (f): "held-mutex set is empty iff the task holds no mutexes").
func (t *Task) HoldMutex(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.HeldMutexes[id] = struct{}{}
}

// ReleaseMutex removes id from the held set.
func (t *Task) ReleaseMutex(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.HeldMutexes, id)
}

// HeldMutexIDs returns a snapshot of the mutex ids currently held, used when
// a task fails or is cancelled and its locks must be force-released.
func (t *Task) HeldMutexIDs() []uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]uint64, 0, len(t.HeldMutexes))
	for id := range t.HeldMutexes {
		ids = append(ids, id)
	}
	return ids
}

// Cancel sets the cancellation flag, checked at safepoint polls and at
// suspension-point entry (spec.md section 5, "Cancellation").
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Cancelled = true
}

// IsCancelled reports the cancellation flag.
func (t *Task) IsCancelled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Cancelled
}

// CurrentFrame returns the innermost active frame, or nil if the task has
// no frames (i.e. it has returned from its last frame, completing).
func (t *Task) CurrentFrame() *Frame {
	if len(t.Frames) == 0 {
		return nil
	}
	return t.Frames[len(t.Frames)-1]
}

// PushFrame pushes a new call frame.
func (t *Task) PushFrame(f *Frame) {
	t.Frames = append(t.Frames, f)
}

// PopFrame pops and returns the innermost call frame.
func (t *Task) PopFrame() *Frame {
	n := len(t.Frames)
	if n == 0 {
		return nil
	}
	f := t.Frames[n-1]
	t.Frames = t.Frames[:n-1]
	return f
}

// Roots returns every value.Value directly reachable from this task's
// execution state: its operand stack, every frame's locals, its closure
// stack, and its pending/caught exception payloads — the task's
// contribution to the GC root set (spec.md section 4.2).
func (t *Task) Roots() []value.Value {
	t.mu.RLock()
	defer t.mu.RUnlock()

	roots := make([]value.Value, 0, len(t.OperandStack)+len(t.ClosureStack))
	roots = append(roots, t.OperandStack...)
	roots = append(roots, t.ClosureStack...)
	for _, f := range t.Frames {
		roots = append(roots, f.Locals...)
	}
	if t.ResumeValue.Kind() == value.KindPointer {
		roots = append(roots, t.ResumeValue)
	}
	if t.Result.Kind() == value.KindPointer {
		roots = append(roots, t.Result)
	}
	if t.SuspendReason != nil && t.SuspendReason.Kind == ReasonChannelSend {
		roots = append(roots, t.SuspendReason.PendingSend)
	}
	for _, e := range []*rerr.RuntimeError{t.ThrownException, t.LastCaught} {
		if e != nil && e.ExceptionValue != nil {
			if v := value.FromBits(*e.ExceptionValue); v.Kind() == value.KindPointer {
				roots = append(roots, v)
			}
		}
	}
	return roots
}
