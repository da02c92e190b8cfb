// Package mutexes implements Raya's task-level mutual exclusion primitive
// (spec.md section 4.5): a FIFO wait queue of suspended tasks guarded by an
// atomic owner, plus a registry of such mutexes keyed by id.
//
// No file in the retrieval pack implements a task-level (as opposed to
// OS-thread-level) FIFO mutex directly; this package generalizes the
// registry-locking idiom barn already uses everywhere a shared table needs
// protecting (db/store.go's Store, builtins/registry.go's Registry — both
// sync.Mutex-guarded maps keyed by an integer id) from "protect this Go
// map" to "model a user-visible suspension point with the same map shape".
// See DESIGN.md for the explicit justification.
package mutexes

import (
	"errors"
	"sync"
)

// TaskID identifies the task attempting to lock/unlock, matching the id
// type used by package vmtask.
type TaskID = int64

// NoOwner is the sentinel for "no task currently holds this mutex". Task
// ids are assigned starting at 1 (package vmtask), so 0 is never a valid
// task id.
const NoOwner TaskID = 0

// ErrNotOwner is returned by Unlock when the calling task does not hold the
// mutex (spec.md: "fail with a typed error on non-owner unlock").
var ErrNotOwner = errors.New("mutex: unlock by non-owner")

// ErrReentrant is returned by Lock when the calling task already holds the
// mutex (spec.md: "Reentry by the same task is a TypeError").
var ErrReentrant = errors.New("mutex: reentrant lock by owner")

// ErrUnknownMutex is returned when an id does not name a live mutex.
var ErrUnknownMutex = errors.New("mutex: unknown id")

// Mutex is one FIFO-fair lock. Exported fields are not present; all access
// goes through Registry so the wait queue and owner stay consistent.
type Mutex struct {
	mu    sync.Mutex
	id    uint64
	owner TaskID
	queue []TaskID // FIFO: queue[0] is next in line
}

// ID returns the mutex's registry id.
func (m *Mutex) ID() uint64 { return m.id }

// Owner returns the current owner, or NoOwner.
func (m *Mutex) Owner() TaskID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner
}

// QueueLen returns the number of tasks currently waiting.
func (m *Mutex) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Queue returns a copy of the current FIFO wait list, used by the snapshot
// writer to persist the Sync segment.
func (m *Mutex) Queue() []TaskID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TaskID, len(m.queue))
	copy(out, m.queue)
	return out
}

// Registry owns every live mutex in a VM context. Grounded on
// builtins/registry.go's dual id/name map idiom, here simplified to a
// single id-keyed map plus an atomic id counter (spec.md section 9:
// "Global mutable state confined to: ... the mutex-id counter (atomic)").
type Registry struct {
	mu      sync.Mutex
	nextID  uint64
	mutexes map[uint64]*Mutex
}

// NewRegistry creates an empty mutex registry.
func NewRegistry() *Registry {
	return &Registry{mutexes: make(map[uint64]*Mutex)}
}

// New allocates a fresh, unlocked mutex and returns its id (the NEW_MUTEX
// opcode handler).
func (r *Registry) New() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.mutexes[id] = &Mutex{id: id}
	return id
}

// Get returns the mutex for id, or nil if unknown.
func (r *Registry) Get(id uint64) *Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mutexes[id]
}

// Lock attempts to acquire mutex id for task. If the mutex is free it is
// granted immediately (acquired=true). Otherwise task is enqueued in FIFO
// order and acquired=false — the caller (the interpreter's MUTEX_LOCK
// handler) must then suspend the task with reason MutexLock{id}.
func (r *Registry) Lock(id uint64, task TaskID) (acquired bool, err error) {
	m := r.Get(id)
	if m == nil {
		return false, ErrUnknownMutex
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.owner == task {
		return false, ErrReentrant
	}
	if m.owner == NoOwner {
		m.owner = task
		return true, nil
	}
	m.queue = append(m.queue, task)
	return false, nil
}

// Unlock releases mutex id held by task. If another task is waiting,
// ownership transfers atomically to the head of the FIFO queue and that
// task id is returned so the caller can schedule its resume (spec.md:
// "Pop first waiter from queue; if any, atomically transfer ownership to
// it and schedule it; otherwise clear owner").
func (r *Registry) Unlock(id uint64, task TaskID) (nextOwner TaskID, transferred bool, err error) {
	m := r.Get(id)
	if m == nil {
		return NoOwner, false, ErrUnknownMutex
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.owner != task {
		return NoOwner, false, ErrNotOwner
	}

	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		m.owner = next
		return next, true, nil
	}
	m.owner = NoOwner
	return NoOwner, false, nil
}

// ReleaseAllHeldBy force-unlocks every mutex id in held on behalf of task,
// as if UNLOCK had been called for each — used when a task Fails or is
// cancelled while still holding locks (spec.md section 4.5, "Panic
// safety"). Returns, for each released mutex, the task (if any) that
// should now be woken.
func (r *Registry) ReleaseAllHeldBy(task TaskID, held []uint64) []Wakeup {
	var wakeups []Wakeup
	for _, id := range held {
		next, transferred, err := r.Unlock(id, task)
		if err != nil {
			continue
		}
		if transferred {
			wakeups = append(wakeups, Wakeup{MutexID: id, Task: next})
		}
	}
	return wakeups
}

// Wakeup names a task that just acquired a mutex and must be resumed.
type Wakeup struct {
	MutexID uint64
	Task    TaskID
}

// All returns every live mutex, in id order, for the snapshot writer.
func (r *Registry) All() []*Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Mutex, 0, len(r.mutexes))
	for id := uint64(1); id <= r.nextID; id++ {
		if m, ok := r.mutexes[id]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Restore installs a mutex at exactly id, with owner and queue as recorded
// in a snapshot's Sync segment, and advances nextID past it so further
// New calls never collide with a restored id.
func (r *Registry) Restore(id uint64, owner TaskID, queue []TaskID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := make([]TaskID, len(queue))
	copy(q, queue)
	r.mutexes[id] = &Mutex{id: id, owner: owner, queue: q}
	if id > r.nextID {
		r.nextID = id
	}
}
