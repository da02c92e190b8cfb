package scheduler

import "container/heap"

// timerEntry is one pending wake-up: task id wanting to resume at wakeAt.
// Grounded on barn/server.TaskQueue (server/scheduler.go), generalized
// from "priority queue of *task.Task ordered by start time" to "priority
// queue of (wake time, task id)" since the scheduler package here does not
// own task bodies directly.
type timerEntry struct {
	wakeAt int64 // UnixNano
	taskID int64
	index  int
}

type timerHeap []*timerEntry

func newTimerHeap() *timerHeap {
	th := make(timerHeap, 0)
	heap.Init(&th)
	return &th
}

func (th timerHeap) Len() int { return len(th) }

func (th timerHeap) Less(i, j int) bool { return th[i].wakeAt < th[j].wakeAt }

func (th timerHeap) Swap(i, j int) {
	th[i], th[j] = th[j], th[i]
	th[i].index = i
	th[j].index = j
}

func (th *timerHeap) Push(x interface{}) {
	e := x.(*timerEntry)
	e.index = len(*th)
	*th = append(*th, e)
}

func (th *timerHeap) Pop() interface{} {
	old := *th
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*th = old[:n-1]
	return item
}

func (th timerHeap) Peek() *timerEntry {
	if len(th) == 0 {
		return nil
	}
	return th[0]
}
