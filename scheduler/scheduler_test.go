package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpawnRunsEveryTask(t *testing.T) {
	const n = 200
	var completed int64
	var wg sync.WaitGroup
	wg.Add(n)

	s := New(4, func(taskID int64) RunResult {
		atomic.AddInt64(&completed, 1)
		wg.Done()
		return RunCompleted
	})
	s.Start()
	defer s.Stop()

	for i := int64(0); i < n; i++ {
		s.Spawn(i)
	}

	waitOrTimeout(t, &wg, 2*time.Second)
	require.EqualValues(t, n, atomic.LoadInt64(&completed))
}

func TestYieldedTaskIsReRun(t *testing.T) {
	var runs int64
	done := make(chan struct{})

	s := New(2, func(taskID int64) RunResult {
		n := atomic.AddInt64(&runs, 1)
		if n >= 3 {
			close(done)
			return RunCompleted
		}
		return RunYielded
	})
	s.Start()
	defer s.Stop()

	s.Spawn(1)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task was not re-run after yielding")
	}
	require.GreaterOrEqual(t, atomic.LoadInt64(&runs), int64(3))
}

func TestScheduleSleepWakesTaskAfterDuration(t *testing.T) {
	woken := make(chan int64, 1)

	s := New(2, func(taskID int64) RunResult {
		woken <- taskID
		return RunCompleted
	})
	s.Start()
	defer s.Stop()

	s.ScheduleSleep(42, time.Now().Add(30*time.Millisecond))

	select {
	case id := <-woken:
		require.Equal(t, int64(42), id)
	case <-time.After(2 * time.Second):
		t.Fatal("sleeping task was never woken")
	}
}

func TestStealingDistributesWorkAcrossWorkers(t *testing.T) {
	const n = 500
	var seen sync.Map
	var wg sync.WaitGroup
	wg.Add(n)

	s := New(8, func(taskID int64) RunResult {
		seen.Store(taskID, struct{}{})
		wg.Done()
		return RunCompleted
	})
	s.Start()
	defer s.Stop()

	for i := int64(0); i < n; i++ {
		s.Spawn(i)
	}
	waitOrTimeout(t, &wg, 2*time.Second)

	count := 0
	seen.Range(func(_, _ any) bool { count++; return true })
	require.Equal(t, n, count)
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for tasks to complete")
	}
}
