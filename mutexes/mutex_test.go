package mutexes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFIFOFairness is the invariant from spec.md section 8: "if tasks
// T1..Tk attempt MUTEX_LOCK in total order on the same mutex while it is
// held, they acquire in that order."
func TestFIFOFairness(t *testing.T) {
	r := NewRegistry()
	id := r.New()

	acquired, err := r.Lock(id, 1)
	require.NoError(t, err)
	require.True(t, acquired)

	for _, task := range []TaskID{2, 3, 4} {
		acquired, err := r.Lock(id, task)
		require.NoError(t, err)
		require.False(t, acquired)
	}

	order := []TaskID{}
	owner := TaskID(1)
	for {
		next, transferred, err := r.Unlock(id, owner)
		require.NoError(t, err)
		if !transferred {
			break
		}
		order = append(order, next)
		owner = next
	}
	require.Equal(t, []TaskID{2, 3, 4}, order)
}

func TestReentrantLockFails(t *testing.T) {
	r := NewRegistry()
	id := r.New()
	_, err := r.Lock(id, 1)
	require.NoError(t, err)
	_, err = r.Lock(id, 1)
	require.ErrorIs(t, err, ErrReentrant)
}

func TestUnlockByNonOwnerFails(t *testing.T) {
	r := NewRegistry()
	id := r.New()
	_, err := r.Lock(id, 1)
	require.NoError(t, err)
	_, _, err = r.Unlock(id, 2)
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestReleaseAllHeldByWakesWaiters(t *testing.T) {
	r := NewRegistry()
	id := r.New()
	_, _ = r.Lock(id, 1)
	_, _ = r.Lock(id, 2)

	wakeups := r.ReleaseAllHeldBy(1, []uint64{id})
	require.Len(t, wakeups, 1)
	require.Equal(t, TaskID(2), wakeups[0].Task)
	require.Equal(t, TaskID(2), r.Get(id).Owner())
}
