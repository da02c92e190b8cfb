package safepoint

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestQuiescence is the property from spec.md section 8: "request_pause()
// returns only when every worker-running counter has been zero
// simultaneously."
func TestQuiescence(t *testing.T) {
	const workers = 8
	c := NewCoordinator(workers)

	var observedZero atomic.Bool
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				c.Poll()
				if c.Running() == 0 {
					observedZero.Store(true)
				}
				time.Sleep(time.Microsecond)
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	release, err := c.RequestPause(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, c.Running())
	release()
	close(stop)
	wg.Wait()
}

func TestDoubleRequestPauseFails(t *testing.T) {
	c := NewCoordinator(0) // no workers, so the first pause quiesces at once
	ctx := context.Background()
	release, err := c.RequestPause(ctx)
	require.NoError(t, err)
	defer release()

	_, err = c.RequestPause(ctx)
	require.ErrorIs(t, err, ErrAlreadyPaused)
}

func TestPollIsNoOpWithoutPause(t *testing.T) {
	c := NewCoordinator(3)
	c.Poll()
	require.Equal(t, 3, c.Running())
}
