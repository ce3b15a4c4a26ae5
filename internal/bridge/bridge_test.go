package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solanagram/solanagram/internal/logger"
)

func TestRun_ReturnsOpResult(t *testing.T) {
	b := New(10, time.Second, logger.Nop())
	defer b.Close()

	value, err := b.Run(context.Background(), func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", value)
}

func TestRun_PropagatesOpError(t *testing.T) {
	b := New(10, time.Second, logger.Nop())
	defer b.Close()

	_, err := b.Run(context.Background(), func(ctx context.Context) (any, error) {
		return nil, assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRun_SingleOwner(t *testing.T) {
	b := New(100, time.Second, logger.Nop())
	defer b.Close()

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = b.Run(context.Background(), func(ctx context.Context) (any, error) {
				cur := atomic.AddInt32(&inFlight, 1)
				if cur > atomic.LoadInt32(&maxInFlight) {
					atomic.StoreInt32(&maxInFlight, cur)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil, nil
			})
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&maxInFlight), "ops must never overlap")
}

func TestRun_Timeout(t *testing.T) {
	b := New(10, time.Second, logger.Nop())
	defer b.Close()

	cancelled := make(chan struct{})
	_, err := b.RunWithTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) (any, error) {
		<-ctx.Done()
		close(cancelled)
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, ErrTimeout)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("operation context was not cancelled on timeout")
	}
}

func TestRun_QueueHighWater(t *testing.T) {
	b := New(1, time.Second, logger.Nop())
	defer b.Close()

	block := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _ = b.Run(context.Background(), func(ctx context.Context) (any, error) {
			close(started)
			<-block
			return nil, nil
		})
	}()
	<-started

	// Fill the single queue slot.
	go func() {
		_, _ = b.Run(context.Background(), func(ctx context.Context) (any, error) { return nil, nil })
	}()
	require.Eventually(t, func() bool { return b.Pending() == 1 }, time.Second, time.Millisecond)

	// The next submission overflows the high-water mark.
	_, err := b.Run(context.Background(), func(ctx context.Context) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrSystemBusy)

	close(block)
}

func TestRun_NestedRejected(t *testing.T) {
	b := New(10, time.Second, logger.Nop())
	defer b.Close()

	_, err := b.Run(context.Background(), func(ctx context.Context) (any, error) {
		return b.Run(ctx, func(ctx context.Context) (any, error) { return nil, nil })
	})
	assert.ErrorIs(t, err, ErrNested)
}

func TestRun_PanicRecovered(t *testing.T) {
	b := New(10, time.Second, logger.Nop())
	defer b.Close()

	_, err := b.Run(context.Background(), func(ctx context.Context) (any, error) {
		panic("boom")
	})
	require.Error(t, err)

	// The worker survives the panic.
	value, err := b.Run(context.Background(), func(ctx context.Context) (any, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestClose_FailsQueuedOps(t *testing.T) {
	b := New(10, time.Second, logger.Nop())

	b.Close()

	_, err := b.Run(context.Background(), func(ctx context.Context) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrClosed)
}
