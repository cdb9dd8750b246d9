package wait

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntil(t *testing.T) {
	t.Run("returns immediately when the condition already holds", func(t *testing.T) {
		var calls int32
		start := time.Now()
		err := Until(context.Background(), time.Second, 50*time.Millisecond, func(context.Context) (bool, error) {
			atomic.AddInt32(&calls, 1)
			return true, nil
		})
		require.NoError(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		assert.Less(t, time.Since(start), 40*time.Millisecond)
	})

	t.Run("polls until the condition flips", func(t *testing.T) {
		var calls int32
		err := Until(context.Background(), time.Second, 5*time.Millisecond, func(context.Context) (bool, error) {
			return atomic.AddInt32(&calls, 1) >= 3, nil
		})
		require.NoError(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("times out with ErrTimeout", func(t *testing.T) {
		err := Until(context.Background(), 30*time.Millisecond, 5*time.Millisecond, func(context.Context) (bool, error) {
			return false, nil
		})
		assert.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("zero timeout checks exactly once", func(t *testing.T) {
		for _, holds := range []bool{true, false} {
			var calls int32
			err := Until(context.Background(), 0, 5*time.Millisecond, func(ctx context.Context) (bool, error) {
				atomic.AddInt32(&calls, 1)
				assert.NoError(t, ctx.Err(), "the single check must get a live context")
				return holds, nil
			})
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
			if holds {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrTimeout)
			}
		}
	})

	t.Run("condition errors abort the wait", func(t *testing.T) {
		boom := errors.New("driver gone")
		err := Until(context.Background(), time.Second, 5*time.Millisecond, func(context.Context) (bool, error) {
			return false, boom
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("parent cancellation is not reported as a timeout", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Until(ctx, time.Second, 5*time.Millisecond, func(context.Context) (bool, error) {
			return false, nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrTimeout)
	})
}

func TestValue(t *testing.T) {
	var n int32
	got, err := Value(context.Background(), time.Second, 5*time.Millisecond,
		func(context.Context) (int, error) { return int(atomic.AddInt32(&n, 1)), nil },
		func(v int) bool { return v >= 2 })
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	last, err := Value(context.Background(), 20*time.Millisecond, 5*time.Millisecond,
		func(context.Context) (string, error) { return "/login", nil },
		func(v string) bool { return v == "/certifications" })
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "/login", last, "the last observation is kept for reporting")

	visible, err := Value(context.Background(), 0, 5*time.Millisecond,
		func(context.Context) (int, error) { return 3, nil },
		func(v int) bool { return v > 0 })
	require.NoError(t, err, "a zero bound still reads the current state")
	assert.Equal(t, 3, visible)
}

func TestQuiet(t *testing.T) {
	t.Run("settles once activity stops", func(t *testing.T) {
		var inflight int32 = 1
		go func() {
			time.Sleep(20 * time.Millisecond)
			atomic.StoreInt32(&inflight, 0)
		}()
		start := time.Now()
		err := Quiet(context.Background(), time.Second, 30*time.Millisecond, func() int {
			return int(atomic.LoadInt32(&inflight))
		})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run("never settles under constant traffic", func(t *testing.T) {
		err := Quiet(context.Background(), 60*time.Millisecond, 20*time.Millisecond, func() int { return 2 })
		assert.ErrorIs(t, err, ErrTimeout)
	})
}
