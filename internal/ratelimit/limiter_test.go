package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/UnknownOlympus/atlas-batch/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_SpacesStarts(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	limiter := ratelimit.New(20)
	go limiter.Run(ctx)

	var (
		mu     sync.Mutex
		starts []time.Time
	)
	const tasks = 5
	for range tasks {
		limiter.Admit(func(context.Context) {
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
		})
	}
	limiter.Start()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(starts) == tasks
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	// Five starts at 20/s need at least four 50ms gaps.
	assert.GreaterOrEqual(t, starts[tasks-1].Sub(starts[0]), 180*time.Millisecond)
}

func TestLimiter_StopKeepsQueuedTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	limiter := ratelimit.New(0)
	go limiter.Run(ctx)

	var started atomic.Int32
	for range 3 {
		limiter.Admit(func(context.Context) { started.Add(1) })
	}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), started.Load(), "a stopped limiter must not start tasks")
	assert.Equal(t, 3, limiter.Pending())

	limiter.Start()
	require.Eventually(t, func() bool { return started.Load() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, limiter.Pending())

	limiter.Stop()
	assert.False(t, limiter.Running())
	limiter.Admit(func(context.Context) { started.Add(1) })
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(3), started.Load())
	assert.Equal(t, 1, limiter.Pending())

	limiter.Start()
	require.Eventually(t, func() bool { return started.Load() == 4 }, time.Second, 5*time.Millisecond)
}

func TestLimiter_AdmitAfter(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	limiter := ratelimit.New(0)
	limiter.Start()
	go limiter.Run(ctx)

	done := make(chan time.Time, 1)
	admitted := time.Now()
	limiter.AdmitAfter(60*time.Millisecond, func(context.Context) { done <- time.Now() })

	select {
	case startedAt := <-done:
		assert.GreaterOrEqual(t, startedAt.Sub(admitted), 60*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("delayed task was never started")
	}
}

func TestLimiter_DoesNotBoundConcurrency(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	limiter := ratelimit.New(0)
	limiter.Start()
	go limiter.Run(ctx)

	release := make(chan struct{})
	var running atomic.Int32
	for range 4 {
		limiter.Admit(func(context.Context) {
			running.Add(1)
			<-release
		})
	}

	require.Eventually(t, func() bool { return running.Load() == 4 }, time.Second, 5*time.Millisecond)
	close(release)
}
