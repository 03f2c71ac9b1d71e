package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shutdown(t *testing.T, p *Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.Shutdown(ctx)
}

func TestSubmitAndShutdown(t *testing.T) {
	p := New(2, 10)
	var count atomic.Int32

	for i := 0; i < 5; i++ {
		require.True(t, p.Submit(func(context.Context) { count.Add(1) }), "submit %d", i)
	}
	shutdown(t, p)

	assert.EqualValues(t, 5, count.Load())
	assert.Zero(t, p.Pending())
}

func TestSubmitAfterShutdown(t *testing.T) {
	p := New(1, 1)
	shutdown(t, p)
	assert.False(t, p.Submit(func(context.Context) {}))
	// second shutdown is a no-op
	shutdown(t, p)
}

func TestQueueFull(t *testing.T) {
	p := New(1, 1)
	started := make(chan struct{})
	blocker := make(chan struct{})
	require.True(t, p.Submit(func(context.Context) {
		close(started)
		<-blocker
	}))
	<-started

	require.True(t, p.Submit(func(context.Context) {}))
	assert.False(t, p.Submit(func(context.Context) {}), "queue of one should be full")
	assert.Equal(t, 2, p.Pending())

	close(blocker)
	shutdown(t, p)
}

func TestPanicDoesNotKillWorker(t *testing.T) {
	p := New(1, 4)
	var ran atomic.Bool
	p.Submit(func(context.Context) { panic("boom") })
	p.Submit(func(context.Context) { ran.Store(true) })
	shutdown(t, p)
	assert.True(t, ran.Load())
}

func TestShutdownDeadlineCancelsTasks(t *testing.T) {
	p := New(1, 1)
	started := make(chan struct{})
	var canceled atomic.Bool
	p.Submit(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		canceled.Store(true)
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	p.Shutdown(ctx)
	assert.True(t, canceled.Load())
}
