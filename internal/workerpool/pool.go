// Package workerpool runs control actions on a fixed set of goroutines fed
// by a bounded queue, so slow OS calls never block the caller.
package workerpool

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"guardians/internal/logging"
)

var log = logging.L("workerpool")

// Task receives the pool context, which is canceled when a shutdown deadline
// expires.
type Task func(ctx context.Context)

// Pool is a bounded goroutine pool with a fixed-size task queue.
type Pool struct {
	queue   chan Task
	wg      sync.WaitGroup
	mu      sync.RWMutex // guards closed against concurrent Submit
	closed  bool
	pending atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
}

// New starts workers goroutines reading from a queue of queueSize.
func New(workers, queueSize int) *Pool {
	workers = max(workers, 1)
	queueSize = max(queueSize, 1)

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:  make(chan Task, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for range workers {
		go p.worker()
	}

	log.Info("worker pool started", "workers", workers, "queueSize", queueSize)
	return p
}

// Submit enqueues a task. It returns false when the pool is shut down or the
// queue is full; the task is then never run.
func (p *Pool) Submit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	p.wg.Add(1)
	select {
	case p.queue <- task:
		p.pending.Add(1)
		return true
	default:
		p.wg.Done()
		log.Warn("worker pool queue full, task rejected")
		return false
	}
}

// Pending is the number of queued or running tasks.
func (p *Pool) Pending() int {
	return int(p.pending.Load())
}

// Shutdown stops accepting tasks and waits for queued and running ones. When
// ctx ends first the pool context is canceled so tasks can abort early.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("worker pool drained")
	case <-ctx.Done():
		log.Warn("worker pool drain timed out", "pending", p.Pending())
		p.cancel()
		<-done
	}
	p.cancel()
}

func (p *Pool) worker() {
	for task := range p.queue {
		p.run(task)
	}
}

// run executes a single task with panic recovery
func (p *Pool) run(task Task) {
	defer p.wg.Done()
	defer p.pending.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	task(p.ctx)
}
