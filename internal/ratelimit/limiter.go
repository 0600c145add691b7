package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Task is a unit of work started by the limiter. It runs on its own goroutine.
type Task func(ctx context.Context)

// Limiter starts queued tasks at no more than a fixed number per second.
// It bounds how often tasks start, not how many run at the same time.
type Limiter struct {
	limiter *rate.Limiter

	mu      sync.Mutex
	queue   []Task
	running bool
	wake    chan struct{}
}

// New returns a stopped limiter admitting requestsPerSecond task starts per second.
// Starts are spaced evenly (burst of one) so no rolling second ever sees more than the ceiling.
// A non-positive rate disables limiting.
func New(requestsPerSecond float64) *Limiter {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	return &Limiter{
		limiter: rate.NewLimiter(limit, 1),
		wake:    make(chan struct{}, 1),
	}
}

// Admit queues task. It is started once the limiter is running and a slot is free.
func (l *Limiter) Admit(task Task) {
	l.mu.Lock()
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	l.signal()
}

// AdmitAfter queues task once delay has elapsed.
func (l *Limiter) AdmitAfter(delay time.Duration, task Task) {
	if delay <= 0 {
		l.Admit(task)
		return
	}

	time.AfterFunc(delay, func() { l.Admit(task) })
}

// Start resumes issuing queued tasks.
func (l *Limiter) Start() {
	l.mu.Lock()
	l.running = true
	l.mu.Unlock()

	l.signal()
}

// Stop pauses issuing new tasks. Queued tasks are kept and tasks already started keep running.
func (l *Limiter) Stop() {
	l.mu.Lock()
	l.running = false
	l.mu.Unlock()
}

// Running reports whether the limiter is issuing tasks.
func (l *Limiter) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.running
}

// Pending returns the number of queued tasks not yet started.
func (l *Limiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.queue)
}

// Run drains the queue until ctx is canceled.
func (l *Limiter) Run(ctx context.Context) {
	for {
		task, ok := l.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-l.wake:
				continue
			}
		}

		if err := l.limiter.Wait(ctx); err != nil {
			l.pushFront(task)
			return
		}

		// Stop may have been called while waiting for a slot.
		if !l.Running() {
			l.pushFront(task)
			continue
		}

		go task(ctx)
	}
}

func (l *Limiter) pop() (Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running || len(l.queue) == 0 {
		return nil, false
	}

	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]

	return task, true
}

func (l *Limiter) pushFront(task Task) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.queue = append([]Task{task}, l.queue...)
}

func (l *Limiter) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
