// Package loop provides the single-threaded scheduler the map engine runs on.
//
// Every mutation of engine state happens inside a task or a frame callback.
// Tasks may be posted from any goroutine; frame callbacks may only be
// requested from code already running on the loop.
package loop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/mapsync/internal/core/observability/log"
)

// Task is a unit of work executed on the loop.
type Task func()

// FrameFunc runs once on the next animation frame.
type FrameFunc func(now time.Time)

// FrameID identifies a requested frame callback.
type FrameID uint64

// Scheduler is the contract engine components rely on.
type Scheduler interface {
	// Post enqueues a task. It reports false once the loop has stopped.
	Post(task Task) bool
	// RequestFrame schedules fn for the next frame. Loop-only.
	RequestFrame(fn FrameFunc) FrameID
	// CancelFrame drops a pending frame callback. Loop-only.
	CancelFrame(id FrameID)
	// Now returns the loop clock.
	Now() time.Time
}

// frameQueue holds pending frame callbacks in request order.
type frameQueue struct {
	next    FrameID
	pending map[FrameID]FrameFunc
	order   []FrameID
}

func newFrameQueue() frameQueue {
	return frameQueue{pending: make(map[FrameID]FrameFunc)}
}

func (q *frameQueue) add(fn FrameFunc) FrameID {
	q.next++
	q.pending[q.next] = fn
	q.order = append(q.order, q.next)
	return q.next
}

func (q *frameQueue) cancel(id FrameID) {
	delete(q.pending, id)
}

func (q *frameQueue) empty() bool {
	return len(q.pending) == 0
}

// run executes the callbacks requested before this call. Callbacks requested
// while running wait for the following frame.
func (q *frameQueue) run(now time.Time, call func(FrameFunc, time.Time)) int {
	batch := q.order
	q.order = nil
	ran := 0
	for _, id := range batch {
		fn, ok := q.pending[id]
		if !ok {
			continue
		}
		delete(q.pending, id)
		call(fn, now)
		ran++
	}
	return ran
}

var _ Scheduler = (*Loop)(nil)

// Loop runs tasks and frames on one goroutine.
type Loop struct {
	tasks         chan Task
	frameInterval time.Duration
	frames        frameQueue
	running       atomic.Bool
	stopped       atomic.Bool
	stopOnce      sync.Once
	done          chan struct{}
	logger        log.Log
}

// Config tunes a Loop.
type Config struct {
	FrameInterval time.Duration
	QueueSize     int
}

// DefaultConfig returns a 60Hz loop with a generous task queue.
func DefaultConfig() Config {
	return Config{
		FrameInterval: 16 * time.Millisecond,
		QueueSize:     1024,
	}
}

// New creates a stopped loop. Call Run to start it.
func New(config Config, logger log.Log) *Loop {
	if config.FrameInterval <= 0 {
		config.FrameInterval = DefaultConfig().FrameInterval
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Loop{
		tasks:         make(chan Task, config.QueueSize),
		frameInterval: config.FrameInterval,
		frames:        newFrameQueue(),
		done:          make(chan struct{}),
		logger:        logger.With(log.String("component", "loop")),
	}
}

// Post enqueues task. It blocks when the queue is full and returns false once
// the loop has stopped.
func (l *Loop) Post(task Task) bool {
	if l.stopped.Load() {
		return false
	}
	select {
	case l.tasks <- task:
		return true
	case <-l.done:
		return false
	}
}

func (l *Loop) RequestFrame(fn FrameFunc) FrameID {
	return l.frames.add(fn)
}

func (l *Loop) CancelFrame(id FrameID) {
	l.frames.cancel(id)
}

func (l *Loop) Now() time.Time {
	return time.Now()
}

// Done is closed after Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Run executes tasks and frames until ctx is cancelled. Tasks still queued at
// that point are discarded.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.stop()

	ticker := time.NewTicker(l.frameInterval)
	defer ticker.Stop()

	l.logger.Debug("Loop started", log.Duration("frame_interval", l.frameInterval))
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("Loop stopped")
			return ctx.Err()
		case task := <-l.tasks:
			l.runTask(task)
		case now := <-ticker.C:
			if !l.frames.empty() {
				l.runFrames(now)
			}
		}
	}
}

func (l *Loop) stop() {
	l.stopOnce.Do(func() {
		l.stopped.Store(true)
		close(l.done)
	})
}

func (l *Loop) runTask(task Task) {
	defer l.recover("task")
	task()
}

func (l *Loop) runFrames(now time.Time) {
	l.frames.run(now, l.runFrame)
}

func (l *Loop) runFrame(fn FrameFunc, now time.Time) {
	defer l.recover("frame")
	fn(now)
}

func (l *Loop) recover(kind string) {
	if r := recover(); r != nil {
		l.logger.Error("Loop callback panicked", log.String("kind", kind), log.Any("panic", r))
	}
}

// Call runs fn on the loop and waits for it to finish.
func Call(ctx context.Context, s Scheduler, fn func()) error {
	done := make(chan struct{})
	if !s.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
