package loop

import (
	"sync"
	"time"
)

var _ Scheduler = (*Manual)(nil)

// Manual is a Scheduler driven explicitly by the caller. Tests use it to run
// tasks and step animation frames deterministically.
type Manual struct {
	mu     sync.Mutex
	tasks  []Task
	frames frameQueue
	now    time.Time
	stop   bool
}

// NewManual returns a manual scheduler whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{frames: newFrameQueue(), now: start}
}

func (m *Manual) Post(task Task) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop {
		return false
	}
	m.tasks = append(m.tasks, task)
	return true
}

func (m *Manual) RequestFrame(fn FrameFunc) FrameID {
	return m.frames.add(fn)
}

func (m *Manual) CancelFrame(id FrameID) {
	m.frames.cancel(id)
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Stop makes further Post calls fail.
func (m *Manual) Stop() {
	m.mu.Lock()
	m.stop = true
	m.mu.Unlock()
}

// Drain runs queued tasks, including tasks posted while draining, and returns
// how many ran.
func (m *Manual) Drain() int {
	ran := 0
	for {
		m.mu.Lock()
		if len(m.tasks) == 0 {
			m.mu.Unlock()
			return ran
		}
		task := m.tasks[0]
		m.tasks = m.tasks[1:]
		m.mu.Unlock()
		task()
		ran++
	}
}

// PendingFrames reports whether any frame callback is waiting.
func (m *Manual) PendingFrames() bool {
	return !m.frames.empty()
}

// Advance moves the clock by d, drains tasks, then runs one frame.
func (m *Manual) Advance(d time.Duration) int {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	m.mu.Unlock()

	m.Drain()
	return m.frames.run(now, func(fn FrameFunc, t time.Time) { fn(t) })
}

// Settle advances frame by frame until nothing is pending or limit frames
// have run. It returns the number of frames stepped.
func (m *Manual) Settle(step time.Duration, limit int) int {
	steps := 0
	for steps < limit {
		m.Drain()
		if m.frames.empty() {
			break
		}
		m.Advance(step)
		steps++
	}
	return steps
}
