// Package scheduler runs delayed, fire-and-forget tasks from a deadline queue.
package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type task struct {
	name string
	at   time.Time
	seq  uint64
	run  func()
}

// taskQueue is a min-heap on (at, seq).
type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }
func (q taskQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}
func (q taskQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *taskQueue) Push(x interface{}) { *q = append(*q, x.(*task)) }
func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return t
}

// Scheduler holds tasks until their deadline and runs them one at a time on its own goroutine.
// Scheduling never waits on running tasks.
type Scheduler struct {
	mu     sync.Mutex
	queue  taskQueue
	seq    uint64
	wake   chan struct{}
	now    func() time.Time
	logger *zap.Logger
}

// New creates an idle scheduler. Call Run to start dispatching.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		wake:   make(chan struct{}, 1),
		now:    time.Now,
		logger: logger,
	}
}

// After schedules fn to run once delay has elapsed.
func (s *Scheduler) After(delay time.Duration, name string, fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.seq++
	heap.Push(&s.queue, &task{name: name, at: s.now().Add(delay), seq: s.seq, run: fn})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of tasks not yet run.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Run dispatches due tasks until ctx is done. On stop, tasks already due still run; later ones are dropped.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		for _, t := range s.due() {
			s.execute(t)
		}

		wait, ok := s.untilNext()
		if !ok {
			wait = time.Hour
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			for _, t := range s.due() {
				s.execute(t)
			}
			if n := s.Pending(); n > 0 {
				s.logger.Info("scheduler stopping with pending tasks", zap.Int("pending", n))
			}
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

func (s *Scheduler) due() []*task {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var out []*task
	for len(s.queue) > 0 && !s.queue[0].at.After(now) {
		out = append(out, heap.Pop(&s.queue).(*task))
	}
	return out
}

func (s *Scheduler) untilNext() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return 0, false
	}
	d := s.queue[0].at.Sub(s.now())
	if d < 0 {
		d = 0
	}
	return d, true
}

func (s *Scheduler) execute(t *task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panicked", zap.String("task", t.name), zap.Any("panic", r))
		}
	}()
	s.logger.Debug("running scheduled task", zap.String("task", t.name))
	t.run()
}
