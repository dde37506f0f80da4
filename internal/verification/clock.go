package verification

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
)

// Timer is a pending call scheduled on a Clock.
type Timer interface {
	Stop() bool
}

// Clock supplies the current time and delayed calls.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock is the wall clock.
type RealClock struct{}

// Now returns the current local time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// AfterFunc calls f in its own goroutine after d.
func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// scheduler runs delayed follow-ups and keeps track of them for shutdown.
type scheduler struct {
	clock  Clock
	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup
	timers map[uint64]*scheduledCall
	nextID uint64
	closed bool
	mu     sync.Mutex
}

// scheduledCall is a follow-up whose timer has not fired yet.
type scheduledCall struct {
	timer      Timer
	fn         func(ctx context.Context)
	runOnClose bool
}

func newScheduler(clock Clock) *scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &scheduler{
		clock:  clock,
		ctx:    ctx,
		cancel: cancel,
		timers: make(map[uint64]*scheduledCall),
	}
}

// after runs fn once d has elapsed unless the scheduler was closed first.
// It reports false when the scheduler is already closed.
func (s *scheduler) after(d time.Duration, fn func(ctx context.Context)) bool {
	return s.schedule(d, fn, false)
}

// cleanup runs fn once d has elapsed, or right away when the scheduler closes first.
func (s *scheduler) cleanup(d time.Duration, fn func(ctx context.Context)) {
	if !s.schedule(d, fn, true) {
		fn(context.WithoutCancel(s.ctx))
	}
}

func (s *scheduler) schedule(d time.Duration, fn func(ctx context.Context), runOnClose bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	id := s.nextID
	s.nextID++

	call := &scheduledCall{fn: fn, runOnClose: runOnClose}
	call.timer = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		// Close already ran or dropped this call
		if _, ok := s.timers[id]; !ok {
			return
		}
		delete(s.timers, id)

		s.wg.Go(func() {
			fn(s.ctx)
		})
	})
	s.timers[id] = call

	return true
}

// pending returns the number of follow-ups that have not fired yet.
func (s *scheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.timers)
}

// wait blocks until every fired follow-up has returned.
func (s *scheduler) wait() {
	s.wg.Wait()
}

// close drops pending timeouts, runs pending cleanups immediately and waits
// for every running follow-up.
func (s *scheduler) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true

	for id, call := range s.timers {
		call.timer.Stop()
		delete(s.timers, id)

		if call.runOnClose {
			fn := call.fn
			s.wg.Go(func() {
				fn(s.ctx)
			})
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.cancel()
}
