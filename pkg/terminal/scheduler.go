package terminal

import (
	"context"
	"sync"
	"time"
)

// DefaultFrameInterval is the render tick used by TickerScheduler (20 FPS)
const DefaultFrameInterval = 50 * time.Millisecond

// Scheduler defers a callback to a later scheduling quantum. Terminal calls
// Schedule at most once per outstanding render request.
type Scheduler interface {
	Schedule(fn func())
}

// ManualScheduler queues callbacks until Flush is called. It suits headless
// use and tests, where the caller decides when a frame ends.
type ManualScheduler struct {
	mu      sync.Mutex
	pending []func()
}

// NewManualScheduler creates an empty manual scheduler
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Schedule queues fn
func (s *ManualScheduler) Schedule(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, fn)
}

// Pending returns the number of queued callbacks
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush runs the callbacks queued so far and returns how many ran. Callbacks
// scheduled while flushing wait for the next Flush.
func (s *ManualScheduler) Flush() int {
	s.mu.Lock()
	queued := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, fn := range queued {
		fn()
	}
	return len(queued)
}

// TickerScheduler runs queued callbacks on every tick of a frame ticker
type TickerScheduler struct {
	interval time.Duration
	mu       sync.Mutex
	pending  []func()
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewTickerScheduler starts a scheduler ticking every interval until ctx is
// cancelled or Stop is called
func NewTickerScheduler(ctx context.Context, interval time.Duration) *TickerScheduler {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &TickerScheduler{
		interval: interval,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go s.run(ctx)
	return s
}

// Schedule queues fn for the next tick
func (s *TickerScheduler) Schedule(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, fn)
}

// Interval returns the tick interval
func (s *TickerScheduler) Interval() time.Duration {
	return s.interval
}

// Stop halts the ticker and waits for the loop to exit. Queued callbacks that
// have not run are dropped.
func (s *TickerScheduler) Stop() {
	s.stopOnce.Do(s.cancel)
	<-s.done
}

func (s *TickerScheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			queued := s.pending
			s.pending = nil
			s.mu.Unlock()

			for _, fn := range queued {
				fn()
			}
		}
	}
}
