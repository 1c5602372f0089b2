// Package schedule emits numbered ticks on a fixed interval to registered
// handlers.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/orbitdash/internal/metrics"
)

// DefaultInterval matches the dashboard's one-second refresh.
const DefaultInterval = time.Second

// Tick is one scheduler event.
type Tick struct {
	Seq  uint64
	Time time.Time
}

// Handler is called once per tick.
type Handler func(ctx context.Context, t Tick)

// Scheduler fires ticks every interval. Handlers run on their own goroutine,
// one tick at a time: a tick that arrives while the previous one is still
// being handled is dropped.
type Scheduler struct {
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	handlers []Handler

	seq     uint64 // owned by the Run goroutine
	busy    atomic.Bool
	dropped atomic.Uint64
	wg      sync.WaitGroup
}

// New creates a Scheduler. A non-positive interval means DefaultInterval.
func New(interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		interval: interval,
		logger:   logger.With("component", "scheduler"),
	}
}

// Interval returns the tick interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Subscribe registers h for every subsequent tick.
func (s *Scheduler) Subscribe(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// Dropped returns the number of ticks skipped because handlers were busy.
func (s *Scheduler) Dropped() uint64 {
	return s.dropped.Load()
}

// Run fires a tick immediately and then every interval until ctx is
// cancelled. It returns after in-flight handlers finish.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "interval_ms", s.interval.Milliseconds())
	s.fire(ctx, time.Now())
	s.run(ctx, ticker.C)
	s.logger.Info("scheduler stopped", "ticks", s.seq, "dropped", s.Dropped())
}

func (s *Scheduler) run(ctx context.Context, ticks <-chan time.Time) {
	defer s.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticks:
			s.fire(ctx, now)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, now time.Time) {
	s.seq++
	tick := Tick{Seq: s.seq, Time: now}

	if !s.busy.CompareAndSwap(false, true) {
		s.dropped.Add(1)
		metrics.IncTicks(metrics.TickDropped)
		s.logger.Debug("tick dropped, previous tick still running", "seq", tick.Seq)
		return
	}

	s.mu.Lock()
	handlers := append([]Handler(nil), s.handlers...)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.busy.Store(false)

		start := time.Now()
		for _, h := range handlers {
			s.call(ctx, h, tick)
		}
		metrics.ObserveTickDuration(time.Since(start))
	}()
}

// call runs one handler, turning a panic into an error log.
func (s *Scheduler) call(ctx context.Context, h Handler, tick Tick) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tick handler panicked", "seq", tick.Seq, "error", fmt.Sprint(r))
		}
	}()
	h(ctx, tick)
}
