package schedule

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 1s")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSchedulerDeliversTicksInOrder(t *testing.T) {
	s := New(time.Hour, testLogger)

	var mu sync.Mutex
	var got []Tick
	s.Subscribe(func(ctx context.Context, tk Tick) {
		mu.Lock()
		got = append(got, tk)
		mu.Unlock()
	})

	ticks := make(chan time.Time)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.run(ctx, ticks)
		close(done)
	}()

	base := time.Unix(1000, 0)
	for i := 0; i < 3; i++ {
		ticks <- base.Add(time.Duration(i) * time.Second)
		waitFor(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(got) == i+1
		})
		waitFor(t, func() bool { return !s.busy.Load() })
	}
	cancel()
	<-done

	for i, tk := range got {
		if tk.Seq != uint64(i+1) || !tk.Time.Equal(base.Add(time.Duration(i)*time.Second)) {
			t.Errorf("tick %d = %+v", i, tk)
		}
	}
	if s.Dropped() != 0 {
		t.Errorf("Dropped = %d, want 0", s.Dropped())
	}
}

func TestSchedulerDropsOverlappingTicks(t *testing.T) {
	s := New(time.Hour, testLogger)

	release := make(chan struct{})
	started := make(chan uint64, 10)
	s.Subscribe(func(ctx context.Context, tk Tick) {
		started <- tk.Seq
		<-release
	})

	ticks := make(chan time.Time)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.run(ctx, ticks)
		close(done)
	}()

	ticks <- time.Unix(1, 0)
	if seq := <-started; seq != 1 {
		t.Fatalf("first handled tick = %d", seq)
	}

	// The handler is blocked; these ticks must be dropped.
	ticks <- time.Unix(2, 0)
	ticks <- time.Unix(3, 0)
	waitFor(t, func() bool { return s.Dropped() == 2 })

	close(release)
	waitFor(t, func() bool { return !s.busy.Load() })

	ticks <- time.Unix(4, 0)
	if seq := <-started; seq != 4 {
		t.Errorf("tick after drop = %d, want 4", seq)
	}

	cancel()
	<-done
	if len(started) != 0 {
		t.Errorf("dropped tick reached a handler")
	}
}

func TestSchedulerRecoversHandlerPanic(t *testing.T) {
	s := New(time.Hour, testLogger)

	var calls sync.WaitGroup
	calls.Add(2)
	s.Subscribe(func(ctx context.Context, tk Tick) {
		defer calls.Done()
		panic("boom")
	})
	s.Subscribe(func(ctx context.Context, tk Tick) {
		calls.Done()
	})

	ticks := make(chan time.Time)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.run(ctx, ticks)

	ticks <- time.Unix(1, 0)
	calls.Wait()
	waitFor(t, func() bool { return !s.busy.Load() })
}

func TestSchedulerRunFiresImmediately(t *testing.T) {
	s := New(time.Hour, testLogger)
	fired := make(chan Tick, 1)
	s.Subscribe(func(ctx context.Context, tk Tick) { fired <- tk })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case tk := <-fired:
		if tk.Seq != 1 {
			t.Errorf("first tick seq = %d", tk.Seq)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not fire a tick at start")
	}
	cancel()
	<-done
}

func TestNewDefaultsInterval(t *testing.T) {
	if got := New(0, testLogger).Interval(); got != DefaultInterval {
		t.Errorf("Interval = %s, want %s", got, DefaultInterval)
	}
}
