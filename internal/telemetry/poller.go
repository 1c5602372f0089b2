package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/star/orbitdash/internal/metrics"
	"github.com/star/orbitdash/internal/propagation"
)

var tracer = otel.Tracer("github.com/star/orbitdash/internal/telemetry")

// Series modes.
const (
	// ModeSynthetic recomputes the whole trailing window every tick.
	ModeSynthetic = "synthetic"
	// ModeRolling keeps a ring buffer and appends one sample per step.
	ModeRolling = "rolling"
)

// Defaults match the dashboard's original trailing window: 180 points, 20 s
// apart, one hour back.
const (
	DefaultCount = 180
	DefaultStep  = 20 * time.Second
)

// Config holds poller configuration loaded from environment variables.
type Config struct {
	Body    string        // body name used in frames and snapshots
	Count   int           // trailing series length (default: 180)
	Step    time.Duration // spacing between series points (default: 20s)
	Workers int           // concurrent Sampler calls per series (default: runtime.NumCPU())
	Mode    string        // ModeSynthetic or ModeRolling
}

// DefaultConfig returns the configuration for body with all defaults applied.
func DefaultConfig(body string) Config {
	return Config{
		Body:    body,
		Count:   DefaultCount,
		Step:    DefaultStep,
		Workers: runtime.NumCPU(),
		Mode:    ModeSynthetic,
	}
}

// Validate reports an ErrInvalidConfig for unusable settings.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Body) == "" {
		return fmt.Errorf("%w: no body name", ErrInvalidConfig)
	}
	if c.Count < 0 {
		return fmt.Errorf("%w: count %d is negative", ErrInvalidConfig, c.Count)
	}
	if c.Step <= 0 {
		return fmt.Errorf("%w: step %s is not positive", ErrInvalidConfig, c.Step)
	}
	if c.Mode != ModeSynthetic && c.Mode != ModeRolling {
		return fmt.Errorf("%w: unknown series mode %q", ErrInvalidConfig, c.Mode)
	}
	return nil
}

// Option configures a Poller.
type Option func(*Poller)

// WithClock replaces time.Now as the source of "now".
func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

// Poller samples one body through an injected Sampler.
type Poller struct {
	sampler Sampler
	config  Config
	logger  *slog.Logger
	now     func() time.Time

	// historyMu spans each read-then-write of history so a concurrent
	// ResetHistory cannot land between them.
	historyMu sync.Mutex
	history   *History

	mu         sync.Mutex
	lastReason string
}

// NewPoller creates a Poller. A zero Step or Workers falls back to its default
// and an empty Mode means ModeSynthetic. Count is used as given.
func NewPoller(sampler Sampler, config Config, logger *slog.Logger, opts ...Option) *Poller {
	if config.Step == 0 {
		config.Step = DefaultStep
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.Mode == "" {
		config.Mode = ModeSynthetic
	}

	p := &Poller{
		sampler: sampler,
		config:  config,
		logger:  logger.With("component", "poller", "body", config.Body),
		now:     time.Now,
		history: NewHistory(config.Count),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective configuration.
func (p *Poller) Config() Config {
	return p.config
}

// SampleCurrent samples the body now and formats the readout.
func (p *Poller) SampleCurrent(ctx context.Context) (Snapshot, error) {
	return p.snapshotAt(ctx, p.now())
}

func (p *Poller) snapshotAt(ctx context.Context, now time.Time) (Snapshot, error) {
	cur, err := sampleAt(ctx, p.sampler, now)
	if err != nil {
		return Snapshot{}, err
	}
	snap := newSnapshot(p.config.Body, cur)

	if prev, err := sampleAt(ctx, p.sampler, now.Add(-time.Second)); err == nil {
		snap.GroundSpeed = groundSpeed(prev, cur)
	} else {
		p.logger.Debug("ground speed unavailable", "error", err)
	}
	return snap, nil
}

// BuildSeries samples count points step apart walking back from now, most
// recent first. Points are sampled concurrently but keep their index order.
// The first Sampler failure cancels the remaining points.
func (p *Poller) BuildSeries(ctx context.Context, count int, step time.Duration) (Series, error) {
	return p.buildSeriesAt(ctx, p.now(), count, step)
}

func (p *Poller) buildSeriesAt(ctx context.Context, now time.Time, count int, step time.Duration) (Series, error) {
	if count < 0 {
		return Series{}, fmt.Errorf("%w: count %d is negative", ErrInvalidConfig, count)
	}
	if step <= 0 {
		return Series{}, fmt.Errorf("%w: step %s is not positive", ErrInvalidConfig, step)
	}

	samples := make([]Sample, count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Workers)
	for i := 0; i < count; i++ {
		if gctx.Err() != nil {
			break
		}
		t := now.Add(-time.Duration(i) * step)
		g.Go(func() error {
			s, err := sampleAt(gctx, p.sampler, t)
			if err != nil {
				return err
			}
			samples[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Series{}, err
	}
	if err := ctx.Err(); err != nil {
		return Series{}, &SampleError{Time: now, Err: err}
	}
	return NewSeries(samples), nil
}

// Tick builds the frame for one scheduler tick at t. Failures produce an
// error frame; Tick never returns nil.
func (p *Poller) Tick(ctx context.Context, seq uint64, t time.Time) *Frame {
	ctx, span := tracer.Start(ctx, "telemetry.Tick", trace.WithAttributes(
		attribute.String("body", p.config.Body),
		attribute.Int64("seq", int64(seq)),
	))
	defer span.End()

	frame, err := p.tick(ctx, seq, t)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.IncTicks(metrics.TickError)
		frame = NewErrorFrame(seq, t, p.config.Body, err)
		p.noteFailure(seq, frame.Reason, err)
		return frame
	}
	metrics.IncTicks(metrics.TickOK)
	p.noteSuccess(seq)
	return frame
}

func (p *Poller) tick(ctx context.Context, seq uint64, t time.Time) (*Frame, error) {
	snap, err := p.snapshotAt(ctx, t)
	if err != nil {
		return nil, err
	}

	var series Series
	if p.config.Mode == ModeRolling {
		series, err = p.rollingSeries(ctx, snap.Sample)
	} else {
		series, err = p.buildSeriesAt(ctx, t, p.config.Count, p.config.Step)
	}
	if err != nil {
		return nil, err
	}

	fig := series.Figure()
	return &Frame{
		Type:     FrameTelemetry,
		Seq:      seq,
		Time:     t,
		Body:     p.config.Body,
		Snapshot: &snap,
		Figure:   &fig,
	}, nil
}

// rollingSeries backfills the history synthetically on first use, then
// appends cur whenever a full step has passed since the newest entry. A gap
// longer than the whole window backfills again rather than keeping samples
// from before the outage.
func (p *Poller) rollingSeries(ctx context.Context, cur Sample) (Series, error) {
	p.historyMu.Lock()
	defer p.historyMu.Unlock()

	window := time.Duration(p.config.Count) * p.config.Step
	newest, ok := p.history.Newest()
	switch {
	case !ok, cur.Time.Sub(newest.Time) >= window:
		series, err := p.buildSeriesAt(ctx, cur.Time, p.config.Count, p.config.Step)
		if err != nil {
			return Series{}, err
		}
		p.history.Backfill(series.Samples)
		metrics.SetHistorySamples(p.history.Len())
		return series, nil
	case cur.Time.Sub(newest.Time) >= p.config.Step:
		p.history.Push(cur)
		metrics.SetHistorySamples(p.history.Len())
	}
	return NewSeries(p.history.Recent()), nil
}

// ResetHistory drops the rolling buffer so the next tick backfills from the
// current elements. It waits for an in-progress rolling update.
func (p *Poller) ResetHistory() {
	p.historyMu.Lock()
	p.history.Reset()
	p.historyMu.Unlock()

	metrics.SetHistorySamples(0)
	p.logger.Info("telemetry history reset")
}

// noteFailure logs at warn level when the failure reason changes and at debug
// level while it persists.
func (p *Poller) noteFailure(seq uint64, reason string, err error) {
	p.mu.Lock()
	changed := p.lastReason != reason
	p.lastReason = reason
	p.mu.Unlock()

	if changed {
		p.logger.Warn("telemetry unavailable", "seq", seq, "reason", reason, "error", err)
	} else {
		p.logger.Debug("telemetry still unavailable", "seq", seq, "reason", reason)
	}
}

func (p *Poller) noteSuccess(seq uint64) {
	p.mu.Lock()
	recovered := p.lastReason != ""
	p.lastReason = ""
	p.mu.Unlock()

	if recovered {
		p.logger.Info("telemetry recovered", "seq", seq)
	}
}

// Reason maps a poller error to a short label.
func Reason(err error) string {
	if errors.Is(err, ErrInvalidConfig) {
		return "invalid_config"
	}
	if r := propagation.Reason(err); r != "unknown" {
		return r
	}
	if errors.Is(err, ErrNoData) {
		return "no_data"
	}
	return "unknown"
}
