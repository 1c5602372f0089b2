package propagation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/star/orbitdash/internal/metrics"
	"github.com/star/orbitdash/internal/tle"
	"github.com/star/orbitdash/internal/transform"
)

var tracer = otel.Tracer("github.com/star/orbitdash/internal/propagation")

// propCache is the propagator built for one dataset. Immutable after
// construction. err is kept so a broken entry is not rebuilt every call.
type propCache struct {
	fetchedAt time.Time
	entry     tle.TLEEntry
	prop      *SGP4Propagator
	err       error
}

// Sampler computes the geodetic position of one body from the current TLE
// dataset. Safe for concurrent use.
type Sampler struct {
	store  *tle.Store
	body   string
	config Config
	logger *slog.Logger

	cache   atomic.Pointer[propCache]
	cacheMu sync.Mutex // serializes rebuilds
}

// NewSampler creates a Sampler for body, matched by name or NORAD ID.
func NewSampler(store *tle.Store, body string, config Config, logger *slog.Logger) *Sampler {
	return &Sampler{
		store:  store,
		body:   body,
		config: config,
		logger: logger.With("body", body),
	}
}

// Body returns the body name the sampler was created for.
func (s *Sampler) Body() string {
	return s.body
}

// Entry returns the TLE entry currently used for the body.
func (s *Sampler) Entry() (tle.TLEEntry, error) {
	c, err := s.current()
	if err != nil {
		return tle.TLEEntry{}, err
	}
	return c.entry, nil
}

// current returns the propagator for the live dataset, rebuilding it when the
// dataset has been replaced (double-checked locking).
func (s *Sampler) current() (*propCache, error) {
	ds := s.store.Get()
	if ds == nil {
		return nil, ErrNoDataset
	}

	if c := s.cache.Load(); c != nil && c.fetchedAt.Equal(ds.FetchedAt) {
		return c, c.err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if c := s.cache.Load(); c != nil && c.fetchedAt.Equal(ds.FetchedAt) {
		return c, c.err
	}

	c := &propCache{fetchedAt: ds.FetchedAt}
	entry, ok := ds.Find(s.body)
	if !ok {
		c.err = fmt.Errorf("%w: %q", ErrUnknownBody, s.body)
	} else {
		c.entry = entry
		c.prop, c.err = NewSGP4Propagator(entry.Line1, entry.Line2, entry.NORADID)
	}

	metrics.IncSamplerCacheRebuilds()
	if c.err != nil {
		s.logger.Warn("sgp4 propagator unavailable",
			"dataset_fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
			"error", c.err,
		)
	} else {
		s.logger.Info("sgp4 propagator rebuilt",
			"norad_id", c.entry.NORADID,
			"epoch", c.entry.Epoch.UTC().Format(time.RFC3339),
			"dataset_fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
		)
	}
	s.cache.Store(c)
	return c, c.err
}

// Position returns the sub-satellite point of the body at t.
func (s *Sampler) Position(ctx context.Context, t time.Time) (transform.Geodetic, error) {
	_, span := tracer.Start(ctx, "propagation.Position", trace.WithAttributes(
		attribute.String("body", s.body),
		attribute.String("time", t.UTC().Format(time.RFC3339)),
	))
	defer span.End()

	geo, err := s.position(t)
	if err != nil {
		metrics.IncSamplerErrors(Reason(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return transform.Geodetic{}, err
	}
	return geo, nil
}

func (s *Sampler) position(t time.Time) (transform.Geodetic, error) {
	c, err := s.current()
	if err != nil {
		return transform.Geodetic{}, err
	}

	if limit := s.config.MaxElementAge; limit > 0 {
		if d := t.Sub(c.entry.Epoch).Abs(); d > limit {
			return transform.Geodetic{}, fmt.Errorf("%w: %s from epoch %s",
				ErrStaleElements, d.Round(time.Second), c.entry.Epoch.UTC().Format(time.RFC3339))
		}
	}

	start := time.Now()
	teme, err := c.prop.PropagateAt(t)
	metrics.ObservePropagation(time.Since(start))
	if err != nil {
		return transform.Geodetic{}, err
	}

	ecef := transform.TEMEToECEF(teme, t.Truncate(time.Second))
	if !transform.ValidateECEF(ecef) {
		return transform.Geodetic{}, fmt.Errorf("%w: NORAD %d: %.1f km from Earth's center",
			ErrPropagation, c.entry.NORADID, teme.Magnitude())
	}
	geo := transform.ECEFToGeodetic(ecef)
	if !geo.Valid() {
		return transform.Geodetic{}, fmt.Errorf("%w: invalid geodetic position %+v", ErrPropagation, geo)
	}
	return geo, nil
}

// Reason maps a sampler error to a short metrics and API label.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrNoDataset):
		return "no_dataset"
	case errors.Is(err, ErrUnknownBody):
		return "unknown_body"
	case errors.Is(err, ErrInvalidElements):
		return "invalid_elements"
	case errors.Is(err, ErrStaleElements):
		return "stale_elements"
	case errors.Is(err, ErrPropagation):
		return "propagation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "unknown"
	}
}
