package tle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/star/orbitdash/internal/metrics"
)

// ErrEmptyDataset is returned when a download parses to zero entries.
var ErrEmptyDataset = errors.New("TLE data contained no valid entries")

// Refresher keeps the Store populated: it seeds from the disk cache at startup,
// then re-fetches whenever the dataset is older than maxAge. Concurrent refresh
// requests (timer and API) share one download.
type Refresher struct {
	store   *Store
	fetcher *Fetcher
	cache   *Cache
	maxAge  time.Duration
	logger  *slog.Logger

	group singleflight.Group

	mu       sync.Mutex
	onUpdate []func(*TLEDataset)
}

// NewRefresher creates a Refresher. cache may be nil to disable the disk cache.
func NewRefresher(store *Store, fetcher *Fetcher, cache *Cache, maxAge time.Duration, logger *slog.Logger) *Refresher {
	return &Refresher{
		store:   store,
		fetcher: fetcher,
		cache:   cache,
		maxAge:  maxAge,
		logger:  logger,
	}
}

// OnUpdate registers fn to run after every successful dataset replacement.
func (r *Refresher) OnUpdate(fn func(*TLEDataset)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onUpdate = append(r.onUpdate, fn)
}

// LoadCached seeds the store from the newest file in the disk cache.
func (r *Refresher) LoadCached() error {
	if r.cache == nil {
		return ErrNoCache
	}
	data, ts, err := r.cache.LoadLatest()
	if err != nil {
		return err
	}
	ds, err := r.install(data, "cache", ts)
	if err != nil {
		return fmt.Errorf("cached TLE data: %w", err)
	}
	r.logger.Info("loaded TLE data from cache",
		"count", len(ds.Satellites),
		"cached_at", ts.UTC().Format(time.RFC3339),
	)
	return nil
}

// refreshTimeout bounds a download once it no longer follows any caller.
const refreshTimeout = 2 * time.Minute

// Refresh downloads, parses and installs a fresh dataset. The download is
// detached from ctx because other callers may be sharing it; ctx only bounds
// how long this caller waits.
func (r *Refresher) Refresh(ctx context.Context) (*TLEDataset, error) {
	ch := r.group.DoChan("refresh", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return r.refresh(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			r.logger.Debug("TLE refresh shared with in-flight request")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*TLEDataset), nil
	}
}

func (r *Refresher) refresh(ctx context.Context) (*TLEDataset, error) {
	start := time.Now()
	data, err := r.fetcher.Fetch(ctx)
	if err != nil {
		metrics.IncTLEFetches("error")
		return nil, err
	}

	now := time.Now()
	ds, err := r.install(data, r.fetcher.SourceURL(), now)
	if err != nil {
		metrics.IncTLEFetches("error")
		return nil, err
	}
	metrics.IncTLEFetches("ok")

	if r.cache != nil {
		if err := r.cache.Write(data, now); err != nil {
			r.logger.Warn("failed to write TLE cache", "error", err)
		}
	}

	r.logger.Info("TLE data refreshed",
		"count", len(ds.Satellites),
		"source", ds.Source,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ds, nil
}

func (r *Refresher) install(data []byte, source string, fetchedAt time.Time) (*TLEDataset, error) {
	entries, err := Parse(bytes.NewReader(data), r.logger)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrEmptyDataset
	}

	ds := NewDataset(source, fetchedAt, entries)
	r.store.Set(ds)
	metrics.SetTLEDatasetCount(len(entries))
	metrics.SetTLEDatasetAge(0)

	r.mu.Lock()
	hooks := append([]func(*TLEDataset){}, r.onUpdate...)
	r.mu.Unlock()
	for _, fn := range hooks {
		fn(ds)
	}
	return ds, nil
}

// stale reports whether the store needs a new download.
func (r *Refresher) stale() bool {
	age := r.store.AgeSeconds()
	return age < 0 || time.Duration(age*float64(time.Second)) >= r.maxAge
}

// Run refreshes immediately when the store is empty or stale, then re-checks
// once a minute until ctx is cancelled. It also keeps the dataset-age gauge
// current.
func (r *Refresher) Run(ctx context.Context) {
	check := time.Minute
	if r.maxAge > 0 && r.maxAge < check {
		check = r.maxAge
	}
	ticker := time.NewTicker(check)
	defer ticker.Stop()

	for {
		if r.stale() {
			if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("TLE refresh failed", "error", err)
			}
		}
		if age := r.store.AgeSeconds(); age >= 0 {
			metrics.SetTLEDatasetAge(age)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
