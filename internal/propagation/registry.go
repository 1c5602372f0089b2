package propagation

import (
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/star/orbitdash/internal/tle"
)

const defaultRegistrySize = 32

// Registry hands out Samplers by body, keeping the most recently used ones so
// their propagators survive between API requests.
type Registry struct {
	store  *tle.Store
	config Config
	logger *slog.Logger
	cache  *lru.Cache[string, *Sampler]
}

// NewRegistry creates a Registry holding up to config.RegistrySize samplers.
func NewRegistry(store *tle.Store, config Config, logger *slog.Logger) (*Registry, error) {
	size := config.RegistrySize
	if size <= 0 {
		size = defaultRegistrySize
	}
	cache, err := lru.New[string, *Sampler](size)
	if err != nil {
		return nil, fmt.Errorf("creating sampler registry: %w", err)
	}
	return &Registry{
		store:  store,
		config: config,
		logger: logger,
		cache:  cache,
	}, nil
}

// Sampler returns the sampler for body. Names are matched case-insensitively.
func (r *Registry) Sampler(body string) *Sampler {
	key := strings.ToUpper(strings.TrimSpace(body))
	if s, ok := r.cache.Get(key); ok {
		return s
	}
	s := NewSampler(r.store, strings.TrimSpace(body), r.config, r.logger)
	// Another request may have raced us; keep whichever landed first.
	if prev, ok, _ := r.cache.PeekOrAdd(key, s); ok {
		return prev
	}
	return s
}

// Len returns the number of cached samplers.
func (r *Registry) Len() int {
	return r.cache.Len()
}
