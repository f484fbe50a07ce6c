package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/digestwatch/digestwatch/internal/config"
	"github.com/digestwatch/digestwatch/internal/digest"
)

// ErrUnknownKey is returned for digest filenames the registry was never
// configured with. The registry never creates a cache for an unconfigured
// key.
var ErrUnknownKey = errors.New("store: unknown digest")

// Registry maps configured digest filenames to their Store instances.
// Stores are created lazily on first access and live until the digest is
// removed by a config reload; there is no other eviction.
//
// Registry is safe for concurrent use. Its lock covers only the
// create-if-absent step — the per-digest fetch path runs outside it, so a
// slow refresh of one digest never blocks reads of another.
type Registry struct {
	fetcher Fetcher
	metrics Metrics

	mu      sync.Mutex
	cache   config.CacheConfig
	digests []config.Digest          // configured order, for the index page
	stores  map[string]*Store        // lazily populated
	known   map[string]config.Digest // filename -> definition
}

// NewRegistry creates a Registry for the digests in cfg. metrics may be
// nil.
func NewRegistry(cfg *config.Config, fetcher Fetcher, metrics Metrics) *Registry {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	r := &Registry{
		fetcher: fetcher,
		metrics: metrics,
		stores:  make(map[string]*Store),
	}
	r.Reload(cfg)
	return r
}

// Get resolves the store for key, creating it on first access, and
// delegates the read to it. Unknown keys return ErrUnknownKey.
func (r *Registry) Get(ctx context.Context, key string, since time.Time) (digest.View, error) {
	st, err := r.store(key)
	if err != nil {
		return digest.View{}, err
	}
	return st.Get(ctx, since), nil
}

// store returns the Store for key, constructing it under the registry lock
// so two concurrent first accesses cannot race a duplicate instance.
func (r *Registry) store(key string) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.stores[key]; ok {
		return st, nil
	}
	opts, ok := r.known[key]
	if !ok {
		return nil, ErrUnknownKey
	}
	st := New(opts, r.cache, r.fetcher, r.metrics)
	r.stores[key] = st
	return st, nil
}

// Digests returns the configured digest definitions in config order.
func (r *Registry) Digests() []config.Digest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]config.Digest, len(r.digests))
	copy(out, r.digests)
	return out
}

// Lookback returns the effective lookback for key, for use as the default
// ?since= window. Unknown keys return ErrUnknownKey.
func (r *Registry) Lookback(key string) (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	opts, ok := r.known[key]
	if !ok {
		return 0, ErrUnknownKey
	}
	return opts.Lookback.Std(r.cache.Lookback.Std(config.DefaultLookback)), nil
}

// Count returns the number of instantiated stores.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Statuses returns a point-in-time summary of every instantiated store,
// ordered by key. Digests that have never been read are omitted.
func (r *Registry) Statuses() []Status {
	r.mu.Lock()
	stores := make([]*Store, 0, len(r.stores))
	for _, st := range r.stores {
		stores = append(stores, st)
	}
	r.mu.Unlock()

	out := make([]Status, 0, len(stores))
	for _, st := range stores {
		out = append(out, st.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Reload replaces the configured digest set. Stores for digests still
// present keep their cached state; stores for removed digests are dropped.
func (r *Registry) Reload(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache = cfg.Cache
	r.digests = append([]config.Digest(nil), cfg.Digests...)
	r.known = make(map[string]config.Digest, len(cfg.Digests))
	for _, d := range cfg.Digests {
		r.known[d.Filename] = d
	}
	for key := range r.stores {
		if _, ok := r.known[key]; !ok {
			delete(r.stores, key)
		}
	}
}
