package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/digestwatch/digestwatch/internal/config"
	"github.com/digestwatch/digestwatch/internal/digest"
)

// Fetcher retrieves a digest's metadata and the entries updated at or
// after since from the upstream source. Implementations must honor the
// lower bound themselves — the cache filters reads, not fetch results.
// Returned entries may be empty; failure is a returned error, never a
// sentinel value.
type Fetcher interface {
	Fetch(ctx context.Context, opts config.Digest, since time.Time) (digest.Metadata, []digest.Entry, error)
}

// Metrics receives cache events. The zero-value noop implementation is
// used when nothing is wired in.
type Metrics interface {
	RefreshStarted(key string)
	RefreshFailed(key string)
}

// NoopMetrics discards all events.
type NoopMetrics struct{}

func (NoopMetrics) RefreshStarted(string) {}
func (NoopMetrics) RefreshFailed(string)  {}

// Store caches one digest's merged entries and metadata, refreshing them
// from the upstream fetcher when stale. Create instances through the
// Registry rather than directly.
type Store struct {
	opts         config.Digest
	lookback     time.Duration
	refreshAfter time.Duration
	order        digest.Order
	fetcher      Fetcher
	metrics      Metrics

	mu          sync.Mutex
	lastRefresh time.Time
	entries     []digest.Entry
	meta        digest.Metadata
	now         func() time.Time // injectable for deterministic tests
}

// New creates a Store for one digest. Zero-valued digest overrides fall
// back to the process-wide cache defaults.
func New(opts config.Digest, cache config.CacheConfig, fetcher Fetcher, metrics Metrics) *Store {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	lookback := opts.Lookback.Std(cache.Lookback.Std(config.DefaultLookback))
	order, _ := digest.OrderFromString(opts.Order)
	s := &Store{
		opts:         opts,
		lookback:     lookback,
		refreshAfter: opts.RefreshAfter.Std(cache.RefreshAfter.Std(config.DefaultRefreshAfter)),
		order:        order,
		fetcher:      fetcher,
		metrics:      metrics,
		now:          time.Now,
		meta:         digest.Metadata{Title: opts.Title},
	}
	// lastRefresh stays zero: the first read always takes the cold branch.
	return s
}

// Get returns the digest's metadata plus the cached entries updated
// strictly after since, refreshing from upstream first when the staleness
// policy calls for it. Concurrent callers for the same digest serialize on
// the store's lock; a caller that blocked behind an in-flight refresh
// re-evaluates staleness once the holder completes and will not refresh
// again.
func (s *Store) Get(ctx context.Context, since time.Time) digest.View {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	coldCutoff := digest.UTCToday(now).Add(-s.lookback)
	switch {
	case s.lastRefresh.Before(coldCutoff):
		// No refresh inside the lookback window: the merged state cannot
		// cover the full window, so re-fetch all of it.
		s.refresh(ctx, coldCutoff)
	case now.Sub(s.lastRefresh) > s.refreshAfter:
		s.refresh(ctx, s.lastRefresh)
	}

	entries := make([]digest.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.UpdatedAt.After(since) {
			entries = append(entries, e)
		}
	}
	return digest.View{Meta: s.meta, Entries: entries}
}

// Status reports the store's current shape for dashboards and the live
// update stream.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Key:         s.opts.Filename,
		Title:       s.opts.Title,
		EntryCount:  len(s.entries),
		LastRefresh: s.lastRefresh,
	}
}

// Status is a point-in-time summary of one store.
type Status struct {
	Key         string    `json:"key"`
	Title       string    `json:"title"`
	EntryCount  int       `json:"entry_count"`
	LastRefresh time.Time `json:"last_refresh"`
}

// refresh fetches entries updated since the given cutoff and merges them
// into the cached state. Callers must hold s.mu.
//
// lastRefresh is stamped before the fetch returns, so waiters queued on
// the lock see the staleness as addressed even if this fetch fails. A
// failed fetch is therefore not retried until the next refresh interval
// elapses — the store keeps serving its last-known-good state instead of
// hammering a broken upstream.
func (s *Store) refresh(ctx context.Context, since time.Time) {
	s.lastRefresh = s.now().UTC()
	s.metrics.RefreshStarted(s.opts.Filename)

	// A caller that gives up must not abort the refresh: its result is
	// shared state that every queued waiter depends on.
	meta, entries, err := s.fetcher.Fetch(context.WithoutCancel(ctx), s.opts, since)
	if err != nil {
		s.metrics.RefreshFailed(s.opts.Filename)
		slog.Error("store: refresh failed, serving cached state",
			"digest", s.opts.Filename, "since", since, "err", err)
		return
	}

	s.meta = meta
	if len(entries) > 0 {
		s.entries = digest.Merge(s.entries, entries, s.order)
	}
	slog.Debug("store: refreshed",
		"digest", s.opts.Filename, "since", since,
		"fetched", len(entries), "total", len(s.entries))
}
