// Package refcache holds the task-management reference snapshot (projects,
// missions, teams, ...) fetched from an upstream source.
//
// The snapshot is refreshed when older than the TTL, or on demand. A failed
// refresh keeps serving the last good snapshot; only a cache that has never
// loaded reports an error.
package refcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/suPer8Hu/agent-services/internal/observability"
)

// ErrNoData is returned when a refresh fails and nothing was ever cached.
var ErrNoData = errors.New("refcache: no reference data available")

// Fetcher loads a fresh snapshot from the upstream source.
type Fetcher interface {
	Fetch(ctx context.Context) (map[string]any, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (map[string]any, error)

func (f FetcherFunc) Fetch(ctx context.Context) (map[string]any, error) { return f(ctx) }

type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time

	// mu covers the freshness check and the refresh, so at most one fetch
	// is ever in flight.
	mu         sync.Mutex
	data       map[string]any
	hasData    bool
	lastUpdate time.Time

	lastErr error

	// attempts counts finished refresh attempts. A caller that sees it move
	// while waiting for mu takes that attempt's outcome instead of fetching again.
	attempts atomic.Uint64

	// status mirrors hasData/lastUpdate for readers that must not wait on a fetch.
	status atomic.Pointer[cacheStatus]
}

type cacheStatus struct {
	hasData    bool
	lastUpdate time.Time
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(fetcher Fetcher, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{fetcher: fetcher, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached snapshot while it is younger than the TTL, and
// refreshes it otherwise or when force is set. The returned map is shared and
// must be treated as read-only.
func (c *Cache) Get(ctx context.Context, force bool) (map[string]any, error) {
	seen := c.attempts.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	log := observability.LoggerFromContext(ctx).With(slog.String("component", "refcache"))

	if c.attempts.Load() != seen {
		// A refresh finished while we were queued behind it.
		if c.hasData {
			return c.data, nil
		}
		return nil, c.lastErr
	}

	now := c.now()

	if !force && c.hasData && now.Sub(c.lastUpdate) < c.ttl {
		log.Debug("using cached reference data")
		return c.data, nil
	}

	log.Info("refreshing reference data")
	fresh, err := c.fetcher.Fetch(ctx)
	defer c.attempts.Add(1)
	if err != nil {
		log.Error("reference data refresh failed", slog.Any("err", err))
		c.lastErr = fmt.Errorf("%w: %w", ErrNoData, err)
		if c.hasData {
			log.Warn("serving stale reference data",
				slog.Duration("age", now.Sub(c.lastUpdate)),
			)
			return c.data, nil
		}
		return nil, c.lastErr
	}
	if fresh == nil {
		fresh = map[string]any{}
	}

	c.data = fresh
	c.hasData = true
	c.lastUpdate = now
	c.lastErr = nil
	c.status.Store(&cacheStatus{hasData: true, lastUpdate: now})
	log.Info("reference data refreshed")
	return c.data, nil
}

// Status reports whether a snapshot is present and when it was last
// refreshed. It does not wait for an in-flight refresh.
func (c *Cache) Status() (hasData bool, lastUpdate time.Time) {
	st := c.status.Load()
	if st == nil {
		return false, time.Time{}
	}
	return st.hasData, st.lastUpdate
}

// Poll force-refreshes the snapshot every interval until ctx is done.
// Refresh errors are logged and never stop the loop.
func (c *Cache) Poll(ctx context.Context, interval time.Duration) {
	log := observability.Logger().With(slog.String("component", "refcache"))
	log.Info("reference data polling started", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("reference data polling stopped")
			return
		case <-ticker.C:
			if _, err := c.Get(ctx, true); err != nil {
				log.Error("polling refresh failed", slog.Any("err", err))
			}
		}
	}
}
