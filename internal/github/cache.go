package github

import (
	"context"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"buildInPublicAPI/internal/metrics"
)

const DefaultTTL = time.Hour

type Fetcher interface {
	FetchContributions(ctx context.Context, username string) (*Contributions, error)
}

type cacheEntry struct {
	data      *Contributions
	fetchedAt time.Time
}

// Cache keeps one entry per GitHub username. An entry is fresh while
// now-fetchedAt < ttl. Concurrent misses for the same key may both reach the
// fetcher; the last writer wins.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type CacheOption func(*Cache)

func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

func NewCache(fetcher Fetcher, ttl time.Duration, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get never fails: a fetch error is replaced by a synthetic calendar, which is
// cached like a real one so a failing upstream is not retried until expiry.
func (c *Cache) Get(ctx context.Context, username string) *Contributions {
	key := strings.ToLower(strings.TrimSpace(username))
	now := c.now()

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()

	if ok && now.Sub(entry.fetchedAt) < c.ttl {
		metrics.ContributionCacheLookups.WithLabelValues("hit").Inc()
		return entry.data.clone()
	}

	data, err := c.fetcher.FetchContributions(ctx, username)
	if err != nil {
		log.WithError(err).WithField("username", username).Warn("github: falling back to synthetic contributions")
		metrics.ContributionCacheLookups.WithLabelValues("fallback").Inc()
		data = Synthetic(username, now)
	} else {
		metrics.ContributionCacheLookups.WithLabelValues("miss").Inc()
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{data: data, fetchedAt: now}
	c.mu.Unlock()

	return data.clone()
}

// Invalidate drops the entry for username so the next Get refetches.
func (c *Cache) Invalidate(username string) {
	c.mu.Lock()
	delete(c.entries, strings.ToLower(strings.TrimSpace(username)))
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
