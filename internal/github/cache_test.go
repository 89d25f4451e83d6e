package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildInPublicAPI/internal/metrics"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type stubFetcher struct {
	calls int
	err   error
	data  *Contributions
}

func (s *stubFetcher) FetchContributions(_ context.Context, username string) (*Contributions, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	cp := s.data.clone()
	cp.Username = username
	return cp, nil
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestCache_HitWithinTTLSkipsFetcher(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)}
	fetcher := &stubFetcher{data: &Contributions{TotalContributions: 3, Days: []Day{{Date: "2026-10-14", Count: 3}}}}
	cache := NewCache(fetcher, time.Hour, WithClock(clock.Now))

	hitsBefore := testutil.ToFloat64(metrics.ContributionCacheLookups.WithLabelValues("hit"))

	first := cache.Get(context.Background(), "octocat")
	clock.Advance(59 * time.Minute)
	second := cache.Get(context.Background(), "OctoCat")

	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, mustJSON(t, first), mustJSON(t, second))
	assert.Equal(t, hitsBefore+1, testutil.ToFloat64(metrics.ContributionCacheLookups.WithLabelValues("hit")))

	second.Days[0].Count = 99
	assert.Equal(t, 3, cache.Get(context.Background(), "octocat").Days[0].Count, "callers cannot mutate the cached entry")
}

func TestCache_ExpiryRefetches(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)}
	fetcher := &stubFetcher{data: &Contributions{TotalContributions: 1, Days: []Day{{Date: "2026-10-14", Count: 1}}}}
	cache := NewCache(fetcher, time.Hour, WithClock(clock.Now))

	cache.Get(context.Background(), "octocat")
	clock.Advance(time.Hour)
	cache.Get(context.Background(), "octocat")

	assert.Equal(t, 2, fetcher.calls, "an entry exactly one TTL old is stale")
}

func TestCache_FailureFallsBackToConsistentSyntheticData(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)}
	fetcher := &stubFetcher{err: &StatusError{StatusCode: http.StatusServiceUnavailable}}
	cache := NewCache(fetcher, time.Hour, WithClock(clock.Now))

	got := cache.Get(context.Background(), "octocat")

	require.True(t, got.Synthetic)
	require.Len(t, got.Days, SyntheticDays)
	sum := 0
	for _, d := range got.Days {
		sum += d.Count
	}
	assert.Equal(t, got.TotalContributions, sum)
	assert.Equal(t, "2026-10-14", got.Days[SyntheticDays-1].Date)

	// The fallback is cached under the same freshness rule.
	clock.Advance(30 * time.Minute)
	again := cache.Get(context.Background(), "octocat")
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, mustJSON(t, got), mustJSON(t, again))

	// After expiry the upstream is tried again.
	clock.Advance(31 * time.Minute)
	fetcher.err = errors.New("still down")
	cache.Get(context.Background(), "octocat")
	assert.Equal(t, 2, fetcher.calls)
}

func TestCache_Invalidate(t *testing.T) {
	fetcher := &stubFetcher{data: &Contributions{}}
	cache := NewCache(fetcher, time.Hour)

	cache.Get(context.Background(), "octocat")
	assert.Equal(t, 1, cache.Len())

	cache.Invalidate("OCTOCAT")
	assert.Zero(t, cache.Len())

	cache.Get(context.Background(), "octocat")
	assert.Equal(t, 2, fetcher.calls)
}

func TestSynthetic_Deterministic(t *testing.T) {
	today := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	a := Synthetic("octocat", today)
	b := Synthetic("octocat", today)
	c := Synthetic("torvalds", today)

	assert.Equal(t, a.Days, b.Days)
	assert.NotEqual(t, a.Days, c.Days)
	assert.Equal(t, "2025-03-02", a.Days[0].Date)
}
