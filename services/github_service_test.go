package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildInPublicAPI/internal/apperr"
	"buildInPublicAPI/internal/github"
	"buildInPublicAPI/internal/types/streak"
)

type fakeSource struct {
	mu   sync.Mutex
	data *github.Contributions
	gets []string
}

func (f *fakeSource) Get(_ context.Context, username string) *github.Contributions {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets = append(f.gets, username)
	return f.data
}

func calendar(synthetic bool, counts ...int) *github.Contributions {
	c := &github.Contributions{Username: "octo", Synthetic: synthetic, FetchedAt: fixedNow}
	start := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(len(counts) - 1))
	for i, n := range counts {
		c.Days = append(c.Days, github.Day{Date: start.AddDate(0, 0, i).Format(github.DateLayout), Count: n})
		c.TotalContributions += n
	}
	return c
}

func TestGitHubSync_StoresStatsAndRecordsCommit(t *testing.T) {
	mock := newMock(t)
	source := &fakeSource{data: calendar(false, 0, 2, 1, 3)}
	sink := &fakeSink{}
	svc := NewGitHubService(mock, source, sink, time.UTC, fixedClock)

	mock.ExpectQuery("SELECT COALESCE\\(github_username").WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"github_username"}).AddRow("octo"))
	mock.ExpectQuery("INSERT INTO github_stats").
		WithArgs("u1", "octo", 6, 3).
		WillReturnRows(pgxmock.NewRows([]string{"synced_at"}).AddRow(fixedNow))

	stats, err := svc.SyncUser(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TodayCount)
	assert.Equal(t, 3, stats.CurrentStreak)
	assert.Equal(t, []string{"octo"}, source.gets)
	assert.Equal(t, []dispatched{{"u1", streak.ActivityCommit}}, sink.Calls())
	assert.NoError(t, mock.ExpectationsWereMet())
}

type flakyFetcher struct {
	calls int
	err   error
	data  *github.Contributions
}

func (f *flakyFetcher) FetchContributions(context.Context, string) (*github.Contributions, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func expectSync(mock pgxmock.PgxPoolIface, total, streakLen int) {
	mock.ExpectQuery("SELECT COALESCE\\(github_username").WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"github_username"}).AddRow("octo"))
	mock.ExpectQuery("INSERT INTO github_stats").
		WithArgs("u1", "octo", total, streakLen).
		WillReturnRows(pgxmock.NewRows([]string{"synced_at"}).AddRow(fixedNow))
}

func TestGitHubSync_ReusesFreshCacheEntry(t *testing.T) {
	mock := newMock(t)
	fetcher := &flakyFetcher{data: calendar(false, 3, 4)}
	cache := github.NewCache(fetcher, time.Hour, github.WithClock(fixedClock))
	svc := NewGitHubService(mock, cache, nil, time.UTC, fixedClock)

	for i := 0; i < 3; i++ {
		expectSync(mock, 7, 2)
		_, err := svc.SyncUser(context.Background(), "u1")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, fetcher.calls, "syncs within one TTL window share a fetch")

	fetcher.err = errors.New("github unavailable")
	expectSync(mock, 7, 2)
	stats, err := svc.SyncUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, stats.Synthetic)
	assert.Equal(t, 1, fetcher.calls)

	mock.ExpectQuery("WHERE LOWER\\(username\\)").WithArgs("ada").
		WillReturnRows(pgxmock.NewRows([]string{"github_username"}).AddRow("octo"))
	c, err := svc.GetContributions(context.Background(), "ada")
	require.NoError(t, err)
	assert.False(t, c.Synthetic, "a failing upstream does not replace the cached real calendar")
	assert.Equal(t, 7, c.TotalContributions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGitHubSync_NoContributionsTodayRecordsNothing(t *testing.T) {
	mock := newMock(t)
	sink := &fakeSink{}
	svc := NewGitHubService(mock, &fakeSource{data: calendar(false, 4, 0)}, sink, time.UTC, fixedClock)

	mock.ExpectQuery("SELECT COALESCE\\(github_username").WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"github_username"}).AddRow("octo"))
	mock.ExpectQuery("INSERT INTO github_stats").
		WithArgs("u1", "octo", 4, 1).
		WillReturnRows(pgxmock.NewRows([]string{"synced_at"}).AddRow(fixedNow))

	_, err := svc.SyncUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, sink.Calls())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGitHubSync_SyntheticIsNotStored(t *testing.T) {
	mock := newMock(t)
	sink := &fakeSink{}
	svc := NewGitHubService(mock, &fakeSource{data: calendar(true, 5, 5)}, sink, time.UTC, fixedClock)

	mock.ExpectQuery("SELECT COALESCE\\(github_username").WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"github_username"}).AddRow("octo"))

	stats, err := svc.SyncUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, stats.Synthetic)
	assert.Empty(t, sink.Calls())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGitHubSync_RequiresLinkedAccount(t *testing.T) {
	mock := newMock(t)
	svc := NewGitHubService(mock, &fakeSource{}, nil, time.UTC, fixedClock)

	mock.ExpectQuery("SELECT COALESCE\\(github_username").WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"github_username"}).AddRow(""))

	_, err := svc.SyncUser(context.Background(), "u1")
	assert.Equal(t, "is required", apperr.From(err).Fields["githubUsername"])
}

func TestGetContributions_ResolvesLinkedLogin(t *testing.T) {
	mock := newMock(t)
	source := &fakeSource{data: calendar(false, 1)}
	svc := NewGitHubService(mock, source, nil, time.UTC, fixedClock)

	mock.ExpectQuery("WHERE LOWER\\(username\\)").WithArgs("Ada").
		WillReturnRows(pgxmock.NewRows([]string{"github_username"}).AddRow("octo"))
	mock.ExpectQuery("WHERE LOWER\\(username\\)").WithArgs("grace").
		WillReturnRows(pgxmock.NewRows([]string{"github_username"}).AddRow(""))

	c, err := svc.GetContributions(context.Background(), "Ada")
	require.NoError(t, err)
	assert.Equal(t, 1, c.TotalContributions)
	assert.Equal(t, []string{"octo"}, source.gets)

	_, err = svc.GetContributions(context.Background(), "grace")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}
