package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"buildInPublicAPI/internal/apperr"
	"buildInPublicAPI/internal/github"
	"buildInPublicAPI/internal/types/streak"
)

// ContributionSource is satisfied by *github.Cache.
type ContributionSource interface {
	Get(ctx context.Context, username string) *github.Contributions
}

type GitHubService struct {
	db       DB
	source   ContributionSource
	activity ActivitySink
	loc      *time.Location
	now      Clock
}

func NewGitHubService(db DB, source ContributionSource, activity ActivitySink, loc *time.Location, now Clock) *GitHubService {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &GitHubService{db: db, source: source, activity: activity, loc: loc, now: now}
}

// githubLogin returns the linked GitHub username, which may be empty.
func (s *GitHubService) githubLogin(ctx context.Context, where string, arg string) (string, error) {
	var login string
	err := s.db.QueryRow(ctx, `SELECT COALESCE(github_username, '') FROM users WHERE `+where, arg).Scan(&login)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound("User not found")
		}
		return "", dbError("load github username", err)
	}
	return login, nil
}

// GetContributions returns the calendar for a builder's linked GitHub
// account. When GitHub is unavailable the result is synthetic.
func (s *GitHubService) GetContributions(ctx context.Context, username string) (*github.Contributions, error) {
	login, err := s.githubLogin(ctx, `LOWER(username) = LOWER($1)`, username)
	if err != nil {
		return nil, err
	}
	if login == "" {
		return nil, apperr.NotFound("No GitHub account linked")
	}
	return s.source.Get(ctx, login), nil
}

// SyncUser reads the user's calendar through the cache, stores the summary
// and records commit activity when there are contributions today. A fresh
// cache entry is reused. Synthetic data is returned but never stored or
// counted.
func (s *GitHubService) SyncUser(ctx context.Context, userID string) (*github.Stats, error) {
	login, err := s.githubLogin(ctx, `id = $1`, userID)
	if err != nil {
		return nil, err
	}
	if login == "" {
		return nil, apperr.Validation("Link a GitHub username first", map[string]string{"githubUsername": "is required"})
	}

	c := s.source.Get(ctx, login)

	today := streak.Day(s.now(), s.loc).Format(github.DateLayout)
	stats := &github.Stats{
		GitHubUsername:     login,
		TotalContributions: c.TotalContributions,
		CurrentStreak:      c.CurrentStreak(),
		TodayCount:         c.CountOn(today),
		Synthetic:          c.Synthetic,
		SyncedAt:           c.FetchedAt,
	}
	if c.Synthetic {
		log.WithFields(log.Fields{"user_id": userID, "github_username": login}).Warn("github: sync served synthetic data")
		return stats, nil
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO github_stats (user_id, github_username, total_contributions, current_contribution_streak, synced_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			github_username = EXCLUDED.github_username,
			total_contributions = EXCLUDED.total_contributions,
			current_contribution_streak = EXCLUDED.current_contribution_streak,
			synced_at = NOW()
		RETURNING synced_at
	`, userID, login, stats.TotalContributions, stats.CurrentStreak).Scan(&stats.SyncedAt)
	if err != nil {
		return nil, dbError("save github stats", err)
	}

	if stats.TodayCount > 0 && s.activity != nil {
		s.activity.Dispatch(userID, streak.ActivityCommit)
	}
	return stats, nil
}
