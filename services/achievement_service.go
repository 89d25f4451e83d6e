package services

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"buildInPublicAPI/internal/apperr"
	"buildInPublicAPI/internal/notification"
	"buildInPublicAPI/internal/types/achievement"
	"buildInPublicAPI/internal/types/streak"
)

//go:embed achievements.yaml
var achievementCatalogYAML []byte

// LoadAchievementCatalog parses a YAML list of definitions and rejects
// duplicate keys, unknown rules and non-positive thresholds.
func LoadAchievementCatalog(data []byte) ([]achievement.Definition, error) {
	var defs []achievement.Definition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("failed to parse achievement catalog: %w", err)
	}

	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if d.Key == "" {
			return nil, fmt.Errorf("achievement without key")
		}
		if seen[d.Key] {
			return nil, fmt.Errorf("duplicate achievement key %q", d.Key)
		}
		seen[d.Key] = true

		switch d.Rule {
		case achievement.RulePosts, achievement.RuleStreak, achievement.RuleRevenueEntries,
			achievement.RuleMilestones, achievement.RuleSponsors:
		default:
			return nil, fmt.Errorf("achievement %q has unknown rule %q", d.Key, d.Rule)
		}
		if d.Threshold < 1 {
			return nil, fmt.Errorf("achievement %q threshold must be positive", d.Key)
		}
	}
	return defs, nil
}

type AchievementService struct {
	db       DB
	catalog  []achievement.Definition
	activity ActivitySink
	notifier Notifier
}

func NewAchievementService(db DB, activity ActivitySink, notifier Notifier) (*AchievementService, error) {
	catalog, err := LoadAchievementCatalog(achievementCatalogYAML)
	if err != nil {
		return nil, err
	}
	return &AchievementService{db: db, catalog: catalog, activity: activity, notifier: notifier}, nil
}

func (s *AchievementService) Catalog() []achievement.Definition {
	return s.catalog
}

func (s *AchievementService) progress(ctx context.Context, userID string) (achievement.Progress, error) {
	var p achievement.Progress
	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM posts WHERE user_id = u.id),
			u.longest_streak,
			(SELECT COUNT(*) FROM revenue_entries WHERE user_id = u.id),
			(SELECT COUNT(*) FROM startup_milestones m JOIN startups st ON st.id = m.startup_id WHERE st.owner_id = u.id),
			(SELECT COUNT(*) FROM sponsor_subscriptions WHERE sponsored_user_id = u.id AND status = 'ACTIVE')
		FROM users u
		WHERE u.id = $1
	`, userID).Scan(&p.Posts, &p.LongestStreak, &p.RevenueEntries, &p.Milestones, &p.Sponsors)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, apperr.NotFound("User not found")
		}
		return p, dbError("load achievement progress", err)
	}
	return p, nil
}

func (s *AchievementService) earned(ctx context.Context, userID string) (map[string]time.Time, error) {
	rows, err := s.db.Query(ctx, `SELECT achievement_key, earned_at FROM user_achievements WHERE user_id = $1`, userID)
	if err != nil {
		return nil, dbError("load earned achievements", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var (
			key string
			at  time.Time
		)
		if err := rows.Scan(&key, &at); err != nil {
			return nil, dbError("scan earned achievement", err)
		}
		out[key] = at
	}
	return out, rows.Err()
}

// Evaluate awards every achievement whose threshold is now met and returns
// the newly awarded ones.
func (s *AchievementService) Evaluate(ctx context.Context, userID string) ([]achievement.Definition, error) {
	p, err := s.progress(ctx, userID)
	if err != nil {
		return nil, err
	}

	have, err := s.earned(ctx, userID)
	if err != nil {
		return nil, err
	}

	var awarded []achievement.Definition
	for _, def := range s.catalog {
		if _, ok := have[def.Key]; ok || !def.Met(p) {
			continue
		}

		tag, err := s.db.Exec(ctx, `
			INSERT INTO user_achievements (user_id, achievement_key)
			VALUES ($1, $2)
			ON CONFLICT (user_id, achievement_key) DO NOTHING
		`, userID, def.Key)
		if err != nil {
			return awarded, dbError("award achievement", err)
		}
		if tag.RowsAffected() == 1 {
			awarded = append(awarded, def)
		}
	}

	if len(awarded) == 0 {
		return nil, nil
	}

	log.WithFields(log.Fields{"user_id": userID, "count": len(awarded)}).Info("achievements: awarded")

	if s.activity != nil {
		s.activity.Dispatch(userID, streak.ActivityAchievement)
	}
	if s.notifier != nil {
		for _, def := range awarded {
			s.notifier.Notify(userID, notification.Message{
				Type:  notification.TypeAchievement,
				Title: "Achievement unlocked: " + def.Title,
				Body:  def.Description,
				Data:  map[string]string{"achievementKey": def.Key},
			})
		}
	}

	return awarded, nil
}

// ListAchievements returns the whole catalog with the user's earned status.
func (s *AchievementService) ListAchievements(ctx context.Context, userID string) ([]achievement.Achievement, error) {
	have, err := s.earned(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]achievement.Achievement, 0, len(s.catalog))
	for _, def := range s.catalog {
		a := achievement.Achievement{Definition: def}
		if at, ok := have[def.Key]; ok {
			at := at
			a.Earned = true
			a.EarnedAt = &at
		}
		out = append(out, a)
	}
	return out, nil
}
