package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"buildInPublicAPI/internal/apperr"
	"buildInPublicAPI/internal/notification"
	"buildInPublicAPI/internal/types/user"
)

type FollowService struct {
	db       DB
	notifier Notifier
}

func NewFollowService(db DB, notifier Notifier) *FollowService {
	return &FollowService{db: db, notifier: notifier}
}

func (s *FollowService) userIDByUsername(ctx context.Context, username string) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE LOWER(username) = LOWER($1)`, username).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound("User not found")
		}
		return "", dbError("look up user", err)
	}
	return id, nil
}

// Follow is idempotent; only the first follow notifies the target.
func (s *FollowService) Follow(ctx context.Context, followerID, username string) error {
	targetID, err := s.userIDByUsername(ctx, username)
	if err != nil {
		return err
	}
	if targetID == followerID {
		return apperr.Validation("You cannot follow yourself", map[string]string{"username": "must not be your own"})
	}

	tag, err := s.db.Exec(ctx, `
		INSERT INTO follows (follower_id, following_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, followerID, targetID)
	if err != nil {
		return dbError("follow user", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	log.WithFields(log.Fields{"follower_id": followerID, "following_id": targetID}).Info("follows: created")

	if s.notifier != nil {
		var followerName string
		if err := s.db.QueryRow(ctx, `SELECT username FROM users WHERE id = $1`, followerID).Scan(&followerName); err != nil {
			log.WithError(err).WithField("user_id", followerID).Warn("follows: could not load follower name")
		}
		s.notifier.Notify(targetID, notification.Message{
			Type:  notification.TypeNewFollower,
			Title: "New follower",
			Body:  "@" + followerName + " started following you",
			Data:  map[string]string{"username": followerName},
		})
	}
	return nil
}

func (s *FollowService) Unfollow(ctx context.Context, followerID, username string) error {
	targetID, err := s.userIDByUsername(ctx, username)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM follows WHERE follower_id = $1 AND following_id = $2`, followerID, targetID); err != nil {
		return dbError("unfollow user", err)
	}
	return nil
}

func (s *FollowService) IsFollowing(ctx context.Context, followerID, username string) (bool, error) {
	var following bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM follows f
			JOIN users u ON u.id = f.following_id
			WHERE f.follower_id = $1 AND LOWER(u.username) = LOWER($2)
		)
	`, followerID, username).Scan(&following)
	if err != nil {
		return false, dbError("check follow", err)
	}
	return following, nil
}

func (s *FollowService) ListFollowers(ctx context.Context, username string, limit int) ([]*user.Summary, error) {
	return s.list(ctx, username, "f.follower_id", "f.following_id", limit)
}

func (s *FollowService) ListFollowing(ctx context.Context, username string, limit int) ([]*user.Summary, error) {
	return s.list(ctx, username, "f.following_id", "f.follower_id", limit)
}

// list returns the users on the `show` side of follows rows whose `match`
// side is username.
func (s *FollowService) list(ctx context.Context, username, show, match string, limit int) ([]*user.Summary, error) {
	targetID, err := s.userIDByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit, 50, 200)

	rows, err := s.db.Query(ctx, `
		SELECT `+summaryColumns+`
		FROM follows f
		JOIN users u ON u.id = `+show+`
		WHERE `+match+` = $1
		ORDER BY f.created_at DESC
		LIMIT $2
	`, targetID, limit)
	if err != nil {
		return nil, dbError("list follows", err)
	}

	out, err := scanSummaries(rows)
	if err != nil {
		return nil, dbError("scan follows", err)
	}
	if out == nil {
		out = []*user.Summary{}
	}
	return out, nil
}
