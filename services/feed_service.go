package services

import (
	"context"
	"strings"
	"time"

	"buildInPublicAPI/internal/apperr"
	"buildInPublicAPI/internal/types/post"
)

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 50
	trendingWindow   = 7 * 24 * time.Hour
)

// FeedService serves keyset-paginated post lists, newest first.
type FeedService struct {
	db  DB
	now Clock
}

func NewFeedService(db DB, now Clock) *FeedService {
	if now == nil {
		now = time.Now
	}
	return &FeedService{db: db, now: now}
}

// list runs postSelect filtered by where. Placeholders $1..$4 are the viewer,
// the cursor time and id, and the limit; where may use $5 for filterArg.
func (s *FeedService) list(ctx context.Context, viewerID, where string, filterArg any, cursor string, limit int) (*post.FeedPage, error) {
	c, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit, defaultFeedLimit, maxFeedLimit)
	cursorAt, cursorID := cursorArgs(c)

	args := []any{viewerID, cursorAt, cursorID, limit + 1}
	if filterArg != nil {
		args = append(args, filterArg)
	}

	rows, err := s.db.Query(ctx, postSelect+`
		WHERE `+where+`
		  AND ($2::timestamptz IS NULL OR (p.created_at, p.id) < ($2::timestamptz, $3::uuid))
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $4
	`, args...)
	if err != nil {
		return nil, dbError("load posts", err)
	}

	posts, err := scanPosts(rows)
	if err != nil {
		return nil, dbError("scan posts", err)
	}
	if err := attachTags(ctx, s.db, posts); err != nil {
		return nil, dbError("load post tags", err)
	}

	return pageOf(posts, limit), nil
}

// GetFeed lists posts by viewerID and everyone they follow.
func (s *FeedService) GetFeed(ctx context.Context, viewerID, cursor string, limit int) (*post.FeedPage, error) {
	return s.list(ctx, viewerID, `(p.user_id = $1::uuid OR p.user_id IN (SELECT following_id FROM follows WHERE follower_id = $1::uuid))`, nil, cursor, limit)
}

func (s *FeedService) GetExplore(ctx context.Context, viewerID, cursor string, limit int) (*post.FeedPage, error) {
	return s.list(ctx, viewerID, `TRUE`, nil, cursor, limit)
}

func (s *FeedService) GetUserPosts(ctx context.Context, username, viewerID, cursor string, limit int) (*post.FeedPage, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(username) = LOWER($1))`, username).Scan(&exists); err != nil {
		return nil, dbError("check user", err)
	}
	if !exists {
		return nil, apperr.NotFound("User not found")
	}
	return s.list(ctx, viewerID, `LOWER(u.username) = LOWER($5)`, username, cursor, limit)
}

func (s *FeedService) GetTagPosts(ctx context.Context, tag, viewerID, cursor string, limit int) (*post.FeedPage, error) {
	name := normalizeTag(tag)
	if name == "" {
		return nil, apperr.Validation("Invalid tag", map[string]string{"tag": "is required"})
	}
	return s.list(ctx, viewerID, `p.id IN (SELECT pt.post_id FROM post_tags pt JOIN tags t ON t.id = pt.tag_id WHERE t.name = $5)`, name, cursor, limit)
}

// TrendingTags ranks tags by posts in the last seven days.
func (s *FeedService) TrendingTags(ctx context.Context, limit int) ([]post.TagCount, error) {
	limit = clampLimit(limit, 10, 50)

	rows, err := s.db.Query(ctx, `
		SELECT t.name, COUNT(*) AS uses
		FROM tags t
		JOIN post_tags pt ON pt.tag_id = t.id
		JOIN posts p ON p.id = pt.post_id
		WHERE p.created_at > $1
		GROUP BY t.name
		ORDER BY uses DESC, t.name
		LIMIT $2
	`, s.now().Add(-trendingWindow), limit)
	if err != nil {
		return nil, dbError("load trending tags", err)
	}
	defer rows.Close()

	out := []post.TagCount{}
	for rows.Next() {
		var tc post.TagCount
		if err := rows.Scan(&tc.Tag, &tc.PostCount); err != nil {
			return nil, dbError("scan trending tag", err)
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate trending tags", err)
	}
	return out, nil
}

func normalizeTag(tag string) string {
	name := slugify(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
	if len(name) > 30 {
		name = strings.Trim(name[:30], "-")
	}
	return name
}
