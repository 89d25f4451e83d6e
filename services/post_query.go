package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"buildInPublicAPI/internal/apperr"
	"buildInPublicAPI/internal/types/post"
)

// postSelect expects the viewer id (possibly empty) as $1.
const postSelect = `
	SELECT p.id, p.user_id, p.content, p.image_url, p.startup_id::text, p.created_at, p.updated_at,
		` + summaryColumns + `,
		(SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id),
		(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id),
		EXISTS(SELECT 1 FROM likes l WHERE l.post_id = p.id AND l.user_id = NULLIF($1, '')::uuid)
	FROM posts p
	JOIN users u ON u.id = p.user_id`

func scanPosts(rows pgx.Rows) ([]*post.Post, error) {
	defer rows.Close()
	var out []*post.Post
	for rows.Next() {
		p := &post.Post{Tags: []string{}}
		err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.Content,
			&p.ImageURL,
			&p.StartupID,
			&p.CreatedAt,
			&p.UpdatedAt,
			&p.Author.ID,
			&p.Author.Username,
			&p.Author.FirstName,
			&p.Author.LastName,
			&p.Author.ImageURL,
			&p.Author.CurrentStreak,
			&p.LikeCount,
			&p.CommentCount,
			&p.LikedByViewer,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// attachTags loads tag names for posts in a single query.
func attachTags(ctx context.Context, q Querier, posts []*post.Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]string, len(posts))
	byID := make(map[string]*post.Post, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		byID[p.ID] = p
	}

	rows, err := q.Query(ctx, `
		SELECT pt.post_id, t.name
		FROM post_tags pt
		JOIN tags t ON t.id = pt.tag_id
		WHERE pt.post_id = ANY($1::uuid[])
		ORDER BY t.name
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID, name string
		if err := rows.Scan(&postID, &name); err != nil {
			return fmt.Errorf("failed to scan tag: %w", err)
		}
		if p, ok := byID[postID]; ok {
			p.Tags = append(p.Tags, name)
		}
	}
	return rows.Err()
}

// Cursor is a keyset position: the (created_at, id) of the last post served.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

func EncodeCursor(c Cursor) string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor accepts the empty string as "from the start".
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}

	invalid := apperr.Validation("Invalid cursor", map[string]string{"cursor": "is malformed"})

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, invalid
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil, invalid
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, invalid
	}
	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, invalid
	}
	return &Cursor{CreatedAt: createdAt, ID: id}, nil
}

func cursorArgs(c *Cursor) (*time.Time, *string) {
	if c == nil {
		return nil, nil
	}
	return &c.CreatedAt, &c.ID
}

// pageOf trims the lookahead row and derives the next cursor.
func pageOf(posts []*post.Post, limit int) *post.FeedPage {
	page := &post.FeedPage{Posts: posts}
	if len(posts) > limit {
		page.Posts = posts[:limit]
		last := page.Posts[limit-1]
		page.NextCursor = EncodeCursor(Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	if page.Posts == nil {
		page.Posts = []*post.Post{}
	}
	return page
}
