package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"

	"buildInPublicAPI/internal/apperr"
	"buildInPublicAPI/internal/notification"
	"buildInPublicAPI/internal/types/post"
	"buildInPublicAPI/internal/types/streak"
	"buildInPublicAPI/internal/types/user"
)

type PostService struct {
	db       DB
	activity ActivitySink
	notifier Notifier
}

func NewPostService(db DB, activity ActivitySink, notifier Notifier) *PostService {
	return &PostService{db: db, activity: activity, notifier: notifier}
}

// normalizeTags lowercases, slugs and de-duplicates tag names, keeping order.
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		name := normalizeTag(t)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// CreatePost inserts the post and links its tags in one transaction, then
// reports post activity for the author.
func (s *PostService) CreatePost(ctx context.Context, userID string, req *post.CreatePostRequest) (*post.Post, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := apperr.ValidateStruct(req); err != nil {
		return nil, err
	}
	tags := normalizeTags(req.Tags)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, dbError("begin post transaction", err)
	}
	defer tx.Rollback(ctx)

	var startupID *string
	if req.StartupID != "" {
		var ownerID string
		err := tx.QueryRow(ctx, `SELECT owner_id FROM startups WHERE id = $1`, req.StartupID).Scan(&ownerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperr.NotFound("Startup not found")
			}
			return nil, dbError("load startup", err)
		}
		if ownerID != userID {
			return nil, apperr.Forbidden("You can only post updates for your own startups")
		}
		startupID = &req.StartupID
	}

	p := &post.Post{
		ID:        uuid.New().String(),
		UserID:    userID,
		Content:   req.Content,
		ImageURL:  req.ImageURL,
		StartupID: startupID,
		Tags:      tags,
		Author:    user.Summary{ID: userID},
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO posts (id, user_id, content, image_url, startup_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, p.ID, userID, p.Content, p.ImageURL, startupID).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, dbError("create post", err)
	}

	for _, name := range tags {
		var tagID string
		err := tx.QueryRow(ctx, `
			INSERT INTO tags (id, name) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, uuid.New().String(), name).Scan(&tagID)
		if err != nil {
			return nil, dbError("upsert tag", err)
		}

		if _, err := tx.Exec(ctx, `INSERT INTO post_tags (post_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, p.ID, tagID); err != nil {
			return nil, dbError("link tag", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, dbError("commit post", err)
	}

	log.WithFields(log.Fields{"user_id": userID, "post_id": p.ID, "tags": len(tags)}).Info("posts: created")

	if s.activity != nil {
		s.activity.Dispatch(userID, streak.ActivityPost)
	}
	return p, nil
}

func (s *PostService) GetPost(ctx context.Context, id, viewerID string) (*post.Post, error) {
	if err := requireID(id, "Post"); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, postSelect+` WHERE p.id = $2`, viewerID, id)
	if err != nil {
		return nil, dbError("get post", err)
	}
	posts, err := scanPosts(rows)
	if err != nil {
		return nil, dbError("scan post", err)
	}
	if len(posts) == 0 {
		return nil, apperr.NotFound("Post not found")
	}
	if err := attachTags(ctx, s.db, posts); err != nil {
		return nil, dbError("load post tags", err)
	}
	return posts[0], nil
}

// DeletePost removes a post owned by userID.
func (s *PostService) DeletePost(ctx context.Context, userID, id string) error {
	if err := requireID(id, "Post"); err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM posts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return dbError("delete post", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return dbError("check post", err)
	}
	if !exists {
		return apperr.NotFound("Post not found")
	}
	return apperr.Unauthorized("You can only delete your own posts")
}

func (s *PostService) postAuthor(ctx context.Context, q Querier, postID string) (string, error) {
	if err := requireID(postID, "Post"); err != nil {
		return "", err
	}

	var authorID string
	err := q.QueryRow(ctx, `SELECT user_id FROM posts WHERE id = $1`, postID).Scan(&authorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound("Post not found")
		}
		return "", dbError("load post", err)
	}
	return authorID, nil
}

// ToggleLike likes the post, or unlikes it if userID already did.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID string) (*post.LikeResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, dbError("begin like transaction", err)
	}
	defer tx.Rollback(ctx)

	authorID, err := s.postAuthor(ctx, tx, postID)
	if err != nil {
		return nil, err
	}

	result := &post.LikeResult{}

	tag, err := tx.Exec(ctx, `DELETE FROM likes WHERE user_id = $1 AND post_id = $2`, userID, postID)
	if err != nil {
		return nil, dbError("unlike post", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := tx.Exec(ctx, `INSERT INTO likes (user_id, post_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, postID); err != nil {
			return nil, dbError("like post", err)
		}
		result.Liked = true
	}

	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM likes WHERE post_id = $1`, postID).Scan(&result.LikeCount); err != nil {
		return nil, dbError("count likes", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, dbError("commit like", err)
	}

	if result.Liked && authorID != userID && s.notifier != nil {
		s.notifier.Notify(authorID, notification.Message{
			Type:  notification.TypePostLiked,
			Title: "Someone liked your update",
			Data:  map[string]string{"postId": postID, "userId": userID},
		})
	}
	return result, nil
}

func (s *PostService) AddComment(ctx context.Context, userID, postID string, req *post.CreateCommentRequest) (*post.Comment, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := apperr.ValidateStruct(req); err != nil {
		return nil, err
	}

	authorID, err := s.postAuthor(ctx, s.db, postID)
	if err != nil {
		return nil, err
	}

	c := &post.Comment{
		ID:      uuid.New().String(),
		PostID:  postID,
		UserID:  userID,
		Content: req.Content,
		Author:  user.Summary{ID: userID},
	}
	err = s.db.QueryRow(ctx, `
		INSERT INTO comments (id, post_id, user_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, c.ID, postID, userID, c.Content).Scan(&c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return nil, apperr.NotFound("Post not found")
		}
		return nil, dbError("add comment", err)
	}

	if authorID != userID && s.notifier != nil {
		s.notifier.Notify(authorID, notification.Message{
			Type:  notification.TypeNewComment,
			Title: "New comment on your update",
			Body:  truncateRunes(c.Content, 120),
			Data:  map[string]string{"postId": postID, "commentId": c.ID},
		})
	}
	return c, nil
}

func (s *PostService) ListComments(ctx context.Context, postID string, limit int) ([]*post.Comment, error) {
	if err := requireID(postID, "Post"); err != nil {
		return nil, err
	}
	limit = clampLimit(limit, 50, 200)

	rows, err := s.db.Query(ctx, `
		SELECT c.id, c.post_id, c.user_id, c.content, c.created_at, `+summaryColumns+`
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.post_id = $1
		ORDER BY c.created_at ASC
		LIMIT $2
	`, postID, limit)
	if err != nil {
		return nil, dbError("list comments", err)
	}
	defer rows.Close()

	out := []*post.Comment{}
	for rows.Next() {
		c := &post.Comment{}
		err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Content, &c.CreatedAt,
			&c.Author.ID, &c.Author.Username, &c.Author.FirstName, &c.Author.LastName, &c.Author.ImageURL, &c.Author.CurrentStreak)
		if err != nil {
			return nil, dbError("scan comment", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate comments", err)
	}
	return out, nil
}

// DeleteComment allows the comment's author or the post's author.
func (s *PostService) DeleteComment(ctx context.Context, userID, commentID string) error {
	if err := requireID(commentID, "Comment"); err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `
		DELETE FROM comments c
		USING posts p
		WHERE c.id = $1 AND p.id = c.post_id AND (c.user_id = $2 OR p.user_id = $2)
	`, commentID, userID)
	if err != nil {
		return dbError("delete comment", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM comments WHERE id = $1)`, commentID).Scan(&exists); err != nil {
		return dbError("check comment", err)
	}
	if !exists {
		return apperr.NotFound("Comment not found")
	}
	return apperr.Unauthorized("You can only delete your own comments")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

