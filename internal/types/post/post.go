package post

import (
	"time"

	"buildInPublicAPI/internal/types/user"
)

type Post struct {
	ID            string       `json:"id"`
	UserID        string       `json:"userId"`
	Content       string       `json:"content"`
	ImageURL      string       `json:"imageUrl,omitempty"`
	StartupID     *string      `json:"startupId,omitempty"`
	Tags          []string     `json:"tags"`
	LikeCount     int          `json:"likeCount"`
	CommentCount  int          `json:"commentCount"`
	LikedByViewer bool         `json:"likedByViewer"`
	Author        user.Summary `json:"author"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

type Comment struct {
	ID        string       `json:"id"`
	PostID    string       `json:"postId"`
	UserID    string       `json:"userId"`
	Content   string       `json:"content"`
	Author    user.Summary `json:"author"`
	CreatedAt time.Time    `json:"createdAt"`
}

type LikeResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"likeCount"`
}

type FeedPage struct {
	Posts      []*Post `json:"posts"`
	NextCursor string  `json:"nextCursor,omitempty"`
}

type TagCount struct {
	Tag       string `json:"tag"`
	PostCount int    `json:"postCount"`
}
