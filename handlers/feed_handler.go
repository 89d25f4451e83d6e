package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"buildInPublicAPI/internal/response"
	"buildInPublicAPI/internal/types/post"
	"buildInPublicAPI/services"
)

type FeedHandler struct {
	feedService *services.FeedService
}

func NewFeedHandler(feedService *services.FeedService) *FeedHandler {
	return &FeedHandler{
		feedService: feedService,
	}
}

func writePage(w http.ResponseWriter, page *post.FeedPage, err error) {
	if err != nil {
		response.Error(w, err)
		return
	}
	if page.Posts == nil {
		page.Posts = []*post.Post{}
	}
	response.OK(w, page)
}

// GET /api/v1/feed?cursor=&limit=
func (h *FeedHandler) Feed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}

	page, err := h.feedService.GetFeed(ctx, userID, r.URL.Query().Get("cursor"), queryInt(r, "limit", 0))
	writePage(w, page, err)
}

// GET /api/v1/posts/explore?cursor=&limit=
func (h *FeedHandler) Explore(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	page, err := h.feedService.GetExplore(ctx, viewerID(ctx), r.URL.Query().Get("cursor"), queryInt(r, "limit", 0))
	writePage(w, page, err)
}

// GET /api/v1/profiles/{username}/posts?cursor=&limit=
func (h *FeedHandler) UserPosts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	page, err := h.feedService.GetUserPosts(ctx, mux.Vars(r)["username"], viewerID(ctx), r.URL.Query().Get("cursor"), queryInt(r, "limit", 0))
	writePage(w, page, err)
}

// GET /api/v1/tags/{tag}/posts?cursor=&limit=
func (h *FeedHandler) TagPosts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	page, err := h.feedService.GetTagPosts(ctx, mux.Vars(r)["tag"], viewerID(ctx), r.URL.Query().Get("cursor"), queryInt(r, "limit", 0))
	writePage(w, page, err)
}

// GET /api/v1/tags/trending?limit=
func (h *FeedHandler) TrendingTags(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	tags, err := h.feedService.TrendingTags(ctx, queryInt(r, "limit", 10))
	if err != nil {
		response.Error(w, err)
		return
	}
	if tags == nil {
		tags = []post.TagCount{}
	}
	response.OK(w, tags)
}
