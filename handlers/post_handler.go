package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"buildInPublicAPI/internal/response"
	"buildInPublicAPI/internal/types/post"
	"buildInPublicAPI/services"
)

type PostHandler struct {
	postService *services.PostService
}

func NewPostHandler(postService *services.PostService) *PostHandler {
	return &PostHandler{
		postService: postService,
	}
}

// POST /api/v1/posts
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}

	var req post.CreatePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.postService.CreatePost(ctx, userID, &req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, p)
}

// GET /api/v1/posts/{id}
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	p, err := h.postService.GetPost(ctx, mux.Vars(r)["id"], viewerID(ctx))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, p)
}

// DELETE /api/v1/posts/{id}
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}

	if err := h.postService.DeletePost(ctx, userID, mux.Vars(r)["id"]); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]string{"message": "Post deleted"})
}

// POST /api/v1/posts/{id}/like toggles the caller's like.
func (h *PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}

	result, err := h.postService.ToggleLike(ctx, userID, mux.Vars(r)["id"])
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, result)
}

// POST /api/v1/posts/{id}/comments
func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}

	var req post.CreateCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.postService.AddComment(ctx, userID, mux.Vars(r)["id"], &req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, c)
}

// GET /api/v1/posts/{id}/comments?limit=
func (h *PostHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	comments, err := h.postService.ListComments(ctx, mux.Vars(r)["id"], queryInt(r, "limit", 50))
	if err != nil {
		response.Error(w, err)
		return
	}
	if comments == nil {
		comments = []*post.Comment{}
	}
	response.OK(w, comments)
}

// DELETE /api/v1/comments/{id}
func (h *PostHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}

	if err := h.postService.DeleteComment(ctx, userID, mux.Vars(r)["id"]); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]string{"message": "Comment deleted"})
}
