package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"buildInPublicAPI/internal/response"
	"buildInPublicAPI/internal/types/user"
	"buildInPublicAPI/services"
)

type FollowHandler struct {
	followService *services.FollowService
}

func NewFollowHandler(followService *services.FollowService) *FollowHandler {
	return &FollowHandler{
		followService: followService,
	}
}

// POST /api/v1/follows/{username}
func (h *FollowHandler) Follow(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}

	if err := h.followService.Follow(ctx, userID, mux.Vars(r)["username"]); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]bool{"following": true})
}

// DELETE /api/v1/follows/{username}
func (h *FollowHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}

	if err := h.followService.Unfollow(ctx, userID, mux.Vars(r)["username"]); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]bool{"following": false})
}

func writeSummaries(w http.ResponseWriter, users []*user.Summary, err error) {
	if err != nil {
		response.Error(w, err)
		return
	}
	if users == nil {
		users = []*user.Summary{}
	}
	response.OK(w, users)
}

// GET /api/v1/profiles/{username}/followers?limit=
func (h *FollowHandler) Followers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	users, err := h.followService.ListFollowers(ctx, mux.Vars(r)["username"], queryInt(r, "limit", 0))
	writeSummaries(w, users, err)
}

// GET /api/v1/profiles/{username}/following?limit=
func (h *FollowHandler) Following(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	users, err := h.followService.ListFollowing(ctx, mux.Vars(r)["username"], queryInt(r, "limit", 0))
	writeSummaries(w, users, err)
}
