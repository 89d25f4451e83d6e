package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"buildInPublicAPI/internal/apperr"
	"buildInPublicAPI/internal/response"
	"buildInPublicAPI/internal/types/user"
	"buildInPublicAPI/middleware"
	"buildInPublicAPI/services"
)

type ProfileHandler struct {
	profileService *services.ProfileService
}

func NewProfileHandler(profileService *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
	}
}

// GET /api/v1/me
func (h *ProfileHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}

	u, err := h.profileService.GetUserByID(ctx, userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, u)
}

// PUT /api/v1/me
func (h *ProfileHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}

	var req user.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.profileService.UpdateProfile(ctx, userID, &req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, u)
}

// DELETE /api/v1/me
func (h *ProfileHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		response.Fail(w, apperr.CodeUnauthorized, "User not authenticated")
		return
	}

	if err := h.profileService.DeleteUserByClerkID(ctx, clerkID); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]string{"message": "Account deleted"})
}

// GET /api/v1/builders?q=&page=&pageSize=
func (h *ProfileHandler) ListBuilders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	page, err := h.profileService.ListBuilders(ctx, r.URL.Query().Get("q"), queryInt(r, "page", 1), queryInt(r, "pageSize", 20))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, page)
}

// GET /api/v1/profiles/{username}
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	profile, err := h.profileService.GetProfile(ctx, mux.Vars(r)["username"], viewerID(ctx))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, profile)
}

// GET /api/v1/profiles/{username}/qr?size=
func (h *ProfileHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	png, err := h.profileService.ProfileQRCode(ctx, mux.Vars(r)["username"], queryInt(r, "size", 256))
	if err != nil {
		response.Error(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		log.WithError(err).Debug("profile: writing qr code failed")
	}
}
