package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"buildInPublicAPI/internal/response"
	"buildInPublicAPI/internal/types/startup"
	"buildInPublicAPI/services"
)

type StartupHandler struct {
	startupService *services.StartupService
}

func NewStartupHandler(startupService *services.StartupService) *StartupHandler {
	return &StartupHandler{
		startupService: startupService,
	}
}

// GET /api/v1/startups?owner=&limit=
func (h *StartupHandler) ListStartups(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	startups, err := h.startupService.ListStartups(ctx, r.URL.Query().Get("owner"), queryInt(r, "limit", 0))
	if err != nil {
		response.Error(w, err)
		return
	}
	if startups == nil {
		startups = []*startup.Startup{}
	}
	response.OK(w, startups)
}

// GET /api/v1/startups/{slug}
func (h *StartupHandler) GetStartup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	detail, err := h.startupService.GetStartup(ctx, mux.Vars(r)["slug"])
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, detail)
}

// POST /api/v1/startups
func (h *StartupHandler) CreateStartup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}

	var req startup.CreateStartupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	st, err := h.startupService.CreateStartup(ctx, userID, &req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, st)
}

// PUT /api/v1/startups/{id}
func (h *StartupHandler) UpdateStartup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}

	var req startup.UpdateStartupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	st, err := h.startupService.UpdateStartup(ctx, userID, mux.Vars(r)["id"], &req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, st)
}

// POST /api/v1/startups/{id}/milestones
func (h *StartupHandler) AddMilestone(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}

	var req startup.CreateMilestoneRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	m, err := h.startupService.AddMilestone(ctx, userID, mux.Vars(r)["id"], &req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, m)
}

// DELETE /api/v1/startups/{id}/milestones/{milestoneId}
func (h *StartupHandler) DeleteMilestone(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	if err := h.startupService.DeleteMilestone(ctx, userID, vars["id"], vars["milestoneId"]); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]string{"message": "Milestone deleted"})
}

// GET /api/v1/startups/{id}/revenue?limit=
func (h *StartupHandler) ListRevenue(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}

	entries, err := h.startupService.ListRevenue(ctx, userID, mux.Vars(r)["id"], queryInt(r, "limit", 0))
	if err != nil {
		response.Error(w, err)
		return
	}
	if entries == nil {
		entries = []*startup.RevenueEntry{}
	}
	response.OK(w, entries)
}

// POST /api/v1/startups/{id}/revenue
func (h *StartupHandler) AddRevenue(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}

	var req startup.CreateRevenueRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.startupService.AddRevenueEntry(ctx, userID, mux.Vars(r)["id"], &req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, entry)
}
