package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"buildInPublicAPI/internal/response"
	"buildInPublicAPI/internal/types/streak"
	"buildInPublicAPI/services"
)

// ProgressHandler serves a builder's streak, achievements and GitHub activity.
type ProgressHandler struct {
	profileService     *services.ProfileService
	streakService      *services.StreakService
	achievementService *services.AchievementService
	githubService      *services.GitHubService
}

func NewProgressHandler(
	profileService *services.ProfileService,
	streakService *services.StreakService,
	achievementService *services.AchievementService,
	githubService *services.GitHubService,
) *ProgressHandler {
	return &ProgressHandler{
		profileService:     profileService,
		streakService:      streakService,
		achievementService: achievementService,
		githubService:      githubService,
	}
}

type streakResponse struct {
	Streak   *streak.Streak       `json:"streak"`
	Calendar []streak.CalendarDay `json:"calendar"`
}

// GET /api/v1/profiles/{username}/streak?days=
func (h *ProgressHandler) Streak(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	u, err := h.profileService.GetUserByUsername(ctx, mux.Vars(r)["username"])
	if err != nil {
		response.Error(w, err)
		return
	}

	st, err := h.streakService.GetStreak(ctx, u.ID)
	if err != nil {
		response.Error(w, err)
		return
	}

	calendar, err := h.streakService.GetActivityCalendar(ctx, u.ID, queryInt(r, "days", 30))
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, streakResponse{Streak: st, Calendar: calendar})
}

// GET /api/v1/profiles/{username}/achievements
func (h *ProgressHandler) Achievements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	u, err := h.profileService.GetUserByUsername(ctx, mux.Vars(r)["username"])
	if err != nil {
		response.Error(w, err)
		return
	}

	achievements, err := h.achievementService.ListAchievements(ctx, u.ID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, achievements)
}

// GET /api/v1/profiles/{username}/contributions
func (h *ProgressHandler) Contributions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), remoteTimeout)
	defer cancel()

	contributions, err := h.githubService.GetContributions(ctx, mux.Vars(r)["username"])
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, contributions)
}

// POST /api/v1/github/sync refreshes the caller's contribution stats.
func (h *ProgressHandler) SyncGitHub(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), remoteTimeout)
	defer cancel()

	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}

	stats, err := h.githubService.SyncUser(ctx, userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, stats)
}
