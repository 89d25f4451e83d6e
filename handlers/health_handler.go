package handlers

import (
	"context"
	"net/http"
	"time"

	"buildInPublicAPI/internal/apperr"
	"buildInPublicAPI/internal/response"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		response.ErrorStatus(w, http.StatusServiceUnavailable, apperr.Database("Database connection failed", err))
		return
	}

	response.OK(w, map[string]string{"status": "healthy", "service": "buildinpublic-api"})
}
