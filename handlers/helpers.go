package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"buildInPublicAPI/internal/apperr"
	"buildInPublicAPI/internal/response"
	"buildInPublicAPI/middleware"
)

const (
	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
	// Calls that reach out to GitHub or Paddle.
	remoteTimeout = 30 * time.Second

	maxBodyBytes = int64(1 << 20)
)

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Fail(w, apperr.CodeValidation, "Invalid request body")
		return false
	}
	return true
}

// queryInt returns the named query parameter or def when it is missing or not a number.
func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}

// requireUser returns the authenticated user id, writing a 401 when there is none.
func requireUser(w http.ResponseWriter, ctx context.Context) (string, bool) {
	userID, ok := middleware.GetUserID(ctx)
	if !ok || userID == "" {
		response.Fail(w, apperr.CodeUnauthorized, "User not authenticated")
		return "", false
	}
	return userID, true
}

// viewerID is the optional caller id on public routes.
func viewerID(ctx context.Context) string {
	userID, _ := middleware.GetUserID(ctx)
	return userID
}
