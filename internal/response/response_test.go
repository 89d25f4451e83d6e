package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildInPublicAPI/internal/apperr"
)

func TestJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	Created(rr, map[string]string{"id": "p1"})

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":true,"data":{"id":"p1"}}`, rr.Body.String())
}

func TestError_AppError(t *testing.T) {
	rr := httptest.NewRecorder()
	Error(rr, apperr.Conflict("Username is already taken"))

	assert.Equal(t, http.StatusConflict, rr.Code)

	var env struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Equal(t, "CONFLICT", env.Error.Code)
	assert.Equal(t, "Username is already taken", env.Error.Message)
}

func TestError_HidesInternalCause(t *testing.T) {
	rr := httptest.NewRecorder()
	Error(rr, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection refused")
	assert.Contains(t, rr.Body.String(), "UNEXPECTED_ERROR")
}
