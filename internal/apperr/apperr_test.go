package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrom(t *testing.T) {
	notFound := NotFound("post not found")
	wrapped := fmt.Errorf("loading feed: %w", notFound)

	assert.Same(t, notFound, From(wrapped))
	assert.Nil(t, From(nil))

	unknown := From(errors.New("boom"))
	assert.Equal(t, CodeUnexpected, unknown.Code)
	assert.Equal(t, http.StatusInternalServerError, unknown.HTTPStatus())
	assert.EqualError(t, errors.Unwrap(unknown), "boom")
}

func TestHTTPStatus(t *testing.T) {
	cases := map[*Error]int{
		NotFound("x"):            http.StatusNotFound,
		Unauthorized("x"):        http.StatusUnauthorized,
		Forbidden("x"):           http.StatusForbidden,
		Validation("x", nil):     http.StatusBadRequest,
		Conflict("x"):            http.StatusConflict,
		Database("x", nil):       http.StatusInternalServerError,
		Unexpected("x", nil):     http.StatusInternalServerError,
		{Code: CodeRateLimited}:  http.StatusTooManyRequests,
		{Code: "SOMETHING_ELSE"}: http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, err.HTTPStatus(), err.Code)
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", Conflict("Username is already taken"))
	assert.True(t, Is(err, CodeConflict))
	assert.False(t, Is(err, CodeNotFound))
	assert.False(t, Is(errors.New("plain"), CodeConflict))
}

type signup struct {
	Email    string   `json:"email" validate:"required,email"`
	Username string   `json:"username" validate:"required,username"`
	Tags     []string `json:"tags" validate:"max=2"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(signup{Email: "a@b.co", Username: "ada_l"}))

	err := ValidateStruct(signup{Email: "nope", Username: "a!", Tags: []string{"a", "b", "c"}})
	require.Error(t, err)

	appErr := From(err)
	assert.Equal(t, CodeValidation, appErr.Code)
	assert.Equal(t, "must be a valid email address", appErr.Fields["email"])
	assert.Contains(t, appErr.Fields["username"], "3-30 characters")
	assert.Equal(t, "must contain at most 2 items", appErr.Fields["tags"])
}
