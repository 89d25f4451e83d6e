// Package response writes the uniform JSON envelope returned by every endpoint.
package response

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"buildInPublicAPI/internal/apperr"
)

type Envelope struct {
	Success bool          `json:"success"`
	Data    any           `json:"data,omitempty"`
	Error   *apperr.Error `json:"error,omitempty"`
}

func JSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(Envelope{Success: true, Data: payload})
	if err != nil {
		log.WithError(err).Error("response: failed to marshal payload")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"error":{"code":"UNEXPECTED_ERROR","message":"Internal server error"}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}

func OK(w http.ResponseWriter, payload any) {
	JSON(w, http.StatusOK, payload)
}

func Created(w http.ResponseWriter, payload any) {
	JSON(w, http.StatusCreated, payload)
}

// Error writes err as a failure envelope. Internal causes are logged, never sent.
func Error(w http.ResponseWriter, err error) {
	appErr := apperr.From(err)
	if appErr.Err != nil {
		log.WithError(appErr.Err).WithField("code", appErr.Code).Warn(appErr.Message)
	}

	body, _ := json.Marshal(Envelope{Success: false, Error: appErr})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus())
	w.Write(body)
}

// ErrorStatus writes err with an explicit status instead of the code's default.
func ErrorStatus(w http.ResponseWriter, status int, err *apperr.Error) {
	if err.Err != nil {
		log.WithError(err.Err).WithField("code", err.Code).Warn(err.Message)
	}

	body, _ := json.Marshal(Envelope{Success: false, Error: err})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// Fail is a shorthand for handler-level failures that never reached a service.
func Fail(w http.ResponseWriter, code apperr.Code, message string) {
	Error(w, &apperr.Error{Code: code, Message: message})
}
