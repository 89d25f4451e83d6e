package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"buildInPublicAPI/internal/notification"
	"buildInPublicAPI/internal/response"
	"buildInPublicAPI/services"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

// POST /api/v1/notifications/devices registers a push token for the caller.
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}

	var req notification.RegisterDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	device, err := h.notificationService.RegisterDevice(ctx, userID, req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, device)
}

// DELETE /api/v1/notifications/devices/{token}
func (h *NotificationHandler) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}

	if err := h.notificationService.UnregisterDevice(ctx, userID, mux.Vars(r)["token"]); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]string{"message": "Device unregistered"})
}
