package http

import (
	"net/http"

	"agrego/internal/domain/notification"
	"agrego/internal/shared/logger"
)

// NotificationHandler registers device tokens for push alerts
type NotificationHandler struct {
	service *notification.Service
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(service *notification.Service) *NotificationHandler {
	return &NotificationHandler{service: service}
}

type registerDeviceRequest struct {
	UserID     int64  `json:"userId"`
	Token      string `json:"token"`
	DeviceType string `json:"deviceType"`
}

// HandleRegisterDevice registers an FCM device token for a user
func (h *NotificationHandler) HandleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req registerDeviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	params := notification.CreateDeviceTokenParams{
		UserID:     req.UserID,
		Token:      req.Token,
		DeviceType: req.DeviceType,
	}
	if err := params.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	token, err := h.service.RegisterDevice(r.Context(), params)
	if err != nil {
		logger.Get().Errorw("failed to register device", "user_id", req.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to register device"})
		return
	}
	writeJSON(w, http.StatusCreated, token)
}
