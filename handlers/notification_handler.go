package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"solveStreakAPI/middleware"
	"solveStreakAPI/services"
)

type NotificationHandler struct {
	notifications *services.NotificationService
	userService   *services.UserService
}

func NewNotificationHandler(notifications *services.NotificationService, userService *services.UserService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, userService: userService}
}

type registerDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// RegisterDevice stores an FCM token so reminders and milestone pushes can
// reach this device.
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req registerDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Token == "" {
		respondWithError(w, http.StatusBadRequest, "token is required")
		return
	}
	if req.Platform == "" {
		req.Platform = "unknown"
	}

	u, err := h.userService.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		respondServiceError(w, err, "Failed to register device")
		return
	}

	if err := h.notifications.RegisterDevice(ctx, u.ID, req.Token, req.Platform); err != nil {
		log.Printf("RegisterDevice Handler: Service error for %s: %v", clerkID, err)
		respondServiceError(w, err, "Failed to register device")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Device registered"})
}
