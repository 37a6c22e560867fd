package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"solveStreakAPI/internal/user"
	"solveStreakAPI/middleware"
	"solveStreakAPI/services"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	u, err := h.userService.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		respondServiceError(w, err, "Failed to get profile")
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

// UpdateProfile handles onboarding and later edits: timezone, reminder time
// and pledge length all land here.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req user.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := h.userService.UpdateProfile(ctx, clerkID, &req)
	if err != nil {
		if strings.Contains(err.Error(), "reminder time") || strings.Contains(err.Error(), "pledge days") {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("UpdateProfile Handler: Service error for %s: %v", clerkID, err)
		respondServiceError(w, err, "Failed to update profile")
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if err := h.userService.DeleteUserByClerkID(ctx, clerkID); err != nil {
		log.Printf("DeleteAccount Handler: Service error for %s: %v", clerkID, err)
		respondServiceError(w, err, "Failed to delete account")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Account deleted"})
}
