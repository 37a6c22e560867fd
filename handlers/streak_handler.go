package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"solveStreakAPI/internal/dayledger"
	"solveStreakAPI/middleware"
	"solveStreakAPI/services"
)

type StreakHandler struct {
	checkin  *services.CheckInService
	deadline *services.DeadlineService
}

func NewStreakHandler(checkin *services.CheckInService, deadline *services.DeadlineService) *StreakHandler {
	return &StreakHandler{checkin: checkin, deadline: deadline}
}

type logProblemRequest struct {
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty"`
}

type freezeRequest struct {
	Date string `json:"date,omitempty"` // YYYY-MM-DD, empty = today
}

// LogProblem records one solved problem for the caller's current local day.
func (h *StreakHandler) LogProblem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req logProblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Topic == "" {
		respondWithError(w, http.StatusBadRequest, "topic is required")
		return
	}
	difficulty := dayledger.Difficulty(req.Difficulty)
	if !difficulty.Valid() {
		respondWithError(w, http.StatusBadRequest, "difficulty must be easy, medium or hard")
		return
	}

	result, err := h.checkin.RecordActivity(ctx, clerkID, req.Topic, difficulty)
	if err != nil {
		log.Printf("LogProblem Handler: Service error for %s: %v", clerkID, err)
		respondServiceError(w, err, "Failed to log problem")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// GetStatus returns today's completion, deadline and streak snapshot.
func (h *StreakHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	snap, err := h.deadline.Status(ctx, clerkID)
	if err != nil {
		respondServiceError(w, err, "Failed to get status")
		return
	}

	respondWithJSON(w, http.StatusOK, snap)
}

func (h *StreakHandler) SetFreeze(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req freezeRequest
	if r.Body != nil {
		// Body is optional; an empty one freezes today.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	entry, err := h.checkin.SetFreeze(ctx, clerkID, req.Date)
	if err != nil {
		log.Printf("SetFreeze Handler: Service error for %s: %v", clerkID, err)
		respondServiceError(w, err, "Failed to set freeze")
		return
	}

	respondWithJSON(w, http.StatusOK, entry)
}

func (h *StreakHandler) ClearFreeze(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req freezeRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	entry, err := h.checkin.ClearFreeze(ctx, clerkID, req.Date)
	if err != nil {
		respondServiceError(w, err, "Failed to clear freeze")
		return
	}

	respondWithJSON(w, http.StatusOK, entry)
}

func (h *StreakHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	now := time.Now()
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		year = now.Year()
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		month = int(now.Month())
	}

	cal, err := h.deadline.Calendar(ctx, clerkID, year, month)
	if err != nil {
		respondServiceError(w, err, "Failed to get calendar")
		return
	}

	respondWithJSON(w, http.StatusOK, cal)
}

// Recompute replays the full ledger and reconciles the cached counters.
func (h *StreakHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	result, err := h.checkin.Recompute(ctx, clerkID)
	if err != nil {
		log.Printf("Recompute Handler: Service error for %s: %v", clerkID, err)
		respondServiceError(w, err, "Failed to recompute streak")
		return
	}
	if result.Repaired {
		log.Printf("Recompute Handler: repaired counters for %s: stored (%d, %d) -> replayed (%d, %d)",
			clerkID, result.StoredCurrent, result.StoredMax, result.ReplayedCurrent, result.ReplayedMax)
	}

	respondWithJSON(w, http.StatusOK, result)
}
