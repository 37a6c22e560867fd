package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"solveStreakAPI/internal/repository"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondServiceError maps the repository error taxonomy onto HTTP statuses.
// Conflicts are transient and marked retryable; invariant violations are
// logged loudly and never dressed up as client errors.
func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, repository.ErrConflict):
		w.Header().Set("Retry-After", "1")
		respondWithError(w, http.StatusServiceUnavailable, "Busy, please retry")
	case errors.Is(err, repository.ErrInvariant):
		log.Printf("INVARIANT VIOLATION: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Account state needs operator attention")
	default:
		respondWithError(w, http.StatusInternalServerError, fallback)
	}
}
