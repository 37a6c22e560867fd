package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"solveStreakAPI/internal/invalidation"
	"solveStreakAPI/internal/repository/memory"
	"solveStreakAPI/internal/user"
	"solveStreakAPI/middleware"
	"solveStreakAPI/services"
)

const testClerkID = "clerk_handler_test"

func newTestHandler(t *testing.T) *StreakHandler {
	t.Helper()
	store := memory.NewStore()

	checkin := services.NewCheckInService(store, store, store, invalidation.Noop{})
	deadline := services.NewDeadlineService(store, store)

	err := store.Create(context.Background(), &user.User{
		ID:           "user-1",
		ClerkID:      testClerkID,
		Timezone:     "UTC",
		ReminderTime: "23:00",
		PledgeDays:   30,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return NewStreakHandler(checkin, deadline)
}

func authedRequest(method, target, body, clerkID string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if clerkID != "" {
		ctx := context.WithValue(r.Context(), middleware.ClerkIDKey, clerkID)
		r = r.WithContext(ctx)
	}
	return r
}

func TestLogProblemHappyPath(t *testing.T) {
	h := newTestHandler(t)

	w := httptest.NewRecorder()
	h.LogProblem(w, authedRequest(http.MethodPost, "/api/v1/user/solve",
		`{"topic": "binary search", "difficulty": "medium"}`, testClerkID))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var res services.CheckInResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if res.CurrentStreak != 1 || !res.CompletedToday {
		t.Errorf("result = %+v", res)
	}
}

func TestLogProblemRejectsBadInput(t *testing.T) {
	h := newTestHandler(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing topic", `{"difficulty": "easy"}`},
		{"bad difficulty", `{"topic": "graphs", "difficulty": "brutal"}`},
		{"not json", `topic=graphs`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.LogProblem(w, authedRequest(http.MethodPost, "/api/v1/user/solve", tc.body, testClerkID))
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestLogProblemRequiresAuth(t *testing.T) {
	h := newTestHandler(t)

	w := httptest.NewRecorder()
	h.LogProblem(w, authedRequest(http.MethodPost, "/api/v1/user/solve",
		`{"topic": "graphs", "difficulty": "easy"}`, ""))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestUnknownUserMapsToNotFound(t *testing.T) {
	h := newTestHandler(t)

	w := httptest.NewRecorder()
	h.GetStatus(w, authedRequest(http.MethodGet, "/api/v1/user/streak", "", "clerk_nobody"))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestFreezeRoundTrip(t *testing.T) {
	h := newTestHandler(t)

	w := httptest.NewRecorder()
	h.SetFreeze(w, authedRequest(http.MethodPost, "/api/v1/user/freeze", "", testClerkID))
	if w.Code != http.StatusOK {
		t.Fatalf("SetFreeze status = %d, body %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	h.GetStatus(w, authedRequest(http.MethodGet, "/api/v1/user/streak", "", testClerkID))
	var snap services.StatusSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("bad status body: %v", err)
	}
	if !snap.Frozen {
		t.Error("Frozen = false after freeze")
	}

	w = httptest.NewRecorder()
	h.ClearFreeze(w, authedRequest(http.MethodDelete, "/api/v1/user/freeze", "", testClerkID))
	if w.Code != http.StatusOK {
		t.Fatalf("ClearFreeze status = %d", w.Code)
	}

	// Clearing again is a 404: there is no freeze left to clear.
	w = httptest.NewRecorder()
	h.ClearFreeze(w, authedRequest(http.MethodDelete, "/api/v1/user/freeze", "", testClerkID))
	if w.Code != http.StatusNotFound {
		t.Errorf("second clear status = %d, want 404", w.Code)
	}
}

func TestCalendarDefaultsToCurrentMonth(t *testing.T) {
	h := newTestHandler(t)

	w := httptest.NewRecorder()
	h.GetCalendar(w, authedRequest(http.MethodGet, "/api/v1/user/calendar", "", testClerkID))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var cal services.CalendarResponse
	if err := json.Unmarshal(w.Body.Bytes(), &cal); err != nil {
		t.Fatalf("bad calendar body: %v", err)
	}
	now := time.Now()
	if cal.Year != now.Year() || cal.Month != int(now.Month()) {
		t.Errorf("calendar = %d-%d, want current month", cal.Year, cal.Month)
	}
}
