package services

import (
	"context"
	"errors"
	"time"

	"solveStreakAPI/internal/clock"
	"solveStreakAPI/internal/dayledger"
	"solveStreakAPI/internal/repository"
)

// DeadlineService answers the read-only "where do I stand today" queries.
// It never takes the per-user lock: status reads may be slightly stale, the
// mutation path is what has to be exact.
type DeadlineService struct {
	users  repository.UserRepository
	ledger repository.LedgerRepository
	now    func() time.Time
}

func NewDeadlineService(users repository.UserRepository, ledger repository.LedgerRepository) *DeadlineService {
	return &DeadlineService{users: users, ledger: ledger, now: time.Now}
}

type StatusSnapshot struct {
	Date             string    `json:"date"`
	Completed        bool      `json:"completed"`
	Frozen           bool      `json:"frozen"`
	DeadlineAt       time.Time `json:"deadlineAt"`
	SecondsRemaining int64     `json:"secondsRemaining"`
	TimeRemaining    string    `json:"timeRemaining"`
	ActivityCount    int       `json:"activityCount"`
	CurrentStreak    int       `json:"currentStreak"`
	MaxStreak        int       `json:"maxStreak"`
	Gems             int       `json:"gems"`
	PledgeDays       int       `json:"pledgeDays"`
}

// Status reports today's completion, the soft deadline, and the streak
// counters. A zero SecondsRemaining means the reminder deadline has passed;
// the calendar day itself only rolls over at local midnight, and only the
// streak calculator acts on that.
func (s *DeadlineService) Status(ctx context.Context, clerkID string) (*StatusSnapshot, error) {
	u, err := s.users.FindByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	today := clock.TodayKey(u.Timezone, now)
	deadline := clock.DeadlineInstant(u.Timezone, u.ReminderTime, today)
	remaining := clock.Remaining(deadline, now)

	snap := &StatusSnapshot{
		Date:             today.String(),
		DeadlineAt:       deadline,
		SecondsRemaining: int64(remaining / time.Second),
		TimeRemaining:    clock.FormatRemaining(remaining),
		CurrentStreak:    u.CurrentStreak,
		MaxStreak:        u.MaxStreak,
		Gems:             u.Gems,
		PledgeDays:       u.PledgeDays,
	}

	entry, err := s.ledger.FindEntry(ctx, u.ID, today)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return snap, nil
		}
		return nil, err
	}

	snap.Completed = entry.State == dayledger.StateCompleted
	snap.Frozen = entry.State == dayledger.StateFrozen

	count, err := s.ledger.CountActivities(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	snap.ActivityCount = count
	return snap, nil
}

type CalendarDay struct {
	Date    string `json:"date"`
	State   string `json:"state"`
	IsToday bool   `json:"isToday"`
}

type CalendarResponse struct {
	Year  int           `json:"year"`
	Month int           `json:"month"`
	Days  []CalendarDay `json:"days"`
}

// Calendar returns the month grid of day states for the user, days without a
// ledger row rendered as pending.
func (s *DeadlineService) Calendar(ctx context.Context, clerkID string, year, month int) (*CalendarResponse, error) {
	u, err := s.users.FindByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	first := dayledger.DateKey{Year: year, Month: time.Month(month), Day: 1}
	last := dayledger.KeyOf(first.At(time.UTC).AddDate(0, 1, -1))

	entries, err := s.ledger.Range(ctx, u.ID, first, last)
	if err != nil {
		return nil, err
	}

	states := make(map[dayledger.DateKey]dayledger.DayState, len(entries))
	for _, e := range entries {
		states[e.Date] = e.State
	}

	today := clock.TodayKey(u.Timezone, s.now())
	resp := &CalendarResponse{Year: year, Month: month}
	for d := first; !last.Before(d); d = d.Next() {
		state := dayledger.StatePending
		if st, ok := states[d]; ok {
			state = st
		}
		resp.Days = append(resp.Days, CalendarDay{
			Date:    d.String(),
			State:   string(state),
			IsToday: d == today,
		})
	}
	return resp, nil
}
