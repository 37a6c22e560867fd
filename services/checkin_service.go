package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"solveStreakAPI/internal/clock"
	"solveStreakAPI/internal/dayledger"
	"solveStreakAPI/internal/invalidation"
	"solveStreakAPI/internal/repository"
	"solveStreakAPI/internal/streak"
)

// Lock acquisition is bounded: a contended check-in retries with growing
// backoff, then surfaces ErrConflict for the caller to retry.
const (
	lockAttempts = 5
	lockBackoff  = 25 * time.Millisecond
)

// CheckInService is the single entry point for streak mutations. All writes
// for one user funnel through a per-user mutex, so two concurrent check-ins
// on the same day produce exactly one streak increment and at most one
// milestone reward. Work across users shares nothing.
type CheckInService struct {
	users       repository.UserRepository
	ledger      repository.LedgerRepository
	milestones  repository.MilestoneRepository
	invalidator invalidation.Publisher
	notifier    *NotificationService

	locks sync.Map // user id -> *sync.Mutex
	now   func() time.Time
}

func NewCheckInService(
	users repository.UserRepository,
	ledger repository.LedgerRepository,
	milestones repository.MilestoneRepository,
	invalidator invalidation.Publisher,
) *CheckInService {
	return &CheckInService{
		users:       users,
		ledger:      ledger,
		milestones:  milestones,
		invalidator: invalidator,
		now:         time.Now,
	}
}

// SetNotifier injects the push pipeline; milestone pushes are skipped
// without one.
func (s *CheckInService) SetNotifier(n *NotificationService) {
	s.notifier = n
}

type CheckInResult struct {
	Date           string `json:"date"`
	CompletedToday bool   `json:"completedToday"`
	CurrentStreak  int    `json:"currentStreak"`
	MaxStreak      int    `json:"maxStreak"`
	GemsAwarded    int    `json:"gemsAwarded"`
}

func (s *CheckInService) lockUser(userID string) (func(), error) {
	v, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)

	backoff := lockBackoff
	for attempt := 0; attempt < lockAttempts; attempt++ {
		if mu.TryLock() {
			return mu.Unlock, nil
		}
		lockContention.Inc()
		time.Sleep(backoff)
		backoff *= 2
	}
	return nil, fmt.Errorf("check-in for user %s still contended: %w", userID, repository.ErrConflict)
}

// RecordActivity logs one solved problem for the caller's current local day.
// The first log of the day completes it and runs the streak transition;
// repeats append the problem and change nothing else. Re-entrant by design:
// replaying the same submission cannot double-increment.
func (s *CheckInService) RecordActivity(ctx context.Context, clerkID, topic string, difficulty dayledger.Difficulty) (*CheckInResult, error) {
	if !difficulty.Valid() {
		return nil, fmt.Errorf("unknown difficulty %q", difficulty)
	}

	u, err := s.users.FindByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lockUser(u.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Reload inside the atomic section. Counters read before the lock could
	// predate a check-in that held it; a transition computed from those
	// would persist a lost update the ledger replay cannot reproduce.
	u, err = s.users.FindByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	if err := streak.CheckCounters(u.CurrentStreak, u.MaxStreak); err != nil {
		// Corrupted counters are surfaced, never compounded.
		return nil, fmt.Errorf("%w: user %s: %v", repository.ErrInvariant, u.ID, err)
	}

	today := clock.TodayKey(u.Timezone, s.now())

	// Snapshot the day before mutating it: the transition needs to know
	// whether today was already complete, and how yesterday ended.
	alreadyCompleted := false
	if existing, err := s.ledger.FindEntry(ctx, u.ID, today); err == nil {
		alreadyCompleted = existing.State == dayledger.StateCompleted
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	var yesterday *dayledger.Entry
	if prev, err := s.ledger.FindEntry(ctx, u.ID, today.Prev()); err == nil {
		yesterday = prev
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	entry, err := s.ledger.UpsertEntry(ctx, u.ID, today, dayledger.StateCompleted)
	if err != nil {
		return nil, err
	}

	if _, err := s.ledger.AppendActivity(ctx, &dayledger.Activity{
		EntryID:    entry.ID,
		Topic:      topic,
		Difficulty: difficulty,
	}); err != nil {
		return nil, err
	}

	res := streak.Transition(yesterday, alreadyCompleted, u.CurrentStreak, u.MaxStreak)

	gems := 0
	if res.Changed {
		checkInsTotal.WithLabelValues("first_of_day").Inc()
		if err := s.users.UpdateStreak(ctx, u.ID, res.CurrentStreak, res.MaxStreak); err != nil {
			return nil, err
		}
		if res.GemsAwarded > 0 {
			// The granted-milestones ledger is the second line of defense
			// against replays; the alreadyCompleted no-op is the first.
			granted, err := s.milestones.Record(ctx, u.ID, res.Milestone)
			if err != nil {
				return nil, err
			}
			if granted {
				if err := s.users.AddGems(ctx, u.ID, res.GemsAwarded); err != nil {
					return nil, err
				}
				gems = res.GemsAwarded
				milestonesTotal.Inc()
				if s.notifier != nil && res.Milestone > 1 {
					s.notifier.QueuePush(u.ID,
						"Milestone reached!",
						fmt.Sprintf("%d days in a row. +%d gems.", res.Milestone, gems),
						map[string]string{"type": "milestone", "streak": strconv.Itoa(res.Milestone)},
					)
				}
			}
		}
	} else {
		checkInsTotal.WithLabelValues("repeat").Inc()
	}

	s.invalidator.Invalidate(ctx, clerkID)

	return &CheckInResult{
		Date:           today.String(),
		CompletedToday: true,
		CurrentStreak:  res.CurrentStreak,
		MaxStreak:      res.MaxStreak,
		GemsAwarded:    gems,
	}, nil
}

// SetFreeze marks a day as a protected non-breaking gap. An empty date means
// the user's current local day. Freezing an already completed day is a no-op;
// the completion stands.
func (s *CheckInService) SetFreeze(ctx context.Context, clerkID, date string) (*dayledger.Entry, error) {
	u, err := s.users.FindByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	key, err := s.resolveDate(u.Timezone, date)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lockUser(u.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	wasFrozen := false
	if existing, err := s.ledger.FindEntry(ctx, u.ID, key); err == nil {
		wasFrozen = existing.State == dayledger.StateFrozen
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	entry, err := s.ledger.UpsertEntry(ctx, u.ID, key, dayledger.StateFrozen)
	if err != nil {
		return nil, err
	}
	if entry.State == dayledger.StateFrozen && !wasFrozen {
		freezesTotal.Inc()
	}

	s.invalidator.Invalidate(ctx, clerkID)
	return entry, nil
}

// ClearFreeze flips a frozen day back to pending.
func (s *CheckInService) ClearFreeze(ctx context.Context, clerkID, date string) (*dayledger.Entry, error) {
	u, err := s.users.FindByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	key, err := s.resolveDate(u.Timezone, date)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lockUser(u.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	entry, err := s.ledger.ClearFreeze(ctx, u.ID, key)
	if err != nil {
		return nil, err
	}

	s.invalidator.Invalidate(ctx, clerkID)
	return entry, nil
}

type RecomputeResult struct {
	StoredCurrent   int  `json:"storedCurrentStreak"`
	StoredMax       int  `json:"storedMaxStreak"`
	ReplayedCurrent int  `json:"replayedCurrentStreak"`
	ReplayedMax     int  `json:"replayedMaxStreak"`
	Repaired        bool `json:"repaired"`
}

// Recompute replays the full day ledger through the transition rule and
// reconciles the stored counters against the result. This is the recovery
// path behind the "counters are a cache" design: drift is reported and, being
// an explicit operator request, repaired.
func (s *CheckInService) Recompute(ctx context.Context, clerkID string) (*RecomputeResult, error) {
	u, err := s.users.FindByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lockUser(u.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Re-read the stored counters under the lock so the reported drift is
	// measured against what a concurrent check-in actually left behind.
	u, err = s.users.FindByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	history, err := s.ledger.History(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	current, max := streak.Replay(history)
	res := &RecomputeResult{
		StoredCurrent:   u.CurrentStreak,
		StoredMax:       u.MaxStreak,
		ReplayedCurrent: current,
		ReplayedMax:     max,
	}

	if current != u.CurrentStreak || max != u.MaxStreak {
		if err := s.users.UpdateStreak(ctx, u.ID, current, max); err != nil {
			return nil, err
		}
		res.Repaired = true
		s.invalidator.Invalidate(ctx, clerkID)
	}
	return res, nil
}

func (s *CheckInService) resolveDate(tz, date string) (dayledger.DateKey, error) {
	if date == "" {
		return clock.TodayKey(tz, s.now()), nil
	}
	return dayledger.ParseKey(date)
}
