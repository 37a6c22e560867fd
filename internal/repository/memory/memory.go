// Package memory is an in-process implementation of the repository
// contracts. It backs the test suite and local development without a
// database; one mutex per store keeps every operation atomic the same way
// the Postgres unique constraints do.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"solveStreakAPI/internal/dayledger"
	"solveStreakAPI/internal/repository"
	"solveStreakAPI/internal/user"
)

type Store struct {
	mu         sync.Mutex
	users      map[string]*user.User // keyed by clerk id
	entries    map[string]*dayledger.Entry
	activities map[uuid.UUID][]*dayledger.Activity
	milestones map[string]map[int]bool
	devices    map[string][]device
}

type device struct {
	token    string
	platform string
}

func NewStore() *Store {
	return &Store{
		users:      make(map[string]*user.User),
		entries:    make(map[string]*dayledger.Entry),
		activities: make(map[uuid.UUID][]*dayledger.Activity),
		milestones: make(map[string]map[int]bool),
		devices:    make(map[string][]device),
	}
}

func entryKey(userID string, date dayledger.DateKey) string {
	return userID + "|" + date.String()
}

func copyUser(u *user.User) *user.User {
	c := *u
	return &c
}

func copyEntry(e *dayledger.Entry) *dayledger.Entry {
	c := *e
	return &c
}

// --- UserRepository ---

func (s *Store) Create(ctx context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	c := copyUser(u)
	c.CreatedAt, c.UpdatedAt = now, now
	s.users[u.ClerkID] = c
	return nil
}

func (s *Store) FindByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[clerkID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *Store) UpdateProfile(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[clerkID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if req.Username != "" {
		u.Username = req.Username
	}
	if req.Timezone != "" {
		u.Timezone = req.Timezone
	}
	if req.ReminderTime != "" {
		u.ReminderTime = req.ReminderTime
	}
	if req.PledgeDays != 0 {
		u.PledgeDays = req.PledgeDays
	}
	u.UpdatedAt = time.Now()
	return copyUser(u), nil
}

func (s *Store) Delete(ctx context.Context, clerkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[clerkID]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, clerkID)
	return nil
}

func (s *Store) ListActive(ctx context.Context) ([]*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*user.User
	for _, u := range s.users {
		if u.Onboarded() {
			out = append(out, copyUser(u))
		}
	}
	return out, nil
}

func (s *Store) UpdateStreak(ctx context.Context, userID string, current, max int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == userID {
			u.CurrentStreak, u.MaxStreak = current, max
			u.UpdatedAt = time.Now()
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *Store) AddGems(ctx context.Context, userID string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == userID {
			u.Gems += amount
			u.UpdatedAt = time.Now()
			return nil
		}
	}
	return repository.ErrNotFound
}

// --- LedgerRepository ---

func (s *Store) FindEntry(ctx context.Context, userID string, date dayledger.DateKey) (*dayledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryKey(userID, date)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyEntry(e), nil
}

func (s *Store) UpsertEntry(ctx context.Context, userID string, date dayledger.DateKey, state dayledger.DayState) (*dayledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entryKey(userID, date)
	e, ok := s.entries[key]
	if !ok {
		e = &dayledger.Entry{
			ID:       uuid.New(),
			UserID:   userID,
			Date:     date,
			State:    state,
			LoggedAt: time.Now(),
		}
		s.entries[key] = e
		return copyEntry(e), nil
	}
	// completed is terminal
	if e.State != dayledger.StateCompleted {
		e.State = state
	}
	e.LoggedAt = time.Now()
	return copyEntry(e), nil
}

func (s *Store) ClearFreeze(ctx context.Context, userID string, date dayledger.DateKey) (*dayledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryKey(userID, date)]
	if !ok || e.State != dayledger.StateFrozen {
		return nil, repository.ErrNotFound
	}
	e.State = dayledger.StatePending
	return copyEntry(e), nil
}

func (s *Store) AppendActivity(ctx context.Context, act *dayledger.Activity) (*dayledger.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *act
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	s.activities[c.EntryID] = append(s.activities[c.EntryID], &c)
	out := c
	return &out, nil
}

func (s *Store) CountActivities(ctx context.Context, entryID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activities[entryID]), nil
}

func (s *Store) History(ctx context.Context, userID string) ([]*dayledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*dayledger.Entry
	for _, e := range s.entries {
		if e.UserID == userID {
			out = append(out, copyEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) Range(ctx context.Context, userID string, from, to dayledger.DateKey) ([]*dayledger.Entry, error) {
	all, err := s.History(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out []*dayledger.Entry
	for _, e := range all {
		if !e.Date.Before(from) && !to.Before(e.Date) {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- MilestoneRepository ---

func (s *Store) Record(ctx context.Context, userID string, streakValue int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	granted, ok := s.milestones[userID]
	if !ok {
		granted = make(map[int]bool)
		s.milestones[userID] = granted
	}
	if granted[streakValue] {
		return false, nil
	}
	granted[streakValue] = true
	return true, nil
}

// --- DeviceRepository ---

func (s *Store) Register(ctx context.Context, userID, token, platform string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices[userID] {
		if d.token == token {
			return nil
		}
	}
	s.devices[userID] = append(s.devices[userID], device{token: token, platform: platform})
	return nil
}

func (s *Store) TokensFor(ctx context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var tokens []string
	for _, d := range s.devices[userID] {
		tokens = append(tokens, d.token)
	}
	return tokens, nil
}

var (
	_ repository.UserRepository      = (*Store)(nil)
	_ repository.LedgerRepository    = (*Store)(nil)
	_ repository.MilestoneRepository = (*Store)(nil)
	_ repository.DeviceRepository    = (*Store)(nil)
)
