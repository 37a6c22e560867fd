// Package repository defines the storage contracts the engine consumes and
// the error taxonomy handlers map onto HTTP statuses. Postgres implements
// them for production, memory for tests and local development.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"solveStreakAPI/internal/dayledger"
	"solveStreakAPI/internal/user"
)

var (
	// ErrNotFound: user or ledger row absent where one was required.
	// Surfaced to the caller, never retried.
	ErrNotFound = errors.New("not found")
	// ErrConflict: the per-user atomic section could not be entered after
	// bounded retries. Transient; the caller should retry.
	ErrConflict = errors.New("conflict, retry")
	// ErrInvariant: stored state contradicts itself (e.g. max < current
	// streak). Never repaired silently.
	ErrInvariant = errors.New("invariant violation")
)

// UserRepository is the users-table contract.
type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	FindByClerkID(ctx context.Context, clerkID string) (*user.User, error)
	UpdateProfile(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error)
	Delete(ctx context.Context, clerkID string) error
	// ListActive returns every onboarded user (pledge_days > 0); the
	// reminder sweeper walks this.
	ListActive(ctx context.Context) ([]*user.User, error)
	// UpdateStreak persists new counters for a user.
	UpdateStreak(ctx context.Context, userID string, current, max int) error
	// AddGems increments the gem balance. The engine never reads the
	// balance back for decisions.
	AddGems(ctx context.Context, userID string, amount int) error
}

// LedgerRepository is the day-ledger contract. One row per (user, date);
// upsert is atomic with respect to concurrent callers on the same key.
type LedgerRepository interface {
	// FindEntry returns ErrNotFound when no row exists for the day.
	FindEntry(ctx context.Context, userID string, date dayledger.DateKey) (*dayledger.Entry, error)
	// UpsertEntry creates the row with the given state, or merges into the
	// existing one. Completed is terminal: an existing completed row is
	// never downgraded, whatever state is passed.
	UpsertEntry(ctx context.Context, userID string, date dayledger.DateKey, state dayledger.DayState) (*dayledger.Entry, error)
	// ClearFreeze flips a frozen day back to pending. ErrNotFound when the
	// day is absent or not frozen.
	ClearFreeze(ctx context.Context, userID string, date dayledger.DateKey) (*dayledger.Entry, error)
	AppendActivity(ctx context.Context, act *dayledger.Activity) (*dayledger.Activity, error)
	CountActivities(ctx context.Context, entryID uuid.UUID) (int, error)
	// History returns every entry for the user in ascending date order,
	// for replay-based recovery.
	History(ctx context.Context, userID string) ([]*dayledger.Entry, error)
	// Range returns entries with from <= date <= to, ascending. Backs the
	// calendar view.
	Range(ctx context.Context, userID string, from, to dayledger.DateKey) ([]*dayledger.Entry, error)
}

// MilestoneRepository is the granted-milestones idempotency ledger.
type MilestoneRepository interface {
	// Record marks (userID, streakValue) as granted. Returns false when it
	// was already granted, so retried requests never pay twice.
	Record(ctx context.Context, userID string, streakValue int) (bool, error)
}

// DeviceRepository stores push tokens for reminder delivery.
type DeviceRepository interface {
	Register(ctx context.Context, userID, token, platform string) error
	TokensFor(ctx context.Context, userID string) ([]string, error)
}
