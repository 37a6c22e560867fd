package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"solveStreakAPI/internal/dayledger"
	"solveStreakAPI/internal/repository"
)

type ledgerRepository struct {
	pool *pgxpool.Pool
}

func NewLedgerRepository(pool *pgxpool.Pool) repository.LedgerRepository {
	return &ledgerRepository{pool: pool}
}

func scanEntry(row pgx.Row) (*dayledger.Entry, error) {
	e := &dayledger.Entry{}
	var date time.Time
	err := row.Scan(&e.ID, &e.UserID, &date, &e.State, &e.LoggedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan daily log: %w", err)
	}
	e.Date = dayledger.KeyOf(date)
	return e, nil
}

func (r *ledgerRepository) FindEntry(ctx context.Context, userID string, date dayledger.DateKey) (*dayledger.Entry, error) {
	query := `
	SELECT id, user_id, date, state, logged_at
	FROM daily_logs
	WHERE user_id = $1 AND date = $2
	`
	return scanEntry(r.pool.QueryRow(ctx, query, userID, date.At(time.UTC)))
}

// UpsertEntry relies on the UNIQUE (user_id, date) constraint so two
// concurrent callers for the same key cannot produce two rows. The CASE
// keeps 'completed' terminal: a freeze request landing on an already
// completed day leaves it completed.
func (r *ledgerRepository) UpsertEntry(ctx context.Context, userID string, date dayledger.DateKey, state dayledger.DayState) (*dayledger.Entry, error) {
	query := `
	INSERT INTO daily_logs (id, user_id, date, state, logged_at)
	VALUES ($1, $2, $3, $4, NOW())
	ON CONFLICT (user_id, date)
	DO UPDATE SET
		state = CASE WHEN daily_logs.state = 'completed' THEN daily_logs.state ELSE EXCLUDED.state END,
		logged_at = NOW()
	RETURNING id, user_id, date, state, logged_at
	`
	return scanEntry(r.pool.QueryRow(ctx, query, uuid.New(), userID, date.At(time.UTC), state))
}

func (r *ledgerRepository) ClearFreeze(ctx context.Context, userID string, date dayledger.DateKey) (*dayledger.Entry, error) {
	query := `
	UPDATE daily_logs
	SET state = 'pending'
	WHERE user_id = $1 AND date = $2 AND state = 'frozen'
	RETURNING id, user_id, date, state, logged_at
	`
	return scanEntry(r.pool.QueryRow(ctx, query, userID, date.At(time.UTC)))
}

func (r *ledgerRepository) AppendActivity(ctx context.Context, act *dayledger.Activity) (*dayledger.Activity, error) {
	if act.ID == uuid.Nil {
		act.ID = uuid.New()
	}

	query := `
	INSERT INTO problem_logs (id, daily_log_id, topic, difficulty, created_at)
	VALUES ($1, $2, $3, $4, NOW())
	RETURNING created_at
	`

	err := r.pool.QueryRow(ctx, query, act.ID, act.EntryID, act.Topic, act.Difficulty).Scan(&act.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append problem log: %w", err)
	}
	return act, nil
}

func (r *ledgerRepository) CountActivities(ctx context.Context, entryID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM problem_logs WHERE daily_log_id = $1`, entryID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count problem logs: %w", err)
	}
	return count, nil
}

func (r *ledgerRepository) History(ctx context.Context, userID string) ([]*dayledger.Entry, error) {
	query := `
	SELECT id, user_id, date, state, logged_at
	FROM daily_logs
	WHERE user_id = $1
	ORDER BY date
	`
	return r.queryEntries(ctx, query, userID)
}

func (r *ledgerRepository) Range(ctx context.Context, userID string, from, to dayledger.DateKey) ([]*dayledger.Entry, error) {
	query := `
	SELECT id, user_id, date, state, logged_at
	FROM daily_logs
	WHERE user_id = $1 AND date >= $2 AND date <= $3
	ORDER BY date
	`
	return r.queryEntries(ctx, query, userID, from.At(time.UTC), to.At(time.UTC))
}

func (r *ledgerRepository) queryEntries(ctx context.Context, query string, args ...any) ([]*dayledger.Entry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily logs: %w", err)
	}
	defer rows.Close()

	var entries []*dayledger.Entry
	for rows.Next() {
		e := &dayledger.Entry{}
		var date time.Time
		if err := rows.Scan(&e.ID, &e.UserID, &date, &e.State, &e.LoggedAt); err != nil {
			return nil, fmt.Errorf("failed to scan daily log: %w", err)
		}
		e.Date = dayledger.KeyOf(date)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily logs: %w", err)
	}
	return entries, nil
}
