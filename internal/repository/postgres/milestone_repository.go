package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"solveStreakAPI/internal/repository"
)

type milestoneRepository struct {
	pool *pgxpool.Pool
}

func NewMilestoneRepository(pool *pgxpool.Pool) repository.MilestoneRepository {
	return &milestoneRepository{pool: pool}
}

// Record inserts into the granted-milestones ledger. The primary key on
// (user_id, streak_value) makes the grant at-most-once even under retried
// requests; ON CONFLICT DO NOTHING turns the duplicate into a clean "already
// granted" answer.
func (r *milestoneRepository) Record(ctx context.Context, userID string, streakValue int) (bool, error) {
	query := `
	INSERT INTO granted_milestones (user_id, streak_value, granted_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (user_id, streak_value) DO NOTHING
	`

	result, err := r.pool.Exec(ctx, query, userID, streakValue)
	if err != nil {
		return false, fmt.Errorf("failed to record milestone: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

type deviceRepository struct {
	pool *pgxpool.Pool
}

func NewDeviceRepository(pool *pgxpool.Pool) repository.DeviceRepository {
	return &deviceRepository{pool: pool}
}

func (r *deviceRepository) Register(ctx context.Context, userID, token, platform string) error {
	query := `
	INSERT INTO device_tokens (user_id, token, platform, registered_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (user_id, token)
	DO UPDATE SET platform = EXCLUDED.platform, registered_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query, userID, token, platform)
	if err != nil {
		return fmt.Errorf("failed to register device token: %w", err)
	}
	return nil
}

func (r *deviceRepository) TokensFor(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT token FROM device_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate device tokens: %w", err)
	}
	return tokens, nil
}
