package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"solveStreakAPI/internal/repository"
	"solveStreakAPI/internal/user"
)

const userColumns = `id, clerk_id, email, username, timezone, reminder_time, pledge_days, current_streak, max_streak, gems, created_at, updated_at`

type userRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return &userRepository{pool: pool}
}

func scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(
		&u.ID,
		&u.ClerkID,
		&u.Email,
		&u.Username,
		&u.Timezone,
		&u.ReminderTime,
		&u.PledgeDays,
		&u.CurrentStreak,
		&u.MaxStreak,
		&u.Gems,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return u, nil
}

func (r *userRepository) Create(ctx context.Context, u *user.User) error {
	query := `
	INSERT INTO users (id, clerk_id, email, username, timezone, reminder_time, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`

	_, err := r.pool.Exec(ctx, query, u.ID, u.ClerkID, u.Email, u.Username, u.Timezone, u.ReminderTime)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) FindByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE clerk_id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, clerkID))
}

func (r *userRepository) UpdateProfile(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error) {
	query := `
	UPDATE users SET
		username      = CASE WHEN $2 != '' THEN $2 ELSE username END,
		timezone      = CASE WHEN $3 != '' THEN $3 ELSE timezone END,
		reminder_time = CASE WHEN $4 != '' THEN $4 ELSE reminder_time END,
		pledge_days   = CASE WHEN $5 != 0 THEN $5 ELSE pledge_days END,
		updated_at    = NOW()
	WHERE clerk_id = $1
	RETURNING ` + userColumns

	return scanUser(r.pool.QueryRow(ctx, query, clerkID, req.Username, req.Timezone, req.ReminderTime, req.PledgeDays))
}

func (r *userRepository) Delete(ctx context.Context, clerkID string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepository) ListActive(ctx context.Context) ([]*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE pledge_days > 0`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u := &user.User{}
		err := rows.Scan(
			&u.ID,
			&u.ClerkID,
			&u.Email,
			&u.Username,
			&u.Timezone,
			&u.ReminderTime,
			&u.PledgeDays,
			&u.CurrentStreak,
			&u.MaxStreak,
			&u.Gems,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

func (r *userRepository) UpdateStreak(ctx context.Context, userID string, current, max int) error {
	query := `
	UPDATE users
	SET current_streak = $2, max_streak = $3, updated_at = NOW()
	WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, userID, current, max)
	if err != nil {
		return fmt.Errorf("failed to update streak: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepository) AddGems(ctx context.Context, userID string, amount int) error {
	query := `
	UPDATE users
	SET gems = gems + $2, updated_at = NOW()
	WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to add gems: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
