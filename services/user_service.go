package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"solveStreakAPI/internal/clock"
	"solveStreakAPI/internal/invalidation"
	"solveStreakAPI/internal/repository"
	"solveStreakAPI/internal/user"
)

type UserService struct {
	users       repository.UserRepository
	invalidator invalidation.Publisher
}

func NewUserService(users repository.UserRepository, invalidator invalidation.Publisher) *UserService {
	return &UserService{users: users, invalidator: invalidator}
}

func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	u := &user.User{
		ID:           uuid.New().String(),
		ClerkID:      req.ClerkID,
		Email:        req.Email,
		Username:     req.Username,
		Timezone:     clock.DefaultZone,
		ReminderTime: clock.DefaultReminder,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	return s.users.FindByClerkID(ctx, clerkID)
}

// UpdateProfile applies onboarding/profile changes. A timezone that does not
// resolve is stored as-is and falls back at use; a malformed reminder time is
// rejected here because it is a direct user input.
func (s *UserService) UpdateProfile(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error) {
	if req.ReminderTime != "" {
		if _, err := time.Parse("15:04", req.ReminderTime); err != nil {
			return nil, fmt.Errorf("reminder time must be HH:MM: %w", err)
		}
	}
	if req.PledgeDays < 0 {
		return nil, fmt.Errorf("pledge days cannot be negative")
	}

	u, err := s.users.UpdateProfile(ctx, clerkID, req)
	if err != nil {
		return nil, err
	}

	s.invalidator.Invalidate(ctx, clerkID)
	return u, nil
}

func (s *UserService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	if err := s.users.Delete(ctx, clerkID); err != nil {
		return err
	}
	s.invalidator.Invalidate(ctx, clerkID)
	return nil
}

// AddGems is the external award path, used by admin tooling and promotions.
// Milestone rewards go through the check-in orchestrator instead.
func (s *UserService) AddGems(ctx context.Context, clerkID string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("gem amount must be positive")
	}

	u, err := s.users.FindByClerkID(ctx, clerkID)
	if err != nil {
		return err
	}
	if err := s.users.AddGems(ctx, u.ID, amount); err != nil {
		return fmt.Errorf("failed to add gems: %w", err)
	}

	s.invalidator.Invalidate(ctx, clerkID)
	return nil
}
