package user

import "time"

// User mirrors the users table. Timezone and ReminderTime drive the deadline
// math; CurrentStreak/MaxStreak are a cache of ledger replay and are only
// ever mutated through the check-in path.
type User struct {
	ID            string    `json:"id"`
	ClerkID       string    `json:"clerkId"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	Timezone      string    `json:"timezone"`
	ReminderTime  string    `json:"reminderTime"`
	PledgeDays    int       `json:"pledgeDays"`
	CurrentStreak int       `json:"currentStreak"`
	MaxStreak     int       `json:"maxStreak"`
	Gems          int       `json:"gems"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Onboarded reports whether the user has made a pledge yet. Zero pledge days
// means the tracker is dormant for them.
func (u *User) Onboarded() bool {
	return u.PledgeDays > 0
}

type CreateUserRequest struct {
	ClerkID  string `json:"clerkId"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// UpdateProfileRequest carries the onboarding/profile fields. Zero values
// mean "leave unchanged".
type UpdateProfileRequest struct {
	Username     string `json:"username,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
	ReminderTime string `json:"reminderTime,omitempty"`
	PledgeDays   int    `json:"pledgeDays,omitempty"`
}
