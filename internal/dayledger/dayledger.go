package dayledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DateKey identifies one calendar day in the user's own timezone. It carries
// no time-of-day and no zone: "2025-03-14" for a user in Kolkata and
// "2025-03-14" for a user in New York are different instants but the same
// kind of value.
type DateKey struct {
	Year  int
	Month time.Month
	Day   int
}

func KeyOf(t time.Time) DateKey {
	y, m, d := t.Date()
	return DateKey{Year: y, Month: m, Day: d}
}

// ParseKey parses a "YYYY-MM-DD" string.
func ParseKey(s string) (DateKey, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return DateKey{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return KeyOf(t), nil
}

func (k DateKey) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", k.Year, int(k.Month), k.Day)
}

// MarshalJSON renders the key as its "YYYY-MM-DD" form.
func (k DateKey) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

func (k *DateKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKey(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Prev returns the immediately preceding calendar day.
func (k DateKey) Prev() DateKey {
	return KeyOf(time.Date(k.Year, k.Month, k.Day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1))
}

func (k DateKey) Next() DateKey {
	return KeyOf(time.Date(k.Year, k.Month, k.Day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1))
}

// At returns midnight of this calendar day in the given location.
func (k DateKey) At(loc *time.Location) time.Time {
	return time.Date(k.Year, k.Month, k.Day, 0, 0, 0, 0, loc)
}

func (k DateKey) IsZero() bool {
	return k == DateKey{}
}

func (k DateKey) Before(other DateKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	if k.Month != other.Month {
		return k.Month < other.Month
	}
	return k.Day < other.Day
}

// DayState is the lifecycle of one (user, date) ledger row. A day is Pending
// while problems may still be logged, Completed once at least one problem is
// logged (terminal), or Frozen when the user spent a freeze on it. Frozen
// protects the streak without counting as completion.
type DayState string

const (
	StatePending   DayState = "pending"
	StateCompleted DayState = "completed"
	StateFrozen    DayState = "frozen"
)

func (s DayState) Valid() bool {
	switch s {
	case StatePending, StateCompleted, StateFrozen:
		return true
	}
	return false
}

// KeepsStreakAlive reports whether a day in this state lets the next day's
// completion extend the streak rather than restart it.
func (s DayState) KeepsStreakAlive() bool {
	return s == StateCompleted || s == StateFrozen
}

// Entry is the per-user, per-day ledger row. At most one exists per
// (UserID, Date).
type Entry struct {
	ID       uuid.UUID `json:"id"`
	UserID   string    `json:"user_id"`
	Date     DateKey   `json:"date"`
	State    DayState  `json:"state"`
	LoggedAt time.Time `json:"logged_at"`
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Activity is one logged problem. It belongs to exactly one Entry; deleting
// the entry deletes its activities.
type Activity struct {
	ID         uuid.UUID  `json:"id"`
	EntryID    uuid.UUID  `json:"entry_id"`
	Topic      string     `json:"topic"`
	Difficulty Difficulty `json:"difficulty"`
	CreatedAt  time.Time  `json:"created_at"`
}
