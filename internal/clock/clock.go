package clock

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"solveStreakAPI/internal/dayledger"
)

// DefaultZone is used whenever a stored timezone fails to resolve. Deadline
// math must never be fatal, so bad zones fall back here instead of erroring.
const DefaultZone = "Asia/Kolkata"

// DefaultReminder is the daily deadline applied when a user has not
// configured one, or when the stored value does not parse.
const DefaultReminder = "23:00"

// Resolve loads an IANA timezone, falling back to DefaultZone on failure.
func Resolve(tz string) *time.Location {
	if tz == "" {
		tz = DefaultZone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("clock: unknown timezone %q, falling back to %s", tz, DefaultZone)
		loc, err = time.LoadLocation(DefaultZone)
		if err != nil {
			// tzdata missing entirely; UTC keeps the engine running.
			return time.UTC
		}
	}
	return loc
}

// TodayKey returns the calendar day that "now" falls on in the given zone.
func TodayKey(tz string, now time.Time) dayledger.DateKey {
	return dayledger.KeyOf(now.In(Resolve(tz)))
}

// DeadlineInstant returns the absolute instant at which the given calendar
// day reaches the reminder time-of-day in the given zone.
func DeadlineInstant(tz, reminder string, key dayledger.DateKey) time.Time {
	loc := Resolve(tz)
	hh, mm := parseReminder(reminder)
	return time.Date(key.Year, key.Month, key.Day, hh, mm, 0, 0, loc)
}

// Remaining is the time left until deadline, clamped at zero. A zero result
// means the soft deadline has passed; it says nothing about day rollover.
func Remaining(deadline, now time.Time) time.Duration {
	d := deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// FormatRemaining renders a duration the way the app shows it: "2h 13m left",
// "45m left", or "past due" once the deadline is gone.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "past due"
	}
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm left", h, m)
	}
	return fmt.Sprintf("%dm left", m)
}

// parseReminder parses "HH:MM". Bad input degrades to DefaultReminder.
func parseReminder(reminder string) (hh, mm int) {
	parts := strings.SplitN(reminder, ":", 2)
	if len(parts) == 2 {
		h, errH := strconv.Atoi(parts[0])
		m, errM := strconv.Atoi(parts[1])
		if errH == nil && errM == nil && h >= 0 && h <= 23 && m >= 0 && m <= 59 {
			return h, m
		}
	}
	if reminder != "" {
		log.Printf("clock: invalid reminder time %q, using %s", reminder, DefaultReminder)
	}
	return 23, 0
}
