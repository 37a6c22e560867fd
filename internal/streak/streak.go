// Package streak holds the pure streak transition rule. It touches no
// storage and no clock: the orchestrator feeds it yesterday's ledger entry
// and the stored counters, and persists whatever comes back. Counters must
// always be reconstructible by replaying the ledger through Transition in
// ascending date order.
package streak

import (
	"errors"
	"fmt"

	"solveStreakAPI/internal/dayledger"
)

// ErrCorruptCounters is returned when stored counters violate
// maxStreak >= currentStreak >= 0. The engine refuses to compound a
// corrupted value; an operator has to look at it.
var ErrCorruptCounters = errors.New("streak counters violate max >= current >= 0")

// Result is the outcome of one transition. Changed is false when today was
// already completed and nothing moved.
type Result struct {
	CurrentStreak int
	MaxStreak     int
	Changed       bool
	Milestone     int // streak value that fired a reward, 0 if none
	GemsAwarded   int
}

// CheckCounters validates stored counters before they are used as input.
func CheckCounters(current, max int) error {
	if current < 0 || max < 0 || max < current {
		return fmt.Errorf("current=%d max=%d: %w", current, max, ErrCorruptCounters)
	}
	return nil
}

// Transition decides what completing "today" does to the counters.
//
// Evaluated once per calendar day per user, on the first event that marks the
// day complete:
//   - today already completed: no-op, nothing changes, no reward re-fires
//   - yesterday completed or frozen: streak extends
//   - yesterday missing or pending: streak restarts at 1
//
// A frozen yesterday never increments anything by itself; it only keeps the
// chain unbroken for today's completion.
func Transition(yesterday *dayledger.Entry, todayAlreadyCompleted bool, current, max int) Result {
	if todayAlreadyCompleted {
		return Result{CurrentStreak: current, MaxStreak: max}
	}

	next := 1
	if yesterday != nil && yesterday.State.KeepsStreakAlive() {
		next = current + 1
	}

	newMax := max
	if next > newMax {
		newMax = next
	}

	res := Result{CurrentStreak: next, MaxStreak: newMax, Changed: true}
	if gems := Reward(next); gems > 0 {
		res.Milestone = next
		res.GemsAwarded = gems
	}
	return res
}

// Replay reconstructs the counters from the full ledger history, applying
// Transition to every completed day in ascending date order. It is the
// recovery path behind the stored counters, which are only a cache of this
// function.
func Replay(history []*dayledger.Entry) (current, max int) {
	byDate := make(map[dayledger.DateKey]*dayledger.Entry, len(history))
	for _, e := range history {
		byDate[e.Date] = e
	}
	for _, e := range history {
		if e.State != dayledger.StateCompleted {
			continue
		}
		res := Transition(byDate[e.Date.Prev()], false, current, max)
		current, max = res.CurrentStreak, res.MaxStreak
	}
	return current, max
}
