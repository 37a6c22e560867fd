package streak

import (
	"errors"
	"testing"
	"time"

	"solveStreakAPI/internal/dayledger"
)

func entry(state dayledger.DayState) *dayledger.Entry {
	return &dayledger.Entry{State: state}
}

func TestTransition(t *testing.T) {
	tests := []struct {
		name        string
		yesterday   *dayledger.Entry
		alreadyDone bool
		current     int
		max         int
		wantCurrent int
		wantMax     int
		wantChanged bool
		wantGems    int
	}{
		{
			name:        "first completion ever",
			yesterday:   nil,
			current:     0,
			max:         0,
			wantCurrent: 1,
			wantMax:     1,
			wantChanged: true,
			wantGems:    FirstDayGems,
		},
		{
			name:        "today already completed is a no-op",
			yesterday:   entry(dayledger.StateCompleted),
			alreadyDone: true,
			current:     4,
			max:         7,
			wantCurrent: 4,
			wantMax:     7,
			wantChanged: false,
			wantGems:    0,
		},
		{
			name:        "yesterday completed extends",
			yesterday:   entry(dayledger.StateCompleted),
			current:     4,
			max:         7,
			wantCurrent: 5,
			wantMax:     7,
			wantChanged: true,
		},
		{
			name:        "yesterday frozen extends without having counted",
			yesterday:   entry(dayledger.StateFrozen),
			current:     5,
			max:         5,
			wantCurrent: 6,
			wantMax:     6,
			wantChanged: true,
		},
		{
			name:        "yesterday pending breaks the streak",
			yesterday:   entry(dayledger.StatePending),
			current:     5,
			max:         5,
			wantCurrent: 1,
			wantMax:     5,
			wantChanged: true,
			wantGems:    FirstDayGems,
		},
		{
			name:        "yesterday missing breaks the streak",
			yesterday:   nil,
			current:     5,
			max:         5,
			wantCurrent: 1,
			wantMax:     5,
			wantChanged: true,
			wantGems:    FirstDayGems,
		},
		{
			name:        "tenth consecutive day fires the milestone",
			yesterday:   entry(dayledger.StateCompleted),
			current:     9,
			max:         9,
			wantCurrent: 10,
			wantMax:     10,
			wantChanged: true,
			wantGems:    MilestoneGems,
		},
		{
			name:        "eleventh day pays nothing",
			yesterday:   entry(dayledger.StateCompleted),
			current:     10,
			max:         10,
			wantCurrent: 11,
			wantMax:     11,
			wantChanged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Transition(tt.yesterday, tt.alreadyDone, tt.current, tt.max)
			if res.CurrentStreak != tt.wantCurrent {
				t.Errorf("CurrentStreak = %d, want %d", res.CurrentStreak, tt.wantCurrent)
			}
			if res.MaxStreak != tt.wantMax {
				t.Errorf("MaxStreak = %d, want %d", res.MaxStreak, tt.wantMax)
			}
			if res.Changed != tt.wantChanged {
				t.Errorf("Changed = %v, want %v", res.Changed, tt.wantChanged)
			}
			if res.GemsAwarded != tt.wantGems {
				t.Errorf("GemsAwarded = %d, want %d", res.GemsAwarded, tt.wantGems)
			}
			if res.MaxStreak < res.CurrentStreak {
				t.Errorf("invariant broken: max %d < current %d", res.MaxStreak, res.CurrentStreak)
			}
		})
	}
}

func TestReward(t *testing.T) {
	want := map[int]int{
		0: 0, 1: FirstDayGems, 2: 0, 5: 0, 9: 0,
		10: MilestoneGems, 11: 0, 15: 0, 19: 0,
		20: MilestoneGems, 30: MilestoneGems, 37: 0, 100: MilestoneGems,
	}
	for streakValue, gems := range want {
		if got := Reward(streakValue); got != gems {
			t.Errorf("Reward(%d) = %d, want %d", streakValue, got, gems)
		}
	}
}

func TestCheckCounters(t *testing.T) {
	if err := CheckCounters(3, 7); err != nil {
		t.Errorf("valid counters rejected: %v", err)
	}
	if err := CheckCounters(0, 0); err != nil {
		t.Errorf("fresh counters rejected: %v", err)
	}
	for _, c := range [][2]int{{5, 3}, {-1, 0}, {0, -2}} {
		err := CheckCounters(c[0], c[1])
		if !errors.Is(err, ErrCorruptCounters) {
			t.Errorf("CheckCounters(%d, %d) = %v, want ErrCorruptCounters", c[0], c[1], err)
		}
	}
}

func day(y int, m int, d int, state dayledger.DayState) *dayledger.Entry {
	return &dayledger.Entry{Date: dayledger.DateKey{Year: y, Month: time.Month(m), Day: d}, State: state}
}

func TestReplay(t *testing.T) {
	tests := []struct {
		name        string
		history     []*dayledger.Entry
		wantCurrent int
		wantMax     int
	}{
		{
			name: "three consecutive completed days",
			history: []*dayledger.Entry{
				day(2025, 3, 1, dayledger.StateCompleted),
				day(2025, 3, 2, dayledger.StateCompleted),
				day(2025, 3, 3, dayledger.StateCompleted),
			},
			wantCurrent: 3,
			wantMax:     3,
		},
		{
			name: "gap resets current but keeps max",
			history: []*dayledger.Entry{
				day(2025, 3, 1, dayledger.StateCompleted),
				day(2025, 3, 2, dayledger.StateCompleted),
				day(2025, 3, 5, dayledger.StateCompleted),
			},
			wantCurrent: 1,
			wantMax:     2,
		},
		{
			name: "frozen day bridges without counting",
			history: []*dayledger.Entry{
				day(2025, 3, 1, dayledger.StateCompleted),
				day(2025, 3, 2, dayledger.StateFrozen),
				day(2025, 3, 3, dayledger.StateCompleted),
			},
			wantCurrent: 2,
			wantMax:     2,
		},
		{
			name: "pending day breaks like a gap",
			history: []*dayledger.Entry{
				day(2025, 3, 1, dayledger.StateCompleted),
				day(2025, 3, 2, dayledger.StatePending),
				day(2025, 3, 3, dayledger.StateCompleted),
			},
			wantCurrent: 1,
			wantMax:     1,
		},
		{
			name:        "empty history",
			history:     nil,
			wantCurrent: 0,
			wantMax:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current, max := Replay(tt.history)
			if current != tt.wantCurrent || max != tt.wantMax {
				t.Errorf("Replay() = (%d, %d), want (%d, %d)", current, max, tt.wantCurrent, tt.wantMax)
			}
		})
	}
}
