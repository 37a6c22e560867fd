package streak

// Gem amounts for the reward schedule. The first ever completed day pays a
// small welcome amount; every tenth consecutive day after that pays the
// milestone amount. Each (user, streak value) pair pays at most once, which
// the orchestrator enforces with the granted-milestones ledger.
const (
	FirstDayGems  = 10
	MilestoneGems = 50

	milestoneEvery = 10
)

// Reward maps a streak value to a one-time gem amount. Zero means no reward.
func Reward(streakValue int) int {
	switch {
	case streakValue == 1:
		return FirstDayGems
	case streakValue > 1 && streakValue%milestoneEvery == 0:
		return MilestoneGems
	default:
		return 0
	}
}
