package services

import "github.com/prometheus/client_golang/prometheus"

var (
	checkInsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solvestreak_checkins_total",
			Help: "Problem logs recorded, by outcome",
		},
		[]string{"outcome"}, // first_of_day | repeat
	)
	milestonesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "solvestreak_milestones_total",
			Help: "Milestone rewards granted",
		},
	)
	freezesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "solvestreak_freezes_total",
			Help: "Streak freezes applied",
		},
	)
	lockContention = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "solvestreak_checkin_lock_contention_total",
			Help: "Check-ins that had to retry the per-user lock",
		},
	)
	reminderPushes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "solvestreak_reminder_pushes_total",
			Help: "Deadline reminder pushes queued by the sweeper",
		},
	)
)

// InitMetrics registers the engine counters. Call once from main.go.
func InitMetrics() {
	prometheus.MustRegister(checkInsTotal)
	prometheus.MustRegister(milestonesTotal)
	prometheus.MustRegister(freezesTotal)
	prometheus.MustRegister(lockContention)
	prometheus.MustRegister(reminderPushes)
}
