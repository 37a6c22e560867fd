package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"solveStreakAPI/internal/clock"
	"solveStreakAPI/internal/repository"
)

// ReminderSweeper periodically scans onboarded users and queues a push for
// anyone whose local deadline is inside the reminder window with today still
// incomplete. This is advisory only; missing the soft deadline changes no
// streak state.
type ReminderSweeper struct {
	users    repository.UserRepository
	ledger   repository.LedgerRepository
	notifier *NotificationService
	cron     *cron.Cron
	interval time.Duration
	window   time.Duration
	now      func() time.Time

	mu       sync.Mutex
	notified map[string]string // user id -> date already reminded
}

func NewReminderSweeper(users repository.UserRepository, ledger repository.LedgerRepository, notifier *NotificationService, interval, window time.Duration) *ReminderSweeper {
	return &ReminderSweeper{
		users:    users,
		ledger:   ledger,
		notifier: notifier,
		cron:     cron.New(),
		interval: interval,
		window:   window,
		now:      time.Now,
		notified: make(map[string]string),
	}
}

func (r *ReminderSweeper) Start() error {
	spec := fmt.Sprintf("@every %s", r.interval)

	if _, err := r.cron.AddFunc(spec, r.sweep); err != nil {
		return fmt.Errorf("failed to schedule reminder sweep: %w", err)
	}

	r.cron.Start()
	log.Printf("Reminder sweeper started, interval %s, window %s", r.interval, r.window)
	return nil
}

func (r *ReminderSweeper) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	log.Println("Reminder sweeper stopped")
}

func (r *ReminderSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	users, err := r.users.ListActive(ctx)
	if err != nil {
		log.Printf("Reminder sweep: failed to list users: %v", err)
		return
	}

	now := r.now()
	queued := 0
	for _, u := range users {
		today := clock.TodayKey(u.Timezone, now)

		if entry, err := r.ledger.FindEntry(ctx, u.ID, today); err == nil {
			if entry.State.KeepsStreakAlive() {
				continue
			}
		} else if !errors.Is(err, repository.ErrNotFound) {
			log.Printf("Reminder sweep: ledger lookup for %s failed: %v", u.ID, err)
			continue
		}

		deadline := clock.DeadlineInstant(u.Timezone, u.ReminderTime, today)
		remaining := clock.Remaining(deadline, now)
		if remaining == 0 || remaining > r.window {
			continue
		}

		if !r.markNotified(u.ID, today.String()) {
			continue
		}

		r.notifier.QueuePush(u.ID,
			"Your streak is on the line",
			fmt.Sprintf("No problem logged today. %s.", clock.FormatRemaining(remaining)),
			map[string]string{"type": "deadline_reminder", "date": today.String()},
		)
		reminderPushes.Inc()
		queued++
	}

	if queued > 0 {
		log.Printf("Reminder sweep: queued %d pushes", queued)
	}
}

// markNotified returns false when the user was already reminded for this
// local date. The map is in-process; a restart re-reminding someone once is
// acceptable.
func (r *ReminderSweeper) markNotified(userID, date string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.notified[userID] == date {
		return false
	}
	r.notified[userID] = date
	return true
}
