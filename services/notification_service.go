package services

import (
	"context"
	"log"
	"sync"
	"time"

	"solveStreakAPI/internal/repository"
)

// PushProvider is implemented by internal/notification.FCMService and by the
// mock used in tests.
type PushProvider interface {
	SendPush(ctx context.Context, tokens []string, title, body string, data map[string]string) error
}

type pushJob struct {
	userID string
	title  string
	body   string
	data   map[string]string
}

// NotificationService fans push jobs out to a small worker pool so a slow
// FCM round trip never sits on the check-in path.
type NotificationService struct {
	devices  repository.DeviceRepository
	provider PushProvider
	jobs     chan pushJob
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewNotificationService(devices repository.DeviceRepository) *NotificationService {
	n := &NotificationService{
		devices: devices,
		jobs:    make(chan pushJob, 100),
		stop:    make(chan struct{}),
	}

	for i := 0; i < 5; i++ {
		n.wg.Add(1)
		go n.worker()
	}
	return n
}

// SetPushProvider injects the real FCM provider from main.go. Without one,
// jobs are drained and logged.
func (n *NotificationService) SetPushProvider(p PushProvider) {
	n.provider = p
}

func (n *NotificationService) RegisterDevice(ctx context.Context, userID, token, platform string) error {
	return n.devices.Register(ctx, userID, token, platform)
}

// QueuePush enqueues a push for the user. Drops the job rather than block
// the caller when the queue is full.
func (n *NotificationService) QueuePush(userID, title, body string, data map[string]string) {
	select {
	case n.jobs <- pushJob{userID: userID, title: title, body: body, data: data}:
	default:
		log.Printf("notifications: queue full, dropping push for user %s", userID)
	}
}

func (n *NotificationService) worker() {
	defer n.wg.Done()
	for {
		select {
		case job := <-n.jobs:
			n.process(job)
		case <-n.stop:
			return
		}
	}
}

func (n *NotificationService) process(job pushJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tokens, err := n.devices.TokensFor(ctx, job.userID)
	if err != nil {
		log.Printf("notifications: failed to load tokens for %s: %v", job.userID, err)
		return
	}
	if len(tokens) == 0 || n.provider == nil {
		return
	}

	if err := n.provider.SendPush(ctx, tokens, job.title, job.body, job.data); err != nil {
		log.Printf("notifications: push failed for %s: %v", job.userID, err)
	}
}

func (n *NotificationService) Stop() {
	close(n.stop)
	n.wg.Wait()
}
