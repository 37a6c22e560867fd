// Package invalidation emits the cache-invalidation signal downstream
// presentation layers subscribe to. After any mutation that changes a user's
// visible streak/gems/today state, the engine publishes the user's id and
// drops their cached status snapshot.
package invalidation

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Channel is the pub/sub channel presentation caches listen on.
const Channel = "solvestreak:user-invalidations"

func statusCacheKey(clerkID string) string {
	return "solvestreak:status:" + clerkID
}

type Publisher interface {
	Invalidate(ctx context.Context, clerkID string)
}

type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher connects to redis at addr. The connection is validated
// with a ping but a failure is not fatal; publishes are fire-and-forget.
func NewRedisPublisher(addr, password string, db int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("invalidation: redis ping failed (%v), continuing anyway", err)
	}

	return &RedisPublisher{client: client}
}

// Invalidate deletes the cached status snapshot and announces the change.
// Errors are logged, never surfaced: a lost invalidation only means a
// slightly stale read, which the status path tolerates.
func (p *RedisPublisher) Invalidate(ctx context.Context, clerkID string) {
	if err := p.client.Del(ctx, statusCacheKey(clerkID)).Err(); err != nil {
		log.Printf("invalidation: failed to drop status cache for %s: %v", clerkID, err)
	}
	if err := p.client.Publish(ctx, Channel, clerkID).Err(); err != nil {
		log.Printf("invalidation: failed to publish for %s: %v", clerkID, err)
	}
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Noop is used when no redis address is configured and in tests.
type Noop struct{}

func (Noop) Invalidate(ctx context.Context, clerkID string) {}
