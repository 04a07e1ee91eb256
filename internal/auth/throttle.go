package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle counts failed login attempts per username+IP in Redis with a
// one-minute window. A nil client disables throttling.
type Throttle struct {
	client      *redis.Client
	maxAttempts int
}

// NewThrottle constructs a login throttle.
func NewThrottle(client *redis.Client, maxAttempts int) *Throttle {
	return &Throttle{client: client, maxAttempts: maxAttempts}
}

func (t *Throttle) key(username, ip string) string {
	return fmt.Sprintf("login_attempts:%s:%s", username, ip)
}

// Allow reports whether another attempt is permitted.
func (t *Throttle) Allow(ctx context.Context, username, ip string) bool {
	if t == nil || t.client == nil || t.maxAttempts <= 0 {
		return true
	}
	count, err := t.client.Get(ctx, t.key(username, ip)).Int()
	if err != nil {
		// Redis being down must not lock everyone out.
		return true
	}
	return count < t.maxAttempts
}

// RecordFailure increments the attempt counter.
func (t *Throttle) RecordFailure(ctx context.Context, username, ip string) {
	if t == nil || t.client == nil {
		return
	}
	key := t.key(username, ip)
	pipe := t.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, time.Minute)
	_, _ = pipe.Exec(ctx)
}

// Reset clears the counter after a successful login.
func (t *Throttle) Reset(ctx context.Context, username, ip string) {
	if t == nil || t.client == nil {
		return
	}
	_ = t.client.Del(ctx, t.key(username, ip)).Err()
}
