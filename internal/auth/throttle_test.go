package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestThrottle(t *testing.T, maxAttempts int) (*Throttle, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewThrottle(client, maxAttempts), mr
}

func TestThrottleBlocksAfterMaxAttempts(t *testing.T) {
	throttle, _ := newTestThrottle(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, throttle.Allow(ctx, "jdoe", "10.0.0.1"))
		throttle.RecordFailure(ctx, "jdoe", "10.0.0.1")
	}
	require.False(t, throttle.Allow(ctx, "jdoe", "10.0.0.1"))

	// Another IP for the same user is counted separately.
	require.True(t, throttle.Allow(ctx, "jdoe", "10.0.0.2"))
}

func TestThrottleResetClearsCounter(t *testing.T) {
	throttle, _ := newTestThrottle(t, 2)
	ctx := context.Background()

	throttle.RecordFailure(ctx, "jdoe", "10.0.0.1")
	throttle.RecordFailure(ctx, "jdoe", "10.0.0.1")
	require.False(t, throttle.Allow(ctx, "jdoe", "10.0.0.1"))

	throttle.Reset(ctx, "jdoe", "10.0.0.1")
	require.True(t, throttle.Allow(ctx, "jdoe", "10.0.0.1"))
}

func TestThrottleWindowExpires(t *testing.T) {
	throttle, mr := newTestThrottle(t, 1)
	ctx := context.Background()

	throttle.RecordFailure(ctx, "jdoe", "10.0.0.1")
	require.False(t, throttle.Allow(ctx, "jdoe", "10.0.0.1"))

	mr.FastForward(2 * time.Minute)
	require.True(t, throttle.Allow(ctx, "jdoe", "10.0.0.1"))
}

func TestThrottleDisabledWithoutClient(t *testing.T) {
	throttle := NewThrottle(nil, 1)
	ctx := context.Background()
	throttle.RecordFailure(ctx, "jdoe", "10.0.0.1")
	require.True(t, throttle.Allow(ctx, "jdoe", "10.0.0.1"))
}
