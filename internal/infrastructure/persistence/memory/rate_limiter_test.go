package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterBurstThenRefill(t *testing.T) {
	ctx := context.Background()
	l := NewRateLimiter(2)
	now := time.Unix(1700000000, 0)
	l.now = func() time.Time { return now }

	key := l.Key("10.0.0.1", "POST /v1/story-sessions")
	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, key, 1, time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, key, 1, time.Second)
	assert.False(t, ok)

	// 其它客户端不受影响
	ok, _ = l.Allow(ctx, l.Key("10.0.0.2", "POST /v1/story-sessions"), 1, time.Second)
	assert.True(t, ok)

	now = now.Add(time.Second)
	ok, _ = l.Allow(ctx, key, 1, time.Second)
	assert.True(t, ok)
}

func TestRateLimiterEvictsIdleKeys(t *testing.T) {
	ctx := context.Background()
	l := NewRateLimiter(1)
	l.maxKeys = 1
	now := time.Unix(1700000000, 0)
	l.now = func() time.Time { return now }

	_, _ = l.Allow(ctx, "a", 1, time.Second)
	now = now.Add(limiterIdleTTL + time.Second)
	_, _ = l.Allow(ctx, "b", 1, time.Second)

	assert.Len(t, l.entries, 1)
	assert.Contains(t, l.entries, "b")
}
