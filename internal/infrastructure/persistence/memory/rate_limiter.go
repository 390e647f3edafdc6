package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultMaxLimiterKeys = 10000
	limiterIdleTTL        = 10 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 单进程令牌桶限流器
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	burst   int
	maxKeys int
	now     func() time.Time
}

// NewRateLimiter burst<=0 时与每窗口请求数相同
func NewRateLimiter(burst int) *RateLimiter {
	return &RateLimiter{
		entries: make(map[string]*limiterEntry),
		burst:   burst,
		maxKeys: defaultMaxLimiterKeys,
		now:     time.Now,
	}
}

// Allow 每个 key 以 limit/window 的速率补充令牌
func (l *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok {
		if len(l.entries) >= l.maxKeys {
			l.evictIdle(now)
		}
		burst := l.burst
		if burst <= 0 {
			burst = limit
		}
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(float64(limit)/window.Seconds()), burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1), nil
}

// Key 构建客户端限流键
func (l *RateLimiter) Key(clientID, endpoint string) string {
	return fmt.Sprintf("ratelimit:%s:%s", clientID, endpoint)
}

func (l *RateLimiter) evictIdle(now time.Time) {
	for k, e := range l.entries {
		if now.Sub(e.lastSeen) > limiterIdleTTL {
			delete(l.entries, k)
		}
	}
}
