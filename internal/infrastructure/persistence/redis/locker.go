package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-story-flow-api/internal/domain/repository"
	"z-story-flow-api/pkg/errors"
	"z-story-flow-api/pkg/logger"
)

var _ repository.SessionLocker = (*Locker)(nil)

// 仅当 token 匹配时删除，避免释放他人持有的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const lockPollInterval = 50 * time.Millisecond

// Locker 基于 SET NX PX 的分布式会话锁
type Locker struct {
	client *Client
	keys   keys
	ttl    time.Duration
	wait   time.Duration
}

// NewLocker 创建分布式会话锁
// ttl 为锁的最长持有时间，wait 为最长等待时间
func NewLocker(client *Client, prefix string, ttl, wait time.Duration) *Locker {
	return &Locker{
		client: client,
		keys:   newKeys(prefix),
		ttl:    ttl,
		wait:   wait,
	}
}

func (l *Locker) Lock(ctx context.Context, sessionID string) (func(), error) {
	key := l.keys.lock(sessionID)
	token := uuid.NewString()

	ctx, span := tracer.Start(ctx, "redis.lock.Acquire",
		trace.WithAttributes(attribute.String("redis.key", key)))
	defer span.End()

	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	attempts := 0
	for {
		attempts++
		ok, err := l.client.rdb.SetNX(waitCtx, key, token, l.ttl).Result()
		if err != nil && waitCtx.Err() == nil {
			span.RecordError(err)
			return nil, errors.ErrCache.WithError(err)
		}
		if ok {
			span.SetAttributes(attribute.Int("redis.lock.attempts", attempts))
			return l.releaser(key, token), nil
		}

		select {
		case <-waitCtx.Done():
			span.SetAttributes(attribute.Bool("redis.lock.timeout", true))
			return nil, errors.ErrSessionBusy.WithError(waitCtx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Locker) releaser(key, token string) func() {
	return func() {
		// 请求 ctx 可能已取消，释放使用独立 ctx
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := releaseScript.Run(ctx, l.client.rdb, []string{key}, token).Err(); err != nil && !IsNil(err) {
			logger.Warn(ctx, "failed to release session lock", "key", key, "error", err)
		}
	}
}
