// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"z-story-flow-api/internal/application/storyflow"
	"z-story-flow-api/internal/config"
	"z-story-flow-api/internal/domain/repository"
	"z-story-flow-api/internal/domain/service"
	"z-story-flow-api/internal/infrastructure/messaging"
	"z-story-flow-api/internal/infrastructure/persistence/memory"
	"z-story-flow-api/internal/infrastructure/persistence/redis"
	"z-story-flow-api/internal/interfaces/http/middleware"
	"z-story-flow-api/internal/interfaces/http/router"
	workflowport "z-story-flow-api/internal/workflow/port"
	"z-story-flow-api/pkg/logger"
)

// App 应用依赖容器
type App struct {
	Router  *router.Router
	Stories *storyflow.Service
}

// ProvideRedisClient 会话后端为 redis 或启用步骤事件流时连接 Redis，否则返回 nil
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if cfg.Session.Backend != config.SessionBackendRedis && !cfg.Messaging.RedisStream.Enabled {
		return nil, func() {}, nil
	}

	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	logger.Info(ctx, "redis connected", "host", cfg.Cache.Redis.Host, "port", cfg.Cache.Redis.Port)

	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideSessionRepository 按配置选择会话仓储
func ProvideSessionRepository(cfg *config.Config, client *redis.Client) repository.StorySessionRepository {
	if cfg.Session.Backend == config.SessionBackendRedis && client != nil {
		return redis.NewSessionRepository(client, cfg.Session.KeyPrefix, cfg.Session.TTL)
	}
	return memory.NewSessionRepository(cfg.Session.TTL)
}

// ProvideSessionLocker 按配置选择会话锁
func ProvideSessionLocker(cfg *config.Config, client *redis.Client) repository.SessionLocker {
	if cfg.Session.Backend == config.SessionBackendRedis && client != nil {
		return redis.NewLocker(client, cfg.Session.KeyPrefix, cfg.Session.LockTTL, cfg.Session.LockWait)
	}
	return memory.NewLocker(cfg.Session.LockWait)
}

// ProvideRateLimiter 多副本部署时限流状态放在 Redis
func ProvideRateLimiter(cfg *config.Config, client *redis.Client) middleware.RateLimiter {
	if !cfg.Security.RateLimit.Enabled {
		return nil
	}
	if cfg.Session.Backend == config.SessionBackendRedis && client != nil {
		return redis.NewRateLimiter(client, cfg.Session.KeyPrefix)
	}
	return memory.NewRateLimiter(cfg.Security.RateLimit.Burst)
}

// ProvideStepPublisher 未启用事件流时不发布
func ProvideStepPublisher(cfg *config.Config, client *redis.Client) service.StepPublisher {
	streamCfg := cfg.Messaging.RedisStream
	if !streamCfg.Enabled || client == nil {
		return messaging.NoopPublisher{}
	}
	return messaging.NewProducer(client.Redis(), messaging.Stream(streamCfg.Stream), int64(streamCfg.MaxLen))
}

// ProvideFlow 提供故事流程
func ProvideFlow(cfg *config.Config, completer workflowport.Completer) *storyflow.Flow {
	return storyflow.NewFlow(completer, nil, storyflow.StepLimitsFromConfig(&cfg.Flow.Steps))
}
