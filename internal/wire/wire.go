//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"z-story-flow-api/internal/application/storyflow"
	"z-story-flow-api/internal/config"
	"z-story-flow-api/internal/infrastructure/llm"
	"z-story-flow-api/internal/interfaces/http/handler"
	"z-story-flow-api/internal/interfaces/http/router"
	workflowport "z-story-flow-api/internal/workflow/port"
)

// InitializeApp 初始化整个应用
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		BackendSet,
		LLMSet,
		StoryFlowSet,
		RouterSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}

// BackendSet 会话后端提供者集合
var BackendSet = wire.NewSet(
	ProvideRedisClient,
	ProvideSessionRepository,
	ProvideSessionLocker,
	ProvideRateLimiter,
	ProvideStepPublisher,
)

// LLMSet 补全服务提供者集合
var LLMSet = wire.NewSet(
	llm.NewEinoFactory,
	wire.Bind(new(workflowport.ChatModelFactory), new(*llm.EinoFactory)),
	llm.NewCompleter,
)

// StoryFlowSet 故事流程提供者集合
var StoryFlowSet = wire.NewSet(
	ProvideFlow,
	storyflow.NewService,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	handler.NewHealthHandler,
	handler.NewStorySessionHandler,
	wire.Bind(new(handler.StorySessionService), new(*storyflow.Service)),
	wire.Struct(new(router.RouterHandlers), "*"),
	router.NewWithDeps,
)
