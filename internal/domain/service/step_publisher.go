package service

import (
	"context"

	"z-story-flow-api/internal/domain/entity"
)

// StepPublisher 发布生成步骤事件
// 约定：实现为 best-effort，失败只记录日志，不影响流程
type StepPublisher interface {
	PublishStep(ctx context.Context, ev *entity.StepEvent) error
}
