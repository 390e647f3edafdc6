// Package storyflow 实现故事构建会话的状态机与事件分发
package storyflow

import (
	stderrors "errors"
	"fmt"

	"z-story-flow-api/internal/config"
	"z-story-flow-api/internal/domain/entity"
	"z-story-flow-api/internal/domain/repository"
	workflowport "z-story-flow-api/internal/workflow/port"
	workflowprompt "z-story-flow-api/internal/workflow/prompt"
	"z-story-flow-api/pkg/errors"
)

// StepLimits 各生成步骤的输出上限，nil 表示不设上限
type StepLimits struct {
	StoryQuestion    *int
	AIStory          *int
	DecisionQuestion *int
	FinalStory       *int
}

// StepLimitsFromConfig 0 视为不设上限
func StepLimitsFromConfig(cfg *config.FlowStepsConfig) StepLimits {
	return StepLimits{
		StoryQuestion:    limit(cfg.StoryQuestion.MaxTokens),
		AIStory:          limit(cfg.AIStory.MaxTokens),
		DecisionQuestion: limit(cfg.DecisionQuestion.MaxTokens),
		FinalStory:       limit(cfg.FinalStory.MaxTokens),
	}
}

func limit(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

// Flow 持有跨会话共享的依赖，为单个会话创建 Controller
type Flow struct {
	completer workflowport.Completer
	prompts   *workflowprompt.Registry
	limits    StepLimits
}

// NewFlow 创建流程
func NewFlow(completer workflowport.Completer, prompts *workflowprompt.Registry, limits StepLimits) *Flow {
	if prompts == nil {
		prompts = workflowprompt.NewRegistry()
	}
	return &Flow{
		completer: completer,
		prompts:   prompts,
		limits:    limits,
	}
}

// Controller 绑定到一个会话的字段存储
func (f *Flow) Controller(sessionID string, store repository.StateStore) *Controller {
	return &Controller{
		flow:      f,
		sessionID: sessionID,
		store:     store,
	}
}

// GenerationFailure 补全服务未能产出文本
type GenerationFailure struct {
	Step  entity.FieldKey
	Cause string
}

func (f *GenerationFailure) Error() string {
	return fmt.Sprintf("%s generation failed: %s", f.Step, f.Cause)
}

// Is 使 errors.Is(err, errors.ErrGenerationFailed) 成立
func (f *GenerationFailure) Is(target error) bool {
	return stderrors.Is(errors.ErrGenerationFailed, target)
}
