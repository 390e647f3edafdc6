package storyflow

import (
	"context"
	"strings"
	"time"

	"z-story-flow-api/internal/domain/entity"
	"z-story-flow-api/internal/domain/repository"
	llmctx "z-story-flow-api/internal/domain/service"
	workflowport "z-story-flow-api/internal/workflow/port"
	workflowprompt "z-story-flow-api/internal/workflow/prompt"
	"z-story-flow-api/pkg/errors"
	"z-story-flow-api/pkg/logger"
	"z-story-flow-api/pkg/metrics"
	"z-story-flow-api/pkg/tracer"
)

// FinalStoryFilename 导出文件名
const FinalStoryFilename = "Final_Story.txt"

// StepResult 一次生成步骤的执行结果
type StepResult struct {
	Step     entity.FieldKey
	Outcome  entity.StepOutcome
	Duration time.Duration
	Words    int
	Failure  *GenerationFailure
}

// Controller 单个会话的九步状态机
// 每个操作都运行到结束（包括阻塞的补全调用），并发由调用方的会话锁保证
type Controller struct {
	flow      *Flow
	sessionID string
	store     repository.StateStore
}

func (c *Controller) SetTheme(ctx context.Context, value string) error {
	theme, err := entity.ParseTheme(value)
	if err != nil {
		return errors.ErrInvalidParam.WithDetail(err.Error())
	}
	return c.store.Set(ctx, entity.FieldTheme, entity.NewUserField(string(theme)))
}

// SetCharacter slot 取值 1 或 2
func (c *Controller) SetCharacter(ctx context.Context, slot int, ch entity.Character) error {
	key, err := characterKey(slot)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, key, entity.NewCharacterField(ch))
}

// SaveStartingScene 仅在显式保存时提交开场
// 重新提交前置条件会清除生成失败的故事问题，下次 Refresh 再生成
func (c *Controller) SaveStartingScene(ctx context.Context, text string) error {
	if err := c.store.Set(ctx, entity.FieldStartingScene, entity.NewUserField(text)); err != nil {
		return err
	}
	return c.ClearFailure(ctx, entity.FieldStoryQuestion)
}

func (c *Controller) SetParticipantAction(ctx context.Context, text string) error {
	return c.store.Set(ctx, entity.FieldParticipantAction, entity.NewUserField(text))
}

func (c *Controller) SetDecisionTaken(ctx context.Context, text string) error {
	return c.store.Set(ctx, entity.FieldDecisionTaken, entity.NewUserField(text))
}

func (c *Controller) SetRefinement(ctx context.Context, text string) error {
	return c.store.Set(ctx, entity.FieldRefinement, entity.NewUserField(text))
}

func (c *Controller) SetConclusion(ctx context.Context, text string) error {
	return c.store.Set(ctx, entity.FieldConclusion, entity.NewUserField(text))
}

// EnsureStoryQuestion 开场存在且问题尚未生成时生成一次
func (c *Controller) EnsureStoryQuestion(ctx context.Context) (StepResult, error) {
	return c.ensure(ctx, entity.FieldStoryQuestion, entity.FieldStartingScene,
		workflowprompt.PromptStoryQuestionV1, c.flow.limits.StoryQuestion)
}

// GenerateAIStory 每次触发都重新生成并覆盖
func (c *Controller) GenerateAIStory(ctx context.Context) (StepResult, error) {
	snap, err := c.store.Snapshot(ctx)
	if err != nil {
		return StepResult{Step: entity.FieldAIStory}, err
	}
	res, err := c.generate(ctx, entity.FieldAIStory, workflowprompt.PromptAIStoryV1, snap, c.flow.limits.AIStory)
	if err != nil {
		return res, err
	}
	// 续写成功后失败的抉择问题可以重新生成，已生成的保持不变
	return res, c.ClearFailure(ctx, entity.FieldDecisionQuestion)
}

// EnsureDecisionQuestion 续写成功且抉择问题尚未生成时生成一次
func (c *Controller) EnsureDecisionQuestion(ctx context.Context) (StepResult, error) {
	return c.ensure(ctx, entity.FieldDecisionQuestion, entity.FieldAIStory,
		workflowprompt.PromptDecisionQuestionV1, c.flow.limits.DecisionQuestion)
}

// GenerateFinalStory 基于触发时的快照生成完整故事，默认不设输出上限
func (c *Controller) GenerateFinalStory(ctx context.Context) (StepResult, error) {
	snap, err := c.store.Snapshot(ctx)
	if err != nil {
		return StepResult{Step: entity.FieldFinalStory}, err
	}
	return c.generate(ctx, entity.FieldFinalStory, workflowprompt.PromptFinalStoryV1, snap, c.flow.limits.FinalStory)
}

// Refresh 依次执行两个受保护的生成步骤，可在每次交互后安全调用
// 生成失败不会中断，只有存储错误会返回
func (c *Controller) Refresh(ctx context.Context) ([]StepResult, error) {
	steps := []func(context.Context) (StepResult, error){
		c.EnsureStoryQuestion,
		c.EnsureDecisionQuestion,
	}

	results := make([]StepResult, 0, len(steps))
	for _, step := range steps {
		res, err := step(ctx)
		if err != nil && res.Failure == nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Reset 清空整个会话
func (c *Controller) Reset(ctx context.Context) error {
	logger.Info(ctx, "story session reset")
	return c.store.Clear(ctx)
}

// ExportFinalStory 返回导出文件名与最终故事文本
func (c *Controller) ExportFinalStory(ctx context.Context) (string, string, error) {
	f, found, err := c.store.Get(ctx, entity.FieldFinalStory)
	if err != nil {
		return "", "", err
	}
	if !found || f.State != entity.FieldStateGenerated {
		return "", "", errors.ErrFinalStoryNotFound
	}
	return FinalStoryFilename, f.Value, nil
}

func (c *Controller) ensure(ctx context.Context, target, precondition entity.FieldKey, id workflowprompt.PromptID, maxTokens *int) (StepResult, error) {
	snap, err := c.store.Snapshot(ctx)
	if err != nil {
		return StepResult{Step: target}, err
	}

	// 前置条件按成功判断：生成失败的字段不解锁后续步骤
	if !snap.Satisfied(precondition) {
		return c.settle(target, entity.StepOutcomeSkipped), nil
	}
	// 生成失败同样是终态，只有显式事件清除后才会再次生成
	switch snap.Field(target).State {
	case entity.FieldStateGenerated, entity.FieldStateGenerationFailed:
		return c.settle(target, entity.StepOutcomeCached), nil
	}
	return c.generate(ctx, target, id, snap, maxTokens)
}

// ClearFailure 删除处于生成失败状态的字段，其他状态不变
// 受保护的步骤被清除后由下一次 Refresh 重新生成
func (c *Controller) ClearFailure(ctx context.Context, key entity.FieldKey) error {
	f, found, err := c.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if !found || f.State != entity.FieldStateGenerationFailed {
		return nil
	}
	return c.store.Delete(ctx, key)
}

func (c *Controller) settle(step entity.FieldKey, outcome entity.StepOutcome) StepResult {
	metrics.StoryStepTotal.WithLabelValues(string(step), string(outcome)).Inc()
	return StepResult{Step: step, Outcome: outcome}
}

func (c *Controller) generate(ctx context.Context, step entity.FieldKey, id workflowprompt.PromptID, snap entity.Snapshot, maxTokens *int) (StepResult, error) {
	ctx = logger.WithStep(ctx, string(step))
	ctx, span := tracer.StartStep(ctx, c.sessionID, string(step))
	defer span.End()

	res := StepResult{Step: step}

	text, err := c.flow.prompts.Render(ctx, id, workflowprompt.StoryVars(snap))
	if err != nil {
		tracer.RecordError(span, err)
		return res, errors.Wrap(err, errors.CodeInternalError, "failed to render prompt")
	}

	start := time.Now()
	out, err := c.flow.completer.Complete(llmctx.WithSession(ctx, c.sessionID), &workflowport.CompletionRequest{
		Workflow:  string(step),
		Prompt:    text,
		MaxTokens: maxTokens,
	})
	res.Duration = time.Since(start)
	metrics.StoryGenerationDuration.WithLabelValues(string(step)).Observe(res.Duration.Seconds())

	if err != nil {
		cause := err.Error()
		tracer.RecordError(span, err)
		logger.Warn(ctx, "story step generation failed", "error", cause, "duration_ms", res.Duration.Milliseconds())

		// 失败写入目标字段，其余字段不变
		if serr := c.store.Set(ctx, step, entity.NewFailedField(cause)); serr != nil {
			return res, serr
		}
		res.Outcome = entity.StepOutcomeFailed
		res.Failure = &GenerationFailure{Step: step, Cause: cause}
		metrics.StoryStepTotal.WithLabelValues(string(step), string(res.Outcome)).Inc()
		return res, res.Failure
	}

	if err := c.store.Set(ctx, step, entity.NewGeneratedField(out)); err != nil {
		tracer.RecordError(span, err)
		return res, err
	}

	res.Outcome = entity.StepOutcomeGenerated
	res.Words = len(strings.Fields(out))
	metrics.StoryStepTotal.WithLabelValues(string(step), string(res.Outcome)).Inc()
	metrics.StoryWordCount.WithLabelValues(string(step)).Observe(float64(res.Words))
	logger.Info(ctx, "story step generated", "words", res.Words, "duration_ms", res.Duration.Milliseconds())
	return res, nil
}

func characterKey(slot int) (entity.FieldKey, error) {
	switch slot {
	case 1:
		return entity.FieldCharacter1, nil
	case 2:
		return entity.FieldCharacter2, nil
	default:
		return "", errors.ErrInvalidParam.WithDetail("character slot must be 1 or 2")
	}
}
