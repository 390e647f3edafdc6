package storyflow

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"z-story-flow-api/internal/domain/entity"
	"z-story-flow-api/internal/domain/repository"
	"z-story-flow-api/internal/domain/service"
	"z-story-flow-api/pkg/errors"
	"z-story-flow-api/pkg/logger"
	"z-story-flow-api/pkg/metrics"
)

// DispatchResult 一次事件分发的结果
type DispatchResult struct {
	View     *View
	Steps    []StepResult
	Failures []*GenerationFailure
}

// Service 会话生命周期与事件分发
type Service struct {
	flow      *Flow
	sessions  repository.StorySessionRepository
	locker    repository.SessionLocker
	publisher service.StepPublisher
}

// NewService 创建服务
func NewService(flow *Flow, sessions repository.StorySessionRepository, locker repository.SessionLocker, publisher service.StepPublisher) *Service {
	return &Service{
		flow:      flow,
		sessions:  sessions,
		locker:    locker,
		publisher: publisher,
	}
}

// CreateSession 开始一个新会话
func (s *Service) CreateSession(ctx context.Context) (*entity.StorySession, *View, error) {
	sess, err := s.sessions.Create(ctx)
	if err != nil {
		return nil, nil, err
	}
	metrics.ActiveSessions.Inc()

	ctx = logger.WithSession(ctx, sess.ID)
	logger.Info(ctx, "story session created")

	view, err := s.controller(sess.ID).View(ctx)
	if err != nil {
		return nil, nil, err
	}
	return sess, view, nil
}

// GetView 读取会话当前状态，不触发生成
func (s *Service) GetView(ctx context.Context, sessionID string) (*View, error) {
	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.controller(sessionID).View(ctx)
}

// EndSession 结束会话，所有字段一并销毁
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	metrics.ActiveSessions.Dec()
	logger.Info(logger.WithSession(ctx, sessionID), "story session ended")
	return nil
}

// ExportFinalStory 导出最终故事
func (s *Service) ExportFinalStory(ctx context.Context, sessionID string) (string, string, error) {
	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return "", "", err
	}
	return s.controller(sessionID).ExportFinalStory(ctx)
}

// Dispatch 在会话锁内应用事件、刷新受保护步骤并发布步骤事件
func (s *Service) Dispatch(ctx context.Context, sessionID string, ev Event) (*DispatchResult, error) {
	ctx = logger.WithSession(ctx, sessionID)

	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		s.countEvent(ev, "busy")
		return nil, err
	}
	defer unlock()

	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		s.countEvent(ev, "not_found")
		return nil, err
	}

	ctrl := s.controller(sessionID)
	result := &DispatchResult{}

	applied, err := s.apply(ctx, ctrl, ev)
	result.collect(applied)
	if err != nil && !isGenerationFailure(err) {
		s.countEvent(ev, "rejected")
		return nil, err
	}

	refreshed, err := ctrl.Refresh(ctx)
	result.collect(refreshed)
	if err != nil {
		s.countEvent(ev, "error")
		return nil, err
	}

	if err := s.sessions.Touch(ctx, sessionID); err != nil {
		s.countEvent(ev, "error")
		return nil, err
	}

	s.publish(ctx, sessionID, result.Steps)

	view, err := ctrl.View(ctx)
	if err != nil {
		s.countEvent(ev, "error")
		return nil, err
	}
	result.View = view

	status := "ok"
	if len(result.Failures) > 0 {
		status = "generation_failed"
	}
	s.countEvent(ev, status)
	return result, nil
}

// Janitor 周期性清理过期会话并上报活跃会话数，直到 ctx 结束
func (s *Service) Janitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.sweep(ctx, now)
		}
	}
}

func (s *Service) sweep(ctx context.Context, now time.Time) {
	if sw, ok := s.sessions.(repository.Sweeper); ok {
		if n := sw.Sweep(ctx, now); n > 0 {
			logger.Info(ctx, "expired story sessions removed", "count", n)
		}
	}
	n, err := s.sessions.Count(ctx)
	if err != nil {
		logger.Warn(ctx, "failed to count story sessions", "error", err)
		return
	}
	metrics.ActiveSessions.Set(float64(n))
}

func (s *Service) controller(sessionID string) *Controller {
	return s.flow.Controller(sessionID, s.sessions.Store(sessionID))
}

// apply 返回的 StepResult 仅在触发生成的动作中非空
func (s *Service) apply(ctx context.Context, ctrl *Controller, ev Event) ([]StepResult, error) {
	switch ev.Type {
	case EventFieldChanged:
		return nil, s.applyField(ctx, ctrl, ev)
	case EventAction:
		return s.applyAction(ctx, ctrl, ev)
	default:
		return nil, errors.ErrInvalidParam.WithDetail(fmt.Sprintf("unknown event type %q", ev.Type))
	}
}

func (s *Service) applyField(ctx context.Context, ctrl *Controller, ev Event) error {
	switch ev.Field {
	case string(entity.FieldTheme):
		return ctrl.SetTheme(ctx, ev.Value)
	case string(entity.FieldCharacter1), string(entity.FieldCharacter2):
		if ev.Character == nil || ev.Character.IsEmpty() {
			return errors.ErrInvalidParam.WithDetail("character requires name, personality or background")
		}
		slot := 1
		if ev.Field == string(entity.FieldCharacter2) {
			slot = 2
		}
		return ctrl.SetCharacter(ctx, slot, *ev.Character)
	case string(entity.FieldParticipantAction):
		return ctrl.SetParticipantAction(ctx, ev.Value)
	case string(entity.FieldDecisionTaken):
		return ctrl.SetDecisionTaken(ctx, ev.Value)
	case string(entity.FieldRefinement):
		return ctrl.SetRefinement(ctx, ev.Value)
	case string(entity.FieldConclusion):
		return ctrl.SetConclusion(ctx, ev.Value)
	case FieldStartingSceneDraft:
		return nil
	default:
		return errors.ErrInvalidField.WithDetail(fmt.Sprintf("field %q cannot be set directly", ev.Field))
	}
}

func (s *Service) applyAction(ctx context.Context, ctrl *Controller, ev Event) ([]StepResult, error) {
	switch ev.Action {
	case ActionSaveStartingScene:
		return nil, ctrl.SaveStartingScene(ctx, ev.Text)
	case ActionGenerateAIStory:
		res, err := ctrl.GenerateAIStory(ctx)
		return []StepResult{res}, err
	case ActionGenerateFinalStory:
		res, err := ctrl.GenerateFinalStory(ctx)
		return []StepResult{res}, err
	case ActionReset:
		return nil, ctrl.Reset(ctx)
	// 只清除失败，重新生成由随后的 Refresh 完成
	case ActionRegenerateStoryQuestion:
		return nil, ctrl.ClearFailure(ctx, entity.FieldStoryQuestion)
	case ActionRegenerateDecisionQuestion:
		return nil, ctrl.ClearFailure(ctx, entity.FieldDecisionQuestion)
	default:
		return nil, errors.ErrInvalidAction.WithDetail(fmt.Sprintf("action %q is not supported", ev.Action))
	}
}

func (r *DispatchResult) collect(steps []StepResult) {
	for _, st := range steps {
		if st.Outcome == "" {
			continue
		}
		r.Steps = append(r.Steps, st)
		if st.Failure != nil {
			r.Failures = append(r.Failures, st.Failure)
		}
	}
}

func isGenerationFailure(err error) bool {
	var gf *GenerationFailure
	return stderrors.As(err, &gf)
}

func (s *Service) publish(ctx context.Context, sessionID string, steps []StepResult) {
	if s.publisher == nil {
		return
	}
	for _, st := range steps {
		if st.Outcome != entity.StepOutcomeGenerated && st.Outcome != entity.StepOutcomeFailed {
			continue
		}
		ev := &entity.StepEvent{
			SessionID:  sessionID,
			Step:       st.Step,
			Outcome:    st.Outcome,
			DurationMs: st.Duration.Milliseconds(),
			Words:      st.Words,
			OccurredAt: time.Now(),
		}
		if st.Failure != nil {
			ev.Error = st.Failure.Cause
		}
		if err := s.publisher.PublishStep(ctx, ev); err != nil {
			logger.Warn(ctx, "failed to publish story step event", "step", st.Step, "error", err)
		}
	}
}

func (s *Service) countEvent(ev Event, status string) {
	typ, name := string(ev.Type), ev.Name()
	// 事件名来自客户端输入，未知值统一归为 other，避免标签基数失控
	if !knownEventNames[name] || (ev.Type != EventFieldChanged && ev.Type != EventAction) {
		typ, name = "other", "other"
	}
	metrics.SessionEventsTotal.WithLabelValues(typ, name, status).Inc()
}
