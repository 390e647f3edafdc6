package storyflow

import (
	"context"
	"time"

	"z-story-flow-api/internal/domain/entity"
)

// StepStatus 流程步骤的展示状态
type StepStatus string

const (
	StepStatusPending StepStatus = "pending"
	StepStatusReady   StepStatus = "ready"
	StepStatusDone    StepStatus = "done"
	StepStatusFailed  StepStatus = "failed"
)

// FieldView 单个字段的展示信息
type FieldView struct {
	Key                  entity.FieldKey
	Value                string
	Character            *entity.Character
	State                entity.FieldState
	Error                string
	Placeholder          string
	PlaceholderCharacter *entity.Character
	UpdatedAt            time.Time
}

// StepView 单个流程步骤
type StepView struct {
	Number int
	Name   string
	Fields []entity.FieldKey
	Status StepStatus
}

// View 会话当前状态，供交互层渲染
type View struct {
	SessionID string
	Fields    []FieldView
	Steps     []StepView
}

type stepDef struct {
	name   string
	fields []entity.FieldKey
	// gate 非空时为受保护的生成步骤
	gate entity.FieldKey
}

var stepDefs = []stepDef{
	{name: "theme", fields: []entity.FieldKey{entity.FieldTheme}},
	{name: "characters", fields: []entity.FieldKey{entity.FieldCharacter1, entity.FieldCharacter2}},
	{name: "starting_scene", fields: []entity.FieldKey{entity.FieldStartingScene}},
	{name: "story_question", fields: []entity.FieldKey{entity.FieldStoryQuestion}, gate: entity.FieldStartingScene},
	{name: "participant_action", fields: []entity.FieldKey{entity.FieldParticipantAction}},
	{name: "ai_story", fields: []entity.FieldKey{entity.FieldAIStory}},
	{name: "decision_question", fields: []entity.FieldKey{entity.FieldDecisionQuestion}, gate: entity.FieldAIStory},
	{name: "decision_refinement_conclusion", fields: []entity.FieldKey{entity.FieldDecisionTaken, entity.FieldRefinement, entity.FieldConclusion}},
	{name: "final_story", fields: []entity.FieldKey{entity.FieldFinalStory}},
}

// View 读取快照构造展示信息
func (c *Controller) View(ctx context.Context) (*View, error) {
	snap, err := c.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return BuildView(c.sessionID, snap), nil
}

// BuildView 快照转换为展示信息
func BuildView(sessionID string, snap entity.Snapshot) *View {
	v := &View{
		SessionID: sessionID,
		Fields:    make([]FieldView, 0, len(entity.FieldKeys)),
		Steps:     make([]StepView, 0, len(stepDefs)),
	}

	for _, key := range entity.FieldKeys {
		f := snap.Field(key)
		fv := FieldView{
			Key:         key,
			Value:       f.Value,
			Character:   f.Character,
			State:       f.State,
			Error:       f.Error,
			Placeholder: entity.Placeholder(key),
			UpdatedAt:   f.UpdatedAt,
		}
		if pc, ok := entity.PlaceholderCharacter(key); ok {
			fv.PlaceholderCharacter = &pc
		}
		v.Fields = append(v.Fields, fv)
	}

	for i, def := range stepDefs {
		v.Steps = append(v.Steps, StepView{
			Number: i + 1,
			Name:   def.name,
			Fields: def.fields,
			Status: stepStatus(def, snap),
		})
	}
	return v
}

func stepStatus(def stepDef, snap entity.Snapshot) StepStatus {
	done := true
	for _, key := range def.fields {
		f := snap.Field(key)
		if f.Failed() {
			return StepStatusFailed
		}
		if !f.Satisfied() {
			done = false
		}
	}
	switch {
	case done:
		return StepStatusDone
	case def.gate != "" && !snap.Satisfied(def.gate):
		return StepStatusPending
	default:
		return StepStatusReady
	}
}
