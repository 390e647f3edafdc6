package storyflow

import (
	"z-story-flow-api/internal/domain/entity"
)

// EventType 交互层事件类型
type EventType string

const (
	EventFieldChanged EventType = "field_changed"
	EventAction       EventType = "action"
)

// 动作名
const (
	ActionSaveStartingScene  = "save_starting_scene"
	ActionGenerateAIStory    = "generate_ai_story"
	ActionGenerateFinalStory = "generate_final_story"
	ActionReset              = "reset"

	ActionRegenerateStoryQuestion    = "regenerate_story_question"
	ActionRegenerateDecisionQuestion = "regenerate_decision_question"
)

// FieldStartingSceneDraft 开场输入框的键入事件，只有显式保存才提交
const FieldStartingSceneDraft = "starting_scene_draft"

// Event 交互层产生的离散事件
type Event struct {
	Type EventType
	// Field/Value/Character 用于 field_changed
	Field     string
	Value     string
	Character *entity.Character
	// Action/Text 用于 action，Text 为保存开场时提交的文本
	Action string
	Text   string
}

// FieldChanged 构造字段变更事件
func FieldChanged(field, value string) Event {
	return Event{Type: EventFieldChanged, Field: field, Value: value}
}

// CharacterChanged 构造角色变更事件
func CharacterChanged(field string, c entity.Character) Event {
	return Event{Type: EventFieldChanged, Field: field, Character: &c}
}

// Action 构造动作事件
func Action(name, text string) Event {
	return Event{Type: EventAction, Action: name, Text: text}
}

// Name 事件名，用于指标
func (e Event) Name() string {
	if e.Type == EventAction {
		return e.Action
	}
	return e.Field
}

var knownEventNames = map[string]bool{
	string(entity.FieldTheme):             true,
	string(entity.FieldCharacter1):        true,
	string(entity.FieldCharacter2):        true,
	string(entity.FieldParticipantAction): true,
	string(entity.FieldDecisionTaken):     true,
	string(entity.FieldRefinement):        true,
	string(entity.FieldConclusion):        true,
	FieldStartingSceneDraft:               true,
	ActionSaveStartingScene:               true,
	ActionGenerateAIStory:                 true,
	ActionGenerateFinalStory:              true,
	ActionReset:                           true,
	ActionRegenerateStoryQuestion:         true,
	ActionRegenerateDecisionQuestion:      true,
}
