// Package entity 定义领域实体
package entity

import (
	"time"
)

// FieldKey 会话字段键
type FieldKey string

const (
	FieldTheme             FieldKey = "theme"
	FieldCharacter1        FieldKey = "character_1"
	FieldCharacter2        FieldKey = "character_2"
	FieldStartingScene     FieldKey = "starting_scene"
	FieldStoryQuestion     FieldKey = "story_question"
	FieldParticipantAction FieldKey = "participant_action"
	FieldAIStory           FieldKey = "ai_story"
	FieldDecisionQuestion  FieldKey = "decision_question"
	FieldDecisionTaken     FieldKey = "decision_taken"
	FieldRefinement        FieldKey = "refinement"
	FieldConclusion        FieldKey = "conclusion"
	FieldFinalStory        FieldKey = "final_story"
)

// FieldKeys 按流程顺序排列的全部字段
var FieldKeys = []FieldKey{
	FieldTheme,
	FieldCharacter1,
	FieldCharacter2,
	FieldStartingScene,
	FieldStoryQuestion,
	FieldParticipantAction,
	FieldAIStory,
	FieldDecisionQuestion,
	FieldDecisionTaken,
	FieldRefinement,
	FieldConclusion,
	FieldFinalStory,
}

// IsValid 是否为已知字段
func (k FieldKey) IsValid() bool {
	for _, key := range FieldKeys {
		if key == k {
			return true
		}
	}
	return false
}

// IsGenerated 是否由模型生成
func (k FieldKey) IsGenerated() bool {
	switch k {
	case FieldStoryQuestion, FieldAIStory, FieldDecisionQuestion, FieldFinalStory:
		return true
	default:
		return false
	}
}

// IsCharacter 是否为角色字段
func (k FieldKey) IsCharacter() bool {
	return k == FieldCharacter1 || k == FieldCharacter2
}

// FieldState 字段状态
type FieldState string

const (
	FieldStateUnset            FieldState = "unset"
	FieldStateUserSet          FieldState = "user_set"
	FieldStateGenerated        FieldState = "generated"
	FieldStateGenerationFailed FieldState = "generation_failed"
)

// ErrorMarkerPrefix 生成失败时写入字段值的前缀
const ErrorMarkerPrefix = "Error: "

// Field 会话中的一个字段值
type Field struct {
	Value     string     `json:"value"`
	Character *Character `json:"character,omitempty"`
	State     FieldState `json:"state"`
	Error     string     `json:"error,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewUserField 用户输入的字段
func NewUserField(value string) Field {
	return Field{Value: value, State: FieldStateUserSet, UpdatedAt: time.Now()}
}

// NewCharacterField 用户输入的角色字段
func NewCharacterField(c Character) Field {
	return Field{Character: &c, State: FieldStateUserSet, UpdatedAt: time.Now()}
}

// NewGeneratedField 模型生成成功的字段
func NewGeneratedField(value string) Field {
	return Field{Value: value, State: FieldStateGenerated, UpdatedAt: time.Now()}
}

// NewFailedField 生成失败的字段，值为可见的错误标记
func NewFailedField(cause string) Field {
	return Field{
		Value:     ErrorMarkerPrefix + cause,
		State:     FieldStateGenerationFailed,
		Error:     cause,
		UpdatedAt: time.Now(),
	}
}

// Satisfied 字段是否可作为后续步骤的前置条件
// 生成失败的字段不满足前置条件
func (f Field) Satisfied() bool {
	return f.State == FieldStateUserSet || f.State == FieldStateGenerated
}

// Failed 是否生成失败
func (f Field) Failed() bool {
	return f.State == FieldStateGenerationFailed
}

// Snapshot 某一时刻全部字段的只读拷贝
type Snapshot map[FieldKey]Field

// Field 获取字段，不存在时返回 unset 状态
func (s Snapshot) Field(key FieldKey) Field {
	if f, ok := s[key]; ok {
		return f
	}
	return Field{State: FieldStateUnset}
}

// Satisfied 字段是否存在且有效
func (s Snapshot) Satisfied(key FieldKey) bool {
	f, ok := s[key]
	return ok && f.Satisfied()
}

// Text 用于提示词拼装的字段文本，缺失或失败时为空串
func (s Snapshot) Text(key FieldKey) string {
	f, ok := s[key]
	if !ok || !f.Satisfied() {
		return ""
	}
	return f.Value
}

// Character 获取角色，缺失时返回空角色
func (s Snapshot) Character(key FieldKey) Character {
	f, ok := s[key]
	if !ok || !f.Satisfied() || f.Character == nil {
		return Character{}
	}
	return *f.Character
}

// Theme 获取主题，缺失时为空
func (s Snapshot) Theme() Theme {
	return Theme(s.Text(FieldTheme))
}
