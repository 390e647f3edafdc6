package dto

import (
	"github.com/gin-gonic/gin"

	"z-story-flow-api/internal/application/storyflow"
	"z-story-flow-api/internal/domain/entity"
)

// CharacterRequest 角色输入
type CharacterRequest struct {
	Name        string `json:"name" binding:"max=200"`
	Personality string `json:"personality" binding:"max=1000"`
	Background  string `json:"background" binding:"max=2000"`
}

// ToEntity 转换为领域角色
func (r *CharacterRequest) ToEntity() entity.Character {
	return entity.Character{
		Name:        r.Name,
		Personality: r.Personality,
		Background:  r.Background,
	}
}

// SetFieldRequest 设置字段请求
// 角色字段使用 name/personality/background，其它字段使用 value
type SetFieldRequest struct {
	Value string `json:"value" binding:"max=20000"`
	CharacterRequest
}

// ToEvent 构造字段变更事件
func (r *SetFieldRequest) ToEvent(field string) storyflow.Event {
	if entity.FieldKey(field).IsCharacter() {
		return storyflow.CharacterChanged(field, r.CharacterRequest.ToEntity())
	}
	return storyflow.FieldChanged(field, r.Value)
}

// ActionRequest 动作请求
type ActionRequest struct {
	Text string `json:"text" binding:"max=20000"`
}

// EventRequest 通用事件请求，与交互层事件一一对应
type EventRequest struct {
	Type      string            `json:"type" binding:"required,oneof=field_changed action"`
	Field     string            `json:"field,omitempty"`
	Value     string            `json:"value,omitempty" binding:"max=20000"`
	Character *CharacterRequest `json:"character,omitempty"`
	Action    string            `json:"action,omitempty"`
	Text      string            `json:"text,omitempty" binding:"max=20000"`
}

// ToEvent 转换为交互层事件
func (r *EventRequest) ToEvent() storyflow.Event {
	ev := storyflow.Event{
		Type:   storyflow.EventType(r.Type),
		Field:  r.Field,
		Value:  r.Value,
		Action: r.Action,
		Text:   r.Text,
	}
	if r.Character != nil {
		c := r.Character.ToEntity()
		ev.Character = &c
	}
	return ev
}

// BindSessionID 从 URI 绑定会话 ID
func BindSessionID(c *gin.Context) string {
	return c.Param("sid")
}
