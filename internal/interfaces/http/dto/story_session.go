package dto

import (
	"time"

	"z-story-flow-api/internal/application/storyflow"
	"z-story-flow-api/internal/domain/entity"
)

// CharacterResponse 角色
type CharacterResponse struct {
	Name        string `json:"name"`
	Personality string `json:"personality"`
	Background  string `json:"background"`
}

// FieldResponse 字段状态
type FieldResponse struct {
	Key                  string             `json:"key"`
	Value                string             `json:"value"`
	Character            *CharacterResponse `json:"character,omitempty"`
	State                string             `json:"state"`
	Error                string             `json:"error,omitempty"`
	Placeholder          string             `json:"placeholder,omitempty"`
	PlaceholderCharacter *CharacterResponse `json:"placeholder_character,omitempty"`
	UpdatedAt            string             `json:"updated_at,omitempty"`
}

// StepResponse 流程步骤
type StepResponse struct {
	Number int      `json:"number"`
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
	Status string   `json:"status"`
}

// ViewResponse 会话视图
type ViewResponse struct {
	SessionID string           `json:"session_id"`
	Fields    []*FieldResponse `json:"fields"`
	Steps     []*StepResponse  `json:"steps"`
}

// SessionResponse 会话元数据
type SessionResponse struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CreateSessionResponse 创建会话响应
type CreateSessionResponse struct {
	Session *SessionResponse `json:"session"`
	View    *ViewResponse    `json:"view"`
}

// StepResultResponse 本次交互执行的生成步骤
type StepResultResponse struct {
	Step       string `json:"step"`
	Outcome    string `json:"outcome"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Words      int    `json:"words,omitempty"`
	Error      string `json:"error,omitempty"`
}

// DispatchResponse 事件分发响应
type DispatchResponse struct {
	View  *ViewResponse         `json:"view"`
	Steps []*StepResultResponse `json:"steps,omitempty"`
}

// ToSessionResponse 转换会话元数据
func ToSessionResponse(s *entity.StorySession) *SessionResponse {
	if s == nil {
		return nil
	}
	return &SessionResponse{
		ID:        s.ID,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
		UpdatedAt: s.UpdatedAt.Format(time.RFC3339),
	}
}

func toCharacterResponse(c *entity.Character) *CharacterResponse {
	if c == nil {
		return nil
	}
	return &CharacterResponse{
		Name:        c.Name,
		Personality: c.Personality,
		Background:  c.Background,
	}
}

// ToViewResponse 转换会话视图
func ToViewResponse(v *storyflow.View) *ViewResponse {
	if v == nil {
		return nil
	}
	resp := &ViewResponse{
		SessionID: v.SessionID,
		Fields:    make([]*FieldResponse, 0, len(v.Fields)),
		Steps:     make([]*StepResponse, 0, len(v.Steps)),
	}
	for i := range v.Fields {
		f := &v.Fields[i]
		fr := &FieldResponse{
			Key:                  string(f.Key),
			Value:                f.Value,
			Character:            toCharacterResponse(f.Character),
			State:                string(f.State),
			Error:                f.Error,
			Placeholder:          f.Placeholder,
			PlaceholderCharacter: toCharacterResponse(f.PlaceholderCharacter),
		}
		if !f.UpdatedAt.IsZero() {
			fr.UpdatedAt = f.UpdatedAt.Format(time.RFC3339)
		}
		resp.Fields = append(resp.Fields, fr)
	}
	for _, s := range v.Steps {
		fields := make([]string, 0, len(s.Fields))
		for _, k := range s.Fields {
			fields = append(fields, string(k))
		}
		resp.Steps = append(resp.Steps, &StepResponse{
			Number: s.Number,
			Name:   s.Name,
			Fields: fields,
			Status: string(s.Status),
		})
	}
	return resp
}

// ToDispatchResponse 转换分发结果，跳过的步骤不返回
func ToDispatchResponse(r *storyflow.DispatchResult) *DispatchResponse {
	if r == nil {
		return nil
	}
	resp := &DispatchResponse{View: ToViewResponse(r.View)}
	for _, st := range r.Steps {
		if st.Outcome == entity.StepOutcomeSkipped {
			continue
		}
		sr := &StepResultResponse{
			Step:       string(st.Step),
			Outcome:    string(st.Outcome),
			DurationMs: st.Duration.Milliseconds(),
			Words:      st.Words,
		}
		if st.Failure != nil {
			sr.Error = st.Failure.Cause
		}
		resp.Steps = append(resp.Steps, sr)
	}
	return resp
}
