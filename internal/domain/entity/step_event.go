package entity

import "time"

// StepOutcome 流程步骤执行结果
type StepOutcome string

const (
	StepOutcomeSkipped   StepOutcome = "skipped"
	StepOutcomeCached    StepOutcome = "cached"
	StepOutcomeGenerated StepOutcome = "generated"
	StepOutcomeFailed    StepOutcome = "failed"
)

// StepEvent 一次生成步骤的完成事件
type StepEvent struct {
	SessionID  string      `json:"session_id"`
	Step       FieldKey    `json:"step"`
	Outcome    StepOutcome `json:"outcome"`
	DurationMs int64       `json:"duration_ms"`
	Words      int         `json:"words"`
	Error      string      `json:"error,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}
