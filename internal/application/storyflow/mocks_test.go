package storyflow

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"

	"z-story-flow-api/internal/domain/entity"
	workflowport "z-story-flow-api/internal/workflow/port"
)

// MockCompleter 补全服务 mock
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, req *workflowport.CompletionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// requests 返回指定步骤收到的全部请求
func (m *MockCompleter) requests(step entity.FieldKey) []*workflowport.CompletionRequest {
	var out []*workflowport.CompletionRequest
	for _, c := range m.Calls {
		if c.Method != "Complete" {
			continue
		}
		if req, ok := c.Arguments.Get(1).(*workflowport.CompletionRequest); ok && req.Workflow == string(step) {
			out = append(out, req)
		}
	}
	return out
}

// MockPublisher 步骤事件发布 mock
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishStep(ctx context.Context, ev *entity.StepEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func forStep(step entity.FieldKey) interface{} {
	return mock.MatchedBy(func(req *workflowport.CompletionRequest) bool {
		return req != nil && req.Workflow == string(step)
	})
}

func forStepWith(step entity.FieldKey, fragment string) interface{} {
	return mock.MatchedBy(func(req *workflowport.CompletionRequest) bool {
		return req != nil && req.Workflow == string(step) && strings.Contains(req.Prompt, fragment)
	})
}
