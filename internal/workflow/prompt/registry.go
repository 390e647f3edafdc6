package prompt

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

type PromptID string

const (
	PromptStoryQuestionV1    PromptID = "story_question_v1"
	PromptAIStoryV1          PromptID = "ai_story_v1"
	PromptDecisionQuestionV1 PromptID = "decision_question_v1"
	PromptFinalStoryV1       PromptID = "final_story_v1"
)

type Registry struct {
	mu    sync.RWMutex
	cache map[PromptID]einoprompt.ChatTemplate
}

func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[PromptID]einoprompt.ChatTemplate),
	}
}

func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	path, err := resolvePromptFile(id)
	if err != nil {
		return nil, err
	}
	user, err := readEmbeddedText(path)
	if err != nil {
		return nil, err
	}

	// 原始流程只发送一条用户消息，没有 system 提示
	tpl := einoprompt.FromMessages(schema.FString, schema.UserMessage(user))
	r.cache[id] = tpl
	return tpl, nil
}

// Render 渲染模板为单个提示词字符串
func (r *Registry) Render(ctx context.Context, id PromptID, vars map[string]any) (string, error) {
	tpl, err := r.ChatTemplate(id)
	if err != nil {
		return "", err
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("format prompt %s: %w", id, err)
	}

	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m != nil {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func resolvePromptFile(id PromptID) (string, error) {
	switch id {
	case PromptStoryQuestionV1, PromptAIStoryV1, PromptDecisionQuestionV1, PromptFinalStoryV1:
		return "templates/" + string(id) + ".txt", nil
	default:
		return "", fmt.Errorf("unknown prompt id: %s", id)
	}
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
