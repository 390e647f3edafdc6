package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmctx "z-story-flow-api/internal/domain/service"
	workflowport "z-story-flow-api/internal/workflow/port"
)

type fakeChatModel struct {
	reply    string
	err      error
	messages []*schema.Message
	options  *model.Options
	workflow string
	provider string
}

func (m *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.messages = input
	m.options = model.GetCommonOptions(&model.Options{}, opts...)
	m.workflow = llmctx.WorkflowFromContext(ctx)
	m.provider = llmctx.ProviderFromContext(ctx)
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

type fakeFactory struct {
	model *fakeChatModel
	name  string
}

func (f *fakeFactory) Get(_ context.Context, name string) (model.BaseChatModel, error) {
	f.name = name
	return f.model, nil
}

func ptr[T any](v T) *T { return &v }

func TestCompletionChainSendsPromptAndOptions(t *testing.T) {
	fm := &fakeChatModel{reply: "  What should they do?  "}
	factory := &fakeFactory{model: fm}
	c := NewCompletionChain(factory, "gemini", Sampling{
		Temperature: ptr(float32(1.0)),
		TopP:        ptr(float32(0.9)),
		TopK:        ptr(40),
	})

	out, err := c.Complete(context.Background(), &workflowport.CompletionRequest{
		Workflow:  "story_question",
		Prompt:    "Generate ONE question",
		MaxTokens: ptr(150),
	})
	require.NoError(t, err)

	assert.Equal(t, "What should they do?", out)
	assert.Equal(t, "gemini", factory.name)
	require.Len(t, fm.messages, 1)
	assert.Equal(t, schema.User, fm.messages[0].Role)
	assert.Equal(t, "Generate ONE question", fm.messages[0].Content)

	require.NotNil(t, fm.options.MaxTokens)
	assert.Equal(t, 150, *fm.options.MaxTokens)
	require.NotNil(t, fm.options.Temperature)
	assert.Equal(t, float32(1.0), *fm.options.Temperature)
	require.NotNil(t, fm.options.TopP)
	assert.Equal(t, float32(0.9), *fm.options.TopP)

	assert.Equal(t, "story_question", fm.workflow)
	assert.Equal(t, "gemini", fm.provider)
}

func TestCompletionChainUnboundedOmitsMaxTokens(t *testing.T) {
	fm := &fakeChatModel{reply: "Once upon a time"}
	c := NewCompletionChain(&fakeFactory{model: fm}, "", Sampling{})

	_, err := c.Complete(context.Background(), &workflowport.CompletionRequest{Workflow: "final_story", Prompt: "story"})
	require.NoError(t, err)
	assert.Nil(t, fm.options.MaxTokens)
	assert.Nil(t, fm.options.Temperature)
}

func TestCompletionChainErrors(t *testing.T) {
	ctx := context.Background()

	c := NewCompletionChain(&fakeFactory{model: &fakeChatModel{err: errors.New("quota exceeded")}}, "gemini", Sampling{})
	_, err := c.Complete(ctx, &workflowport.CompletionRequest{Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")

	c = NewCompletionChain(&fakeFactory{model: &fakeChatModel{reply: "   "}}, "gemini", Sampling{})
	_, err = c.Complete(ctx, &workflowport.CompletionRequest{Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty llm response")

	_, err = c.Complete(ctx, &workflowport.CompletionRequest{Prompt: " "})
	assert.Error(t, err)

	var nilChain *CompletionChain
	_, err = nilChain.Complete(ctx, &workflowport.CompletionRequest{Prompt: "p"})
	assert.Error(t, err)
}
