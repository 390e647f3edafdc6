package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	llmctx "z-story-flow-api/internal/domain/service"
	workflowport "z-story-flow-api/internal/workflow/port"
)

var _ workflowport.Completer = (*CompletionChain)(nil)

// Sampling 进程级采样参数
type Sampling struct {
	Temperature *float32
	TopP        *float32
	// TopK 非 OpenAI 标准参数，通过 extra fields 透传；nil 表示不发送
	TopK *int
}

// CompletionChain 将提示词包装为单条用户消息并调用 ChatModel
type CompletionChain struct {
	factory  workflowport.ChatModelFactory
	provider string
	sampling Sampling

	chainOnce sync.Once
	chain     compose.Runnable[*workflowport.CompletionRequest, string]
	chainErr  error
}

func NewCompletionChain(factory workflowport.ChatModelFactory, provider string, sampling Sampling) *CompletionChain {
	return &CompletionChain{
		factory:  factory,
		provider: strings.TrimSpace(provider),
		sampling: sampling,
	}
}

func (c *CompletionChain) Complete(ctx context.Context, req *workflowport.CompletionRequest) (string, error) {
	if c == nil || c.factory == nil {
		return "", fmt.Errorf("llm factory not configured")
	}
	if req == nil {
		return "", fmt.Errorf("request is nil")
	}

	chain, err := c.getChain()
	if err != nil {
		return "", err
	}
	return chain.Invoke(ctx, req)
}

type completionChainState struct {
	In       *workflowport.CompletionRequest
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *CompletionChain) getChain() (compose.Runnable[*workflowport.CompletionRequest, string], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *CompletionChain) buildChain(ctx context.Context) (compose.Runnable[*workflowport.CompletionRequest, string], error) {
	chain := compose.NewChain[*workflowport.CompletionRequest, string]()

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, in *workflowport.CompletionRequest) (*completionChainState, error) {
			if in == nil {
				return nil, fmt.Errorf("input is nil")
			}
			if strings.TrimSpace(in.Prompt) == "" {
				return nil, fmt.Errorf("prompt is empty")
			}
			return &completionChainState{
				In:       in,
				Messages: []*schema.Message{schema.UserMessage(in.Prompt)},
			}, nil
		}),
		compose.WithNodeName("completion.init"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *completionChainState) (*completionChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}

			ctx = llmctx.WithWorkflowProvider(ctx, st.In.Workflow, c.provider)
			chatModel, err := c.factory.Get(ctx, c.provider)
			if err != nil {
				return nil, err
			}

			outMsg, err := chatModel.Generate(ctx, st.Messages, c.modelOptions(st.In)...)
			if err != nil {
				return nil, err
			}
			if outMsg == nil {
				return nil, fmt.Errorf("empty llm response")
			}
			st.OutMsg = outMsg
			return st, nil
		}),
		compose.WithNodeName("completion.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *completionChainState) (string, error) {
			if st == nil || st.OutMsg == nil {
				return "", fmt.Errorf("state is nil")
			}
			text := strings.TrimSpace(st.OutMsg.Content)
			if text == "" {
				return "", fmt.Errorf("empty llm response")
			}
			return text, nil
		}),
		compose.WithNodeName("completion.finalize"),
	)

	return chain.Compile(ctx)
}

func (c *CompletionChain) modelOptions(in *workflowport.CompletionRequest) []model.Option {
	opts := make([]model.Option, 0, 4)
	if c.sampling.Temperature != nil {
		opts = append(opts, model.WithTemperature(*c.sampling.Temperature))
	}
	if c.sampling.TopP != nil {
		opts = append(opts, model.WithTopP(*c.sampling.TopP))
	}
	if in != nil && in.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if c.sampling.TopK != nil {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"top_k": *c.sampling.TopK,
		}))
	}
	return opts
}
