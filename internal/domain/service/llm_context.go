package service

import (
	"context"
	"strings"
)

type llmCtxKey string

const (
	llmCtxKeyWorkflow llmCtxKey = "llm_workflow"
	llmCtxKeyProvider llmCtxKey = "llm_provider"
	llmCtxKeySession  llmCtxKey = "llm_session"
)

const unknown = "unknown"

func withValue(ctx context.Context, key llmCtxKey, value string) context.Context {
	if ctx == nil {
		return nil
	}
	v := strings.TrimSpace(value)
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func valueFrom(ctx context.Context, key llmCtxKey) string {
	if ctx == nil {
		return unknown
	}
	s, ok := ctx.Value(key).(string)
	if !ok || strings.TrimSpace(s) == "" {
		return unknown
	}
	return s
}

// WithWorkflow 标记本次 LLM 调用所属的流程步骤，用于指标与日志
func WithWorkflow(ctx context.Context, workflow string) context.Context {
	return withValue(ctx, llmCtxKeyWorkflow, workflow)
}

func WithProvider(ctx context.Context, provider string) context.Context {
	return withValue(ctx, llmCtxKeyProvider, provider)
}

func WithSession(ctx context.Context, sessionID string) context.Context {
	return withValue(ctx, llmCtxKeySession, sessionID)
}

func WithWorkflowProvider(ctx context.Context, workflow, provider string) context.Context {
	return WithProvider(WithWorkflow(ctx, workflow), provider)
}

func WorkflowFromContext(ctx context.Context) string {
	return valueFrom(ctx, llmCtxKeyWorkflow)
}

func ProviderFromContext(ctx context.Context) string {
	return valueFrom(ctx, llmCtxKeyProvider)
}

func SessionFromContext(ctx context.Context) string {
	return valueFrom(ctx, llmCtxKeySession)
}
