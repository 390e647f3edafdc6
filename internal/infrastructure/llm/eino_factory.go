// Package llm 提供基于 Eino 的 ChatModel 工厂
package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"z-story-flow-api/internal/config"
	"z-story-flow-api/internal/workflow/chain"
	workflowport "z-story-flow-api/internal/workflow/port"
)

var _ workflowport.ChatModelFactory = (*EinoFactory)(nil)

// EinoFactory 管理多个 Eino ChatModel 客户端实例
type EinoFactory struct {
	config *config.LLMConfig
	models map[string]model.BaseChatModel
	mu     sync.RWMutex
}

// NewEinoFactory 创建 Eino LLM 工厂
func NewEinoFactory(cfg *config.Config) *EinoFactory {
	return &EinoFactory{
		config: &cfg.LLM,
		models: make(map[string]model.BaseChatModel),
	}
}

// Get 获取指定名称的 ChatModel，如果未指定则返回默认客户端
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	if name == "" {
		name = f.config.DefaultProvider
	}

	f.mu.RLock()
	m, ok := f.models[name]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	// 惰性加载
	f.mu.Lock()
	defer f.mu.Unlock()

	// 再次检查防止竞态
	if m, ok = f.models[name]; ok {
		return m, nil
	}

	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}

	// 输出上限按步骤在调用时传入，这里不设默认值，否则无法表达“无上限”
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  providerCfg.APIKey,
		BaseURL: providerCfg.BaseURL,
		Model:   providerCfg.Model,
		Timeout: providerCfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model for %s: %w", name, err)
	}

	f.models[name] = chatModel
	return chatModel, nil
}

// Default 返回默认 ChatModel
func (f *EinoFactory) Default(ctx context.Context) (model.BaseChatModel, error) {
	return f.Get(ctx, "")
}

// NewCompleter 按配置构建补全服务
func NewCompleter(cfg *config.Config, factory workflowport.ChatModelFactory) (workflowport.Completer, error) {
	name, providerCfg, ok := cfg.Provider()
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}
	return chain.NewCompletionChain(factory, name, SamplingFromConfig(providerCfg)), nil
}

// SamplingFromConfig 提供商配置转换为采样参数，零值表示不发送
func SamplingFromConfig(p config.ProviderConfig) chain.Sampling {
	var s chain.Sampling
	if p.Temperature > 0 {
		s.Temperature = ptrFloat32(float32(p.Temperature))
	}
	if p.TopP > 0 {
		s.TopP = ptrFloat32(float32(p.TopP))
	}
	if p.TopK > 0 {
		k := p.TopK
		s.TopK = &k
	}
	return s
}

func ptrFloat32(f float32) *float32 {
	return &f
}
