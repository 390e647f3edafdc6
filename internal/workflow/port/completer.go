package port

import "context"

// CompletionRequest 一次文本补全请求
type CompletionRequest struct {
	// Workflow 调用所属步骤，用于指标与日志
	Workflow string
	Prompt   string
	// MaxTokens 输出上限，nil 表示不设上限
	MaxTokens *int
}

// Completer 补全服务：输入提示词，返回生成文本或失败
type Completer interface {
	Complete(ctx context.Context, req *CompletionRequest) (string, error)
}
