// Package config 提供配置加载和管理功能
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Session       SessionConfig       `yaml:"session" mapstructure:"session"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Flow          FlowConfig          `yaml:"flow" mapstructure:"flow"`
	Messaging     MessagingConfig     `yaml:"messaging" mapstructure:"messaging"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name" validate:"required"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env" validate:"oneof=development test staging production"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// 会话存储后端
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// SessionConfig 故事会话配置
type SessionConfig struct {
	// Backend 会话状态存储后端：memory（单进程）或 redis（多副本共享）
	Backend string `yaml:"backend" mapstructure:"backend" validate:"oneof=memory redis"`
	// TTL 会话空闲过期时间，每次写入都会刷新
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl" validate:"gt=0"`
	// SweepInterval 内存后端清理过期会话的周期
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
	// LockTTL 单会话写锁的最长持有时间，需覆盖一次完整的生成调用
	LockTTL time.Duration `yaml:"lock_ttl" mapstructure:"lock_ttl" validate:"gt=0"`
	// LockWait 等待会话写锁的最长时间
	LockWait time.Duration `yaml:"lock_wait" mapstructure:"lock_wait" validate:"gt=0"`
	// KeyPrefix Redis 键前缀
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider" validate:"required"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers" validate:"required,dive"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	Model       string        `yaml:"model" mapstructure:"model" validate:"required"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature" validate:"min=0,max=2"`
	TopP        float64       `yaml:"top_p" mapstructure:"top_p" validate:"min=0,max=1"`
	TopK        int           `yaml:"top_k" mapstructure:"top_k" validate:"min=0"`
	// Timeout 单次补全的 HTTP 超时，需小于 session.lock_ttl
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// FlowConfig 故事流程配置
type FlowConfig struct {
	Provider string          `yaml:"provider" mapstructure:"provider"`
	Steps    FlowStepsConfig `yaml:"steps" mapstructure:"steps"`
}

// FlowStepsConfig 各生成步骤的输出上限
type FlowStepsConfig struct {
	StoryQuestion    StepConfig `yaml:"story_question" mapstructure:"story_question"`
	AIStory          StepConfig `yaml:"ai_story" mapstructure:"ai_story"`
	DecisionQuestion StepConfig `yaml:"decision_question" mapstructure:"decision_question"`
	FinalStory       StepConfig `yaml:"final_story" mapstructure:"final_story"`
}

// StepConfig 单步生成配置
type StepConfig struct {
	// MaxTokens 输出 token 上限，仅是天花板而非目标；0 表示不设上限
	MaxTokens int `yaml:"max_tokens" mapstructure:"max_tokens" validate:"min=0"`
}

// MessagingConfig 消息队列配置
type MessagingConfig struct {
	RedisStream RedisStreamConfig `yaml:"redis_stream" mapstructure:"redis_stream"`
}

// RedisStreamConfig Redis Stream 配置
type RedisStreamConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Stream  string `yaml:"stream" mapstructure:"stream"`
	MaxLen  int    `yaml:"max_len" mapstructure:"max_len"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json text"`
	Output string `yaml:"output" mapstructure:"output" validate:"oneof=stdout stderr"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Exporter   string  `yaml:"exporter" mapstructure:"exporter"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond int  `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"min=0"`
	Burst             int  `yaml:"burst" mapstructure:"burst" validate:"min=0"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}

// Provider 返回流程使用的 LLM 提供商名称及其配置
func (c *Config) Provider() (string, ProviderConfig, bool) {
	name := c.Flow.Provider
	if name == "" {
		name = c.LLM.DefaultProvider
	}
	p, ok := c.LLM.Providers[name]
	return name, p, ok
}
