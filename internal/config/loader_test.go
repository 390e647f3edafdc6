package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadFromDefaultsOnly(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	dir := t.TempDir()

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.App.Env)
	assert.Equal(t, SessionBackendMemory, cfg.Session.Backend)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 150, cfg.Flow.Steps.StoryQuestion.MaxTokens)
	assert.Equal(t, 0, cfg.Flow.Steps.FinalStory.MaxTokens)

	name, provider, ok := cfg.Provider()
	require.True(t, ok)
	assert.Equal(t, "gemini", name)
	assert.Equal(t, 0.9, provider.TopP)
	assert.Equal(t, 40, provider.TopK)
	assert.Equal(t, 1.0, provider.Temperature)
}

func TestLoadFromLayersEnvFileAndPlaceholders(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("STORY_TEST_API_KEY", "sk-from-env")
	dir := t.TempDir()

	writeFile(t, dir, "config.yaml", `
app:
  name: story-flow
session:
  backend: memory
llm:
  default_provider: local
  providers:
    local:
      api_key: ${STORY_TEST_API_KEY}
      base_url: ${STORY_TEST_BASE_URL:http://localhost:11434/v1}
      model: llama3
      timeout: 60s
      temperature: 1.0
      top_p: 0.9
      top_k: 40
flow:
  steps:
    ai_story:
      max_tokens: 220
`)
	writeFile(t, dir, "config.staging.yaml", `
session:
  backend: redis
  ttl: 30m
`)

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "story-flow", cfg.App.Name)
	assert.Equal(t, SessionBackendRedis, cfg.Session.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 220, cfg.Flow.Steps.AIStory.MaxTokens)

	_, provider, ok := cfg.Provider()
	require.True(t, ok)
	assert.Equal(t, "sk-from-env", provider.APIKey)
	assert.Equal(t, "http://localhost:11434/v1", provider.BaseURL)
}

func TestLoadFromRejectsInvalidBackend(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "session:\n  backend: memcached\n")

	_, err := LoadFrom(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestValidateRequiresKnownProvider(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	cfg.Flow.Provider = "missing"
	err = Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestValidateLockTTLCoversProviderTimeout(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	provider := cfg.LLM.Providers["gemini"]
	provider.Timeout = cfg.Session.LockTTL
	cfg.LLM.Providers["gemini"] = provider
	err = Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session.lock_ttl")

	provider.Timeout = cfg.Session.LockTTL - time.Second
	cfg.LLM.Providers["gemini"] = provider
	require.NoError(t, Validate(cfg))
}

func TestValidateRedisBackendRequiresProviderTimeout(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	provider := cfg.LLM.Providers["gemini"]
	provider.Timeout = 0
	cfg.LLM.Providers["gemini"] = provider
	require.NoError(t, Validate(cfg))

	cfg.Session.Backend = SessionBackendRedis
	err = Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout must be set")
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("STORY_X", "1")
	assert.Equal(t, "a=1 b=two c=${STORY_UNSET}", expandEnv("a=${STORY_X} b=${STORY_UNSET_B:two} c=${STORY_UNSET}"))
}
