package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 0.0001)
	assert.Equal(t, "direct", cfg.Trigger.Transport)
	assert.Equal(t, 10, cfg.Trigger.TimeoutSecs)
	assert.True(t, cfg.Trigger.Fallback)
	assert.Equal(t, "thread-intel", cfg.Temporal.TaskQueue)
	assert.Equal(t, 100000, cfg.Analysis.TokenLimit)
	assert.InDelta(t, 0.2, cfg.Analysis.EdgeFraction, 0.0001)
	assert.Equal(t, 5, cfg.Batch.MaxConcurrency)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: threads.db
llm:
  provider: openai
openai:
  model: gpt-4o
trigger:
  transport: webhook
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "threads.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, "webhook", cfg.Trigger.Transport)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, 100000, cfg.Analysis.TokenLimit)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store:\n  driver: sqlite\n"), 0o644))
	t.Setenv("THREADS_STORE_DRIVER", "postgres")
	t.Setenv("THREADS_ANTHROPIC_KEY", "sk-test")
	t.Setenv("THREADS_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestValidateLLM(t *testing.T) {
	cfg := &Config{LLM: LLMConfig{Provider: "anthropic"}}
	assert.Error(t, cfg.ValidateLLM())

	cfg.Anthropic.Key = "k"
	assert.NoError(t, cfg.ValidateLLM())

	cfg.LLM.Provider = "openai"
	assert.Error(t, cfg.ValidateLLM())
	cfg.OpenAI.Key = "k"
	assert.NoError(t, cfg.ValidateLLM())
	cfg.OpenAI.Azure = true
	assert.Error(t, cfg.ValidateLLM())

	cfg.LLM.Provider = "mistral"
	assert.ErrorContains(t, cfg.ValidateLLM(), "unknown llm provider")
}

func TestValidateTrigger(t *testing.T) {
	cfg := &Config{Trigger: TriggerConfig{Transport: "direct"}}
	assert.NoError(t, cfg.ValidateTrigger())

	cfg.Trigger.Transport = "webhook"
	assert.Error(t, cfg.ValidateTrigger())
	cfg.Trigger.WebhookURL = "https://jobs.example.com/trigger"
	cfg.Trigger.WebhookKey = "secret"
	assert.NoError(t, cfg.ValidateTrigger())

	cfg.Trigger.Transport = "temporal"
	assert.Error(t, cfg.ValidateTrigger())
	cfg.Temporal = TemporalConfig{HostPort: "localhost:7233", TaskQueue: "q"}
	assert.NoError(t, cfg.ValidateTrigger())

	cfg.Trigger.Transport = "carrier-pigeon"
	assert.Error(t, cfg.ValidateTrigger())
}

func TestValidateStore(t *testing.T) {
	assert.Error(t, (&Config{Store: StoreConfig{Driver: "postgres"}}).ValidateStore())
	assert.NoError(t, (&Config{Store: StoreConfig{Driver: "sqlite", DatabaseURL: "x.db"}}).ValidateStore())
	assert.Error(t, (&Config{Store: StoreConfig{Driver: "mysql", DatabaseURL: "x"}}).ValidateStore())
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "loud", Format: "json"}))
}
