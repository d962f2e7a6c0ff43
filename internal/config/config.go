// Package config loads thread-intel settings from config.yaml and THREADS_* env vars.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Trigger    TriggerConfig    `yaml:"trigger" mapstructure:"trigger"`
	Temporal   TemporalConfig   `yaml:"temporal" mapstructure:"temporal"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LLMConfig selects the completion provider and guards calls to it.
type LLMConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"`
	MaxTokens         int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature       float64 `yaml:"temperature" mapstructure:"temperature"`
	RatePerSec        float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
	RetryAttempts     int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs    int     `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	RetryMaxBackoffMs int     `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`
	CircuitThreshold  int     `yaml:"circuit_threshold" mapstructure:"circuit_threshold"`
	CircuitResetSecs  int     `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OpenAIConfig holds OpenAI (or Azure OpenAI) settings.
type OpenAIConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	Model      string `yaml:"model" mapstructure:"model"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Azure      bool   `yaml:"azure" mapstructure:"azure"`
	APIVersion string `yaml:"api_version" mapstructure:"api_version"`
}

// TriggerConfig selects how analysis jobs are dispatched.
type TriggerConfig struct {
	Transport   string `yaml:"transport" mapstructure:"transport"`
	WebhookURL  string `yaml:"webhook_url" mapstructure:"webhook_url"`
	WebhookKey  string `yaml:"webhook_key" mapstructure:"webhook_key"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	// Fallback runs the analysis in-process when the primary transport fails.
	Fallback bool `yaml:"fallback" mapstructure:"fallback"`
}

// TemporalConfig holds the Temporal frontend address and queue.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// AnalysisConfig bounds the transcript sent to the model.
type AnalysisConfig struct {
	TokenLimit   int     `yaml:"token_limit" mapstructure:"token_limit"`
	EdgeFraction float64 `yaml:"edge_fraction" mapstructure:"edge_fraction"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
	// APIKey, when set, is required as a bearer token on /v1 routes.
	APIKey      string   `yaml:"api_key" mapstructure:"api_key"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures the stage failure alert.
type MonitoringConfig struct {
	WebhookURL       string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureThreshold float64 `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	MinThreads       int     `yaml:"min_threads" mapstructure:"min_threads"`
	// MaxBacklog alerts when more threads than this wait in resolving or
	// queued stages. 0 disables the check.
	MaxBacklog        int      `yaml:"max_backlog" mapstructure:"max_backlog"`
	CheckIntervalSecs int      `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	Tenants           []string `yaml:"tenants" mapstructure:"tenants"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("THREADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.rate_per_sec", 2.0)
	v.SetDefault("llm.burst", 2)
	v.SetDefault("llm.retry_attempts", 3)
	v.SetDefault("llm.retry_backoff_ms", 500)
	v.SetDefault("llm.retry_max_backoff_ms", 20000)
	v.SetDefault("llm.circuit_threshold", 5)
	v.SetDefault("llm.circuit_reset_secs", 30)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("openai.key", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.azure", false)
	v.SetDefault("openai.api_version", "2024-06-01")
	v.SetDefault("trigger.transport", "direct")
	v.SetDefault("trigger.webhook_url", "")
	v.SetDefault("trigger.webhook_key", "")
	v.SetDefault("trigger.timeout_secs", 10)
	v.SetDefault("trigger.fallback", true)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "thread-intel")
	v.SetDefault("batch.max_concurrency", 5)
	v.SetDefault("analysis.token_limit", 100000)
	v.SetDefault("analysis.edge_fraction", 0.2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.failure_threshold", 0.2)
	v.SetDefault("monitoring.min_threads", 10)
	v.SetDefault("monitoring.max_backlog", 0)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// ValidateStore checks the database settings.
func (c *Config) ValidateStore() error {
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required for postgres")
		}
	case "sqlite":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required for sqlite (a file path)")
		}
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// ValidateLLM checks that the selected provider has credentials.
func (c *Config) ValidateLLM() error {
	switch c.LLM.Provider {
	case "anthropic":
		if c.Anthropic.Key == "" {
			return eris.New("config: anthropic.key is required")
		}
	case "openai":
		if c.OpenAI.Key == "" {
			return eris.New("config: openai.key is required")
		}
		if c.OpenAI.Azure && c.OpenAI.BaseURL == "" {
			return eris.New("config: openai.base_url is required for azure")
		}
	default:
		return eris.Errorf("config: unknown llm provider %q", c.LLM.Provider)
	}
	return nil
}

// ValidateTrigger checks the dispatch transport settings.
func (c *Config) ValidateTrigger() error {
	switch c.Trigger.Transport {
	case "direct":
	case "webhook":
		if c.Trigger.WebhookURL == "" || c.Trigger.WebhookKey == "" {
			return eris.New("config: trigger.webhook_url and trigger.webhook_key are required for webhook transport")
		}
	case "temporal":
		if c.Temporal.HostPort == "" || c.Temporal.TaskQueue == "" {
			return eris.New("config: temporal.host_port and temporal.task_queue are required for temporal transport")
		}
	default:
		return eris.Errorf("config: unknown trigger transport %q", c.Trigger.Transport)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
