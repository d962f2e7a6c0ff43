package llm

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/thread-intel/internal/config"
	"github.com/sells-group/thread-intel/internal/resilience"
	"github.com/sells-group/thread-intel/pkg/anthropic"
)

// New builds the configured provider wrapped in a Guard.
func New(cfg *config.Config) (Completer, error) {
	if err := cfg.ValidateLLM(); err != nil {
		return nil, err
	}

	var base Completer
	switch cfg.LLM.Provider {
	case "anthropic":
		base = NewAnthropic(anthropic.NewClient(cfg.Anthropic.Key, cfg.Anthropic.BaseURL), cfg.Anthropic.Model, cfg.LLM.MaxTokens)
	case "openai":
		base = NewOpenAI(OpenAIOptions{
			Key:        cfg.OpenAI.Key,
			Model:      cfg.OpenAI.Model,
			BaseURL:    cfg.OpenAI.BaseURL,
			Azure:      cfg.OpenAI.Azure,
			APIVersion: cfg.OpenAI.APIVersion,
			MaxTokens:  cfg.LLM.MaxTokens,
		})
	default:
		return nil, eris.Errorf("llm: unknown provider %q", cfg.LLM.Provider)
	}

	return NewGuard(base, GuardConfig{
		Name:         cfg.LLM.Provider,
		RatePerSec:   cfg.LLM.RatePerSec,
		Burst:        cfg.LLM.Burst,
		Policy:       resilience.PolicyFrom(cfg.LLM.RetryAttempts, cfg.LLM.RetryBackoffMs, cfg.LLM.RetryMaxBackoffMs),
		Threshold:    cfg.LLM.CircuitThreshold,
		ResetTimeout: time.Duration(cfg.LLM.CircuitResetSecs) * time.Second,
	}), nil
}
