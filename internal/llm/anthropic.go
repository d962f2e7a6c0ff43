package llm

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/thread-intel/internal/resilience"
	"github.com/sells-group/thread-intel/pkg/anthropic"
)

const jsonInstruction = "Respond with a single valid JSON object and nothing else."

// Anthropic completes prompts with the Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropic creates an Anthropic completer.
func NewAnthropic(client anthropic.Client, model string, maxTokens int) *Anthropic {
	return &Anthropic{client: client, model: model, maxTokens: maxTokens}
}

func (a *Anthropic) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.maxTokens
	}
	system := opts.System
	if opts.JSON {
		system = strings.TrimSpace(system + "\n\n" + jsonInstruction)
	}
	temp := opts.Temperature

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   int64(maxTokens),
		System:      system,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		if code := anthropic.StatusCode(err); code != 0 {
			return "", eris.Wrap(resilience.NewStatusError(code, err), "llm: anthropic")
		}
		return "", eris.Wrap(err, "llm: anthropic")
	}
	resp.Usage.Log(a.model, opts.Task)

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
