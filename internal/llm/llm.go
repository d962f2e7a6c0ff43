// Package llm provides the completion interface used by analysis and
// summarization, with Anthropic and OpenAI backends.
package llm

import (
	"context"

	"github.com/rotisserie/eris"
)

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = eris.New("llm: empty response")

// Options tune a single completion.
type Options struct {
	// System is sent as the system message when non-empty.
	System      string
	Temperature float64
	MaxTokens   int
	// JSON asks the provider for a single JSON object.
	JSON bool
	// Task labels the call in usage logs.
	Task string
}

// Completer turns a prompt into model text.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string, opts Options) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	return f(ctx, prompt, opts)
}
