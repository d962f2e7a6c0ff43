package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sells-group/thread-intel/internal/resilience"
)

// OpenAI completes prompts with the chat completions API.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// OpenAIOptions configures NewOpenAI.
type OpenAIOptions struct {
	Key        string
	Model      string
	BaseURL    string
	Azure      bool
	APIVersion string
	MaxTokens  int
}

// NewOpenAI creates an OpenAI completer. With Azure set, BaseURL is the
// resource endpoint and Model the deployment name.
func NewOpenAI(o OpenAIOptions) *OpenAI {
	var cfg openai.ClientConfig
	if o.Azure {
		cfg = openai.DefaultAzureConfig(o.Key, o.BaseURL)
		if o.APIVersion != "" {
			cfg.APIVersion = o.APIVersion
		}
	} else {
		cfg = openai.DefaultConfig(o.Key)
		if o.BaseURL != "" {
			cfg.BaseURL = o.BaseURL
		}
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: o.Model, maxTokens: o.MaxTokens}
}

func (c *OpenAI) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	var msgs []openai.ChatCompletionMessage
	if opts.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: opts.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: float32(opts.Temperature),
	}
	if opts.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if code := openAIStatus(err); code != 0 {
			return "", eris.Wrap(resilience.NewStatusError(code, err), "llm: openai")
		}
		return "", eris.Wrap(err, "llm: openai")
	}
	zap.L().Info("llm: openai usage",
		zap.String("model", c.model),
		zap.String("task", opts.Task),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
