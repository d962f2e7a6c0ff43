package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/thread-intel/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*anthropic.MessageResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestAnthropic_Complete(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-sonnet-4-5-20250929" &&
			req.MaxTokens == 4096 &&
			req.Temperature != nil && *req.Temperature == 0.3 &&
			len(req.Messages) == 1 && req.Messages[0].Content == "Email Thread:" &&
			req.System == "You analyze.\n\n"+jsonInstruction
	})).Return(&anthropic.MessageResponse{Text: "  {\"a\":1}\n"}, nil)

	c := NewAnthropic(client, "claude-sonnet-4-5-20250929", 4096)
	out, err := c.Complete(context.Background(), "Email Thread:", Options{System: "You analyze.", Temperature: 0.3, JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)
	client.AssertExpectations(t)
}

func TestAnthropic_Complete_Empty(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{Text: ""}, nil)

	_, err := NewAnthropic(client, "m", 100).Complete(context.Background(), "x", Options{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestAnthropic_Complete_Error(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	_, err := NewAnthropic(client, "m", 100).Complete(context.Background(), "x", Options{MaxTokens: 50})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm: anthropic")
}
