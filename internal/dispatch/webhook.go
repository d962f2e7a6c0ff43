package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/thread-intel/internal/model"
	"github.com/sells-group/thread-intel/internal/resilience"
)

const defaultWebhookTimeout = 10 * time.Second

// webhookBody is the job request accepted by the remote job runner.
type webhookBody struct {
	TaskID  string               `json:"taskId"`
	Payload model.AnalyzePayload `json:"payload"`
}

// Webhook posts jobs to a remote job runner with a bearer token. Transient
// failures are retried under the configured policy.
type Webhook struct {
	url    string
	key    string
	client *http.Client
	policy resilience.Policy
}

// NewWebhook creates a Webhook trigger. A non-positive timeout uses 10s.
func NewWebhook(url, key string, timeout time.Duration, policy resilience.Policy) *Webhook {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	if policy.OnRetry == nil {
		policy.OnRetry = resilience.LogRetries("dispatch.webhook")
	}
	return &Webhook{
		url:    url,
		key:    key,
		client: &http.Client{Timeout: timeout},
		policy: policy,
	}
}

// Trigger posts {"taskId": task, "payload": payload}. Any non-2xx response
// is an error.
func (w *Webhook) Trigger(ctx context.Context, task string, payload model.AnalyzePayload) error {
	body, err := json.Marshal(webhookBody{TaskID: task, Payload: payload})
	if err != nil {
		return eris.Wrap(err, "dispatch: marshal webhook body")
	}
	return resilience.Do(ctx, w.policy, func(ctx context.Context) error {
		return w.post(ctx, body, payload.ThreadID)
	})
}

func (w *Webhook) post(ctx context.Context, body []byte, threadID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "dispatch: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.key)

	resp, err := w.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "dispatch: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resilience.NewStatusError(resp.StatusCode,
			eris.Errorf("dispatch: webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(respBody)))
	}
	zap.L().Debug("dispatch: webhook accepted job",
		zap.String("thread_id", threadID),
		zap.ByteString("response", respBody),
	)
	return nil
}
