// Package summarize writes a short summary onto every message that lacks
// one.
package summarize

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/thread-intel/internal/llm"
	"github.com/sells-group/thread-intel/internal/model"
)

const (
	systemPrompt  = "You are a helpful assistant that writes very concise summaries."
	instructions  = "Summarize the following email in at most 2 concise lines. Focus on the key intent and next steps if any.\n\n"
	maxBodyChars  = 8000
	maxLines      = 2
	temperature   = 0.3
	maxTokens     = 150
	defaultPage   = 20
	defaultWorker = 3
	task          = "summarize-message"
)

// Store is the message access the summarizer needs.
type Store interface {
	ListUnsummarizedMessages(ctx context.Context, tenantID string, limit int) ([]model.Message, error)
	SetMessageSummary(ctx context.Context, tenantID, messageID, summary string) error
}

// Result counts the messages handled by a run.
type Result struct {
	Summarized int      `json:"summarized"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors"`
}

// Summarizer pages through unsummarized messages. Failures are recorded
// per message and never stop the run.
type Summarizer struct {
	store       Store
	llm         llm.Completer
	pageSize    int
	concurrency int
}

// New creates a Summarizer. Non-positive sizes take defaults.
func New(st Store, c llm.Completer, pageSize, concurrency int) *Summarizer {
	if pageSize <= 0 {
		pageSize = defaultPage
	}
	if concurrency <= 0 {
		concurrency = defaultWorker
	}
	return &Summarizer{store: st, llm: c, pageSize: pageSize, concurrency: concurrency}
}

// Run summarizes messages until none are left, or until a page holds only
// messages that already failed in this run.
func (s *Summarizer) Run(ctx context.Context, tenantID string) (*Result, error) {
	res := &Result{Errors: []string{}}
	var mu sync.Mutex
	attempted := make(map[string]bool)
	log := zap.L().With(zap.String("tenant", tenantID))

	for {
		msgs, err := s.store.ListUnsummarizedMessages(ctx, tenantID, s.pageSize)
		if err != nil {
			return res, eris.Wrap(err, "summarize: list messages")
		}
		var todo []model.Message
		for _, m := range msgs {
			if !attempted[m.ID] {
				attempted[m.ID] = true
				todo = append(todo, m)
			}
		}
		if len(todo) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for _, m := range todo {
			g.Go(func() error {
				err := s.one(gctx, tenantID, m)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					log.Warn("summarize: message failed", zap.String("message_id", m.ID), zap.Error(err))
					res.Failed++
					res.Errors = append(res.Errors, err.Error())
					return nil
				}
				res.Summarized++
				return nil
			})
		}
		_ = g.Wait()
		if ctx.Err() != nil {
			return res, eris.Wrap(ctx.Err(), "summarize: cancelled")
		}
	}

	log.Info("summarize: done", zap.Int("summarized", res.Summarized), zap.Int("failed", res.Failed))
	return res, nil
}

func (s *Summarizer) one(ctx context.Context, tenantID string, m model.Message) error {
	out, err := s.llm.Complete(ctx, buildPrompt(m), llm.Options{
		System:      systemPrompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Task:        task,
	})
	if err != nil {
		return eris.Wrapf(err, "summarize: message %s", m.ID)
	}
	summary := firstLines(out, maxLines)
	if summary == "" {
		return eris.Errorf("summarize: message %s: empty summary", m.ID)
	}
	if err := s.store.SetMessageSummary(ctx, tenantID, m.ID, summary); err != nil {
		return eris.Wrapf(err, "summarize: save message %s", m.ID)
	}
	return nil
}

func buildPrompt(m model.Message) string {
	var parts []string
	if m.Subject != "" {
		parts = append(parts, "Subject: "+m.Subject)
	}
	if m.From != "" {
		parts = append(parts, "From: "+m.From)
	}
	if body := m.Body(); body != "" {
		if r := []rune(body); len(r) > maxBodyChars {
			body = string(r[:maxBodyChars])
		}
		parts = append(parts, "Body:\n"+body)
	}
	return instructions + strings.Join(parts, "\n\n")
}

// firstLines keeps the first n non-blank lines, trimmed.
func firstLines(s string, n int) string {
	var kept []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, line)
		if len(kept) == n {
			break
		}
	}
	return strings.Join(kept, "\n")
}
