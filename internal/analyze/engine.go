// Package analyze turns a thread's messages into a summary, sentiment,
// next steps and feature requests using a language model.
package analyze

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/thread-intel/internal/llm"
	"github.com/sells-group/thread-intel/internal/model"
	"github.com/sells-group/thread-intel/internal/stage"
	"github.com/sells-group/thread-intel/internal/store"
)

// Config tunes an Engine. Zero values take the defaults below.
type Config struct {
	TokenLimit   int
	EdgeFraction float64
	Temperature  float64
	MaxTokens    int
	Concurrency  int
}

const (
	defaultTokenLimit   = 100000
	defaultEdgeFraction = 0.2
	defaultTemperature  = 0.3
	defaultConcurrency  = 5
)

func (c Config) withDefaults() Config {
	if c.TokenLimit <= 0 {
		c.TokenLimit = defaultTokenLimit
	}
	if c.EdgeFraction <= 0 || c.EdgeFraction >= 0.5 {
		c.EdgeFraction = defaultEdgeFraction
	}
	if c.Temperature <= 0 {
		c.Temperature = defaultTemperature
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	return c
}

// Engine analyzes one thread at a time. It holds no per-thread state and is
// safe for concurrent use.
type Engine struct {
	store   store.AnalysisStore
	tracker *stage.Tracker
	llm     llm.Completer
	cfg     Config

	newID func() string
	now   func() time.Time
}

// New creates an Engine.
func New(st store.AnalysisStore, tracker *stage.Tracker, completer llm.Completer, cfg Config) *Engine {
	return &Engine{
		store:   st,
		tracker: tracker,
		llm:     completer,
		cfg:     cfg.withDefaults(),
		newID:   uuid.NewString,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Analyze runs the analysis for one thread and persists the results. It
// never returns an error: failures are reported through the report and the
// thread's stage.
func (e *Engine) Analyze(ctx context.Context, tenantID, threadID string) *model.AnalysisReport {
	rep := &model.AnalysisReport{ThreadID: threadID, Errors: []string{}}
	log := zap.L().With(zap.String("tenant", tenantID), zap.String("thread_id", threadID))

	if err := e.run(ctx, tenantID, threadID, rep, log); err != nil {
		log.Error("analyze: thread failed", zap.Error(err))
		rep.Success = false
		rep.Errors = append(rep.Errors, fmt.Sprintf("error analyzing thread %s: %v", threadID, err))
		if serr := e.tracker.Set(ctx, tenantID, model.StageFailed, threadID); serr != nil {
			log.Warn("analyze: could not mark thread failed", zap.Error(serr))
		}
		return rep
	}
	rep.Success = true
	return rep
}

func (e *Engine) run(ctx context.Context, tenantID, threadID string, rep *model.AnalysisReport, log *zap.Logger) error {
	if err := e.tracker.Set(ctx, tenantID, model.StageAnalyzing, threadID); err != nil {
		return err
	}

	thread, err := e.store.GetThread(ctx, tenantID, threadID)
	if err != nil {
		return eris.Wrapf(err, "analyze: load thread %s", threadID)
	}
	msgs, err := e.store.ListMessages(ctx, tenantID, []string{threadID})
	if err != nil {
		return eris.Wrap(err, "analyze: load messages")
	}
	if len(msgs) == 0 {
		return eris.Errorf("analyze: no messages found for thread %s", threadID)
	}

	mode, msgs := selectMessages(thread, msgs, log)
	rep.Mode = mode
	log = log.With(zap.String("mode", string(mode)))
	if len(msgs) == 0 {
		log.Info("analyze: no new messages since last analysis")
		if err := e.tracker.Set(ctx, tenantID, model.StageCompleted, threadID); err != nil {
			return err
		}
		rep.Skipped = true
		rep.SkipReason = "no new messages"
		return nil
	}

	participants, err := e.store.ListParticipants(ctx, tenantID, threadID)
	if err != nil {
		return eris.Wrap(err, "analyze: load participants")
	}
	transcript, truncated := newRoster(participants).transcript(msgs, e.cfg.TokenLimit, e.cfg.EdgeFraction)
	if truncated {
		log.Info("analyze: transcript truncated", zap.Int("messages", len(msgs)))
	}

	system, user := buildPrompt(mode, thread.Summary, transcript)
	raw, err := e.llm.Complete(ctx, user, llm.Options{
		System:      system,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
		JSON:        true,
		Task:        model.TaskAnalyzeThread,
	})
	if err != nil {
		return eris.Wrap(err, "analyze: model call")
	}
	res, err := parseResult(raw)
	if err != nil {
		return err
	}
	score, err := res.score()
	if err != nil {
		return err
	}

	analyzedAt := e.now()
	if err := e.store.UpdateThreadAnalysis(ctx, tenantID, threadID, model.ThreadAnalysis{
		Summary:          res.summary(),
		ProblemStatement: res.ProblemStatement,
		TimelineSummary:  res.TimelineSummary,
		Sentiment:        res.CustomerSentiment,
		SentimentScore:   score,
		ResolutionStatus: res.ResolutionStatus,
		AnalyzedAt:       analyzedAt,
	}); err != nil {
		return eris.Wrap(err, "analyze: save thread analysis")
	}

	var mu sync.Mutex
	addErr := func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		rep.Errors = append(rep.Errors, msg)
	}

	inserted, err := e.saveNextSteps(ctx, tenantID, threadID, res.NextSteps, log)
	if err != nil {
		return err
	}
	e.assign(ctx, inserted, participants, addErr, log)

	if err := e.saveFeatureRequests(ctx, tenantID, threadID, res.FeatureRequests, log); err != nil {
		return err
	}

	if err := e.tracker.Set(ctx, tenantID, model.StageCompleted, threadID); err != nil {
		return err
	}
	e.refreshHealth(ctx, tenantID, threadID, addErr, log)

	rep.Sentiment = res.CustomerSentiment
	rep.SentimentScore = score
	rep.ResolutionStatus = res.ResolutionStatus
	rep.NextStepsCount = len(res.NextSteps)
	rep.FeatureRequestsCount = len(res.FeatureRequests)
	rep.LastAnalyzedAt = &analyzedAt
	log.Info("analyze: thread analyzed",
		zap.Int("next_steps", rep.NextStepsCount),
		zap.Int("feature_requests", rep.FeatureRequestsCount),
	)
	return nil
}

// selectMessages picks full mode for never-analyzed threads, otherwise only
// the messages newer than the last analysis. Messages without any timestamp
// are kept.
func selectMessages(thread *model.Thread, msgs []model.Message, log *zap.Logger) (model.AnalysisMode, []model.Message) {
	if thread.LastAnalyzedAt == nil {
		return model.ModeFull, msgs
	}
	since := *thread.LastAnalyzedAt
	var kept []model.Message
	for _, m := range msgs {
		ts := m.Timestamp()
		if ts == nil {
			log.Warn("analyze: message has no date, including it", zap.String("message_id", m.ID))
			kept = append(kept, m)
			continue
		}
		if ts.After(since) {
			kept = append(kept, m)
		}
	}
	return model.ModeIncremental, kept
}
