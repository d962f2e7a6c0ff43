package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/sells-group/thread-intel/internal/analyze"
	"github.com/sells-group/thread-intel/internal/config"
	"github.com/sells-group/thread-intel/internal/dispatch"
	"github.com/sells-group/thread-intel/internal/jobs"
	"github.com/sells-group/thread-intel/internal/llm"
	"github.com/sells-group/thread-intel/internal/resilience"
	"github.com/sells-group/thread-intel/internal/resolve"
	"github.com/sells-group/thread-intel/internal/stage"
	"github.com/sells-group/thread-intel/internal/store"
)

// appEnv holds the store and engines shared by the commands.
type appEnv struct {
	Store      store.Store
	Tracker    *stage.Tracker
	LLM        llm.Completer
	Analyzer   *analyze.Engine
	Dispatcher *dispatch.Dispatcher
	Resolver   *resolve.Engine
	Temporal   client.Client // nil unless the temporal transport is selected
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Temporal != nil {
		e.Temporal.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv opens the store, applies the schema and builds the engines.
// Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	if err := cfg.ValidateTrigger(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &appEnv{Store: st, Tracker: stage.NewTracker(st)}

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	completer, err := llm.New(cfg)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.LLM = completer
	env.Analyzer = analyze.New(st, env.Tracker, completer, analyzeConfig(cfg))

	dc := cfg
	if cfg.Trigger.Transport == dispatch.TransportTemporal {
		tc, err := jobs.Dial(cfg.Temporal)
		switch {
		case err == nil:
			env.Temporal = tc
		case cfg.Trigger.Fallback:
			zap.L().Warn("temporal unreachable, dispatching in process", zap.Error(err))
			direct := *cfg
			direct.Trigger.Transport = dispatch.TransportDirect
			dc = &direct
		default:
			env.Close()
			return nil, err
		}
	}

	env.Dispatcher = buildDispatcher(dc, env.Analyzer, env.Temporal)
	zap.L().Info("dispatcher ready", zap.String("transport", env.Dispatcher.Transport()))
	env.Resolver = resolve.New(st, env.Tracker, env.Dispatcher, cfg.Batch.MaxConcurrency)
	return env, nil
}

func analyzeConfig(c *config.Config) analyze.Config {
	return analyze.Config{
		TokenLimit:   c.Analysis.TokenLimit,
		EdgeFraction: c.Analysis.EdgeFraction,
		Temperature:  c.LLM.Temperature,
		MaxTokens:    c.LLM.MaxTokens,
		Concurrency:  c.Batch.MaxConcurrency,
	}
}

// buildDispatcher picks the primary transport from config. The in-process
// analyzer backs it up when trigger.fallback is set.
func buildDispatcher(c *config.Config, a dispatch.Analyzer, tc jobs.Starter) *dispatch.Dispatcher {
	direct := dispatch.NewDirect(a)
	opts := []dispatch.Option{dispatch.WithConcurrency(c.Batch.MaxConcurrency)}

	var name string
	var primary dispatch.Trigger
	switch c.Trigger.Transport {
	case dispatch.TransportWebhook:
		name = dispatch.TransportWebhook
		primary = dispatch.NewWebhook(
			c.Trigger.WebhookURL,
			c.Trigger.WebhookKey,
			time.Duration(c.Trigger.TimeoutSecs)*time.Second,
			resilience.PolicyFrom(c.LLM.RetryAttempts, c.LLM.RetryBackoffMs, c.LLM.RetryMaxBackoffMs),
		)
	case dispatch.TransportTemporal:
		name = dispatch.TransportTemporal
		primary = jobs.NewTrigger(tc, c.Temporal.TaskQueue)
	default:
		return dispatch.NewDispatcher(dispatch.TransportDirect, direct, opts...)
	}

	if c.Trigger.Fallback {
		opts = append(opts, dispatch.WithFallback(dispatch.TransportDirect, direct))
	}
	zap.L().Debug("dispatch transport selected",
		zap.String("transport", name),
		zap.Bool("fallback", c.Trigger.Fallback),
	)
	return dispatch.NewDispatcher(name, primary, opts...)
}
