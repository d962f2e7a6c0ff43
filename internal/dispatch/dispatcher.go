package dispatch

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/thread-intel/internal/model"
)

const defaultConcurrency = 5

// Outcome is the result of dispatching one thread.
type Outcome struct {
	ThreadID  string
	Transport string
	Err       error
}

// Dispatcher sends analysis jobs through a primary transport and, when one
// is configured, retries a failed job on the fallback transport.
type Dispatcher struct {
	primary      Trigger
	primaryName  string
	fallback     Trigger
	fallbackName string
	concurrency  int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithFallback runs jobs on t when the primary transport fails.
func WithFallback(name string, t Trigger) Option {
	return func(d *Dispatcher) {
		d.fallback = t
		d.fallbackName = name
	}
}

// WithConcurrency bounds how many jobs DispatchAll starts at once.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// NewDispatcher creates a Dispatcher over the named primary transport.
func NewDispatcher(name string, primary Trigger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		primary:     primary,
		primaryName: name,
		concurrency: defaultConcurrency,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Transport is the name of the primary transport.
func (d *Dispatcher) Transport() string { return d.primaryName }

// Dispatch starts the analysis job for one thread.
func (d *Dispatcher) Dispatch(ctx context.Context, tenantID, threadID string) Outcome {
	payload := model.AnalyzePayload{TenantID: tenantID, ThreadID: threadID}
	log := zap.L().With(zap.String("tenant", tenantID), zap.String("thread_id", threadID))

	err := d.primary.Trigger(ctx, model.TaskAnalyzeThread, payload)
	if err == nil {
		log.Info("dispatch: job triggered", zap.String("transport", d.primaryName))
		return Outcome{ThreadID: threadID, Transport: d.primaryName}
	}
	if d.fallback == nil || ctx.Err() != nil {
		log.Error("dispatch: trigger failed", zap.String("transport", d.primaryName), zap.Error(err))
		return Outcome{ThreadID: threadID, Transport: d.primaryName, Err: err}
	}

	log.Warn("dispatch: primary transport failed, using fallback",
		zap.String("transport", d.primaryName),
		zap.String("fallback", d.fallbackName),
		zap.Error(err),
	)
	if ferr := d.fallback.Trigger(ctx, model.TaskAnalyzeThread, payload); ferr != nil {
		log.Error("dispatch: fallback failed", zap.String("transport", d.fallbackName), zap.Error(ferr))
		return Outcome{ThreadID: threadID, Transport: d.fallbackName, Err: ferr}
	}
	return Outcome{ThreadID: threadID, Transport: d.fallbackName}
}

// DispatchAll dispatches every thread with bounded concurrency. Outcomes are
// returned in input order; a failure never stops the remaining jobs.
func (d *Dispatcher) DispatchAll(ctx context.Context, tenantID string, threadIDs []string) []Outcome {
	out := make([]Outcome, len(threadIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, id := range threadIDs {
		g.Go(func() error {
			out[i] = d.Dispatch(gctx, tenantID, id)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
