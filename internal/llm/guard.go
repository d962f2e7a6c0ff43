package llm

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/thread-intel/internal/resilience"
)

// Guard rate-limits, retries and circuit-breaks calls to another Completer.
type Guard struct {
	next    Completer
	limiter *rate.Limiter
	breaker *resilience.Breaker
	policy  resilience.Policy
}

// GuardConfig configures NewGuard. A zero RatePerSec disables limiting.
type GuardConfig struct {
	Name         string
	RatePerSec   float64
	Burst        int
	Policy       resilience.Policy
	Threshold    int
	ResetTimeout time.Duration
}

// NewGuard wraps next.
func NewGuard(next Completer, cfg GuardConfig) *Guard {
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	p := cfg.Policy
	if p.OnRetry == nil {
		p.OnRetry = resilience.LogRetries(cfg.Name)
	}
	return &Guard{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		breaker: resilience.NewBreaker(cfg.Name, cfg.Threshold, cfg.ResetTimeout),
		policy:  p,
	}
}

func (g *Guard) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	return resilience.Guarded(ctx, g.breaker, g.policy, func(ctx context.Context) (string, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "llm: rate limit wait")
		}
		return g.next.Complete(ctx, prompt, opts)
	})
}
