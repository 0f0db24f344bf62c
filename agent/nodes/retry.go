package orchestratornode

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	llmx "github.com/tanpawarit/chative-commerce-agent/agent/llm"
)

const (
	DefaultRetryBudget  = 2
	DefaultRetryDelay   = 2 * time.Second
	DefaultModelTimeout = 30 * time.Second
)

// RetryPolicy bounds model calls: each attempt gets Timeout, and transient
// failures are retried Budget more times after a constant Delay. A zero
// Budget selects DefaultRetryBudget; a negative one disables retries.
type RetryPolicy struct {
	Budget  int
	Delay   time.Duration
	Timeout time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	switch {
	case p.Budget == 0:
		p.Budget = DefaultRetryBudget
	case p.Budget < 0:
		p.Budget = 0
	}
	if p.Delay <= 0 {
		p.Delay = DefaultRetryDelay
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultModelTimeout
	}
	return p
}

func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	p = p.withDefaults()
	backoff := retry.WithMaxRetries(uint64(p.Budget), retry.NewConstant(p.Delay))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
		defer cancel()

		err := fn(attemptCtx)
		if err == nil {
			return nil
		}
		if ctx.Err() == nil && llmx.IsTransient(err) {
			zerolog.Ctx(ctx).Warn().
				Err(err).
				Str("op", op).
				Int("attempt", attempt).
				Int("budget", p.Budget).
				Msg("transient model failure")
			return retry.RetryableError(err)
		}
		return err
	})
}
