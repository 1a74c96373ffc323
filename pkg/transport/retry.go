package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Retryer retries retryable transport outcomes with exponential backoff.
// A send makes 1 + MaxRetries attempts at most; the delay before retry n
// is Base * 2^(n-1). Terminal outcomes abort immediately without consuming
// any retry budget.
type Retryer struct {
	MaxRetries int
	Base       time.Duration
	Logger     zerolog.Logger
}

// Do runs attempt until it succeeds, fails terminally, or the retry budget
// is exhausted. The returned Outcome carries the total attempt count.
func (r *Retryer) Do(ctx context.Context, signal string, attempt func(context.Context) Outcome) Outcome {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.Base
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxInterval = time.Hour
	policy.MaxElapsedTime = 0

	var last Outcome
	attempts := 0

	operation := func() error {
		attempts++
		last = attempt(ctx)
		switch last.Class {
		case ClassSuccess:
			return nil
		case ClassTerminal:
			return backoff.Permanent(outcomeErr(last))
		default:
			r.Logger.Debug().
				Str("signal", signal).
				Int("attempt", attempts).
				Int("status", last.StatusCode).
				Err(last.Err).
				Msg("telemetry send failed, will retry")
			return outcomeErr(last)
		}
	}

	wrapped := backoff.WithMaxRetries(backoff.WithContext(policy, ctx), uint64(r.MaxRetries))
	if err := backoff.Retry(operation, wrapped); err != nil {
		r.Logger.Debug().
			Str("signal", signal).
			Int("attempts", attempts).
			Err(err).
			Msg("telemetry send abandoned")
	}

	last.Attempts = attempts
	return last
}

func outcomeErr(o Outcome) error {
	if o.Err != nil {
		return o.Err
	}
	return fmt.Errorf("transport: server returned status %d", o.StatusCode)
}
