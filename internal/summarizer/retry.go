package summarizer

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/mossy-p/castiq/internal/apperr"
	"github.com/rs/zerolog/log"
)

// RetryPolicy bounds every external summarization call.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// backoff returns the wait before attempt n+1 (n starts at 1): exponential,
// capped at MaxBackoff, with the upper half jittered.
func (p RetryPolicy) backoff(n int) time.Duration {
	d := p.BaseBackoff
	for i := 1; i < n && d < p.MaxBackoff; i++ {
		d *= 2
	}
	if d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	if d <= 0 {
		return 0
	}
	half := d / 2
	return half + rand.N(half+1)
}

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// withRetry runs call until it succeeds, is rejected (4xx), or attempts run out.
func withRetry(ctx context.Context, policy RetryPolicy, sleep sleepFunc, call func(ctx context.Context) (string, error)) (string, error) {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	made := 0
	for n := 1; n <= attempts; n++ {
		made = n
		out, err := call(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		var rejected *apperr.ServiceRejectedError
		if errors.As(err, &rejected) {
			return "", err
		}
		if n == attempts {
			break
		}

		wait := policy.backoff(n)
		log.Warn().Err(err).Int("attempt", n).Dur("backoff", wait).Msg("Summarization call failed, retrying")
		if err := sleep(ctx, wait); err != nil {
			lastErr = err
			break
		}
	}

	return "", &apperr.RetryExhaustedError{Attempts: made, Last: lastErr}
}
