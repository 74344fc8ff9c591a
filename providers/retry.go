// Package providers holds shared HTTP-client plumbing for the three
// outbound provider clients (CRM, tax-ID resolver, deep-enrichment):
// timeout, retry/backoff, and structured error projection.
package providers

import (
	"context"
	"errors"
	"time"

	"github.com/MbInteligen/mbras-c2s-enrichment/types"
)

// Timeout is the shared 60-second socket timeout for every outbound
// provider call.
const Timeout = 60 * time.Second

// MaxRetries is the shared retry budget for transient provider errors.
const MaxRetries = 3

// backoffSchedule holds the fixed delays between retry attempts: 5s,
// 10s, 20s, matching the deep-enrichment inter-call discipline and
// generalized to every provider client.
var backoffSchedule = []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}

// WithRetry invokes fn up to MaxRetries+1 times, sleeping per
// backoffSchedule between attempts, as long as the returned error is
// retryable per types.IsRetryable. It stops early on context
// cancellation.
func WithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !types.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffSchedule[attempt]):
		}
	}
	return lastErr
}

// ErrBadStatus is wrapped into an UpstreamFailure when a provider
// responds with a non-2xx status the client doesn't specifically
// classify.
var ErrBadStatus = errors.New("unexpected upstream status")
