// Package retry implements the bounded exponential back-off policy shared
// by external-command invocations: rate-limit-shaped failures get up to
// three retries with a doubling delay starting at two seconds; every
// other failure — including bare authorization or not-found errors —
// propagates immediately.
package retry

import (
	"context"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// MaxRetries and BaseDelay are the policy constants: base 2s, doubling,
// up to 3 retries (4 attempts total).
const (
	MaxRetries = 3
	BaseDelay  = 2 * time.Second
)

// rateLimitPatterns matches stderr/error text that names rate-limit
// semantics. Matching is deliberately conservative: bare "permission
// denied" or "not found" text must never match, since those are
// propagated without retry.
var rateLimitPatterns = regexp.MustCompile(`(?i)rate.?limit|too many requests|secondary rate limit|retry.?after|429`)

// IsRateLimited reports whether an error's text names rate-limit
// semantics, the only condition under which a retry is attempted.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	return rateLimitPatterns.MatchString(err.Error())
}

// Do runs fn, retrying up to MaxRetries times with doubling back-off
// starting at BaseDelay, but only while the returned error satisfies
// IsRateLimited. Any other error — or exhausting the retry budget —
// returns the last error encountered.
func Do(ctx context.Context, fn func(ctx context.Context) error) error {
	op := func() (struct{}, error) {
		err := fn(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if !IsRateLimited(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = BaseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(MaxRetries+1)),
	)
	return err
}
