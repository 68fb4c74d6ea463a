// Package retry provides a bounded, fixed-delay retry loop for remote lookups.
//
// A call is retried only when it fails with a transient error (transport or
// upstream failure). A call that returns ErrNoResult is a well-formed "nothing
// found" answer and ends the loop immediately, as does an apperr validation
// failure, which would fail the same way on every attempt. When every attempt fails the
// loop returns an *ExhaustedError wrapping the last failure.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/tripstory/internal/apperr"
	"github.com/fpang/tripstory/internal/metrics"
)

const (
	// DefaultAttempts is the number of tries made before giving up.
	DefaultAttempts = 3

	// DefaultDelay is the pause between a failed attempt and the next one.
	DefaultDelay = 3 * time.Second
)

// ErrNoResult marks a successful response that carried no usable result.
// It is terminal: Do returns it without retrying.
var ErrNoResult = errors.New("no result")

// ExhaustedError is returned when all attempts failed with transient errors.
type ExhaustedError struct {
	Attempts int
	Err      error // last attempt's error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Policy configures a retry loop. The zero value uses the defaults.
type Policy struct {
	Attempts int
	Delay    time.Duration
	// Name labels log lines for this loop.
	Name string
	// Sleep waits between attempts. Defaults to a context-aware timer; tests
	// replace it to observe delays without waiting.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default returns the standard 3 x 3s policy.
func Default(name string) Policy {
	return Policy{Attempts: DefaultAttempts, Delay: DefaultDelay, Name: name}
}

func (p Policy) attempts() int {
	if p.Attempts <= 0 {
		return DefaultAttempts
	}
	return p.Attempts
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do calls fn until it succeeds, returns ErrNoResult, the context ends, or the
// policy's attempts are used up.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	max := p.attempts()
	var lastErr error

	for attempt := 1; attempt <= max; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		log.Debug().
			Str("op", p.Name).
			Int("attempt", attempt).
			Int("max_attempts", max).
			Msg("Attempting remote call")

		result, err := fn(ctx, attempt)
		recordAttempt(p.Name, err)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrNoResult) {
			log.Debug().Str("op", p.Name).Int("attempt", attempt).Msg("Remote call returned no result")
			return zero, err
		}
		if apperr.Is(err, apperr.KindValidation) {
			log.Warn().Err(err).Str("op", p.Name).Int("attempt", attempt).Msg("Remote call rejected, not retrying")
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		lastErr = err
		log.Warn().
			Err(err).
			Str("op", p.Name).
			Int("attempt", attempt).
			Int("max_attempts", max).
			Msg("Remote call failed")

		if attempt == max {
			break
		}

		log.Debug().Str("op", p.Name).Dur("delay", p.Delay).Msg("Retrying after delay")
		if err := p.sleep(ctx, p.Delay); err != nil {
			return zero, err
		}
	}

	return zero, &ExhaustedError{Attempts: max, Err: lastErr}
}

// recordAttempt counts one call by outcome.
func recordAttempt(op string, err error) {
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrNoResult):
		outcome = "no_result"
	case apperr.Is(err, apperr.KindValidation):
		outcome = "rejected"
	default:
		outcome = "failure"
	}
	metrics.New(metrics.Namespace).
		Dimension("Operation", op).
		Dimension("Outcome", outcome).
		Count("RemoteAttempt").
		Flush()
}
