package retry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fpang/tripstory/internal/apperr"
	"github.com/fpang/tripstory/internal/metrics"
)

// recordingSleep returns a Sleep func that records delays instead of waiting.
func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func TestDoSucceedsAfterTwoFailures(t *testing.T) {
	var delays []time.Duration
	p := Policy{Attempts: 3, Delay: 3000 * time.Millisecond, Sleep: recordingSleep(&delays)}

	calls := 0
	got, err := Do(context.Background(), p, func(ctx context.Context, attempt int) (string, error) {
		calls++
		if attempt < 3 {
			return "", fmt.Errorf("transport failure %d", attempt)
		}
		return "BV1xx", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "BV1xx" {
		t.Errorf("expected BV1xx, got %q", got)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if len(delays) != 2 {
		t.Fatalf("expected 2 delays, got %d", len(delays))
	}
	for i, d := range delays {
		if d != 3000*time.Millisecond {
			t.Errorf("delay %d: expected 3s, got %s", i, d)
		}
	}
}

func TestDoAlwaysFailingStopsAtAttemptLimit(t *testing.T) {
	var delays []time.Duration
	p := Policy{Attempts: 3, Delay: time.Second, Sleep: recordingSleep(&delays)}

	calls := 0
	upstream := errors.New("upstream returned code -412")
	got, err := Do(context.Background(), p, func(ctx context.Context, attempt int) (*int, error) {
		calls++
		return nil, upstream
	})
	if got != nil {
		t.Errorf("expected nil result, got %v", *got)
	}
	if calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", calls)
	}
	if len(delays) != 2 {
		t.Errorf("expected 2 delays, got %d", len(delays))
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %T: %v", err, err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("expected Attempts=3, got %d", exhausted.Attempts)
	}
	if !errors.Is(err, upstream) {
		t.Errorf("expected exhausted error to wrap the last failure")
	}
}

func TestDoNoResultIsTerminal(t *testing.T) {
	var delays []time.Duration
	p := Policy{Attempts: 3, Delay: time.Second, Sleep: recordingSleep(&delays)}

	calls := 0
	_, err := Do(context.Background(), p, func(ctx context.Context, attempt int) (string, error) {
		calls++
		return "", fmt.Errorf("search %q: %w", "桂林", ErrNoResult)
	})
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
	if len(delays) != 0 {
		t.Errorf("expected no delays, got %d", len(delays))
	}
}

func TestDoValidationFailureIsNotRetried(t *testing.T) {
	var delays []time.Duration
	p := Policy{Attempts: 3, Delay: 3 * time.Second, Sleep: recordingSleep(&delays)}

	calls := 0
	_, err := Do(context.Background(), p, func(ctx context.Context, attempt int) (string, error) {
		calls++
		return "", apperr.Validation("video search", errors.New("bad request URL"))
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		t.Errorf("validation failure must not be reported as exhaustion: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
	if len(delays) != 0 {
		t.Errorf("expected no delays, got %v", delays)
	}
}

func TestDoZeroPolicyUsesDefaults(t *testing.T) {
	var delays []time.Duration
	p := Policy{Sleep: recordingSleep(&delays)}

	calls := 0
	Do(context.Background(), p, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, errors.New("boom")
	})
	if calls != DefaultAttempts {
		t.Errorf("expected %d attempts, got %d", DefaultAttempts, calls)
	}
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Attempts: 3, Delay: time.Hour}

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, p, func(ctx context.Context, attempt int) (int, error) {
			calls++
			return 0, errors.New("timeout")
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", calls)
	}
}

func TestSleepContext(t *testing.T) {
	if err := SleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := SleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDoCountsEachAttempt(t *testing.T) {
	var out bytes.Buffer
	metrics.Enable(&out)
	t.Cleanup(func() { metrics.Enable(nil) })

	var delays []time.Duration
	p := Policy{Name: "bilibili search", Attempts: 3, Delay: time.Second, Sleep: recordingSleep(&delays)}
	Do(context.Background(), p, func(ctx context.Context, attempt int) (string, error) {
		if attempt == 1 {
			return "", errors.New("connection reset")
		}
		return "BV1xx", nil
	})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 attempt records, got %d:\n%s", len(lines), out.String())
	}
	for i, want := range []string{`"Outcome":"failure"`, `"Outcome":"success"`} {
		if !strings.Contains(lines[i], want) || !strings.Contains(lines[i], `"Operation":"bilibili search"`) {
			t.Errorf("record %d: expected %s, got %s", i, want, lines[i])
		}
	}
}
