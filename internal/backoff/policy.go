// Package backoff provides the shared retry/backoff policy used by the LLM
// client and the batch executor.
package backoff

import (
	"context"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Defaults for LLM-facing calls.
const (
	DefaultInitial = 2 * time.Second
	DefaultMax     = 120 * time.Second
	DefaultRetries = 3

	// RetryAfterPadding is added on top of an upstream Retry-After value.
	RetryAfterPadding = 5 * time.Second
)

// Policy describes an exponential backoff schedule. The zero value is not
// usable; construct with New.
type Policy struct {
	Initial time.Duration
	Max     time.Duration
	Retries int

	// SleepFunc replaces the real clock in tests. Nil means real sleep.
	SleepFunc func(ctx context.Context, d time.Duration) error
	// RandFunc replaces the jitter source in tests. Nil means math/rand.
	RandFunc func(max time.Duration) time.Duration
}

// New creates a policy with the given schedule. Non-positive arguments fall
// back to the defaults.
func New(initial, max time.Duration, retries int) Policy {
	if initial <= 0 {
		initial = DefaultInitial
	}
	if max <= 0 {
		max = DefaultMax
	}
	if retries < 0 {
		retries = DefaultRetries
	}
	return Policy{Initial: initial, Max: max, Retries: retries}
}

// Default returns the standard schedule: 2 s doubling, capped at 120 s, 3 retries.
func Default() Policy {
	return New(DefaultInitial, DefaultMax, DefaultRetries)
}

// Delay returns the wait before retry number attempt (0-based): the initial
// delay doubled per attempt, capped at Max.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.Initial
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.Max {
			return p.Max
		}
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// Sleep waits for d, honoring context cancellation.
func (p Policy) Sleep(ctx context.Context, d time.Duration) error {
	if p.SleepFunc != nil {
		return p.SleepFunc(ctx, d)
	}
	if d <= 0 {
		return nil
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

// Jitter returns a uniform random duration in [0, max).
func (p Policy) Jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	if p.RandFunc != nil {
		return p.RandFunc(max)
	}
	return time.Duration(rand.Int63n(int64(max)))
}

// RetryAfter parses a Retry-After header value, either delta-seconds or an
// HTTP date. Returns 0 when absent or unparseable.
func RetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs > 0 {
			return time.Duration(secs) * time.Second
		}
		return 0
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
