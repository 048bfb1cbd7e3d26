package llm

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Error kinds surfaced after the retry schedule is exhausted. Callers
// classify with errors.Is.
var (
	// ErrRateLimit marks an upstream 429 that survived all retries.
	ErrRateLimit = errors.New("llm: rate limited")
	// ErrTimeout marks a per-call deadline hit.
	ErrTimeout = errors.New("llm: request timed out")
	// ErrTransient marks a 5xx or connection-level failure.
	ErrTransient = errors.New("llm: transient upstream failure")
	// ErrInvalidFormat marks a response without any text content.
	ErrInvalidFormat = errors.New("llm: invalid response format")
	// ErrBadRequest marks a non-429 4xx; never retried.
	ErrBadRequest = errors.New("llm: request rejected")
)

// IsRateLimit reports whether err is rate-limit-class: the sentinel, or a
// transport error carrying an explicit rate-limit marker.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimit) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests")
}

// isRetryable reports whether a transport-level error warrants another
// attempt: timeouts and connection-class failures.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "eof") {
		return true
	}
	return false
}
