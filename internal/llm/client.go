// Package llm provides the chat-completion client for the query pipeline.
//
// The client speaks the messages wire protocol: POST {base}/v1/messages with
// x-api-key and anthropic-version headers, a single user message, and a
// response whose text segments are concatenated. Retry behavior is owned
// here rather than delegated to an SDK so the schedule stays deterministic
// and testable: exponential backoff from 2 s capped at 120 s, Retry-After
// plus five seconds on 429, immediate failure on other 4xx.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/henrybloomingdale/clinlit/internal/backoff"
)

const (
	// DefaultModel is the short-tier model used for strategy, filtering,
	// and per-article analysis.
	DefaultModel = "haiku-tier"
	// DefaultTemperature for general completions.
	DefaultTemperature = 0.7
	// DefaultMaxTokens per completion.
	DefaultMaxTokens = 2048
	// DefaultTimeout for short calls.
	DefaultTimeout = 45 * time.Second
	// LongTimeout for per-article analysis and synthesis calls.
	LongTimeout = 180 * time.Second

	apiVersion = "2023-06-01"

	// maxResponseBytes guards against unbounded reads (10 MB).
	maxResponseBytes int64 = 10 * 1024 * 1024
)

// Options configures a single completion. Zero fields take the defaults.
// Temperature is a pointer so an explicit 0.0 is distinguishable from unset.
type Options struct {
	Model       string
	Temperature *float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

// Temp is a convenience for building Options literals.
func Temp(t float64) *float64 { return &t }

func (o Options) withDefaults(c *Client) Options {
	if o.Model == "" {
		o.Model = c.Model
	}
	if o.Temperature == nil {
		o.Temperature = Temp(DefaultTemperature)
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Timeout <= 0 {
		o.Timeout = c.ShortTimeout
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = c.Policy.Retries
	}
	return o
}

// Client is the messages-wire chat client. Send methods are safe for
// concurrent use. ShortTimeout is the per-request deadline when an
// Options literal leaves Timeout unset; LongTimeout is what callers use
// for analysis and synthesis calls.
type Client struct {
	BaseURL      string
	APIKey       string
	Model        string
	HTTPClient   *http.Client
	Policy       backoff.Policy
	ShortTimeout time.Duration
	LongTimeout  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the API base URL. Empty values are ignored.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.BaseURL = u
		}
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.APIKey = key }
}

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.Model = model
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithPolicy sets the retry/backoff policy.
func WithPolicy(p backoff.Policy) Option {
	return func(c *Client) { c.Policy = p }
}

// WithShortTimeout sets the default per-request deadline. Non-positive
// values are ignored.
func WithShortTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.ShortTimeout = d
		}
	}
}

// WithLongTimeout sets the deadline for analysis and synthesis calls.
// Non-positive values are ignored.
func WithLongTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.LongTimeout = d
		}
	}
}

// NewClient creates a messages client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		Model:        DefaultModel,
		HTTPClient:   &http.Client{},
		Policy:       backoff.Default(),
		ShortTimeout: DefaultTimeout,
		LongTimeout:  LongTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wire types.

type messagesRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Text string `json:"text"`
}

// Complete sends one user message and returns the concatenated text
// segments of the response.
func (c *Client) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	prompt, err := SanitizePrompt(prompt)
	if err != nil {
		return "", fmt.Errorf("invalid prompt: %w", err)
	}
	opts = opts.withDefaults(c)

	payload, err := json.Marshal(messagesRequest{
		Model:       opts.Model,
		Messages:    []message{{Role: "user", Content: prompt}},
		Temperature: *opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	endpoint, err := url.JoinPath(c.BaseURL, "v1", "messages")
	if err != nil {
		return "", fmt.Errorf("building URL: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		text, retryIn, err := c.send(ctx, endpoint, payload, opts.Timeout)
		if err == nil {
			return text, nil
		}
		lastErr = err

		// Non-retryable failures are final regardless of budget.
		if errors.Is(err, ErrBadRequest) || errors.Is(err, ErrInvalidFormat) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("request canceled: %w", ctx.Err())
		}
		if attempt >= opts.MaxRetries {
			break
		}

		wait := retryIn
		if wait <= 0 {
			wait = c.Policy.Delay(attempt)
		}
		if sleepErr := c.Policy.Sleep(ctx, wait); sleepErr != nil {
			return "", fmt.Errorf("retry wait canceled: %w", sleepErr)
		}
	}
	return "", lastErr
}

// send performs one attempt. A positive retryIn carries the Retry-After
// wait for a 429 answer.
func (c *Client) send(ctx context.Context, endpoint string, payload []byte, timeout time.Duration) (text string, retryIn time.Duration, err error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return "", 0, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		if isRetryable(err) {
			return "", 0, fmt.Errorf("%w: %v", ErrTransient, err)
		}
		return "", 0, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", 0, fmt.Errorf("%w: reading response: %v", ErrTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// handled below
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := backoff.RetryAfter(resp.Header.Get("retry-after"))
		if wait > 0 {
			wait += backoff.RetryAfterPadding
		}
		return "", wait, fmt.Errorf("%w (HTTP 429)", ErrRateLimit)
	case resp.StatusCode >= 500:
		return "", 0, fmt.Errorf("%w (HTTP %d)", ErrTransient, resp.StatusCode)
	case resp.StatusCode >= 400:
		return "", 0, fmt.Errorf("%w (HTTP %d): %s", ErrBadRequest, resp.StatusCode, truncateBody(body))
	default:
		return "", 0, fmt.Errorf("%w (HTTP %d)", ErrTransient, resp.StatusCode)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	var sb strings.Builder
	for _, block := range parsed.Content {
		sb.WriteString(block.Text)
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", 0, fmt.Errorf("%w: response carries no text content", ErrInvalidFormat)
	}
	return out, 0, nil
}

func truncateBody(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
