// Package completion talks to an OpenAI-compatible chat-completions API.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"agora/internal/config"
	"agora/internal/observability"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "mistralai/Mistral-7B-Instruct-v0.2"

// ErrMalformedResponse means the service answered 2xx without usable text.
var ErrMalformedResponse = errors.New("completion: malformed response")

// APIError is a non-2xx answer from the completion service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("completion: status %d: %s", e.StatusCode, e.Body)
}

// Config is everything the client needs; nothing is read from globals.
type Config struct {
	BaseURL       string
	APIKey        string
	Model         string
	Timeout       time.Duration
	MaxRetries    int
	RatePerMinute int
	RetryWaitMin  time.Duration
	RetryWaitMax  time.Duration
}

// ConfigFrom maps application configuration onto a client Config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		BaseURL:       cfg.AIBaseURL,
		APIKey:        cfg.AIAPIKey,
		Model:         cfg.AIModel,
		Timeout:       time.Duration(cfg.AITimeoutSeconds) * time.Second,
		MaxRetries:    cfg.AIMaxRetries,
		RatePerMinute: cfg.AIRatePerMinute,
	}
}

// Client produces a reply for a prompt.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// HTTPClient is the Client for /chat/completions endpoints.
type HTTPClient struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

// leveledSlog re-writes retry ERROR logs to WARN, since a retry that
// eventually succeeds is not an error.
type leveledSlog struct {
	inner *slog.Logger
}

func (l leveledSlog) Error(msg string, keysAndValues ...any) { l.inner.Warn(msg, keysAndValues...) }
func (l leveledSlog) Warn(msg string, keysAndValues ...any)  { l.inner.Warn(msg, keysAndValues...) }
func (l leveledSlog) Info(msg string, keysAndValues ...any)  { l.inner.Info(msg, keysAndValues...) }
func (l leveledSlog) Debug(msg string, keysAndValues ...any) { l.inner.Debug(msg, keysAndValues...) }

// retryPolicy retries connection errors and 5xx (except 501) but leaves
// 429 to the caller's task-level backoff.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// NewHTTPClient builds a client with retries, tracing and client-side rate
// limiting. logger may be nil.
func NewHTTPClient(cfg Config, logger *slog.Logger) *HTTPClient {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = time.Second
	}
	if cfg.RetryWaitMax <= 0 {
		cfg.RetryWaitMax = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if logger == nil {
		logger = slog.Default()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Transport = otelhttp.NewTransport(cleanhttp.DefaultPooledTransport())
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = retryablehttp.LeveledLogger(leveledSlog{inner: logger.With("subsystem", "completion-http")})
	retryClient.CheckRetry = retryPolicy

	httpClient := retryClient.StandardClient()
	httpClient.Timeout = cfg.Timeout

	limit := rate.Inf
	if cfg.RatePerMinute > 0 {
		limit = rate.Limit(float64(cfg.RatePerMinute) / 60)
	}

	return &HTTPClient{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Complete sends prompt as a single user message and returns the first
// choice's content.
func (c *HTTPClient) Complete(ctx context.Context, prompt string) (reply string, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		var apiErr *APIError
		switch {
		case errors.As(err, &apiErr):
			outcome = fmt.Sprintf("http_%d", apiErr.StatusCode)
		case errors.Is(err, ErrMalformedResponse):
			outcome = "malformed"
		case err != nil:
			outcome = "error"
		}
		observability.CompletionRequests.WithLabelValues(outcome).Inc()
		observability.CompletionLatency.Observe(time.Since(start).Seconds())
	}()

	ctx, finish := observability.StartSpan(ctx, "completion.Complete")
	defer func() { finish(err) }()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("completion: rate limiter: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model:    c.cfg.Model,
		Messages: []Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("completion: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("completion: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("completion: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty content", ErrMalformedResponse)
	}
	return content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
