package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/backsweep/backsweep/ratelimit"
)

// RetryConfig holds retry configuration for HTTP requests.
type RetryConfig struct {
	MaxRetries     int           // Maximum number of retry attempts (0 = no retries)
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration
	Multiplier     float64       // Backoff multiplier for each retry
	Jitter         float64       // Random jitter factor (0.0-1.0)
}

// DefaultRetryConfig returns sensible defaults for retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
	}
}

// isRetryableStatus determines if an HTTP status code should trigger a retry.
func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusInternalServerError, // 500
		http.StatusBadGateway,          // 502
		http.StatusServiceUnavailable,  // 503
		http.StatusGatewayTimeout,      // 504
		http.StatusInsufficientStorage, // 507
		http.StatusRequestTimeout,      // 408
		http.StatusTooManyRequests:     // 429
		return true
	default:
		return false
	}
}

// isRetryableError determines if an error should trigger a retry.
// Network errors, timeouts and connection resets are retryable; a canceled
// context means the caller gave up, so it is not.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	return true
}

// calculateBackoff calculates the backoff duration for a given attempt.
func (c *RetryConfig) calculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return c.InitialBackoff
	}

	backoff := float64(c.InitialBackoff) * math.Pow(c.Multiplier, float64(attempt))
	if backoff > float64(c.MaxBackoff) {
		backoff = float64(c.MaxBackoff)
	}

	// Add jitter to prevent thundering herd
	if c.Jitter > 0 {
		//nolint:gosec // math/rand is fine for jitter (not cryptographic)
		backoff += backoff * c.Jitter * (rand.Float64()*2 - 1)
	}

	return time.Duration(backoff)
}

// closeResponseBody safely drains and closes an HTTP response body.
func closeResponseBody(body io.ReadCloser) {
	if body == nil {
		return
	}

	if _, err := io.Copy(io.Discard, body); err != nil {
		slog.Warn("Failed to drain response body", "error", err)
	}

	if err := body.Close(); err != nil {
		slog.Warn("Failed to close response body", "error", err)
	}
}

// retryAfterDuration parses the Retry-After header and returns the duration to wait.
// The header can carry a number of seconds (e.g., "120") or an HTTP-date.
// Returns 0 if the header is missing, invalid, or in the past.
func retryAfterDuration(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.ParseInt(strings.TrimSpace(retryAfter), 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}

		return 0
	}

	if retryTime, err := http.ParseTime(retryAfter); err == nil {
		if duration := time.Until(retryTime); duration > 0 {
			return duration
		}

		return 0
	}

	return 0
}

// recordLimiterFeedback updates the rate limiter based on the HTTP response status.
func recordLimiterFeedback(limiter *ratelimit.AdaptiveRateLimiter, statusCode int) {
	if limiter == nil {
		return
	}

	switch {
	case statusCode == http.StatusTooManyRequests || statusCode == http.StatusServiceUnavailable:
		limiter.RecordThrottle()
	case statusCode >= 200 && statusCode < 300:
		limiter.RecordSuccess()
	}
}

// waitForLimiter blocks until the rate limiter allows a request.
func waitForLimiter(ctx context.Context, limiter *ratelimit.AdaptiveRateLimiter) error {
	if limiter == nil {
		return nil
	}

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	return nil
}

// DoWithRetry executes an HTTP request with adaptive rate limiting and
// exponential backoff retry.
func (c *Client) DoWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.doWithRetry(ctx, req, c.ServerRateLimiter)
}

func (c *Client) doWithRetry(ctx context.Context, req *http.Request, limiter *ratelimit.AdaptiveRateLimiter) (*http.Response, error) {
	if c.Retry.MaxRetries <= 0 {
		return c.doOnce(ctx, req, limiter)
	}

	// Retries replay the body through GetBody instead of buffering it here.
	// http.NewRequest sets GetBody automatically for *bytes.Reader and
	// *strings.Reader, which all callers use.
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return nil, errors.New("request with body must have GetBody set for retry support")
	}

	for attempt := 0; ; attempt++ {
		if err := waitForLimiter(ctx, limiter); err != nil {
			return nil, err
		}

		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("getting request body for retry: %w", err)
			}

			req.Body = body
		}

		resp, err := c.httpClient.Do(req)

		var retryable bool

		if err != nil {
			retryable = isRetryableError(err)
		} else {
			recordLimiterFeedback(limiter, resp.StatusCode)
			retryable = isRetryableStatus(resp.StatusCode)
		}

		// The last response goes back to the caller with its body intact,
		// whether its status was retryable or not.
		if !retryable || attempt == c.Retry.MaxRetries {
			if err != nil {
				return nil, fmt.Errorf("request failed after retries: %w", err)
			}

			return resp, nil
		}

		backoff := c.Retry.calculateBackoff(attempt)

		if err != nil {
			slog.Warn("Request failed, retrying",
				"attempt", attempt+1,
				"max_attempts", c.Retry.MaxRetries+1,
				"backoff", backoff,
				"error", err,
				"url", req.URL.Redacted())
		} else {
			// Honor a server-provided Retry-After header if it is longer
			// than our own backoff.
			if ra := retryAfterDuration(resp); ra > backoff {
				backoff = ra
			}

			closeResponseBody(resp.Body)

			slog.Warn("Request returned retryable status, retrying",
				"attempt", attempt+1,
				"max_attempts", c.Retry.MaxRetries+1,
				"backoff", backoff,
				"status", resp.StatusCode,
				"url", req.URL.Redacted())
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}
}

// doOnce executes a single HTTP request without retries, with rate limiting feedback.
func (c *Client) doOnce(ctx context.Context, req *http.Request, limiter *ratelimit.AdaptiveRateLimiter) (*http.Response, error) {
	if err := waitForLimiter(ctx, limiter); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	recordLimiterFeedback(limiter, resp.StatusCode)

	return resp, nil
}
