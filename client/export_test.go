package client

import (
	"net/http"

	"github.com/backsweep/backsweep/ratelimit"
)

// IsRetryableStatus exports isRetryableStatus for testing.
var IsRetryableStatus = isRetryableStatus

// RetryAfterDuration exports retryAfterDuration for testing.
var RetryAfterDuration = retryAfterDuration

// NewTestClient creates a Client for testing with a custom HTTP client and retry config.
func NewTestClient(httpClient *http.Client, retry RetryConfig) *Client {
	return &Client{
		httpClient:        httpClient,
		Retry:             retry,
		ServerRateLimiter: ratelimit.NewAdaptiveRateLimiter(0, "server-test"),
	}
}
