package client

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/backsweep/backsweep/ratelimit"
)

// Client talks to the backsweep server.
type Client struct {
	baseURL           *url.URL
	authToken         string
	httpClient        *http.Client
	Retry             RetryConfig                    // Retry configuration for HTTP requests
	ServerRateLimiter *ratelimit.AdaptiveRateLimiter // Paces requests once the server throttles
}

// NewClient creates a client for the given server URL.
func NewClient(serverURL, authToken string) (*Client, error) {
	baseURL, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server URL: %w", err)
	}

	return &Client{
		baseURL:   baseURL,
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: 0, // No timeout; cleanup runs on large buckets can take minutes
		},
		Retry:             DefaultRetryConfig(),
		ServerRateLimiter: ratelimit.NewAdaptiveRateLimiter(0, "server"),
	}, nil
}

func deferCloseBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Error("Failed to close response body", "error", err)
	}
}

func checkResponse(resp *http.Response, acceptedStatuses ...int) error {
	for _, status := range acceptedStatuses {
		if resp.StatusCode == status {
			return nil
		}
	}

	body, _ := io.ReadAll(resp.Body)

	return fmt.Errorf("server returned %d: %s", resp.StatusCode, body)
}
