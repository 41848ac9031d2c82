package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/backsweep/backsweep/api"
)

// RunCleanup triggers a retention cleanup run on the server and returns the
// per-folder report. With dryRun set, the server evaluates the policies and
// reports what would be deleted without removing anything.
func (c *Client) RunCleanup(ctx context.Context, dryRun bool) (*api.CleanupReport, error) {
	cleanupURL := c.baseURL.JoinPath("/api/cleanup")

	if dryRun {
		query := cleanupURL.Query()
		query.Set("dry-run", "true")
		cleanupURL.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cleanupURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.authToken)

	resp, err := c.DoWithRetry(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer deferCloseBody(resp)

	if err := checkResponse(resp, http.StatusOK); err != nil {
		return nil, fmt.Errorf("cleanup failed: %w", err)
	}

	var report api.CleanupReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	return &report, nil
}
