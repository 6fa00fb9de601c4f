// Package tracker is the Jira Cloud REST v3 client. It owns every outbound
// call to the knowledge source: reading work items, creating and updating
// test issues, linking, labeling, and deleting. Transient failures (429 and
// 5xx) are retried with linear backoff plus jitter; definitive failures
// surface as *APIError so callers can report the failing operation and
// continue.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"casegen/internal/config"
)

// Client talks to the issue tracker.
type Client struct {
	baseURL    string
	email      string
	token      string
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// APIError describes a failed tracker operation.
type APIError struct {
	Op     string // operation name, e.g. "create test issue"
	Key    string // issue key involved, if any
	Status int    // HTTP status, 0 for transport errors
	Err    error
}

func (e *APIError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("tracker: %s (%s): %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("tracker: %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// NotFound reports whether the error is a tracker 404.
func NotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// NewClient creates a tracker client from configuration.
func NewClient(cfg config.TrackerConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		email:      cfg.Email,
		token:      cfg.Token,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.BackoffDuration(),
		httpClient: &http.Client{
			Timeout: cfg.TimeoutDuration(),
		},
		logger: logger,
	}
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// request performs one REST call with retries. It returns the raw response
// body; 204 and empty bodies return nil.
func (c *Client) request(ctx context.Context, method, path string, params url.Values, body any) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	maxRetries := c.maxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	var lastStatus int
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			sleep := c.backoff*time.Duration(attempt-1) + time.Duration(rand.Int63n(int64(200*time.Millisecond)))
			select {
			case <-time.After(sleep):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")
		req.SetBasicAuth(c.email, c.token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			lastStatus = 0
			c.logger.Warn("tracker request failed",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			lastStatus = 0
			continue
		}

		if retryableStatus(resp.StatusCode) {
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200))
			lastStatus = resp.StatusCode
			c.logger.Warn("tracker request retryable failure",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt))
			continue
		}

		if resp.StatusCode >= 400 {
			return nil, &APIError{
				Op:     method + " " + path,
				Status: resp.StatusCode,
				Err:    fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200)),
			}
		}

		if resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
			return nil, nil
		}
		return respBody, nil
	}

	return nil, &APIError{
		Op:     method + " " + path,
		Status: lastStatus,
		Err:    fmt.Errorf("request failed after %d attempts: %w", maxRetries, lastErr),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
