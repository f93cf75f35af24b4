// Package collaborator holds the HTTP adapters for the services this module
// depends on but does not own: the change-detection engine, the entity-data
// service and the per-platform health endpoints.
package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxResponseSize caps how much of a collaborator response is read
const maxResponseSize = 10 * 1024 * 1024

var (
	// ErrUnavailable is returned when the collaborator cannot be reached
	ErrUnavailable = errors.New("collaborator: service unavailable")
	// ErrRequestFailed is returned for non-2xx responses other than 404
	ErrRequestFailed = errors.New("collaborator: request failed")
	// ErrNotConfigured is returned when the collaborator has no base URL
	ErrNotConfigured = errors.New("collaborator: base URL not configured")
)

// StatusError carries the HTTP status of a failed request
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", ErrRequestFailed.Error(), e.StatusCode)
}

func (e *StatusError) Unwrap() error { return ErrRequestFailed }

// Option configures a client
type Option func(*client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for skipped or malformed records
func WithLogger(l *zap.Logger) Option {
	return func(c *client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithAuthToken sends the token as a bearer credential on every request
func WithAuthToken(token string) Option {
	return func(c *client) { c.token = token }
}

type client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
	token   string
}

func newClient(baseURL string, timeout time.Duration, opts ...Option) *client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends a JSON request and decodes a JSON response into out.
// It reports found=false for a 404.
func (c *client) do(ctx context.Context, method, path string, body, out any) (found bool, err error) {
	if c.baseURL == "" {
		return false, ErrNotConfigured
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("collaborator: marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, fmt.Errorf("collaborator: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return false, fmt.Errorf("collaborator: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 300:
		return false, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(payload), 512)}
	}

	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return false, fmt.Errorf("collaborator: decode %s %s: %w", method, path, err)
		}
	}
	return true, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
