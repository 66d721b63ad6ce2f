// Package backend relays requests to the external AI-execution backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultTimeout bounds one relay call when the config does not set one.
	DefaultTimeout = 300 * time.Second

	maxResponseBytes = 32 << 20
)

// ErrNotConfigured is reported when no backend base URL is configured.
var ErrNotConfigured = errors.New("Backend URL not configured")

// Config is the read-only backend configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client issues one POST per relay call. It never retries.
type Client struct {
	config     Config
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for backend calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(config Config, opts ...Option) *Client {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	c := &Client{
		config:     config,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Relay posts payload to <base_url>/<endpoint> with the stored credential and
// model injected. Every failure is returned as an unsuccessful Result.
func (c *Client) Relay(ctx context.Context, endpoint string, payload map[string]any) *Result {
	if strings.TrimSpace(c.config.BaseURL) == "" {
		return Failure(ErrNotConfigured.Error())
	}

	body := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		body[k] = v
	}
	// Credentials always come from configuration, never from the caller.
	body["api_key"] = c.config.APIKey
	body["model"] = c.config.Model

	data, err := json.Marshal(body)
	if err != nil {
		return Failure(errors.Wrap(err, "failed to encode backend request").Error())
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return Failure(errors.Wrap(err, "failed to build backend request").Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = errors.Errorf("backend request timed out after %s", c.config.Timeout)
		}
		slog.Warn("backend relay failed", "endpoint", endpoint, "err", err.Error())
		return Failure(err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		slog.Warn("failed to read backend response", "endpoint", endpoint, "status", resp.StatusCode, "err", err.Error())
		return Failure(errors.Wrap(err, "failed to read backend response").Error())
	}

	result := &Result{}
	if err := json.Unmarshal(raw, result); err != nil {
		slog.Warn("invalid backend response", "endpoint", endpoint, "status", resp.StatusCode, "err", err.Error())
		return Failure(fmt.Sprintf("invalid backend response (HTTP %d): %v", resp.StatusCode, err))
	}
	if !result.Success && result.Error == "" {
		result.Error = fmt.Sprintf("backend reported failure (HTTP %d)", resp.StatusCode)
	}
	slog.Debug("backend relay completed",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"success", result.Success,
		"latency", time.Since(start),
	)
	return result
}
