// Package serverless provides a client for the hosted runtime's REST API:
// services, environments, builds, deployments, assets and accounts.
package serverless

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

	"github.com/artpar/flexdeploy/internal/core/domain"
)

// =============================================================================
// Client
// =============================================================================

// Client talks to the serverless, upload and accounts endpoints.
type Client struct {
	baseURL      string
	uploadURL    string
	accountsURL  string
	serviceName  string
	creds        domain.Credentials
	pollInterval time.Duration
	pollTimeout  time.Duration
	httpClient   *http.Client
	logger       *slog.Logger
}

// Config holds serverless client configuration.
type Config struct {
	BaseURL     string // e.g., "https://serverless.twilio.com"
	UploadURL   string // e.g., "https://serverless-upload.twilio.com"
	AccountsURL string // e.g., "https://api.twilio.com"
	ServiceName string // Unique name of the plugin service, "default" if empty
	Credentials domain.Credentials
	Timeout     time.Duration

	// PollInterval and PollTimeout bound the wait for a build to finish.
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// NewClient creates a new serverless client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "default"
	}
	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = 2 * time.Second
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout == 0 {
		pollTimeout = 5 * time.Minute
	}
	uploadURL := cfg.UploadURL
	if uploadURL == "" {
		uploadURL = cfg.BaseURL
	}
	accountsURL := cfg.AccountsURL
	if accountsURL == "" {
		accountsURL = cfg.BaseURL
	}
	return &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		uploadURL:    strings.TrimSuffix(uploadURL, "/"),
		accountsURL:  strings.TrimSuffix(accountsURL, "/"),
		serviceName:  serviceName,
		creds:        cfg.Credentials,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// =============================================================================
// Errors
// =============================================================================

// ErrBuildFailed is returned when the remote build ends in the failed state.
var ErrBuildFailed = errors.New("build failed")

// APIError is a non-2xx response from the remote API.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Message)
}

// Is maps 404 responses onto domain.ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == domain.ErrNotFound && e.StatusCode == http.StatusNotFound
}

// =============================================================================
// Helper Methods
// =============================================================================

func (c *Client) setHeaders(req *http.Request, contentType string) {
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if !c.creds.IsZero() {
		req.SetBasicAuth(c.creds.Username, c.creds.Password)
	}
}

// do sends a request and decodes a JSON response into out (when non-nil).
func (c *Client) do(ctx context.Context, op, method, url string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	c.setHeaders(req, contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send request: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, op, url string, out any) error {
	return c.do(ctx, op, http.MethodGet, url, nil, "", out)
}

func (c *Client) postJSON(ctx context.Context, op, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", op, err)
	}
	return c.do(ctx, op, http.MethodPost, url, bytes.NewReader(body), "application/json", out)
}

func (c *Client) serviceURL(serviceSid string) string {
	return c.baseURL + "/v1/Services/" + serviceSid
}
