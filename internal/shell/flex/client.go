// Package flex provides a client for the host UI configuration registry: UI
// version and dependency declarations, feature flags, and the list of
// serverless services plugins are served from.
package flex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/artpar/flexdeploy/internal/core/domain"
)

// DefaultPilotFlag is the feature flag that gates the preview deploy API.
const DefaultPilotFlag = "plugins_pilot"

// Client provides methods for the configuration registry.
type Client struct {
	baseURL    string
	pilotFlag  string
	creds      domain.Credentials
	httpClient *http.Client
	logger     *slog.Logger
}

// Config holds configuration registry client settings.
type Config struct {
	BaseURL     string // e.g., "https://flex-api.twilio.com"
	PilotFlag   string
	Credentials domain.Credentials
	Timeout     time.Duration
}

// NewClient creates a new configuration registry client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	pilotFlag := cfg.PilotFlag
	if pilotFlag == "" {
		pilotFlag = DefaultPilotFlag
	}
	return &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		pilotFlag: pilotFlag,
		creds:     cfg.Credentials,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// =============================================================================
// Configuration Types
// =============================================================================

// Configuration is the registry document.
type Configuration struct {
	AccountSid            string            `json:"account_sid"`
	UIVersion             string            `json:"ui_version"`
	UIDependencies        map[string]string `json:"ui_dependencies"`
	ServerlessServiceSids []string          `json:"serverless_service_sids"`
	FeatureFlags          map[string]bool   `json:"feature_flags,omitempty"`
}

type configurationUpdate struct {
	AccountSid            string   `json:"account_sid"`
	ServerlessServiceSids []string `json:"serverless_service_sids"`
}

// =============================================================================
// Configuration Operations
// =============================================================================

// GetConfiguration fetches the registry document.
func (c *Client) GetConfiguration(ctx context.Context) (*Configuration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/Configuration", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result Configuration
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// GetFlexUIVersion returns the host UI version.
func (c *Client) GetFlexUIVersion(ctx context.Context) (string, error) {
	cfg, err := c.GetConfiguration(ctx)
	if err != nil {
		return "", err
	}
	return cfg.UIVersion, nil
}

// GetUIDependencies returns the dependency ranges the host UI declares.
func (c *Client) GetUIDependencies(ctx context.Context) (map[string]string, error) {
	cfg, err := c.GetConfiguration(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.UIDependencies == nil {
		return map[string]string{}, nil
	}
	return cfg.UIDependencies, nil
}

// HasFlag reports whether the pilot feature flag is enabled.
func (c *Client) HasFlag(ctx context.Context) (bool, error) {
	cfg, err := c.GetConfiguration(ctx)
	if err != nil {
		return false, err
	}
	return cfg.FeatureFlags[c.pilotFlag], nil
}

// RegisterSid adds serviceSid to the registry's service list. It is a no-op
// when the sid is already registered.
func (c *Client) RegisterSid(ctx context.Context, serviceSid string) error {
	cfg, err := c.GetConfiguration(ctx)
	if err != nil {
		return fmt.Errorf("read configuration: %w", err)
	}

	if slices.Contains(cfg.ServerlessServiceSids, serviceSid) {
		c.logger.Debug("service already registered", "service_sid", serviceSid)
		return nil
	}

	update := configurationUpdate{
		AccountSid:            cfg.AccountSid,
		ServerlessServiceSids: append(slices.Clone(cfg.ServerlessServiceSids), serviceSid),
	}
	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal configuration: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/Configuration", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Info("registered service", "service_sid", serviceSid)
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if !c.creds.IsZero() {
		req.SetBasicAuth(c.creds.Username, c.creds.Password)
	}
}
