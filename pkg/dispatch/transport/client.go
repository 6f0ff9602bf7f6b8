package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config contains HTTP client configuration for a capability target.
type Config struct {
	// BaseURL is the target's base endpoint, e.g. "http://sdn:8181".
	BaseURL string `yaml:"base_url" json:"base_url"`

	// APIKey, when set, is sent as a bearer token.
	APIKey string `yaml:"api_key" json:"api_key"`

	// Timeout is the whole-request timeout. The dispatcher usually
	// imposes a tighter per-call context deadline on top.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// MaxIdleConns is the connection pool size.
	MaxIdleConns int `yaml:"max_idle_conns" json:"max_idle_conns"`

	// MaxIdleConnsPerHost is the per-host pool size.
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host" json:"max_idle_conns_per_host"`

	// IdleConnTimeout is how long idle connections are kept.
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout" json:"idle_conn_timeout"`
}

// DefaultConfig returns pooled-client defaults for a base URL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:             baseURL,
		Timeout:             10 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
}

// StatusError is a non-2xx response from a capability target.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Retryable reports whether the status suggests a retry may help.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client is a pooled JSON-over-HTTP client.
type Client struct {
	config Config
	http   *http.Client
}

// NewClient creates a client for the configured target.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("transport: base_url is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("transport: invalid base_url: %w", err)
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}
	return &Client{
		config: config,
		http:   &http.Client{Transport: transport, Timeout: config.Timeout},
	}, nil
}

// PostJSON sends body as JSON to path and discards the response body.
// Non-2xx responses become StatusError.
func (c *Client) PostJSON(ctx context.Context, path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("transport: encoding request: %w", err)
	}

	endpoint := strings.TrimRight(c.config.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("transport: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Bound the error body so a misbehaving target cannot bloat logs.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	// Drain so the connection returns to the pool.
	io.Copy(io.Discard, resp.Body)
	return nil
}
