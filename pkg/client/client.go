// Package client talks to a running devsup daemon over HTTP and its events
// websocket.
package client

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
)

// Client provides HTTP client functionality to communicate with the devsup daemon
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Logger  *slog.Logger // Optional logger for client operations
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:7788/api",
		Timeout: 10 * time.Second,
	}
}

// New creates a new devsup API client
func New(config Config) *Client {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		token:   config.Token,
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// IsReachable checks if the daemon is running and reachable
func (c *Client) IsReachable(ctx context.Context) bool {
	err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	if err != nil {
		c.logger.Debug("Daemon unreachable", "error", err)
		return false
	}
	return true
}

// Start launches (or restarts) the dev server for req.Key. Configuration
// and spawn failures are reported in the result, not as an error.
func (c *Client) Start(ctx context.Context, req StartRequest) (StartResult, error) {
	var res StartResult
	err := c.do(ctx, http.MethodPost, "/webapp-start", req, &res)
	return res, err
}

// Stop requests a graceful stop of the dev server for key.
func (c *Client) Stop(ctx context.Context, key int) error {
	return c.do(ctx, http.MethodPost, "/webapp-stop", keyRequest{Key: key}, nil)
}

// DetectFramework returns nil when cwd has no package.json.
func (c *Client) DetectFramework(ctx context.Context, cwd string) (*Framework, error) {
	var fw *Framework
	err := c.do(ctx, http.MethodPost, "/webapp-detect-framework", cwdRequest{Cwd: cwd}, &fw)
	return fw, err
}

// Port returns the detected port for key; ok is false when there is none yet.
func (c *Client) Port(ctx context.Context, key int) (port int, ok bool, err error) {
	var p *int
	if err := c.do(ctx, http.MethodPost, "/webapp-get-port", keyRequest{Key: key}, &p); err != nil {
		return 0, false, err
	}
	if p == nil {
		return 0, false, nil
	}
	return *p, true, nil
}

// Input writes raw bytes to the dev server's terminal.
func (c *Client) Input(ctx context.Context, key int, data []byte) error {
	return c.do(ctx, http.MethodPost, "/webapp-input", inputFrame{Key: key, Data: data}, nil)
}

func (c *Client) Resize(ctx context.Context, key int, cols, rows uint16) error {
	return c.do(ctx, http.MethodPost, "/webapp-resize", inputFrame{Key: key, Cols: cols, Rows: rows}, nil)
}

// List returns running dev servers sorted by key.
func (c *Client) List(ctx context.Context) ([]DevServer, error) {
	var out []DevServer
	err := c.do(ctx, http.MethodGet, "/webapp-list", nil, &out)
	return out, err
}

// Stats returns nil when no dev server runs for key.
func (c *Client) Stats(ctx context.Context, key int) (*Stats, error) {
	var st *Stats
	err := c.do(ctx, http.MethodPost, "/webapp-stats", keyRequest{Key: key}, &st)
	return st, err
}

// do performs an HTTP request with common error handling. A nil out
// discards the response body.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req.Header)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.handleErrorResponse(resp); err != nil {
		return err
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(h http.Header) {
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
}

// handleErrorResponse handles HTTP error responses
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	var errorResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil || errorResp.Error == "" {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	c.logger.Debug("API request failed", "error", errorResp.Error, "status", resp.StatusCode)
	return fmt.Errorf("API error: %s", errorResp.Error)
}
