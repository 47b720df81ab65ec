package tui

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

	"hyperwatch/internal/monitor/alerts"

	"github.com/gorilla/websocket"
)

// Settings mirrors the agent's threshold settings response
type Settings struct {
	Thresholds    alerts.ThresholdSet `json:"thresholds"`
	AlertsEnabled bool                `json:"alerts_enabled"`
}

// Client talks to a running agent
type Client struct {
	baseURL   string
	container string
	token     string
	http      *http.Client
	dialer    *websocket.Dialer
}

// NewClient creates a client for the agent at baseURL watching container
func NewClient(baseURL, container string) *Client {
	if container == "" {
		container = alerts.NodeContainer
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		container: container,
		http:      &http.Client{Timeout: 10 * time.Second},
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// WithToken sets the bearer token sent on settings changes
func (c *Client) WithToken(token string) *Client {
	c.token = token
	return c
}

// Container returns the notification container this client subscribes to
func (c *Client) Container() string {
	return c.container
}

// BaseURL returns the agent address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// StreamURL returns the websocket address of the notification stream
func (c *Client) StreamURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid agent URL: %w", err)
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported agent URL scheme: %s", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/v1/notifications/ws"
	u.RawQuery = url.Values{"container": {c.container}}.Encode()
	return u.String(), nil
}

// Connect opens the notification stream
func (c *Client) Connect(ctx context.Context) (*websocket.Conn, error) {
	streamURL, err := c.StreamURL()
	if err != nil {
		return nil, err
	}
	conn, resp, err := c.dialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s: %s", streamURL, resp.Status)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", streamURL, err)
	}
	return conn, nil
}

// Settings fetches the current thresholds and alerts flag
func (c *Client) Settings(ctx context.Context) (Settings, error) {
	var settings Settings
	err := c.do(ctx, http.MethodGet, "/api/v1/settings/resource_thresholds", nil, &settings)
	return settings, err
}

// SetAlertsEnabled toggles every notification on the agent
func (c *Client) SetAlertsEnabled(ctx context.Context, enabled bool) (bool, error) {
	var resp struct {
		AlertsEnabled bool `json:"alerts_enabled"`
	}
	err := c.do(ctx, http.MethodPut, "/api/v1/settings/resource_alerts_enabled", map[string]bool{"enabled": enabled}, &resp)
	return resp.AlertsEnabled, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("agent returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
