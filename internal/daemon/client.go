package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultPort is the default daemon HTTP API port.
const DefaultPort = 8765

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 5 * time.Second

// Client is an HTTP client for the firing daemon's command API.
type Client struct {
	Host       string
	Port       int
	HTTPClient *http.Client
	testURL    string // For testing with httptest
}

// NewClient creates a new daemon client with default settings.
func NewClient(host string) *Client {
	return NewClientWithPort(host, DefaultPort)
}

// NewClientWithPort creates a new daemon client with a custom port.
func NewClientWithPort(host string, port int) *Client {
	return &Client{
		Host: host,
		Port: port,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// Endpoint returns the full command endpoint URL.
func (c *Client) Endpoint() string {
	if c.testURL != "" {
		return c.testURL
	}
	return fmt.Sprintf("http://%s:%d/api/command", c.Host, c.Port)
}

// sendCommand posts a command to the daemon.
func (c *Client) sendCommand(ctx context.Context, command any) ([]byte, error) {
	data, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.Endpoint(), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// Send posts cmd and returns once the daemon has accepted it.
func (c *Client) Send(ctx context.Context, cmd Command) error {
	_, err := c.sendCommand(ctx, cmd)
	return err
}

// LoadShow asks the daemon to load a show.
func (c *Client) LoadShow(ctx context.Context, showID int) error {
	cmd, err := CreateLoadShowCommand(showID)
	if err != nil {
		return err
	}
	return c.Send(ctx, cmd)
}

// StartShow asks the daemon to start the loaded show.
func (c *Client) StartShow(ctx context.Context) error {
	return c.Send(ctx, CreateStartShowCommand())
}

// StopShow asks the daemon to stop the running show.
func (c *Client) StopShow(ctx context.Context) error {
	return c.Send(ctx, CreateStopShowCommand())
}

// IsReachable checks if the daemon answers on its status endpoint.
func (c *Client) IsReachable(ctx context.Context) bool {
	url := fmt.Sprintf("http://%s:%d/api/status", c.Host, c.Port)
	if c.testURL != "" {
		url = c.testURL
	}
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return false
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
