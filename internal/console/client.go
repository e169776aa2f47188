package console

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fyrsmithlabs/campusd/internal/chat"
	httpserver "github.com/fyrsmithlabs/campusd/internal/http"
	"github.com/fyrsmithlabs/campusd/internal/index"
)

// Client talks to a running campusd.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health fetches GET /health.
func (c *Client) Health(ctx context.Context) (*httpserver.HealthResponse, error) {
	var resp httpserver.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Chat sends one chat message.
func (c *Client) Chat(ctx context.Context, message, userID string) (*chat.Response, error) {
	var resp chat.Response
	req := chat.Request{Message: message, UserID: userID}
	if err := c.do(ctx, http.MethodPost, "/api/v1/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Retrieve returns the raw nearest chunks for query.
func (c *Client) Retrieve(ctx context.Context, query string, topK int) ([]index.RetrievedChunk, error) {
	var resp httpserver.RetrieveResponse
	req := httpserver.RetrieveRequest{Query: query, TopK: &topK}
	if err := c.do(ctx, http.MethodPost, "/api/v1/retrieve", req, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// statusError reports a non-200 response, preferring the server's message.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, body.Message)
	}
	return fmt.Errorf("unexpected status code %d", resp.StatusCode)
}
