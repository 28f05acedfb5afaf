// Package slack posts formatted reports to a Slack channel via the Web API.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/buildlens/buildlens/internal/core/domain"
	"github.com/buildlens/buildlens/internal/core/ports/driven"
)

const (
	defaultBaseURL = "https://slack.com/api"
	defaultTimeout = 30 * time.Second
)

// Client posts messages with a bot token. Implements driven.Notifier.
type Client struct {
	token   string
	baseURL string
	client  *http.Client
}

var _ driven.Notifier = (*Client)(nil)

// NewClient creates a Slack client. baseURL may be empty for the public API.
func NewClient(token, baseURL string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: slack token required", domain.ErrInvalidInput)
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		token:   token,
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}, nil
}

type postMessageRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type postMessageResponse struct {
	OK    bool   `json:"ok"`
	TS    string `json:"ts"`
	Error string `json:"error"`
}

// Post sends text to the channel via chat.postMessage and returns the
// message timestamp.
func (c *Client) Post(ctx context.Context, channel, text string) (string, error) {
	if channel == "" {
		return "", fmt.Errorf("%w: slack channel required", domain.ErrInvalidInput)
	}

	body, err := json.Marshal(postMessageRequest{Channel: channel, Text: text})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("posting message: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("slack API returned status %d: %s", resp.StatusCode, string(data))
	}

	var result postMessageResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	// Slack signals API errors with 200 + ok:false.
	if !result.OK {
		return "", fmt.Errorf("slack API error: %s", result.Error)
	}
	return result.TS, nil
}

// Close releases resources.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
