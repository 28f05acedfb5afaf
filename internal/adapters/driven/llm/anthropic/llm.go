// Package anthropic provides an LLM service adapter using the Anthropic API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/buildlens/buildlens/internal/core/domain"
	"github.com/buildlens/buildlens/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-3-5-sonnet-latest"
	DefaultTimeout = 120 * time.Second

	// anthropicVersion is the required API version header.
	anthropicVersion = "2023-06-01"

	backendName = "anthropic"
)

// Config holds configuration for the Anthropic LLM service.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.anthropic.com).
	BaseURL string

	// Model is the LLM model to use (default: claude-3-5-sonnet-latest).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// LLMService provides completions using the Anthropic Messages API.
type LLMService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// messagesRequest is the Anthropic /v1/messages request format.
type messagesRequest struct {
	Model       string            `json:"model"`
	Messages    []messagesMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	Temperature float64           `json:"temperature,omitempty"`
}

// messagesMessage is the Anthropic message format.
type messagesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse is the Anthropic /v1/messages response format.
type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewLLMService creates a new Anthropic LLM service.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &LLMService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Complete sends one prompt and returns the response text with token usage.
func (s *LLMService) Complete(ctx context.Context, prompt string, opts driven.CompleteOptions) (*domain.ModelResponse, error) {
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024 // Anthropic requires max_tokens to be set
	}

	reqBody := messagesRequest{
		Model:     s.model,
		Messages:  []messagesMessage{{Role: "user", Content: prompt}},
		MaxTokens: maxTokens,
	}
	if opts.Temperature > 0 {
		reqBody.Temperature = opts.Temperature
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/v1/messages",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var msgResp messagesResponse
	if err := json.Unmarshal(body, &msgResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if msgResp.Error != nil {
		return nil, fmt.Errorf("anthropic error: %s", msgResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, string(body))
	}
	if len(msgResp.Content) == 0 {
		return nil, fmt.Errorf("anthropic: no response content returned")
	}

	// Concatenate all text content blocks
	var result strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
		}
	}

	return &domain.ModelResponse{
		Text:         result.String(),
		InputTokens:  msgResp.Usage.InputTokens,
		OutputTokens: msgResp.Usage.OutputTokens,
	}, nil
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Backend returns the backend identifier.
func (s *LLMService) Backend() string {
	return backendName
}

// Ping validates the service is reachable by checking the /v1/models endpoint.
// This is a lightweight check that validates the API key without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("anthropic: failed to create ping request: %w", err)
	}
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("anthropic: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("anthropic: API returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("anthropic: API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
