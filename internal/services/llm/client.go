// Package llm provides the HTTP client for the text-decision collaborator.
// The collaborator speaks the OpenAI-compatible chat completion protocol
// with structured-output enforcement (llama.cpp server style).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/obsidian-neural/loop-service/internal/domain/models"
)

// DefaultTimeout is the default request timeout for completions.
const DefaultTimeout = 60 * time.Second

// Client calls the language-model collaborator.
type Client struct {
	baseURL     string
	temperature float64
	httpClient  *http.Client
}

// ClientConfig holds the configuration for the LLM client.
type ClientConfig struct {
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
}

// NewClient creates a new LLM client.
func NewClient(cfg *ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	return &Client{
		baseURL:     cfg.BaseURL,
		temperature: temperature,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type   string          `json:"type"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

type completionRequest struct {
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    float64         `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the turn sequence to the collaborator with a required
// structured-output schema and returns the raw response content.
func (c *Client) Complete(ctx context.Context, turns []models.Turn, schema json.RawMessage) (string, error) {
	messages := make([]chatMessage, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, chatMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}

	reqBody := completionRequest{
		Messages:    messages,
		Temperature: c.temperature,
	}
	if schema != nil {
		reqBody.ResponseFormat = &responseFormat{
			Type:   "json_object",
			Schema: schema,
		}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	url := c.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read completion response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion returned status %d: %s", resp.StatusCode, string(body))
	}

	var completion completionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	return completion.Choices[0].Message.Content, nil
}
