// Package synth provides the HTTP client for the diffusion-based audio
// synthesis collaborator.
package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout is the default request timeout for synthesis.
const DefaultTimeout = 300 * time.Second

// Synthesizer is the synthesis collaborator contract.
type Synthesizer interface {
	// Generate produces a WAV payload for the directive.
	Generate(ctx context.Context, prompt string, bpm float64, duration float64, sampleRate int) ([]byte, error)
}

// Client calls the synthesis collaborator.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientConfig holds the configuration for the synthesis client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a new synthesis client.
func NewClient(cfg *ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type generateRequest struct {
	Prompt     string  `json:"prompt"`
	BPM        float64 `json:"bpm"`
	Duration   float64 `json:"duration"`
	SampleRate int     `json:"sample_rate"`
}

// Generate requests a WAV payload from the collaborator.
func (c *Client) Generate(ctx context.Context, prompt string, bpm float64, duration float64, sampleRate int) ([]byte, error) {
	payload, err := json.Marshal(generateRequest{
		Prompt:     prompt,
		BPM:        bpm,
		Duration:   duration,
		SampleRate: sampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generate request: %w", err)
	}

	url := c.baseURL + "/v1/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generate request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read generate response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generate returned status %d: %s", resp.StatusCode, string(body))
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("generate returned an empty payload")
	}

	return body, nil
}
