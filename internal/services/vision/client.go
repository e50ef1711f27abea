// Package vision provides the HTTP client for the vision-description
// collaborator, which translates a drawing into a structured sonic
// description. Image-derived directives are single-shot and stateless: they
// never touch the conversational decision engine.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultTimeout is the default request timeout for image analysis.
const DefaultTimeout = 120 * time.Second

// SonicDescription is the structured output of the vision collaborator.
type SonicDescription struct {
	ActionType string `json:"action_type"`
	Parameters struct {
		SampleDetails struct {
			MusicgenPrompt string  `json:"musicgen_prompt"`
			Key            string  `json:"key"`
			BPM            float64 `json:"bpm"`
			Duration       float64 `json:"duration"`
		} `json:"sample_details"`
		SonicAnalysis struct {
			Atmosphere  string `json:"atmosphere"`
			Mood        string `json:"mood"`
			EnergyLevel int    `json:"energy_level"`
			Texture     string `json:"texture"`
		} `json:"sonic_analysis"`
	} `json:"parameters"`
	Reasoning string `json:"reasoning"`
}

// ExtractPrompt builds the synthesis prompt from the description, appending
// the tempo and tonality the collaborator was told to leave out.
func (d *SonicDescription) ExtractPrompt(bpm float64, key string) string {
	return fmt.Sprintf("%s, %.0f BPM, %s tonality", d.Parameters.SampleDetails.MusicgenPrompt, bpm, key)
}

// Describer is the vision collaborator contract.
type Describer interface {
	Describe(ctx context.Context, imagePath string, bpm float64, key string, temperature float64) (*SonicDescription, error)
}

// Client calls the vision-description collaborator.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientConfig holds the configuration for the vision client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a new vision client.
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

type describeRequest struct {
	ImageBase64 string  `json:"image_base64"`
	BPM         float64 `json:"bpm"`
	Key         string  `json:"key"`
	Temperature float64 `json:"temperature"`
}

type describeResponse struct {
	Content string `json:"content"`
}

// Describe sends the image to the collaborator and parses the structured
// sonic description out of its response.
func (c *Client) Describe(ctx context.Context, imagePath string, bpm float64, key string, temperature float64) (*SonicDescription, error) {
	imageBytes, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	payload, err := json.Marshal(describeRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(imageBytes),
		BPM:         bpm,
		Key:         key,
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal describe request: %w", err)
	}

	url := c.baseURL + "/v1/describe"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create describe request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("describe request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read describe response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("describe returned status %d: %s", resp.StatusCode, string(body))
	}

	var wrapper describeResponse
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to decode describe response: %w", err)
	}

	return ParseDescription(wrapper.Content)
}

// ParseDescription parses the collaborator's raw output, tolerating a
// markdown code fence around the JSON.
func ParseDescription(raw string) (*SonicDescription, error) {
	raw = strings.TrimSpace(raw)
	if after, found := strings.CutPrefix(raw, "```json"); found {
		raw, _, _ = strings.Cut(after, "```")
	}

	var description SonicDescription
	if err := json.Unmarshal([]byte(raw), &description); err != nil {
		return nil, fmt.Errorf("invalid sonic description JSON: %w", err)
	}
	if description.Parameters.SampleDetails.MusicgenPrompt == "" {
		return nil, fmt.Errorf("sonic description is missing the generation prompt")
	}
	return &description, nil
}
