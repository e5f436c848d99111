package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const dialoguePath = "/v1/text-to-dialogue"

// ErrNotConfigured is returned when synthesis is attempted without an API key.
var ErrNotConfigured = errors.New("synthesis provider is not configured")

// ErrMissingVoice is returned when a request carries no usable voice id.
var ErrMissingVoice = errors.New("voice id is required for synthesis")

// UpstreamError carries the provider's HTTP status and response body so the
// gateway can relay the real failure instead of a generic 502.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("synthesis upstream returned %d: %s", e.StatusCode, e.Body)
}

// DialogueInput is one text unit rendered by a single voice.
type DialogueInput struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

// Client calls the ElevenLabs text-to-dialogue endpoint and returns encoded
// audio bytes. Long scripts can take minutes to render, so the HTTP timeout
// is generous and independently configurable.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the provider endpoint, mostly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithTimeout replaces the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: "https://api.elevenlabs.io",
		apiKey:  strings.TrimSpace(apiKey),
		http:    &http.Client{Timeout: 240 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether an API key is present.
func (c *Client) Enabled() bool { return c.apiKey != "" }

// Synthesize renders the inputs as one continuous audio clip.
func (c *Client) Synthesize(ctx context.Context, inputs []DialogueInput) ([]byte, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("synthesize: no inputs")
	}
	for i := range inputs {
		inputs[i].VoiceID = strings.TrimSpace(inputs[i].VoiceID)
		if inputs[i].VoiceID == "" {
			return nil, ErrMissingVoice
		}
	}

	payload, err := json.Marshal(map[string]any{"inputs": inputs})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+dialoguePath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("synthesis response read failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// SynthesizeText is the single-voice convenience used by the scene pipeline.
func (c *Client) SynthesizeText(ctx context.Context, text, voiceID string) ([]byte, error) {
	return c.Synthesize(ctx, []DialogueInput{{Text: text, VoiceID: voiceID}})
}
