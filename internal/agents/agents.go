// Package agents wraps the language-model calls used by the narration
// pipeline: plan building, segmentation refinement, scene sanitizing and
// pause-splice suggestions. Every operation degrades cleanly when no API key
// is configured.
package agents

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/AbhiramVSA/Luma/internal/measure"
	"github.com/AbhiramVSA/Luma/internal/plan"
	"github.com/AbhiramVSA/Luma/internal/segment"
)

// ErrDisabled is returned by operations that cannot run without an API key.
var ErrDisabled = errors.New("language-model agents are not configured")

// chatCompleter is the slice of the OpenAI client the agents need.
// *openai.Client implements it; tests inject fakes.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config carries the provider settings for all agents.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Client runs the pipeline's agents against a chat completion endpoint.
type Client struct {
	chat  chatCompleter
	model string
}

// Option configures a Client.
type Option func(*Client)

func withChatCompleter(cc chatCompleter) Option {
	return func(c *Client) { c.chat = cc }
}

func New(cfg Config, opts ...Option) *Client {
	c := &Client{model: cfg.Model}
	if c.model == "" {
		c.model = "gpt-4o"
	}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		oc := openai.DefaultConfig(key)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		c.chat = openai.NewClientWithConfig(oc)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether agent calls can be made.
func (c *Client) Enabled() bool { return c != nil && c.chat != nil }

func (c *Client) runJSON(ctx context.Context, system string, payload any, out any) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: string(body)},
		},
	})
	if err != nil {
		return fmt.Errorf("agent request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return errors.New("agent returned no choices")
	}
	content := stripFences(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("agent returned invalid JSON: %w", err)
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// SceneInput is one scene definition handed to the planner.
type SceneInput struct {
	SceneID           string  `json:"scene_id"`
	Title             string  `json:"title,omitempty"`
	Text              string  `json:"text"`
	PauseAfterSeconds float64 `json:"pause_after_seconds"`
	EnforceCommaPause bool    `json:"enforce_comma_pause"`
}

// BuildPlan asks the planner for a long-form synthesis plan covering the
// scenes. A non-empty voiceOverride is forwarded and wins over whatever voice
// the planner picks.
func (c *Client) BuildPlan(ctx context.Context, scenes []SceneInput, voiceOverride string) (*plan.LongFormAudioPlan, error) {
	payload := map[string]any{
		"mode":   "scene_collection",
		"scenes": scenes,
	}
	if v := strings.TrimSpace(voiceOverride); v != "" {
		payload["voice_id_override"] = v
	}

	var p plan.LongFormAudioPlan
	if err := c.runJSON(ctx, plannerPrompt, payload, &p); err != nil {
		return nil, err
	}
	if len(p.Segments) != len(scenes) {
		return nil, fmt.Errorf("plan does not align with input: %d segments for %d scenes", len(p.Segments), len(scenes))
	}
	return &p, nil
}

// BuildPlanFromScript is the free-form variant used when the request carries
// a raw script instead of structured scenes.
func (c *Client) BuildPlanFromScript(ctx context.Context, script, voiceOverride string) (*plan.LongFormAudioPlan, error) {
	input := script
	if v := strings.TrimSpace(voiceOverride); v != "" {
		input = "VOICE_ID_OVERRIDE: " + v + "\nUse this voice_id for every generated segment.\n\n" + script
	}

	var p plan.LongFormAudioPlan
	if err := c.runJSON(ctx, plannerPrompt, map[string]any{"mode": "script", "script": input}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RefineSegmentation asks the clause agent for a better pause segmentation of
// one scene. The caller is expected to validate the result against the
// fallback before trusting it. A nil plan with nil error means the agents are
// disabled.
func (c *Client) RefineSegmentation(ctx context.Context, sceneName, sceneText string, audioByteLen int, fallback []segment.PausePlan) ([]segment.PausePlan, error) {
	if !c.Enabled() {
		return nil, nil
	}
	payload := map[string]any{
		"scene_name":        sceneName,
		"scene_text":        sceneText,
		"fallback_segments": fallback,
		"audio_metadata":    map[string]any{"byte_length": audioByteLen},
	}

	var resp struct {
		Segments []struct {
			Text              string  `json:"text"`
			PauseAfterSeconds float64 `json:"pause_after_seconds"`
		} `json:"segments"`
	}
	if err := c.runJSON(ctx, clausePrompt, payload, &resp); err != nil {
		return nil, err
	}

	plans := make([]segment.PausePlan, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		plans = append(plans, segment.PausePlan{Text: s.Text, PauseAfterSeconds: s.PauseAfterSeconds})
	}
	return plans, nil
}

// SanitizeScenes asks the sanitizer for a clause breakdown of every plan
// segment, keyed by segment id. Failures yield an empty map so the pipeline
// can fall back to deterministic clause splitting.
func (c *Client) SanitizeScenes(ctx context.Context, p *plan.LongFormAudioPlan) map[string]plan.SanitizedScene {
	if !c.Enabled() || p == nil || len(p.Segments) == 0 {
		return map[string]plan.SanitizedScene{}
	}

	type sceneReq struct {
		SceneID                 string  `json:"scene_id"`
		RawText                 string  `json:"raw_text"`
		TargetPauseAfterSeconds float64 `json:"target_pause_after_seconds"`
		EnforceCommaPause       bool    `json:"enforce_comma_pause"`
	}
	scenes := make([]sceneReq, 0, len(p.Segments))
	for _, seg := range p.Segments {
		scenes = append(scenes, sceneReq{
			SceneID:                 seg.SegmentID,
			RawText:                 seg.Text,
			TargetPauseAfterSeconds: seg.PauseAfterSeconds,
			EnforceCommaPause:       seg.EnforceCommaPause,
		})
	}

	var resp struct {
		Scenes []plan.SanitizedScene `json:"scenes"`
	}
	if err := c.runJSON(ctx, sanitizerPrompt, map[string]any{"scenes": scenes}, &resp); err != nil {
		return map[string]plan.SanitizedScene{}
	}

	out := make(map[string]plan.SanitizedScene, len(resp.Scenes))
	for _, scene := range resp.Scenes {
		out[scene.SceneID] = scene
	}
	return out
}

// ClauseObservation pairs a clause's target pause with what the rendered
// audio actually contains.
type ClauseObservation struct {
	ClauseIndex          int     `json:"clause_index"`
	Text                 string  `json:"text"`
	TargetPauseSeconds   float64 `json:"target_pause_seconds"`
	ObservedPauseSeconds float64 `json:"observed_pause_seconds"`
}

// SpliceContext carries the measurement evidence behind a correction request:
// how the pauses were measured and the raw transcript and silence windows the
// observations came from. Nil when only trailing-silence layout was measured.
type SpliceContext struct {
	MeasurementSource   string
	ExpectedClauseCount int
	TranscriptSegments  []measure.TranscriptSegment
	SilenceWindows      []measure.SilenceWindow
}

// SuggestPauseAdjustments asks the splice agent for corrected pauses on one
// rendered scene. Audio is attached inline only below maxAudioBytes; larger
// clips are summarized by size and reason. Failures yield an empty map.
func (c *Client) SuggestPauseAdjustments(ctx context.Context, sceneID string, clauses []ClauseObservation, evidence *SpliceContext, audio []byte, maxAudioBytes int) map[int]float64 {
	if !c.Enabled() || len(clauses) == 0 {
		return map[int]float64{}
	}

	payload := map[string]any{
		"scene_id": sceneID,
		"clauses":  clauses,
	}
	if evidence != nil {
		payload["measurement_source"] = evidence.MeasurementSource
		payload["expected_clause_count"] = evidence.ExpectedClauseCount
		if len(evidence.TranscriptSegments) > 0 {
			payload["transcript_segments"] = evidence.TranscriptSegments
		}
		if len(evidence.SilenceWindows) > 0 {
			payload["silence_windows"] = evidence.SilenceWindows
		}
	}
	if len(audio) > 0 && len(audio) <= maxAudioBytes {
		payload["audio_base64"] = base64.StdEncoding.EncodeToString(audio)
	} else {
		reason := "no audio available"
		if len(audio) > 0 {
			reason = "audio payload exceeds limit"
		}
		payload["audio_notice"] = map[string]any{
			"included":         false,
			"audio_size_bytes": len(audio),
			"reason":           reason,
		}
	}

	var resp plan.PauseAdjustmentResponse
	if err := c.runJSON(ctx, splicePrompt, payload, &resp); err != nil {
		return map[int]float64{}
	}

	out := make(map[int]float64, len(resp.Adjustments))
	for _, adj := range resp.Adjustments {
		if adj.DesiredPauseSeconds < 0 {
			continue
		}
		out[adj.ClauseIndex] = adj.DesiredPauseSeconds
	}
	return out
}
