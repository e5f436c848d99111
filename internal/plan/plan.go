// Package plan defines the long-form narration plan exchanged with the
// planning agent and consumed by the synthesis pipeline.
package plan

import (
	"fmt"
	"strings"
)

// Segment is one narration unit of a long-form plan.
type Segment struct {
	SegmentID                string  `json:"segment_id"`
	Text                     string  `json:"text"`
	Emotion                  string  `json:"emotion,omitempty"`
	CharacterCount           int     `json:"character_count,omitempty"`
	EstimatedDurationSeconds float64 `json:"estimated_duration_seconds,omitempty"`
	PauseAfterSeconds        float64 `json:"pause_after_seconds"`
	EnforceCommaPause        bool    `json:"enforce_comma_pause"`
}

// StitchingInstructions control how rendered segments are joined.
type StitchingInstructions struct {
	CrossfadeMS     int    `json:"crossfade_ms"`
	OutputFormat    string `json:"output_format"`
	NormalizeVolume bool   `json:"normalize_volume"`
}

// LongFormAudioPlan is the full synthesis plan for one request.
type LongFormAudioPlan struct {
	VoiceID                       string                `json:"voice_id"`
	TotalSegments                 int                   `json:"total_segments"`
	TotalEstimatedDurationSeconds float64               `json:"total_estimated_duration_seconds"`
	Segments                      []Segment             `json:"segments"`
	StitchingInstructions         StitchingInstructions `json:"stitching_instructions"`
}

// Normalize repairs the derivable fields of a plan in place. The segment
// count is authoritative over whatever total the planner reported, negative
// crossfades are clamped, and any explicit segment pause disables crossfade
// entirely so the requested silences survive stitching.
func (p *LongFormAudioPlan) Normalize() {
	p.VoiceID = strings.TrimSpace(p.VoiceID)
	p.TotalSegments = len(p.Segments)
	if p.StitchingInstructions.CrossfadeMS < 0 {
		p.StitchingInstructions.CrossfadeMS = 0
	}
	for _, seg := range p.Segments {
		if seg.PauseAfterSeconds > 0 {
			p.StitchingInstructions.CrossfadeMS = 0
			break
		}
	}
	if p.StitchingInstructions.OutputFormat == "" {
		p.StitchingInstructions.OutputFormat = "mp3"
	}
	p.StitchingInstructions.OutputFormat = strings.ToLower(
		strings.TrimPrefix(p.StitchingInstructions.OutputFormat, "."))
}

// Validate reports whether the plan can be rendered.
func (p *LongFormAudioPlan) Validate() error {
	if p.VoiceID == "" {
		return fmt.Errorf("plan is missing a voice id")
	}
	if len(p.Segments) == 0 {
		return fmt.Errorf("plan contains no segments")
	}
	for i, seg := range p.Segments {
		if strings.TrimSpace(seg.Text) == "" {
			return fmt.Errorf("segment %d (%s) contains no narratable text", i, seg.SegmentID)
		}
		if seg.PauseAfterSeconds < 0 {
			return fmt.Errorf("segment %d (%s) has a negative pause", i, seg.SegmentID)
		}
	}
	return nil
}

// SanitizedClause is one cleaned clause with its target trailing pause.
type SanitizedClause struct {
	Text              string  `json:"text"`
	PauseAfterSeconds float64 `json:"pause_after_seconds"`
}

// SanitizedScene is the sanitizer agent's clause breakdown for one segment.
type SanitizedScene struct {
	SceneID                string            `json:"scene_id"`
	SanitizedText          string            `json:"sanitized_text"`
	Clauses                []SanitizedClause `json:"clauses"`
	ScenePauseAfterSeconds float64           `json:"scene_pause_after_seconds"`
}

// PauseAdjustment is one splice correction keyed by clause position.
type PauseAdjustment struct {
	ClauseIndex         int     `json:"clause_index"`
	DesiredPauseSeconds float64 `json:"desired_pause_seconds"`
}

// PauseAdjustmentResponse is the splice agent's full answer for one segment.
type PauseAdjustmentResponse struct {
	Adjustments []PauseAdjustment `json:"adjustments"`
}
