package longform

import (
	"github.com/AbhiramVSA/Luma/internal/measure"
	"github.com/AbhiramVSA/Luma/internal/plan"
	"github.com/AbhiramVSA/Luma/internal/segment"
)

// SceneDefinition is one scene supplied in a structured synthesis request.
// EnforceCommaPause defaults to true when omitted.
type SceneDefinition struct {
	SceneID           string  `json:"scene_id,omitempty"`
	Title             string  `json:"title,omitempty"`
	Text              string  `json:"text"`
	PauseAfterSeconds float64 `json:"pause_after_seconds"`
	EnforceCommaPause *bool   `json:"enforce_comma_pause,omitempty"`
}

// LongFormAudioRequest drives the clause-level synthesis path. Either a raw
// script or a scene collection must be present; scenes win when both are.
type LongFormAudioRequest struct {
	Script         string            `json:"script,omitempty"`
	Scenes         []SceneDefinition `json:"scenes,omitempty"`
	VoiceID        string            `json:"voice_id,omitempty"`
	FilenamePrefix string            `json:"filename_prefix,omitempty"`
}

// SceneSummary is the per-scene metadata returned by the scene path.
type SceneSummary struct {
	SceneName          string                       `json:"scene_name"`
	Segments           []segment.PausePlan          `json:"segments"`
	ProcessedAudioPath string                       `json:"processed_audio_path"`
	TimingAnalysis     *measure.SceneTimingAnalysis `json:"timing_analysis,omitempty"`
}

// ScenesResult aggregates every processed scene plus the stitched audio
// reference for the scene path.
type ScenesResult struct {
	Scenes         []SceneSummary `json:"scenes"`
	FinalAudioPath string         `json:"final_audio_path"`
}

// SegmentOutput describes one rendered segment file in the clause path result.
type SegmentOutput struct {
	SegmentID                string  `json:"segment_id"`
	Emotion                  string  `json:"emotion,omitempty"`
	CharacterCount           int     `json:"character_count,omitempty"`
	EstimatedDurationSeconds float64 `json:"estimated_duration_seconds,omitempty"`
	PauseAfterSeconds        float64 `json:"pause_after_seconds"`
	EnforceCommaPause        bool    `json:"enforce_comma_pause"`
	SceneTitle               string  `json:"scene_title,omitempty"`
	FileName                 string  `json:"file_name"`
	AudioFile                string  `json:"audio_file"`
}

// CombinedOutput references the stitched master file.
type CombinedOutput struct {
	FileName  string `json:"file_name"`
	AudioFile string `json:"audio_file"`
}

// LongFormResult is the clause path response payload.
type LongFormResult struct {
	Status       string                  `json:"status"`
	GeneratedAt  string                  `json:"generated_at"`
	VoiceID      string                  `json:"voice_id"`
	InputMode    string                  `json:"input_mode"`
	Plan         *plan.LongFormAudioPlan `json:"plan"`
	Segments     []SegmentOutput         `json:"segments"`
	Combined     CombinedOutput          `json:"combined"`
	ManifestFile string                  `json:"manifest_file"`
}
