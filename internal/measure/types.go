// Package measure inspects rendered narration audio: transcript timing via
// Whisper, silence windows via energy-based voice activity detection, and the
// per-segment pause reports the splice pass consumes.
package measure

// TranscriptSegment is one timestamped unit of the Whisper transcript.
type TranscriptSegment struct {
	Text    string `json:"text"`
	StartMS int    `json:"start_ms"`
	EndMS   int    `json:"end_ms"`
}

// SilenceWindow is one detected stretch of non-speech audio.
type SilenceWindow struct {
	StartMS    int `json:"start_ms"`
	EndMS      int `json:"end_ms"`
	DurationMS int `json:"duration_ms"`
}

// SegmentTimingReport compares one planned unit against what was measured.
// The measured fields stay nil when the transcript did not cover the unit.
type SegmentTimingReport struct {
	ExpectedText         string  `json:"expected_text"`
	ExpectedPauseSeconds float64 `json:"expected_pause_seconds"`
	MeasuredStartMS      *int    `json:"measured_start_ms"`
	MeasuredEndMS        *int    `json:"measured_end_ms"`
	MeasuredPauseMS      *int    `json:"measured_pause_ms"`
}

// SceneTimingAnalysis is the full measurement result for one rendered scene.
type SceneTimingAnalysis struct {
	Segments           []SegmentTimingReport `json:"segments"`
	TranscriptSegments []TranscriptSegment   `json:"transcript_segments"`
	SilenceWindows     []SilenceWindow       `json:"silence_windows"`
}
