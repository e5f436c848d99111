// Package splice decides when a rendered scene's pauses drift far enough from
// the plan to warrant correction, and applies the corrected pauses.
package splice

import (
	"math"

	"github.com/AbhiramVSA/Luma/internal/measure"
	"github.com/AbhiramVSA/Luma/internal/segment"
)

const (
	// DeviationThresholdSeconds is how far an observed pause may drift from
	// its target before a correction pass is requested.
	DeviationThresholdSeconds = 0.2

	// updateEpsilon filters out adjustments too small to re-render for.
	updateEpsilon = 1e-3
)

// ClauseMetric pairs one plan unit's target pause with the measured timing.
// Observed values stay nil when measurement did not cover the unit.
type ClauseMetric struct {
	ClauseIndex          int      `json:"clause_index"`
	Text                 string   `json:"text"`
	TargetPauseSeconds   float64  `json:"target_pause_seconds"`
	ObservedPauseSeconds *float64 `json:"observed_pause_seconds"`
	MeasuredStartMS      *int     `json:"measured_start_ms"`
	MeasuredEndMS        *int     `json:"measured_end_ms"`
	MeasuredPauseMS      *int     `json:"measured_pause_ms"`
}

// BuildMetrics merges a plan with its timing analysis, position by position.
func BuildMetrics(plans []segment.PausePlan, analysis *measure.SceneTimingAnalysis) []ClauseMetric {
	if analysis == nil {
		return nil
	}

	metrics := make([]ClauseMetric, 0, len(plans))
	for i, p := range plans {
		metric := ClauseMetric{
			ClauseIndex:        i,
			Text:               p.Text,
			TargetPauseSeconds: p.PauseAfterSeconds,
		}
		if i < len(analysis.Segments) {
			report := analysis.Segments[i]
			metric.MeasuredStartMS = report.MeasuredStartMS
			metric.MeasuredEndMS = report.MeasuredEndMS
			metric.MeasuredPauseMS = report.MeasuredPauseMS
			if report.MeasuredPauseMS != nil {
				observed := float64(*report.MeasuredPauseMS) / 1000.0
				metric.ObservedPauseSeconds = &observed
			}
		}
		metrics = append(metrics, metric)
	}
	return metrics
}

// NeedsReview reports whether any measured pause deviates from its target by
// more than the threshold.
func NeedsReview(metrics []ClauseMetric) bool {
	for _, m := range metrics {
		if m.ObservedPauseSeconds == nil {
			continue
		}
		if math.Abs(*m.ObservedPauseSeconds-m.TargetPauseSeconds) > DeviationThresholdSeconds {
			return true
		}
	}
	return false
}

// Apply produces a plan with the override pauses in place. Overrides are
// clamped to zero, non-finite values are ignored, and changes below the
// update epsilon do not count. The input plan is never mutated; when nothing
// changed the original slice is returned with changed=false.
func Apply(plans []segment.PausePlan, overrides map[int]float64) ([]segment.PausePlan, bool) {
	if len(overrides) == 0 {
		return plans, false
	}

	updated := make([]segment.PausePlan, len(plans))
	copy(updated, plans)
	changed := false

	for i := range updated {
		override, ok := overrides[i]
		if !ok {
			continue
		}
		if math.IsNaN(override) || math.IsInf(override, 0) {
			continue
		}
		sanitized := math.Max(0, override)
		if math.Abs(sanitized-updated[i].PauseAfterSeconds) > updateEpsilon {
			updated[i].PauseAfterSeconds = sanitized
			changed = true
		}
	}

	if !changed {
		return plans, false
	}
	return updated, true
}
