// Package assemble turns synthesized clips and pause plans into the final
// audio sequence: slicing continuous scene renders at silence boundaries and
// padding clause renders with generated silence.
package assemble

import (
	"context"
	"fmt"
	"math"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/AbhiramVSA/Luma/internal/audio"
	"github.com/AbhiramVSA/Luma/internal/ffmpeg"
	"github.com/AbhiramVSA/Luma/internal/measure"
	"github.com/AbhiramVSA/Luma/internal/segment"
)

const (
	// sliceSampleRate keeps millisecond-to-sample conversion exact.
	sliceSampleRate = 44100

	// splitSilenceMaxOffsetMS bounds how far a detected silence midpoint may
	// sit from the character-weighted target before the target wins.
	splitSilenceMaxOffsetMS = 1200

	minSplitSilenceMS = 350
	pauseToleranceMS  = 60
)

// Assembler performs the audio-domain assembly work through ffmpeg.
type Assembler struct {
	ff *ffmpeg.Transcoder
}

func New(ff *ffmpeg.Transcoder) *Assembler {
	return &Assembler{ff: ff}
}

// SliceAndPause cuts a continuous scene render at the plan's unit boundaries
// and rebuilds it with the planned pauses. Cut points prefer detected silence
// midpoints near the character-weighted position of each boundary. Trailing
// silence the synthesizer already produced counts toward each pause; only the
// shortfall is inserted, and surplus beyond the tolerance is trimmed.
func (a *Assembler) SliceAndPause(ctx context.Context, audioData []byte, plans []segment.PausePlan, format string) ([]byte, error) {
	if len(plans) == 0 {
		return audioData, nil
	}

	samples, err := a.ff.DecodePCMBytes(ctx, audioData, format, sliceSampleRate)
	if err != nil {
		return nil, fmt.Errorf("slice: decode failed: %w", err)
	}
	if len(samples) == 0 {
		return audioData, nil
	}

	if len(plans) == 1 {
		pauseMS := int(math.Round(plans[0].PauseAfterSeconds * 1000))
		out := append(append([]int16{}, samples...), silentSamples(pauseMS)...)
		return a.ff.EncodePCMBytes(ctx, out, sliceSampleRate, format)
	}

	totalMS := len(samples) * 1000 / sliceSampleRate
	threshold := audio.DBFS(samples) - 16

	var midpoints []int
	for _, w := range measure.SilenceRanges(samples, sliceSampleRate, minSplitSilenceMS, threshold) {
		mid := (w.StartMS + w.EndMS) / 2
		if mid > 0 && mid < totalMS {
			midpoints = append(midpoints, mid)
		}
	}

	targets := fallbackSplitPoints(totalMS, plans)
	splitPoints := targets
	if len(midpoints) > 0 {
		splitPoints = mapSilenceToTargets(targets, midpoints, totalMS)
	}

	stitched := make([]int16, 0, len(samples))
	cursorMS := 0
	for i, splitMS := range splitPoints {
		seg := sliceMS(samples, cursorMS, splitMS)
		pauseMS := int(math.Round(plans[i].PauseAfterSeconds * 1000))

		existingMS := measure.TrailingSilenceMSAt(seg, sliceSampleRate, threshold)
		if existingMS-pauseMS > pauseToleranceMS && pauseMS >= 0 {
			seg = trimTrailingTo(seg, existingMS, pauseMS)
			existingMS = pauseMS
		}

		stitched = append(stitched, seg...)
		if pauseMS > 0 && pauseMS-existingMS > pauseToleranceMS {
			stitched = append(stitched, silentSamples(pauseMS-existingMS)...)
		}
		cursorMS = splitMS
	}
	stitched = append(stitched, sliceMS(samples, cursorMS, totalMS)...)

	finalPauseMS := int(math.Round(plans[len(plans)-1].PauseAfterSeconds * 1000))
	if finalPauseMS > 0 {
		existingMS := measure.TrailingSilenceMSAt(stitched, sliceSampleRate, threshold)
		if existingMS-finalPauseMS > pauseToleranceMS {
			stitched = trimTrailingTo(stitched, existingMS, finalPauseMS)
		} else if finalPauseMS-existingMS > pauseToleranceMS {
			stitched = append(stitched, silentSamples(finalPauseMS-existingMS)...)
		}
	}

	return a.ff.EncodePCMBytes(ctx, stitched, sliceSampleRate, format)
}

func sliceMS(samples []int16, fromMS, toMS int) []int16 {
	from := fromMS * sliceSampleRate / 1000
	to := toMS * sliceSampleRate / 1000
	if from < 0 {
		from = 0
	}
	if to > len(samples) {
		to = len(samples)
	}
	if from >= to {
		return nil
	}
	return samples[from:to]
}

func silentSamples(ms int) []int16 {
	if ms <= 0 {
		return nil
	}
	return make([]int16, ms*sliceSampleRate/1000)
}

func trimTrailingTo(samples []int16, existingMS, targetMS int) []int16 {
	trimMS := existingMS - targetMS
	keep := len(samples) - trimMS*sliceSampleRate/1000
	if keep < 0 {
		keep = 0
	}
	return samples[:keep]
}

// fallbackSplitPoints spreads unit boundaries across the clip in proportion
// to each unit's character count.
func fallbackSplitPoints(totalMS int, plans []segment.PausePlan) []int {
	weights := make([]int, len(plans))
	totalWeight := 0
	for i, p := range plans {
		w := len([]rune(p.Text))
		if w < 1 {
			w = 1
		}
		weights[i] = w
		totalWeight += w
	}
	if totalWeight == 0 {
		totalWeight = 1
	}

	var points []int
	cumulative := 0
	for _, w := range weights[:len(weights)-1] {
		cumulative += w
		target := int(math.Round(float64(totalMS) * float64(cumulative) / float64(totalWeight)))
		if target < 1 {
			target = 1
		}
		if target > totalMS-1 {
			target = totalMS - 1
		}
		if len(points) > 0 && target <= points[len(points)-1] {
			target = points[len(points)-1] + 1
			if target > totalMS-1 {
				target = totalMS - 1
			}
		}
		points = append(points, target)
	}
	return points
}

// mapSilenceToTargets snaps each target boundary to the nearest unused
// silence midpoint within the allowed offset, keeping the result strictly
// increasing.
func mapSilenceToTargets(targets, midpoints []int, totalMS int) []int {
	if len(targets) == 0 {
		return nil
	}
	available := make([]int, 0, len(midpoints))
	for _, p := range midpoints {
		if p > 0 && p < totalMS {
			available = append(available, p)
		}
	}
	sortInts(available)

	var chosen []int
	for _, target := range targets {
		bestIndex := -1
		bestDelta := -1
		for i, point := range available {
			delta := point - target
			if delta < 0 {
				delta = -delta
			}
			if bestDelta < 0 || delta < bestDelta {
				bestDelta = delta
				bestIndex = i
			}
			if delta <= 80 {
				break
			}
		}

		point := target
		if bestIndex >= 0 && bestDelta <= splitSilenceMaxOffsetMS {
			point = available[bestIndex]
			available = append(available[:bestIndex], available[bestIndex+1:]...)
		}

		if len(chosen) > 0 && point <= chosen[len(chosen)-1] {
			point = chosen[len(chosen)-1] + 1
			if point > totalMS-1 {
				point = totalMS - 1
			}
		}
		chosen = append(chosen, point)
	}
	return chosen
}

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j] < xs[j-1]; j-- {
			xs[j], xs[j-1] = xs[j-1], xs[j]
		}
	}
}

// ClauseAudio is one rendered clause clip. An empty Path marks a pause-only
// clause with nothing synthesized.
type ClauseAudio struct {
	Path                   string
	TrailingSilenceSeconds float64
}

// SequenceResult describes the ordered file sequence for one segment.
type SequenceResult struct {
	Paths          []string
	SilencePaths   []string
	ObservedPauses []float64
	DesiredPauses  []float64
}

// BuildClauseSequence lays out clause clips with generated silence between
// them. Trailing silence already present in a clip counts toward its desired
// pause; only the shortfall becomes a silence file.
func (a *Assembler) BuildClauseSequence(ctx context.Context, specs []segment.ClauseSpec, clips []ClauseAudio, overrides map[int]float64, workspace, format string) (SequenceResult, error) {
	var result SequenceResult

	for i, spec := range specs {
		var clip ClauseAudio
		if i < len(clips) {
			clip = clips[i]
		}

		desired := spec.PauseSeconds
		if override, ok := overrides[i]; ok {
			desired = override
		}
		result.DesiredPauses = append(result.DesiredPauses, desired)

		var insertedPause, observedPause float64
		if clip.Path != "" {
			result.Paths = append(result.Paths, clip.Path)
			insertedPause = math.Max(desired-clip.TrailingSilenceSeconds, 0)
			observedPause = clip.TrailingSilenceSeconds + insertedPause
		} else {
			insertedPause = desired
			observedPause = insertedPause
		}
		result.ObservedPauses = append(result.ObservedPauses, observedPause)

		if insertedPause > 0 {
			silencePath := filepath.Join(workspace, fmt.Sprintf("pause_%03d_%s.%s", i, uuid.NewString()[:8], format))
			if err := a.ff.GenerateSilence(ctx, insertedPause, silencePath); err != nil {
				return SequenceResult{}, fmt.Errorf("silence for clause %d: %w", i, err)
			}
			result.Paths = append(result.Paths, silencePath)
			result.SilencePaths = append(result.SilencePaths, silencePath)
		}
	}
	return result, nil
}
