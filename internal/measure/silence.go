package measure

import (
	"math"

	"github.com/AbhiramVSA/Luma/internal/audio"
)

const (
	// VADSampleRate is the analysis rate all clips are decoded to.
	VADSampleRate = 16000
	vadFrameMS    = 30
	minSilenceMS  = 400

	// silenceDBPadding sets the silence threshold relative to the clip's own
	// RMS level, so quiet narration is not misread as silence.
	silenceDBPadding  = 16.0
	trailingStepMS    = 10
)

func frameIsSilent(frame []int16, threshold float64) bool {
	return audio.DBFS(frame) <= threshold
}

func silenceThreshold(samples []int16) float64 {
	level := audio.DBFS(samples)
	if math.IsInf(level, -1) {
		return level
	}
	return level - silenceDBPadding
}

// DetectSilenceWindows scans mono samples in 30ms frames and returns every
// silent stretch of at least 400ms, including a trailing one.
func DetectSilenceWindows(samples []int16, sampleRate int) []SilenceWindow {
	if sampleRate <= 0 || len(samples) == 0 {
		return nil
	}
	frameLen := sampleRate * vadFrameMS / 1000
	if frameLen <= 0 || len(samples) < frameLen {
		return nil
	}
	threshold := silenceThreshold(samples)
	if math.IsInf(threshold, -1) {
		// Uniformly silent clip: one window covering everything, if long enough.
		totalMS := len(samples) * 1000 / sampleRate
		if totalMS >= minSilenceMS {
			return []SilenceWindow{{StartMS: 0, EndMS: totalMS, DurationMS: totalMS}}
		}
		return nil
	}

	var windows []SilenceWindow
	silenceStartMS := -1

	for offset := 0; offset+frameLen <= len(samples); offset += frameLen {
		frameStartMS := offset * 1000 / sampleRate
		if frameIsSilent(samples[offset:offset+frameLen], threshold) {
			if silenceStartMS < 0 {
				silenceStartMS = frameStartMS
			}
			continue
		}
		if silenceStartMS >= 0 {
			duration := frameStartMS - silenceStartMS
			if duration >= minSilenceMS {
				windows = append(windows, SilenceWindow{
					StartMS:    silenceStartMS,
					EndMS:      frameStartMS,
					DurationMS: duration,
				})
			}
			silenceStartMS = -1
		}
	}

	totalMS := len(samples) * 1000 / sampleRate
	if silenceStartMS >= 0 {
		duration := totalMS - silenceStartMS
		if duration >= minSilenceMS {
			windows = append(windows, SilenceWindow{
				StartMS:    silenceStartMS,
				EndMS:      totalMS,
				DurationMS: duration,
			})
		}
	}
	return windows
}

// TrailingSilenceMS walks backwards from the end of the clip in 10ms steps
// and reports how much of the tail sits below the clip's silence threshold.
func TrailingSilenceMS(samples []int16, sampleRate int) int {
	threshold := silenceThreshold(samples)
	if math.IsInf(threshold, -1) {
		if sampleRate <= 0 {
			return 0
		}
		return len(samples) * 1000 / sampleRate
	}
	return TrailingSilenceMSAt(samples, sampleRate, threshold)
}

// TrailingSilenceMSAt is TrailingSilenceMS against an explicit threshold,
// for callers measuring a slice of a larger clip.
func TrailingSilenceMSAt(samples []int16, sampleRate int, thresholdDB float64) int {
	if sampleRate <= 0 || len(samples) == 0 {
		return 0
	}
	stepLen := sampleRate * trailingStepMS / 1000
	if stepLen <= 0 {
		return 0
	}

	trailing := 0
	cursor := len(samples)
	for cursor > 0 {
		start := cursor - stepLen
		if start < 0 {
			start = 0
		}
		if !frameIsSilent(samples[start:cursor], thresholdDB) {
			break
		}
		trailing += (cursor - start) * 1000 / sampleRate
		cursor = start
	}
	return trailing
}

// TrailingSilenceSeconds is TrailingSilenceMS in seconds.
func TrailingSilenceSeconds(samples []int16, sampleRate int) float64 {
	return float64(TrailingSilenceMS(samples, sampleRate)) / 1000.0
}

// SilenceRanges scans the clip in 10ms steps against an explicit dB threshold
// and returns every silent stretch of at least minMS. The splice slicer uses
// it to find the natural cut points between narration units.
func SilenceRanges(samples []int16, sampleRate, minMS int, thresholdDB float64) []SilenceWindow {
	if sampleRate <= 0 || len(samples) == 0 {
		return nil
	}
	stepLen := sampleRate * trailingStepMS / 1000
	if stepLen <= 0 {
		return nil
	}

	var windows []SilenceWindow
	silenceStartMS := -1
	totalMS := len(samples) * 1000 / sampleRate

	for offset := 0; offset < len(samples); offset += stepLen {
		end := offset + stepLen
		if end > len(samples) {
			end = len(samples)
		}
		stepStartMS := offset * 1000 / sampleRate
		if frameIsSilent(samples[offset:end], thresholdDB) {
			if silenceStartMS < 0 {
				silenceStartMS = stepStartMS
			}
			continue
		}
		if silenceStartMS >= 0 {
			duration := stepStartMS - silenceStartMS
			if duration >= minMS {
				windows = append(windows, SilenceWindow{
					StartMS:    silenceStartMS,
					EndMS:      stepStartMS,
					DurationMS: duration,
				})
			}
			silenceStartMS = -1
		}
	}
	if silenceStartMS >= 0 {
		duration := totalMS - silenceStartMS
		if duration >= minMS {
			windows = append(windows, SilenceWindow{
				StartMS:    silenceStartMS,
				EndMS:      totalMS,
				DurationMS: duration,
			})
		}
	}
	return windows
}
