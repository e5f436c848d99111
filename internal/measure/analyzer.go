package measure

import (
	"context"
	"log"

	"github.com/AbhiramVSA/Luma/internal/segment"
)

// Decoder converts an encoded clip into mono samples at the given rate. The
// ffmpeg transcoder satisfies it.
type Decoder interface {
	DecodePCMBytes(ctx context.Context, data []byte, format string, sampleRate int) ([]int16, error)
}

// Analyzer measures rendered scene audio against its planned segmentation.
// Measurement is advisory: every failure degrades to an emptier analysis
// instead of an error.
type Analyzer struct {
	transcriber Transcriber
	decoder     Decoder
}

func NewAnalyzer(transcriber Transcriber, decoder Decoder) *Analyzer {
	return &Analyzer{transcriber: transcriber, decoder: decoder}
}

// AnalyzeScene transcribes and silence-scans a rendered clip, then aligns the
// results against the expected plan position by position.
func (a *Analyzer) AnalyzeScene(ctx context.Context, audioData []byte, format string, expected []segment.PausePlan) SceneTimingAnalysis {
	if len(audioData) == 0 {
		return SceneTimingAnalysis{}
	}

	var transcript []TranscriptSegment
	if a.transcriber != nil {
		var err error
		transcript, err = a.transcriber.Transcribe(ctx, audioData)
		if err != nil {
			log.Printf("measure: transcription unavailable: %v", err)
			transcript = nil
		}
	}

	var windows []SilenceWindow
	if a.decoder != nil {
		samples, err := a.decoder.DecodePCMBytes(ctx, audioData, format, VADSampleRate)
		if err != nil {
			log.Printf("measure: decode for silence detection failed: %v", err)
		} else {
			windows = DetectSilenceWindows(samples, VADSampleRate)
		}
	}

	return SceneTimingAnalysis{
		Segments:           buildSegmentReports(expected, transcript, windows),
		TranscriptSegments: transcript,
		SilenceWindows:     windows,
	}
}

func firstSilenceAfter(timestampMS int, windows []SilenceWindow) *SilenceWindow {
	for i := range windows {
		if windows[i].StartMS >= timestampMS {
			return &windows[i]
		}
	}
	return nil
}

// buildSegmentReports aligns plan units with transcript units by position.
// The gap to the next transcript unit is the measured pause; units without a
// successor fall back to the first silence window after their end.
func buildSegmentReports(expected []segment.PausePlan, transcript []TranscriptSegment, windows []SilenceWindow) []SegmentTimingReport {
	reports := make([]SegmentTimingReport, 0, len(expected))

	for i, exp := range expected {
		report := SegmentTimingReport{
			ExpectedText:         exp.Text,
			ExpectedPauseSeconds: exp.PauseAfterSeconds,
		}
		if i < len(transcript) {
			ts := transcript[i]
			start, end := ts.StartMS, ts.EndMS
			report.MeasuredStartMS = &start
			report.MeasuredEndMS = &end
			if i+1 < len(transcript) {
				pause := transcript[i+1].StartMS - ts.EndMS
				if pause < 0 {
					pause = 0
				}
				report.MeasuredPauseMS = &pause
			}
		}
		reports = append(reports, report)
	}

	for i := range reports {
		if reports[i].MeasuredPauseMS != nil || reports[i].MeasuredEndMS == nil {
			continue
		}
		if trailing := firstSilenceAfter(*reports[i].MeasuredEndMS, windows); trailing != nil {
			duration := trailing.DurationMS
			reports[i].MeasuredPauseMS = &duration
		}
	}
	return reports
}
