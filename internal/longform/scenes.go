package longform

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AbhiramVSA/Luma/internal/agents"
	"github.com/AbhiramVSA/Luma/internal/jobs"
	"github.com/AbhiramVSA/Luma/internal/measure"
	"github.com/AbhiramVSA/Luma/internal/plan"
	"github.com/AbhiramVSA/Luma/internal/script"
	"github.com/AbhiramVSA/Luma/internal/segment"
	"github.com/AbhiramVSA/Luma/internal/splice"
)

// MultipartBoundary frames the scene path's mixed response.
const MultipartBoundary = "longform-scenes-boundary"

// MultipartMediaType is the Content-Type of the scene path response.
func MultipartMediaType() string {
	return "multipart/mixed; boundary=" + MultipartBoundary
}

// ProcessScript runs the scene path: parse the script, plan a voice and
// per-scene segmentation, synthesize each scene as one continuous clip, slice
// it back apart at unit boundaries with the planned pauses, measure the
// result, apply at most one pause correction pass, and stitch all scenes.
// Returns the response metadata plus the stitched audio bytes.
func (p *Pipeline) ProcessScript(ctx context.Context, jobID, scriptText string) (*ScenesResult, []byte, error) {
	p.transition(jobID, jobs.StageParsing, "")
	blocks, err := script.Parse(scriptText)
	if err != nil {
		return nil, nil, wrapStatus(http.StatusUnprocessableEntity, "unable to identify any scenes in the script", err)
	}

	p.transition(jobID, jobs.StagePlanning, fmt.Sprintf("%d scenes", len(blocks)))
	audioPlan, err := p.buildScenePlan(ctx, blocks)
	if err != nil {
		return nil, nil, err
	}

	voiceID := strings.TrimSpace(audioPlan.VoiceID)
	if voiceID == "" {
		return nil, nil, statusErrorf(http.StatusBadGateway, "audio plan did not include a voice_id")
	}

	var summaries []SceneSummary
	var sceneClips [][]byte

	for i, block := range blocks {
		rawText := block.RawText()
		if rawText == "" {
			log.Printf("longform: skipping empty scene %q", block.Name)
			continue
		}

		fallbackPlan, err := segment.FallbackSentencePlan(rawText)
		if err != nil {
			return nil, nil, wrapStatus(http.StatusUnprocessableEntity,
				fmt.Sprintf("no sentences detected in scene %q", block.Name), err)
		}

		planText := ""
		if i < len(audioPlan.Segments) {
			planText = strings.TrimSpace(audioPlan.Segments[i].Text)
		}
		if planText == "" {
			planText = segment.TidyText(segment.StripPauseAnnotations(rawText))
		}
		audioInput := segment.TidyText(segment.StripPauseAnnotations(planText))

		p.transition(jobID, jobs.StageSynthesizing, block.Name)
		synthStart := time.Now()
		sceneAudio, err := p.synthesizeText(ctx, audioInput, voiceID)
		p.observeStage("synthesizing", synthStart)
		if err != nil {
			return nil, nil, wrapStatus(upstreamStatus(err), fmt.Sprintf("synthesis failed for scene %q", block.Name), err)
		}

		finalPlan := p.refineScenePlan(ctx, block.Name, rawText, len(sceneAudio), fallbackPlan)

		p.transition(jobID, jobs.StageAssembling, block.Name)
		assembleStart := time.Now()
		processed, err := p.assembler.SliceAndPause(ctx, sceneAudio, finalPlan, audioFormat)
		p.observeStage("assembling", assembleStart)
		if err != nil {
			return nil, nil, wrapStatus(http.StatusInternalServerError, fmt.Sprintf("assembly failed for scene %q", block.Name), err)
		}

		p.transition(jobID, jobs.StageMeasuring, block.Name)
		analysis := p.analyzeScene(ctx, processed, finalPlan)

		finalPlan, processed, analysis = p.spliceScene(ctx, jobID, block.Name, sceneAudio, processed, finalPlan, analysis)

		summaries = append(summaries, SceneSummary{
			SceneName:          block.Name,
			Segments:           finalPlan,
			ProcessedAudioPath: dataURL(processed),
			TimingAnalysis:     analysis,
		})
		sceneClips = append(sceneClips, processed)
	}

	if len(sceneClips) == 0 {
		return nil, nil, statusErrorf(http.StatusUnprocessableEntity, "no scenes produced audio output")
	}

	p.transition(jobID, jobs.StageCombining, "")
	combineStart := time.Now()
	finalAudio, err := p.combineClips(ctx, sceneClips)
	p.observeStage("combining", combineStart)
	if err != nil {
		return nil, nil, wrapStatus(http.StatusInternalServerError, "combining scene audio failed", err)
	}

	return &ScenesResult{
		Scenes:         summaries,
		FinalAudioPath: dataURL(finalAudio),
	}, finalAudio, nil
}

// buildScenePlan asks the planner for the scene collection plan, falling back
// to one segment per scene with the configured default voice when no planner
// is available.
func (p *Pipeline) buildScenePlan(ctx context.Context, blocks []script.SceneBlock) (*plan.LongFormAudioPlan, error) {
	if p.agents.Enabled() {
		inputs := make([]agents.SceneInput, 0, len(blocks))
		for _, block := range blocks {
			inputs = append(inputs, agents.SceneInput{
				SceneID:           block.Name,
				Text:              block.RawText(),
				PauseAfterSeconds: 0,
				EnforceCommaPause: true,
			})
		}
		built, err := p.agents.BuildPlan(ctx, inputs, "")
		p.countAgent("planner", err)
		if err != nil {
			return nil, wrapStatus(http.StatusBadGateway, "audio planning failed", err)
		}
		built.Normalize()
		return built, nil
	}
	return p.localPlanFromBlocks(blocks, ""), nil
}

// refineScenePlan requests an assisted segmentation and validates it against
// the deterministic fallback; any failure keeps the fallback.
func (p *Pipeline) refineScenePlan(ctx context.Context, sceneName, sceneText string, audioLen int, fallback []segment.PausePlan) []segment.PausePlan {
	if !p.agents.Enabled() {
		return fallback
	}
	refined, err := p.agents.RefineSegmentation(ctx, sceneName, sceneText, audioLen, fallback)
	p.countAgent("clause", err)
	if err != nil {
		log.Printf("longform: segmentation refinement failed for scene %q: %v", sceneName, err)
		return fallback
	}
	if len(refined) == 0 {
		return fallback
	}
	validated, accepted := segment.ValidateAssistedPlan(sceneName, fallback, refined)
	if accepted {
		log.Printf("longform: scene %q using assisted segmentation (%d units)", sceneName, len(validated))
	}
	return validated
}

func (p *Pipeline) analyzeScene(ctx context.Context, audio []byte, plans []segment.PausePlan) *measure.SceneTimingAnalysis {
	if p.analyzer == nil {
		return nil
	}
	analysis := p.analyzer.AnalyzeScene(ctx, audio, audioFormat, plans)
	return &analysis
}

// spliceScene runs the single pause correction pass when observed pauses
// drift beyond the deviation threshold: ask the splice agent for overrides,
// re-slice the original render with the corrected plan, re-measure.
func (p *Pipeline) spliceScene(
	ctx context.Context,
	jobID, sceneName string,
	sceneAudio, processed []byte,
	plans []segment.PausePlan,
	analysis *measure.SceneTimingAnalysis,
) ([]segment.PausePlan, []byte, *measure.SceneTimingAnalysis) {
	if !p.agents.Enabled() || analysis == nil {
		return plans, processed, analysis
	}

	metrics := splice.BuildMetrics(plans, analysis)
	if !splice.NeedsReview(metrics) {
		return plans, processed, analysis
	}

	observations := make([]agents.ClauseObservation, 0, len(metrics))
	for _, m := range metrics {
		if m.ObservedPauseSeconds == nil {
			continue
		}
		observations = append(observations, agents.ClauseObservation{
			ClauseIndex:          m.ClauseIndex,
			Text:                 m.Text,
			TargetPauseSeconds:   m.TargetPauseSeconds,
			ObservedPauseSeconds: *m.ObservedPauseSeconds,
		})
	}
	if len(observations) == 0 {
		return plans, processed, analysis
	}

	p.transition(jobID, jobs.StageCorrecting, sceneName)
	evidence := &agents.SpliceContext{
		MeasurementSource:   "whisper+vad",
		ExpectedClauseCount: len(plans),
		TranscriptSegments:  analysis.TranscriptSegments,
		SilenceWindows:      analysis.SilenceWindows,
	}
	adjustments := p.agents.SuggestPauseAdjustments(ctx, sceneName, observations, evidence, processed, sceneSpliceMaxAudioBytes)
	p.countAgent("splice", nil)

	updated, changed := splice.Apply(plans, adjustments)
	if !changed {
		return plans, processed, analysis
	}

	resliced, err := p.assembler.SliceAndPause(ctx, sceneAudio, updated, audioFormat)
	if err != nil {
		log.Printf("longform: re-assembly after splice failed for scene %q: %v", sceneName, err)
		return plans, processed, analysis
	}
	if p.metrics != nil {
		p.metrics.SplicePasses.Inc()
	}
	return updated, resliced, p.analyzeScene(ctx, resliced, updated)
}

// combineClips concatenates in-memory scene clips through ffmpeg.
func (p *Pipeline) combineClips(ctx context.Context, clips [][]byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "longform_scenes_")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	paths := make([]string, 0, len(clips))
	for i, clip := range clips {
		path := filepath.Join(dir, fmt.Sprintf("scene_%03d.%s", i, audioFormat))
		if err := os.WriteFile(path, clip, 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	out := filepath.Join(dir, "combined."+audioFormat)
	if err := p.ff.Concat(ctx, paths, out, 0); err != nil {
		return nil, err
	}
	return os.ReadFile(out)
}

func dataURL(audio []byte) string {
	return "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(audio)
}

// WriteMultipart frames the scene path response as multipart/mixed: a JSON
// metadata part followed by the stitched audio as an attachment.
func WriteMultipart(w io.Writer, metadata *ScenesResult, finalAudio []byte) error {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return err
	}

	var parts []([]byte)
	parts = append(parts,
		[]byte("--"+MultipartBoundary+"\r\n"),
		[]byte("Content-Type: application/json\r\n\r\n"),
		metadataJSON,
		[]byte("\r\n"),
		[]byte("--"+MultipartBoundary+"\r\n"),
		[]byte("Content-Type: audio/mpeg\r\n"),
		[]byte("Content-Disposition: attachment; filename=longform.mp3\r\n\r\n"),
		finalAudio,
		[]byte("\r\n"),
		[]byte("--"+MultipartBoundary+"--\r\n"),
	)
	for _, part := range parts {
		if _, err := w.Write(part); err != nil {
			return err
		}
	}
	return nil
}

// localPlanFromBlocks builds the deterministic one-segment-per-scene plan
// used when no planner agent is configured.
func (p *Pipeline) localPlanFromBlocks(blocks []script.SceneBlock, voiceOverride string) *plan.LongFormAudioPlan {
	built := &plan.LongFormAudioPlan{
		VoiceID: strings.TrimSpace(voiceOverride),
		StitchingInstructions: plan.StitchingInstructions{
			OutputFormat:    audioFormat,
			NormalizeVolume: true,
		},
	}
	if built.VoiceID == "" {
		built.VoiceID = p.voiceID
	}

	total := 0.0
	for _, block := range blocks {
		text := segment.TidyText(segment.StripPauseAnnotations(block.RawText()))
		chars := len([]rune(text))
		estimated := estimateDurationSeconds(chars)
		total += estimated
		built.Segments = append(built.Segments, plan.Segment{
			SegmentID:                block.Name,
			Text:                     text,
			CharacterCount:           chars,
			EstimatedDurationSeconds: estimated,
			EnforceCommaPause:        true,
		})
	}
	built.TotalEstimatedDurationSeconds = total
	built.Normalize()
	return built
}

// estimateDurationSeconds approximates narration length at a calm reading
// pace of roughly 15 characters per second.
func estimateDurationSeconds(chars int) float64 {
	return float64(chars) / 15.0
}
