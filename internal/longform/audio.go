package longform

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AbhiramVSA/Luma/internal/agents"
	"github.com/AbhiramVSA/Luma/internal/assemble"
	"github.com/AbhiramVSA/Luma/internal/jobs"
	"github.com/AbhiramVSA/Luma/internal/measure"
	"github.com/AbhiramVSA/Luma/internal/plan"
	"github.com/AbhiramVSA/Luma/internal/script"
	"github.com/AbhiramVSA/Luma/internal/segment"
	"github.com/AbhiramVSA/Luma/internal/splice"
)

// manifestPrefix names the JSON manifest dropped next to the rendered files.
const manifestPrefix = "longform_manifest"

// SynthesizeLongform runs the clause path: plan the narration, render every
// clause individually, lay clips out with silence honoring target pauses,
// apply at most one splice correction per segment, and stitch segment files
// plus inter-segment silences into a combined master with a JSON manifest.
func (p *Pipeline) SynthesizeLongform(ctx context.Context, jobID string, req LongFormAudioRequest) (*LongFormResult, error) {
	if !p.synth.Enabled() {
		return nil, statusErrorf(http.StatusBadRequest, "synthesis provider is not configured")
	}

	usingScenes := len(req.Scenes) > 0
	inputMode := "script"
	if usingScenes {
		inputMode = "scene_collection"
	}

	p.transition(jobID, jobs.StageParsing, inputMode)
	definitions, titles, err := normalizeSceneDefinitions(req.Scenes)
	if err != nil {
		return nil, err
	}

	p.transition(jobID, jobs.StagePlanning, "")
	audioPlan, err := p.buildAudioPlan(ctx, req, definitions)
	if err != nil {
		return nil, err
	}

	p.applyVoice(audioPlan, req.VoiceID)
	if strings.TrimSpace(audioPlan.VoiceID) == "" {
		return nil, statusErrorf(http.StatusUnprocessableEntity, "voice_id missing from request and plan")
	}

	if usingScenes {
		if len(audioPlan.Segments) != len(definitions) {
			return nil, statusErrorf(http.StatusUnprocessableEntity,
				"plan does not align with provided scenes: %d segments for %d scenes",
				len(audioPlan.Segments), len(definitions))
		}
		// The request is authoritative for scene identity, text and pauses.
		for i := range audioPlan.Segments {
			audioPlan.Segments[i].SegmentID = definitions[i].SceneID
			audioPlan.Segments[i].Text = definitions[i].Text
			audioPlan.Segments[i].PauseAfterSeconds = definitions[i].PauseAfterSeconds
			audioPlan.Segments[i].EnforceCommaPause = definitions[i].EnforceCommaPause
		}
	}

	audioPlan.Normalize()
	if err := audioPlan.Validate(); err != nil {
		return nil, wrapStatus(http.StatusUnprocessableEntity, "plan validation failed", err)
	}

	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return nil, wrapStatus(http.StatusInternalServerError, "output directory unavailable", err)
	}

	prefix := sanitizeComponent(req.FilenamePrefix, "longform")
	generatedAt := time.Now().UTC().Format(time.RFC3339)
	format := audioPlan.StitchingInstructions.OutputFormat
	crossfadeSeconds := float64(audioPlan.StitchingInstructions.CrossfadeMS) / 1000.0

	sanitizedMap := p.sanitizeScenes(ctx, audioPlan)

	var segmentOutputs []SegmentOutput
	var manifestSegments []map[string]any
	var sequencePaths []string
	silenceWorkspace := ""
	defer func() {
		if silenceWorkspace != "" {
			os.RemoveAll(silenceWorkspace)
		}
	}()

	for i := range audioPlan.Segments {
		seg := &audioPlan.Segments[i]
		sanitized, hasSanitized := sanitizedMap[seg.SegmentID]

		p.transition(jobID, jobs.StageSynthesizing, seg.SegmentID)
		fileName, err := p.renderSegment(ctx, jobID, audioPlan.VoiceID, seg, sanitized, hasSanitized, prefix, format)
		if err != nil {
			return nil, err
		}

		output := SegmentOutput{
			SegmentID:                seg.SegmentID,
			Emotion:                  seg.Emotion,
			CharacterCount:           seg.CharacterCount,
			EstimatedDurationSeconds: seg.EstimatedDurationSeconds,
			PauseAfterSeconds:        seg.PauseAfterSeconds,
			EnforceCommaPause:        seg.EnforceCommaPause,
			FileName:                 fileName,
			AudioFile:                "/generated_audio/" + fileName,
		}
		if title, ok := titles[seg.SegmentID]; ok {
			output.SceneTitle = title
		}
		segmentOutputs = append(segmentOutputs, output)

		manifestSegment := map[string]any{
			"segment_id":                 seg.SegmentID,
			"file_name":                  fileName,
			"emotion":                    seg.Emotion,
			"character_count":            seg.CharacterCount,
			"estimated_duration_seconds": seg.EstimatedDurationSeconds,
			"pause_after_seconds":        seg.PauseAfterSeconds,
			"enforce_comma_pause":        seg.EnforceCommaPause,
		}
		if title, ok := titles[seg.SegmentID]; ok && title != "" {
			manifestSegment["scene_title"] = title
		}
		manifestSegments = append(manifestSegments, manifestSegment)

		segmentPath, err := filepath.Abs(filepath.Join(p.outputDir, fileName))
		if err != nil {
			segmentPath = filepath.Join(p.outputDir, fileName)
		}
		sequencePaths = append(sequencePaths, segmentPath)

		if seg.PauseAfterSeconds > 0 {
			if silenceWorkspace == "" {
				silenceWorkspace, err = os.MkdirTemp("", "longform_silence_")
				if err != nil {
					return nil, wrapStatus(http.StatusInternalServerError, "silence workspace unavailable", err)
				}
			}
			silencePath := filepath.Join(silenceWorkspace, fmt.Sprintf("pause_%d_%s.%s", i, uuid.NewString()[:8], format))
			if err := p.ff.GenerateSilence(ctx, seg.PauseAfterSeconds, silencePath); err != nil {
				return nil, wrapStatus(http.StatusInternalServerError,
					fmt.Sprintf("silence generation failed after segment %q", seg.SegmentID), err)
			}
			sequencePaths = append(sequencePaths, silencePath)
		}
	}

	if len(sequencePaths) == 0 {
		return nil, statusErrorf(http.StatusUnprocessableEntity, "no segments generated")
	}

	p.transition(jobID, jobs.StageCombining, "")
	combineStart := time.Now()
	combinedName := fmt.Sprintf("%s_combined__%s.%s", prefix, uuid.NewString()[:8], format)
	combinedPath := filepath.Join(p.outputDir, combinedName)
	if err := p.ff.Concat(ctx, sequencePaths, combinedPath, crossfadeSeconds); err != nil {
		return nil, wrapStatus(http.StatusInternalServerError, "combining segment audio failed", err)
	}
	p.observeStage("combining", combineStart)

	if audioPlan.StitchingInstructions.NormalizeVolume {
		p.transition(jobID, jobs.StageNormalizing, combinedName)
		if err := p.ff.Normalize(ctx, combinedPath); err != nil {
			return nil, wrapStatus(http.StatusInternalServerError, "loudness normalization failed", err)
		}
	}

	manifestName, err := p.writeManifest(generatedAt, audioPlan, manifestSegments, combinedName, inputMode)
	if err != nil {
		return nil, wrapStatus(http.StatusInternalServerError, "manifest write failed", err)
	}

	log.Printf("longform: synthesis complete file=%s segments=%d mode=%s", combinedName, len(audioPlan.Segments), inputMode)

	return &LongFormResult{
		Status:      "success",
		GeneratedAt: generatedAt,
		VoiceID:     audioPlan.VoiceID,
		InputMode:   inputMode,
		Plan:        audioPlan,
		Segments:    segmentOutputs,
		Combined: CombinedOutput{
			FileName:  combinedName,
			AudioFile: "/generated_audio/" + combinedName,
		},
		ManifestFile: "/generated_audio/" + manifestName,
	}, nil
}

// normalizedDefinition is a scene definition after id/text cleanup.
type normalizedDefinition struct {
	SceneID           string
	Text              string
	PauseAfterSeconds float64
	EnforceCommaPause bool
}

func normalizeSceneDefinitions(scenes []SceneDefinition) ([]normalizedDefinition, map[string]string, error) {
	titles := make(map[string]string)
	definitions := make([]normalizedDefinition, 0, len(scenes))

	for i, scene := range scenes {
		sceneID := strings.TrimSpace(scene.SceneID)
		if sceneID == "" {
			sceneID = fmt.Sprintf("scene_%d", i+1)
		}
		text := sanitizeSceneText(scene.Text)
		if text == "" {
			return nil, nil, statusErrorf(http.StatusUnprocessableEntity,
				"scene %q does not contain narration after removing meta directives", sceneID)
		}
		enforce := true
		if scene.EnforceCommaPause != nil {
			enforce = *scene.EnforceCommaPause
		}
		if title := strings.TrimSpace(scene.Title); title != "" {
			titles[sceneID] = title
		}
		definitions = append(definitions, normalizedDefinition{
			SceneID:           sceneID,
			Text:              text,
			PauseAfterSeconds: scene.PauseAfterSeconds,
			EnforceCommaPause: enforce,
		})
	}
	return definitions, titles, nil
}

func (p *Pipeline) buildAudioPlan(ctx context.Context, req LongFormAudioRequest, definitions []normalizedDefinition) (*plan.LongFormAudioPlan, error) {
	if p.agents.Enabled() {
		var built *plan.LongFormAudioPlan
		var err error
		if len(definitions) > 0 {
			inputs := make([]agents.SceneInput, 0, len(definitions))
			for _, def := range definitions {
				inputs = append(inputs, agents.SceneInput{
					SceneID:           def.SceneID,
					Text:              def.Text,
					PauseAfterSeconds: def.PauseAfterSeconds,
					EnforceCommaPause: def.EnforceCommaPause,
				})
			}
			built, err = p.agents.BuildPlan(ctx, inputs, req.VoiceID)
		} else {
			built, err = p.agents.BuildPlanFromScript(ctx, req.Script, req.VoiceID)
		}
		p.countAgent("planner", err)
		if err != nil {
			return nil, wrapStatus(http.StatusBadGateway, "audio planning failed", err)
		}
		return built, nil
	}

	if len(definitions) > 0 {
		return localPlanFromDefinitions(definitions, req.VoiceID, p.voiceID), nil
	}
	blocks, err := script.Parse(req.Script)
	if err != nil {
		return nil, wrapStatus(http.StatusUnprocessableEntity, "unable to identify any scenes in the script", err)
	}
	return p.localPlanFromBlocks(blocks, req.VoiceID), nil
}

func localPlanFromDefinitions(definitions []normalizedDefinition, voiceOverride, defaultVoice string) *plan.LongFormAudioPlan {
	built := &plan.LongFormAudioPlan{
		VoiceID: strings.TrimSpace(voiceOverride),
		StitchingInstructions: plan.StitchingInstructions{
			OutputFormat:    audioFormat,
			NormalizeVolume: true,
		},
	}
	if built.VoiceID == "" {
		built.VoiceID = defaultVoice
	}

	total := 0.0
	for _, def := range definitions {
		chars := len([]rune(def.Text))
		estimated := estimateDurationSeconds(chars)
		total += estimated
		built.Segments = append(built.Segments, plan.Segment{
			SegmentID:                def.SceneID,
			Text:                     def.Text,
			CharacterCount:           chars,
			EstimatedDurationSeconds: estimated,
			PauseAfterSeconds:        def.PauseAfterSeconds,
			EnforceCommaPause:        def.EnforceCommaPause,
		})
	}
	built.TotalEstimatedDurationSeconds = total
	built.Normalize()
	return built
}

func (p *Pipeline) sanitizeScenes(ctx context.Context, audioPlan *plan.LongFormAudioPlan) map[string]plan.SanitizedScene {
	if !p.agents.Enabled() {
		return map[string]plan.SanitizedScene{}
	}
	sanitized := p.agents.SanitizeScenes(ctx, audioPlan)
	p.countAgent("sanitizer", nil)
	return sanitized
}

// renderSegment synthesizes and assembles one plan segment into its output
// file, returning the file name. The segment's text and pause may be updated
// from the sanitizer's breakdown.
func (p *Pipeline) renderSegment(
	ctx context.Context,
	jobID, voiceID string,
	seg *plan.Segment,
	sanitized plan.SanitizedScene,
	hasSanitized bool,
	prefix, format string,
) (string, error) {
	var segText string
	var specs []segment.ClauseSpec

	if hasSanitized {
		segText = strings.TrimSpace(sanitized.SanitizedText)
		seg.PauseAfterSeconds = sanitized.ScenePauseAfterSeconds
		specs = clauseSpecsFromSanitized(sanitized)
	} else {
		segText = strings.TrimSpace(seg.Text)
		specs = segment.SplitClauses(segText, seg.EnforceCommaPause)
	}

	if segText == "" {
		return "", statusErrorf(http.StatusUnprocessableEntity,
			"segment %q does not contain narratable text", seg.SegmentID)
	}
	if len(specs) == 0 {
		return "", statusErrorf(http.StatusUnprocessableEntity,
			"no narratable clauses generated for segment %q", seg.SegmentID)
	}
	seg.Text = segText

	component := sanitizeComponent(seg.SegmentID, "segment")
	fileName := fmt.Sprintf("%s_%s__%s.%s", prefix, component, uuid.NewString()[:8], format)
	filePath := filepath.Join(p.outputDir, fileName)

	workspace, err := os.MkdirTemp("", "longform_clause_")
	if err != nil {
		return "", wrapStatus(http.StatusInternalServerError, "clause workspace unavailable", err)
	}
	defer os.RemoveAll(workspace)

	synthStart := time.Now()
	clips, err := p.renderClauses(ctx, specs, voiceID, workspace, component, format)
	p.observeStage("synthesizing", synthStart)
	if err != nil {
		return "", wrapStatus(upstreamStatus(err),
			fmt.Sprintf("synthesis failed for segment %q", seg.SegmentID), err)
	}

	p.transition(jobID, jobs.StageAssembling, seg.SegmentID)
	seq, err := p.assembleSegmentFile(ctx, specs, clips, nil, workspace, format, filePath, seg.SegmentID)
	if err != nil {
		return "", err
	}

	if hasSanitized {
		if err := p.spliceSegment(ctx, jobID, seg.SegmentID, specs, clips, seq, workspace, format, filePath); err != nil {
			return "", err
		}
	}
	return fileName, nil
}

// assembleSegmentFile lays out the clause sequence and concatenates it into
// the segment's output file.
func (p *Pipeline) assembleSegmentFile(
	ctx context.Context,
	specs []segment.ClauseSpec,
	clips []assemble.ClauseAudio,
	overrides map[int]float64,
	workspace, format, filePath, segmentID string,
) (assemble.SequenceResult, error) {
	seq, err := p.assembler.BuildClauseSequence(ctx, specs, clips, overrides, workspace, format)
	if err != nil {
		return seq, wrapStatus(http.StatusInternalServerError,
			fmt.Sprintf("clause layout failed for segment %q", segmentID), err)
	}
	if len(seq.Paths) == 0 {
		return seq, statusErrorf(http.StatusUnprocessableEntity, "no audio produced for segment %q", segmentID)
	}
	err = p.ff.Concat(ctx, seq.Paths, filePath, 0)
	for _, silencePath := range seq.SilencePaths {
		os.Remove(silencePath)
	}
	if err != nil {
		return seq, wrapStatus(http.StatusInternalServerError,
			fmt.Sprintf("concatenation failed for segment %q", segmentID), err)
	}
	return seq, nil
}

// spliceSegment measures pause drift in the assembled file against the clause
// targets, asks for corrections once, and rebuilds the file if any apply.
func (p *Pipeline) spliceSegment(
	ctx context.Context,
	jobID, segmentID string,
	specs []segment.ClauseSpec,
	clips []assemble.ClauseAudio,
	seq assemble.SequenceResult,
	workspace, format, filePath string,
) error {
	needsReview := false
	for i, spec := range specs {
		if i >= len(seq.ObservedPauses) {
			break
		}
		if math.Abs(seq.ObservedPauses[i]-spec.PauseSeconds) > splice.DeviationThresholdSeconds {
			needsReview = true
			break
		}
	}
	if !needsReview {
		return nil
	}

	segmentAudio, err := os.ReadFile(filePath)
	if err != nil {
		log.Printf("longform: cannot read segment %q for splice review: %v", segmentID, err)
		return nil
	}

	observations := make([]agents.ClauseObservation, 0, len(specs))
	for i, spec := range specs {
		observed := 0.0
		if i < len(seq.ObservedPauses) {
			observed = seq.ObservedPauses[i]
		}
		observations = append(observations, agents.ClauseObservation{
			ClauseIndex:          i,
			Text:                 spec.Text,
			TargetPauseSeconds:   spec.PauseSeconds,
			ObservedPauseSeconds: observed,
		})
	}

	p.transition(jobID, jobs.StageCorrecting, segmentID)
	adjustments := p.agents.SuggestPauseAdjustments(ctx, segmentID, observations, nil, segmentAudio, clauseSpliceMaxAudioBytes)
	p.countAgent("splice", nil)
	if len(adjustments) == 0 {
		return nil
	}

	os.Remove(filePath)
	if _, err := p.assembleSegmentFile(ctx, specs, clips, adjustments, workspace, format, filePath, segmentID); err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.SplicePasses.Inc()
	}
	return nil
}

// renderClauses synthesizes the spoken clauses with bounded parallelism,
// preserving clause order in the result. Pause-only clauses produce no clip.
func (p *Pipeline) renderClauses(ctx context.Context, specs []segment.ClauseSpec, voiceID, workspace, component, format string) ([]assemble.ClauseAudio, error) {
	clips := make([]assemble.ClauseAudio, len(specs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)
	for i, spec := range specs {
		if strings.TrimSpace(spec.Text) == "" {
			continue
		}
		i, spec := i, spec
		g.Go(func() error {
			clauseAudio, err := p.synthesizeText(gctx, spec.Text, voiceID)
			if err != nil {
				return fmt.Errorf("clause %d: %w", i, err)
			}
			path := filepath.Join(workspace, fmt.Sprintf("%s_clause_%03d.%s", component, i, format))
			if err := os.WriteFile(path, clauseAudio, 0o644); err != nil {
				return fmt.Errorf("clause %d: %w", i, err)
			}
			clips[i] = assemble.ClauseAudio{
				Path:                   path,
				TrailingSilenceSeconds: p.measureTrailingSilence(gctx, path),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return clips, nil
}

func (p *Pipeline) measureTrailingSilence(ctx context.Context, path string) float64 {
	samples, err := p.ff.DecodePCM(ctx, path, measure.VADSampleRate)
	if err != nil {
		log.Printf("longform: trailing silence measurement failed for %s: %v", filepath.Base(path), err)
		return 0
	}
	return measure.TrailingSilenceSeconds(samples, measure.VADSampleRate)
}

func clauseSpecsFromSanitized(scene plan.SanitizedScene) []segment.ClauseSpec {
	var specs []segment.ClauseSpec
	for _, clause := range scene.Clauses {
		text := strings.TrimSpace(clause.Text)
		switch {
		case text != "":
			specs = append(specs, segment.ClauseSpec{Text: text, PauseSeconds: clause.PauseAfterSeconds})
		case clause.PauseAfterSeconds > 0:
			specs = append(specs, segment.ClauseSpec{PauseSeconds: clause.PauseAfterSeconds})
		}
	}
	return specs
}

func (p *Pipeline) writeManifest(generatedAt string, audioPlan *plan.LongFormAudioPlan, segments []map[string]any, combinedName, inputMode string) (string, error) {
	payload := map[string]any{
		"generated_at":                     generatedAt,
		"voice_id":                         audioPlan.VoiceID,
		"total_segments":                   audioPlan.TotalSegments,
		"total_estimated_duration_seconds": audioPlan.TotalEstimatedDurationSeconds,
		"segments":                         segments,
		"combined": map[string]any{
			"file_name":  combinedName,
			"audio_file": "/generated_audio/" + combinedName,
		},
		"stitching_instructions": audioPlan.StitchingInstructions,
		"input_mode":             inputMode,
	}

	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	manifestName := fmt.Sprintf("%s_%s.json", manifestPrefix, uuid.NewString()[:8])
	if err := os.WriteFile(filepath.Join(p.outputDir, manifestName), body, 0o644); err != nil {
		return "", err
	}
	return manifestName, nil
}
