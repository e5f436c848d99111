// Package longform orchestrates the narration pipeline: script parsing,
// segmentation planning, synthesis, timing measurement, pause correction and
// final assembly.
package longform

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/AbhiramVSA/Luma/internal/agents"
	"github.com/AbhiramVSA/Luma/internal/assemble"
	"github.com/AbhiramVSA/Luma/internal/ffmpeg"
	"github.com/AbhiramVSA/Luma/internal/jobs"
	"github.com/AbhiramVSA/Luma/internal/measure"
	"github.com/AbhiramVSA/Luma/internal/observability"
	"github.com/AbhiramVSA/Luma/internal/plan"
	"github.com/AbhiramVSA/Luma/internal/synth"
)

const (
	audioFormat = "mp3"

	// Audio attachment caps for the splice agent, by pipeline path.
	sceneSpliceMaxAudioBytes  = 800_000
	clauseSpliceMaxAudioBytes = 750_000
)

// Deps collects the collaborators a Pipeline needs.
type Deps struct {
	Synth      *synth.Client
	Agents     *agents.Client
	Analyzer   *measure.Analyzer
	Assembler  *assemble.Assembler
	Transcoder *ffmpeg.Transcoder
	Metrics    *observability.Metrics
	Jobs       *jobs.Manager

	OutputDir         string
	DefaultVoiceID    string
	ClauseParallelism int
}

// Pipeline runs both narration paths end to end.
type Pipeline struct {
	synth       *synth.Client
	agents      *agents.Client
	analyzer    *measure.Analyzer
	assembler   *assemble.Assembler
	ff          *ffmpeg.Transcoder
	metrics     *observability.Metrics
	jobs        *jobs.Manager
	outputDir   string
	voiceID     string
	parallelism int
}

func New(deps Deps) *Pipeline {
	parallelism := deps.ClauseParallelism
	if parallelism <= 0 {
		parallelism = 4
	}
	outputDir := deps.OutputDir
	if outputDir == "" {
		outputDir = "generated_audio"
	}
	return &Pipeline{
		synth:       deps.Synth,
		agents:      deps.Agents,
		analyzer:    deps.Analyzer,
		assembler:   deps.Assembler,
		ff:          deps.Transcoder,
		metrics:     deps.Metrics,
		jobs:        deps.Jobs,
		outputDir:   outputDir,
		voiceID:     strings.TrimSpace(deps.DefaultVoiceID),
		parallelism: parallelism,
	}
}

func (p *Pipeline) transition(jobID string, stage jobs.Stage, detail string) {
	if p.jobs == nil || jobID == "" {
		return
	}
	if err := p.jobs.Transition(jobID, stage, detail); err != nil {
		log.Printf("longform: job %s transition to %s failed: %v", jobID, stage, err)
		return
	}
	if p.metrics != nil {
		p.metrics.JobEvents.WithLabelValues(string(stage)).Inc()
	}
}

func (p *Pipeline) observeStage(stage string, started time.Time) {
	if p.metrics != nil {
		p.metrics.ObserveStage(stage, time.Since(started))
	}
}

func (p *Pipeline) countSynthesis(err error) {
	if p.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.metrics.SynthesisRequests.WithLabelValues(outcome).Inc()
}

func (p *Pipeline) countAgent(agent string, err error) {
	if p.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.metrics.AgentRequests.WithLabelValues(agent, outcome).Inc()
}

// synthesizeText renders one text unit, tracking the synthesis outcome.
func (p *Pipeline) synthesizeText(ctx context.Context, text, voiceID string) ([]byte, error) {
	audio, err := p.synth.SynthesizeText(ctx, text, voiceID)
	p.countSynthesis(err)
	return audio, err
}

// sanitizeComponent reduces a caller-supplied value to a filename-safe token.
func sanitizeComponent(value, fallback string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(value) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	cleaned := strings.Trim(b.String(), "._-")
	if cleaned == "" {
		return fallback
	}
	return cleaned
}

// sanitizeSceneText drops production directives: any line starting with
// "meta", case-insensitively, is not narration.
func sanitizeSceneText(text string) string {
	var kept []string
	for _, raw := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "meta") {
			continue
		}
		kept = append(kept, raw)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// applyVoice resolves the final plan voice: request override first, then the
// planner's choice, then the configured default.
func (p *Pipeline) applyVoice(pl *plan.LongFormAudioPlan, override string) {
	if v := strings.TrimSpace(override); v != "" {
		pl.VoiceID = v
		return
	}
	if strings.TrimSpace(pl.VoiceID) == "" {
		pl.VoiceID = p.voiceID
	}
}

func upstreamStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return http.StatusBadGateway
}
