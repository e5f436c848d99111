// Package app wires the narration service together from configuration.
package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/AbhiramVSA/Luma/internal/agents"
	"github.com/AbhiramVSA/Luma/internal/assemble"
	"github.com/AbhiramVSA/Luma/internal/config"
	"github.com/AbhiramVSA/Luma/internal/ffmpeg"
	"github.com/AbhiramVSA/Luma/internal/httpapi"
	"github.com/AbhiramVSA/Luma/internal/jobs"
	"github.com/AbhiramVSA/Luma/internal/longform"
	"github.com/AbhiramVSA/Luma/internal/measure"
	"github.com/AbhiramVSA/Luma/internal/observability"
	"github.com/AbhiramVSA/Luma/internal/store"
	"github.com/AbhiramVSA/Luma/internal/synth"
)

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Jobs     *jobs.Manager
	Pipeline *longform.Pipeline
	Metrics  *observability.Metrics

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	history, err := store.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("job store init failed: %w", err)
	}
	log.Printf("job history store: %s", history.Mode())

	ff := ffmpeg.New(ffmpeg.WithPath(cfg.FFmpegPath))

	synthClient := synth.NewClient(cfg.ElevenLabsAPIKey,
		synth.WithBaseURL(cfg.ElevenLabsBaseURL),
		synth.WithTimeout(cfg.ElevenLabsTimeout),
	)
	if !synthClient.Enabled() {
		log.Printf("ELEVENLABS_API_KEY not set, synthesis endpoints will refuse requests")
	}

	agentClient := agents.New(agents.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.PlannerModel,
	})
	if !agentClient.Enabled() {
		log.Printf("OPENAI_API_KEY not set, planning falls back to local segmentation")
	}

	transcriber := measure.NewWhisperTranscriber(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.WhisperModel)
	if !transcriber.Enabled() {
		log.Printf("transcription disabled without OPENAI_API_KEY, timing analysis uses silence detection only")
	}
	analyzer := measure.NewAnalyzer(transcriber, ff)

	jobManager := jobs.NewManager(cfg.JobRetention)
	jobManager.SetFinishHook(func(j *jobs.Job) {
		record := store.JobRecord{
			ID:          j.ID,
			Kind:        j.Kind,
			Stage:       string(j.Stage),
			Error:       j.Error,
			OutputFiles: j.OutputFiles,
			CreatedAt:   j.CreatedAt,
			FinishedAt:  j.UpdatedAt,
		}
		if err := history.SaveJob(context.Background(), record); err != nil {
			log.Printf("job %s history save failed: %v", j.ID, err)
		}
	})

	pipeline := longform.New(longform.Deps{
		Synth:             synthClient,
		Agents:            agentClient,
		Analyzer:          analyzer,
		Assembler:         assemble.New(ff),
		Transcoder:        ff,
		Metrics:           metrics,
		Jobs:              jobManager,
		OutputDir:         cfg.OutputDir,
		DefaultVoiceID:    cfg.DefaultVoiceID,
		ClauseParallelism: cfg.ClauseParallelism,
	})

	api := httpapi.New(cfg, pipeline, jobManager, history, metrics)

	cleanup := func() error {
		var errs []string
		if err := history.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Jobs:     jobManager,
		Pipeline: pipeline,
		Metrics:  metrics,
		Cleanup:  cleanup,
	}, nil
}
