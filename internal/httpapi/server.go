// Package httpapi exposes the narration pipeline over HTTP: synthesis
// endpoints, output file management, job progress, health and metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/AbhiramVSA/Luma/internal/config"
	"github.com/AbhiramVSA/Luma/internal/jobs"
	"github.com/AbhiramVSA/Luma/internal/longform"
	"github.com/AbhiramVSA/Luma/internal/observability"
	"github.com/AbhiramVSA/Luma/internal/reliability"
	"github.com/AbhiramVSA/Luma/internal/store"
	"github.com/AbhiramVSA/Luma/internal/synth"
)

// Pipeline is the slice of the orchestrator the HTTP layer needs.
type Pipeline interface {
	ProcessScript(ctx context.Context, jobID, script string) (*longform.ScenesResult, []byte, error)
	SynthesizeLongform(ctx context.Context, jobID string, req longform.LongFormAudioRequest) (*longform.LongFormResult, error)
}

type Server struct {
	cfg      config.Config
	pipeline Pipeline
	jobs     *jobs.Manager
	history  store.Store
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, pipeline Pipeline, jobManager *jobs.Manager, history store.Store, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		pipeline: pipeline,
		jobs:     jobManager,
		history:  history,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser connections unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/longform/scenes", s.handleLongformScenes)
	r.Post("/v1/longform/audio", s.handleLongformAudio)
	r.Get("/v1/longform/jobs/{id}", s.handleGetJob)
	r.Get("/v1/longform/jobs/ws", s.handleJobEvents)
	r.Get("/v1/longform/jobs", s.handleRecentJobs)
	r.Get("/v1/audio/files", s.handleListAudioFiles)
	r.Delete("/v1/audio/files", s.handleClearAudioFiles)

	r.Handle("/generated_audio/*", http.StripPrefix("/generated_audio/",
		http.FileServer(http.Dir(s.cfg.OutputDir))))

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"store_mode": s.storeMode(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ready",
		"store_mode":  s.storeMode(),
		"active_jobs": s.jobs.ActiveCount(),
	})
}

type scenesRequest struct {
	Script string `json:"script"`
}

func (s *Server) handleLongformScenes(w http.ResponseWriter, r *http.Request) {
	var req scenesRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Script) == "" {
		respondError(w, http.StatusUnprocessableEntity, "empty_script", "script must not be empty")
		return
	}

	job := s.startJob("scenes")
	result, finalAudio, err := s.pipeline.ProcessScript(r.Context(), job.ID, req.Script)
	if err != nil {
		s.finishJob(job.ID, nil, err)
		s.respondPipelineError(w, err)
		return
	}
	s.finishJob(job.ID, nil, nil)

	w.Header().Set("Content-Type", longform.MultipartMediaType())
	w.Header().Set("X-Job-Id", job.ID)
	w.WriteHeader(http.StatusOK)
	if err := longform.WriteMultipart(w, result, finalAudio); err != nil {
		log.Printf("httpapi: multipart write failed: %v", err)
	}
}

func (s *Server) handleLongformAudio(w http.ResponseWriter, r *http.Request) {
	var req longform.LongFormAudioRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Script) == "" && len(req.Scenes) == 0 {
		respondError(w, http.StatusUnprocessableEntity, "empty_request", "either script or scenes must be provided")
		return
	}

	job := s.startJob("audio")
	result, err := s.pipeline.SynthesizeLongform(r.Context(), job.ID, req)
	if err != nil {
		s.finishJob(job.ID, nil, err)
		s.respondPipelineError(w, err)
		return
	}

	outputs := make([]string, 0, len(result.Segments)+2)
	for _, seg := range result.Segments {
		outputs = append(outputs, seg.FileName)
	}
	outputs = append(outputs, result.Combined.FileName)
	s.finishJob(job.ID, outputs, nil)

	w.Header().Set("X-Job-Id", job.ID)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	job, err := s.jobs.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "job_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleRecentJobs(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}
	if s.history == nil {
		respondJSON(w, http.StatusOK, map[string]any{"jobs": []store.JobRecord{}})
		return
	}
	records, err := s.history.RecentJobs(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_unavailable", err.Error())
		return
	}
	if records == nil {
		records = []store.JobRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"jobs": records})
}

// handleJobEvents streams job progress over a websocket: the current snapshot
// first, then every stage transition until the job finishes or the client
// disconnects.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(r.URL.Query().Get("job_id"))
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing_job_id", "query parameter job_id is required")
		return
	}

	job, err := s.jobs.Get(jobID)
	if err != nil {
		respondError(w, http.StatusNotFound, "job_not_found", err.Error())
		return
	}
	events, cancel, err := s.jobs.Subscribe(jobID)
	if err != nil {
		respondError(w, http.StatusNotFound, "job_not_found", err.Error())
		return
	}
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(job); err != nil {
		return
	}
	if job.Stage.Terminal() {
		return
	}

	// Reader goroutine solely to notice client disconnects.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-clientGone:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			if ev.Stage.Terminal() {
				return
			}
		}
	}
}

func (s *Server) startJob(kind string) *jobs.Job {
	job := s.jobs.Create(kind)
	if s.metrics != nil {
		s.metrics.ActiveJobs.Set(float64(s.jobs.ActiveCount()))
		s.metrics.JobEvents.WithLabelValues("created").Inc()
	}
	return job
}

func (s *Server) finishJob(jobID string, outputs []string, cause error) {
	if cause != nil {
		if err := s.jobs.Fail(jobID, cause); err != nil {
			log.Printf("httpapi: job %s fail: %v", jobID, err)
		}
	} else {
		if err := s.jobs.Complete(jobID, outputs); err != nil {
			log.Printf("httpapi: job %s complete: %v", jobID, err)
		}
	}
	if s.metrics != nil {
		s.metrics.ActiveJobs.Set(float64(s.jobs.ActiveCount()))
	}
}

// respondPipelineError maps pipeline failures onto client-facing statuses:
// timeouts become 504, synthesis upstream failures relay the provider's
// status, StatusError carries its own code, anything else is a 500.
func (s *Server) respondPipelineError(w http.ResponseWriter, err error) {
	if reliability.IsTimeout(err) {
		respondError(w, http.StatusGatewayTimeout, "upstream_timeout", err.Error())
		return
	}
	var upstream *synth.UpstreamError
	if errors.As(err, &upstream) {
		respondError(w, upstream.StatusCode, "synthesis_failed", err.Error())
		return
	}
	var status *longform.StatusError
	if errors.As(err, &status) {
		respondError(w, status.Code, codeForStatus(status.Code), err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusUnprocessableEntity:
		return "invalid_input"
	case http.StatusBadGateway:
		return "upstream_failed"
	case http.StatusBadRequest:
		return "invalid_request"
	default:
		return "pipeline_failed"
	}
}

func (s *Server) storeMode() string {
	if s.history == nil {
		return "disabled"
	}
	return s.history.Mode()
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
