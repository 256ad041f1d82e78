package worker

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/remote/internal/config"
	"github.com/thebtf/remote/internal/correlation"
	"github.com/thebtf/remote/internal/dataset"
	"github.com/thebtf/remote/pkg/models"
)

// CorrelateRequest is the body of POST /api/correlate/{source}.
type CorrelateRequest struct {
	Activities    []models.Activity `json:"activities"`
	Messages      []models.Message  `json:"messages"`
	ReferenceDate string            `json:"reference_date,omitempty"`
	Mode          string            `json:"mode,omitempty"`
}

// JobResponse is a job's status plus its report once done.
type JobResponse struct {
	correlation.JobStatus
	Report *correlation.Report `json:"report,omitempty"`
}

// SourceResponse describes one registered source configuration.
type SourceResponse struct {
	Config *config.SourceConfig `json:"config"`
	Name   string               `json:"name"`
	Mode   string               `json:"mode"`
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSONStatus(w, status, map[string]string{"error": msg})
}

// handleHealth handles health check requests.
func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
		"sources": len(s.registry.Sources()),
	})
}

func (s *Service) handleListSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]interface{}{
		"sources": s.registry.Sources(),
	})
}

func (s *Service) handleGetSource(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "source")
	if err := ValidateSourceName(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	src, ok := s.registry.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, errSourceNotFound.Error())
		return
	}
	cfg := src.Config
	writeJSON(w, SourceResponse{
		Name:   src.Name,
		Mode:   correlation.ModeFor(cfg.Output).String(),
		Config: &cfg,
	})
}

// handleCorrelate runs a correlation inline or as a background job depending on
// the request's mode, falling back to the source's output settings.
func (s *Service) handleCorrelate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "source")
	if err := ValidateSourceName(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	engine, err := s.engineFor(name)
	if err != nil {
		if errors.Is(err, errSourceNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var req CorrelateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ref := models.TruncateDay(time.Now().UTC())
	if req.ReferenceDate != "" {
		parsed, ok := dataset.ParseDate(req.ReferenceDate, ref)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid reference_date")
			return
		}
		ref = parsed
	}

	mode := correlation.ModeFor(engine.Source().Config.Output)
	if req.Mode != "" {
		m, ok := correlation.ParseMode(req.Mode)
		if !ok {
			writeError(w, http.StatusBadRequest, "mode must be immediate or deferred")
			return
		}
		mode = m
	}

	for i := range req.Messages {
		if req.Messages[i].Source == "" {
			req.Messages[i].Source = models.SourceType(engine.Source().Config.MessageType)
		}
	}

	if mode == correlation.ModeDeferred {
		job := s.jobs.Submit(engine, req.Activities, req.Messages, ref)
		w.Header().Set("Location", "/api/jobs/"+job.ID())
		writeJSONStatus(w, http.StatusAccepted, job.Status())
		return
	}

	results, err := engine.Correlate(r.Context(), req.Activities, req.Messages, ref)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusServiceUnavailable, "correlation cancelled")
			return
		}
		log.Error().Err(err).Str("source", name).Msg("Correlation failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, correlation.BuildReport(name, ref, req.Activities, results))
}

func (s *Service) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]interface{}{
		"jobs": s.jobs.List(),
	})
}

// handleGetJob reports a job's progress. Polling starts a job that was created lazily.
func (s *Service) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	resp := JobResponse{JobStatus: job.Poll()}
	if resp.State == correlation.JobDone {
		report, err := job.Report()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Report = report
	}
	writeJSON(w, resp)
}

func (s *Service) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.jobs.Cancel(id) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	job, ok := s.jobs.Get(id)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, job.Status())
}

func (s *Service) handleStats(w http.ResponseWriter, _ *http.Request) {
	jobs := s.jobs.List()
	byState := make(map[string]int)
	for _, st := range jobs {
		byState[strings.ToLower(string(st.State))]++
	}
	writeJSON(w, map[string]interface{}{
		"uptime":     time.Since(s.startTime).Round(time.Second).String(),
		"cache":      s.cache.Stats(),
		"rate_limit": s.limiter.Stats(),
		"jobs":       byState,
	})
}
