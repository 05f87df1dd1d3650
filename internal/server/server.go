// Package server exposes the HTTP surface: job submission with a live
// SSE stream, lifecycle controls, status queries, archive download, and
// the Prometheus scrape endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"castforge/internal/archive"
	"castforge/internal/job"
	"castforge/internal/metrics"
	"castforge/internal/orchestrator"
	"castforge/internal/support/exception"
	"castforge/internal/support/logger"
)

// Server holds the handler dependencies.
type Server struct {
	orch     *orchestrator.Orchestrator
	store    *job.Store
	writer   *archive.Writer
	recorder *metrics.PrometheusRecorder
}

// New creates the server.
func New(orch *orchestrator.Orchestrator, store *job.Store, writer *archive.Writer, recorder *metrics.PrometheusRecorder) *Server {
	return &Server{orch: orch, store: store, writer: writer, recorder: recorder}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/jobs", s.handleSubmit)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleStats)
	mux.HandleFunc("POST /api/jobs/{id}/pause", s.lifecycleHandler(s.store.Pause))
	mux.HandleFunc("POST /api/jobs/{id}/resume", s.lifecycleHandler(s.store.Resume))
	mux.HandleFunc("POST /api/jobs/{id}/cancel", s.lifecycleHandler(s.store.Cancel))
	mux.HandleFunc("GET /api/jobs/{id}/archive", s.handleArchive)
	mux.HandleFunc("DELETE /api/jobs/{id}", s.handleCleanup)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.recorder.GetRegistry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// submitRequest is the job submission body.
type submitRequest struct {
	APIKey         string `json:"api_key"`
	Total          int    `json:"total"`
	PromptTemplate string `json:"prompt_template"`
	Model          string `json:"model,omitempty"`
	JobID          string `json:"job_id,omitempty"`
}

// handleSubmit accepts a job and streams its events as SSE until the
// terminal event. Disconnecting does not stop the job.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, exception.New("server", "invalid request body", exception.ErrValidation, false))
		return
	}

	j, events, err := s.orch.Submit(r.Context(), orchestrator.Request{
		APIKey:         req.APIKey,
		Total:          req.Total,
		PromptTemplate: req.PromptTemplate,
		Model:          req.Model,
		JobID:          req.JobID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, exception.Newf("server", "streaming unsupported by connection"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Job-Id", j.ID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			logger.Debugf("Job %s: stream consumer disconnected.", j.ID)
			return
		case e, open := <-events:
			if !open {
				return
			}
			writeSSE(w, flusher, e)
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, e orchestrator.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		logger.Errorf("Failed to encode %s event: %v", e.Type, err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
	flusher.Flush()
}

// lifecycleHandler adapts a store lifecycle operation into a handler
// returning the resulting stats snapshot. Invalid transitions report the
// current stats alongside the error status.
func (s *Server) lifecycleHandler(op func(ctx context.Context, jobID string) (job.Stats, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := r.PathValue("id")
		stats, err := op(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, exception.ErrInvalidTransition) {
				writeJSON(w, http.StatusConflict, map[string]any{
					"error": exception.ExtractMessage(err),
					"stats": stats,
				})
				return
			}
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
	}
}

// handleStats returns the stats snapshot for one job.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

// handleArchive streams a ZIP of everything produced so far, for both
// finished and cancelled jobs.
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if _, err := s.store.Get(jobID); err != nil {
		writeError(w, err)
		return
	}
	data, err := s.writer.BuildZip(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", jobID+".zip"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.Debugf("Archive download for job %s interrupted: %v", jobID, err)
	}
}

// handleCleanup deletes the job record and its stored artifacts
// unconditionally.
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if err := s.writer.Purge(r.Context(), jobID); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.Cleanup(r.Context(), jobID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Debugf("Failed to write response: %v", err)
	}
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, exception.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, exception.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, exception.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, exception.ErrPlanMismatch):
		// The metadata collaborator, not the caller, produced the bad plan.
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]any{"error": exception.ExtractMessage(err)})
}
