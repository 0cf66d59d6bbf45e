package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dgallion1/wikirefs/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

const maxBatchTitles = 50

type jobRequest struct {
	Titles     []string `json:"titles"`
	References *bool    `json:"references,omitempty"`
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	titles := make([]string, 0, len(req.Titles))
	for _, t := range req.Titles {
		if t = strings.TrimSpace(t); t != "" {
			titles = append(titles, t)
		}
	}
	if len(titles) == 0 {
		jsonError(w, "at least one title is required", http.StatusBadRequest)
		return
	}
	if len(titles) > maxBatchTitles {
		jsonError(w, fmt.Sprintf("too many titles (max %d)", maxBatchTitles), http.StatusBadRequest)
		return
	}
	withRefs := req.References == nil || *req.References

	job := pipeline.NewJob(titles, withRefs)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.log.Info("job submitted", "job_id", job.ID, "titles", len(titles))

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/jobs/%s", job.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}
