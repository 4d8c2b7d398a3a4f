package handlers

import (
	"encoding/json"
	"net/http"

	"luxgen/internal/generation"
)

type submitResponse struct {
	ID          string              `json:"id"`
	Status      string              `json:"status"`
	LuxMetadata generation.Metadata `json:"lux_metadata"`
}

// GenerateSubmit handles POST /generate: debit, optional composition,
// provider submission, job record.
func (a *App) GenerateSubmit(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	var req generation.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}

	result, err := a.Orchestrator.Submit(r.Context(), userID, &req)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusCreated, submitResponse{
		ID:          result.Job.ID,
		Status:      string(result.Job.Status),
		LuxMetadata: result.Metadata,
	})
}

// GenerateStatus handles GET /generate?id=<jobId>: one poll observation.
func (a *App) GenerateStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	jobID := r.URL.Query().Get("id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "id required")
		return
	}

	result, err := a.Poller.Poll(r.Context(), jobID)
	if err != nil {
		a.fail(w, err)
		return
	}
	if result.Job.UserID != userID {
		a.error(w, http.StatusNotFound, "not found")
		return
	}
	a.writePollResult(w, result)
}

func (a *App) writePollResult(w http.ResponseWriter, result *generation.PollResult) {
	job := result.Job
	resp := map[string]any{
		"id":                 job.ID,
		"status":             string(job.Status),
		"progress":           job.Progress,
		"persistence_status": result.PersistenceStatus,
	}
	if job.ResultURL != "" {
		resp["output"] = job.ResultURL
		resp["video_url"] = job.ResultURL
	}
	if job.ErrorMessage != "" {
		resp["error"] = job.ErrorMessage
	}
	a.json(w, http.StatusOK, resp)
}
