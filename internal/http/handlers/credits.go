package handlers

import (
	"net/http"
	"time"
)

// Credits handles GET /credits: the authenticated user's current balance.
func (a *App) Credits(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	balance, err := a.Ledger.Balance(r.Context(), userID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"credits": balance})
}

// Generations handles GET /generations: the user's recent jobs, read-only.
func (a *App) Generations(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	jobs, err := a.Jobs.ListByUser(r.Context(), userID, 20)
	if err != nil {
		a.fail(w, err)
		return
	}
	items := make([]map[string]any, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, map[string]any{
			"id":              job.ID,
			"provider":        string(job.Provider),
			"status":          string(job.Status),
			"prompt":          job.Prompt,
			"cost_in_credits": job.CostInCredits,
			"progress":        job.Progress,
			"result_url":      job.ResultURL,
			"created_at":      job.CreatedAt.Format(time.RFC3339),
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
