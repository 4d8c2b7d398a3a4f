package handlers

import (
	"net/http"

	"luxgen/internal/domain"
)

// FalStatus handles GET /fal-status?request_id=: poll by the fal queue's own
// handle for clients that kept the provider id instead of the job id.
func (a *App) FalStatus(w http.ResponseWriter, r *http.Request) {
	a.providerStatus(w, r, domain.ProviderFal, r.URL.Query().Get("request_id"))
}

// LumaStatus handles GET /luma-status?generation_id=.
func (a *App) LumaStatus(w http.ResponseWriter, r *http.Request) {
	a.providerStatus(w, r, domain.ProviderLuma, r.URL.Query().Get("generation_id"))
}

func (a *App) providerStatus(w http.ResponseWriter, r *http.Request, provider domain.Provider, providerJobID string) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	if providerJobID == "" {
		a.error(w, http.StatusBadRequest, "provider job id required")
		return
	}

	result, err := a.Poller.PollByProviderID(r.Context(), provider, providerJobID)
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
