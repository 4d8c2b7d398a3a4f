package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"luxgen/internal/domain"
	"luxgen/internal/generation"
	"luxgen/internal/infra"
	"luxgen/internal/ledger"
	"luxgen/internal/middleware"
)

// App is the handler container holding the wired core components.
type App struct {
	Orchestrator *generation.Orchestrator
	Poller       *generation.Poller
	Ledger       *ledger.Ledger
	Jobs         domain.JobRepository
	Logger       infra.Logger
}

func NewApp(orc *generation.Orchestrator, poller *generation.Poller, led *ledger.Ledger, jobs domain.JobRepository, logger infra.Logger) *App {
	return &App{Orchestrator: orc, Poller: poller, Ledger: led, Jobs: jobs, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]string{"error": message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// fail translates domain errors onto the HTTP surface. Synchronous errors
// come back as JSON with a descriptive error field; asynchronous ones are
// only observable through polling.
func (a *App) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrInsufficientFunds):
		a.error(w, http.StatusPaymentRequired, "Insufficient Credits")
	case errors.Is(err, domain.ErrInvalidRequest):
		a.error(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, domain.ErrCompositionFailed), errors.Is(err, domain.ErrRefinementFailed):
		a.error(w, http.StatusUnprocessableEntity, "ASSET_MERGE_FAILED: "+err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		a.error(w, http.StatusTooManyRequests, "System Busy. Please wait a moment before retrying.")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not found")
	default:
		a.Logger.Error().Err(err).Msg("handlers: request failed")
		a.error(w, http.StatusInternalServerError, err.Error())
	}
}
