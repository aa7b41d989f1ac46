// Package api provides the HTTP trigger surface for the reset subsystem:
// scheduled-job entry points, the authorization-gated manual trigger and the
// health check. Handlers are plain net/http so they mount on any router.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/luminalens/quotareset/pkg/quotareset"
)

// Handler provides HTTP endpoints for the reset subsystem
type Handler struct {
	config Config
}

// ScheduledReset returns the handler the external job runtime invokes for
// one reset kind. The run's failure is recorded in the store and reported in
// the response body; the handler itself answers 200 either way so the job
// runtime does not blindly re-run already-committed batches.
func (h *Handler) ScheduledReset(kind quotareset.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		outcome := h.config.Executor.Run(r.Context(), kind)

		writeJSON(w, http.StatusOK, ScheduledResetResponse{
			Kind:       string(outcome.Kind),
			Status:     string(outcome.Status),
			UsersReset: outcome.UsersReset,
			Batches:    outcome.Batches,
			Error:      outcome.Err,
		})
	}
}

// HealthCheck runs the health monitor and returns the published summary
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := h.config.Monitor.Check(r.Context())

	writeJSON(w, http.StatusOK, HealthCheckResponse{
		Status:         status.Status,
		CheckedAt:      status.CheckedAt,
		LastDailyReset: status.LastDailyReset,
		NextDaily:      status.NextDaily,
		NextWeekly:     status.NextWeekly,
		NextMonthly:    status.NextMonthly,
	})
}

// ManualReset lets an operator force-run one or all reset kinds. The caller
// must present an administrator claim; nothing touches the store before the
// claim and the reset kind are validated.
func (h *Handler) ManualReset(w http.ResponseWriter, r *http.Request) {
	claims, err := h.config.ClaimsFromRequest(r)
	if err != nil {
		h.handleError(w, r, err, http.StatusUnauthorized)
		return
	}

	var req ManualResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleError(w, r, errors.New("invalid request body"), http.StatusBadRequest)
		return
	}

	result, err := h.config.Executor.ManualReset(r.Context(), req.ResetType, claims)
	switch {
	case errors.Is(err, quotareset.ErrUnauthorized):
		h.handleError(w, r, err, http.StatusForbidden)
		return
	case errors.Is(err, quotareset.ErrInvalidKind):
		h.handleError(w, r, err, http.StatusBadRequest)
		return
	case err != nil:
		h.handleError(w, r, err, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ManualResetResponse{
		Success: result.Success,
		Message: result.Message,
	})
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if h.config.OnError != nil {
		h.config.OnError(w, r, err, status)
		return
	}

	h.config.Logger.Warn("request rejected",
		quotareset.Field{Key: "path", Value: r.URL.Path},
		quotareset.Field{Key: "status", Value: status},
		quotareset.Field{Key: "error", Value: err.Error()})

	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
