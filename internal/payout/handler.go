package payout

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/transport"
)

type Handler struct {
	transport.BaseHandler
	Engine   EngineAPI
	Location *time.Location
}

func NewHandler(engine EngineAPI, loc *time.Location, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.BaseHandler{Logger: logger},
		Engine:      engine,
		Location:    loc,
	}
}

// RunPayouts handles POST /api/v1/payouts/run. An empty body pays last week for everyone.
func (h *Handler) RunPayouts(w http.ResponseWriter, r *http.Request) {
	actor := internal.ActorFromContext(r.Context())

	var req RunRequest
	if r.Body != nil {
		raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			h.HandleError(w, internal.NewValidationError("invalid request body", internal.ErrCodeValidationFailed))
			return
		}
		if len(bytes.TrimSpace(raw)) > 0 {
			if err := json.Unmarshal(raw, &req); err != nil {
				h.Logger.Error("RunPayouts: failed to parse request body", "error", err)
				h.HandleError(w, internal.NewValidationError("invalid request body", internal.ErrCodeValidationFailed))
				return
			}
		}
	}

	periodEnd, err := req.Validate(h.Location)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	report, err := h.Engine.DispatchPayouts(r.Context(), periodEnd, req.WorkerIDs)
	if err != nil {
		h.Logger.Error("RunPayouts: dispatch failed", "error", err, "actor", actor)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("RunPayouts: payout run finished",
		"actor", actor,
		"period_end", report.PeriodEnd,
		"successes", len(report.Successes),
		"errors", len(report.Errors))

	h.WriteJSON(w, http.StatusOK, report)
}
