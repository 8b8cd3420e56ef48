package onboarding

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/tidwall/gjson"

	"github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/transport"
)

const (
	eventAccountUpdated = "account.updated"
	signatureHeader     = "Stripe-Signature"
	maxWebhookBody      = 64 << 10
)

// WebhookHandler receives signed processor events. Only account.updated is acted on;
// everything else is acknowledged so the processor stops retrying.
type WebhookHandler struct {
	transport.BaseHandler
	Tracker TrackerAPI
	Secret  string
}

func NewWebhookHandler(tracker TrackerAPI, secret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: transport.BaseHandler{Logger: logger},
		Tracker:     tracker,
		Secret:      secret,
	}
}

// HandleProcessorEvent handles POST /api/v1/webhooks/processor
func (h *WebhookHandler) HandleProcessorEvent(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.HandleError(w, internal.NewValidationError("invalid request body", internal.ErrCodeValidationFailed))
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get(signatureHeader), h.Secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.Logger.Warn("HandleProcessorEvent: signature verification failed", "error", err)
		h.HandleError(w, internal.NewUnauthorizedError("invalid webhook signature", internal.ErrCodeInvalidToken))
		return
	}

	if string(event.Type) != eventAccountUpdated {
		h.Logger.Debug("HandleProcessorEvent: ignoring event", "event_id", event.ID, "type", event.Type)
		h.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	object := gjson.GetBytes(payload, "data.object")
	accountID := object.Get("id").String()
	flags := Flags{
		DetailsSubmitted: object.Get("details_submitted").Bool(),
		PayoutsEnabled:   object.Get("payouts_enabled").Bool(),
		ChargesEnabled:   object.Get("charges_enabled").Bool(),
	}

	status, err := h.Tracker.SyncAccount(r.Context(), accountID, flags)
	if errors.Is(err, internal.ErrWorkerNotFound) {
		h.Logger.Warn("HandleProcessorEvent: account not linked to a worker", "event_id", event.ID, "account_id", accountID)
		h.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}
	if err != nil {
		h.Logger.Error("HandleProcessorEvent: sync failed", "event_id", event.ID, "account_id", accountID, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("HandleProcessorEvent: account synced",
		"event_id", event.ID,
		"worker_id", status.WorkerID,
		"status", status.Status)
	h.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}
