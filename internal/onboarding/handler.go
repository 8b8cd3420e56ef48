package onboarding

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/care-payments/internal/transport"
)

type Handler struct {
	transport.BaseHandler
	Tracker TrackerAPI
}

func NewHandler(tracker TrackerAPI, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.BaseHandler{Logger: logger},
		Tracker:     tracker,
	}
}

// GetStatus handles GET /api/v1/workers/{id}/connect/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	workerID, appErr := h.PathInt64(r, "id")
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	status, err := h.Tracker.GetStatus(r.Context(), workerID)
	if err != nil {
		h.Logger.Error("GetStatus: tracker error", "error", err, "worker_id", workerID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, status)
}

// CreateOnboardingLink handles POST /api/v1/workers/{id}/connect/onboarding-link
func (h *Handler) CreateOnboardingLink(w http.ResponseWriter, r *http.Request) {
	workerID, appErr := h.PathInt64(r, "id")
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	link, err := h.Tracker.CreateOnboardingLink(r.Context(), workerID)
	if err != nil {
		h.Logger.Error("CreateOnboardingLink: tracker error", "error", err, "worker_id", workerID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("CreateOnboardingLink: link issued", "worker_id", workerID, "account_id", link.AccountID)
	h.WriteJSON(w, http.StatusCreated, link)
}
