package admin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/frahmantamala/care-payments/internal/transport"
)

type Handler struct {
	transport.BaseHandler
	Facade   FacadeAPI
	Location *time.Location
}

func NewHandler(facade FacadeAPI, loc *time.Location, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.BaseHandler{Logger: logger},
		Facade:      facade,
		Location:    loc,
	}
}

// PaymentHistory handles GET /api/v1/clients/{id}/payments
func (h *Handler) PaymentHistory(w http.ResponseWriter, r *http.Request) {
	clientID, appErr := h.PathInt64(r, "id")
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}
	page, err := ParsePage(r.URL.Query())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	history, err := h.Facade.PaymentHistory(r.Context(), clientID, page)
	if err != nil {
		h.Logger.Error("PaymentHistory: facade error", "error", err, "client_id", clientID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, history)
}

// PayoutHistory handles GET /api/v1/workers/{id}/payouts
func (h *Handler) PayoutHistory(w http.ResponseWriter, r *http.Request) {
	workerID, appErr := h.PathInt64(r, "id")
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}
	page, err := ParsePage(r.URL.Query())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	history, err := h.Facade.PayoutHistory(r.Context(), workerID, page)
	if err != nil {
		h.Logger.Error("PayoutHistory: facade error", "error", err, "worker_id", workerID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, history)
}

// DashboardStats handles GET /api/v1/admin/stats
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	rng, err := ParseRange(r.URL.Query(), h.Location)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	stats, err := h.Facade.DashboardStats(r.Context(), rng)
	if err != nil {
		h.Logger.Error("DashboardStats: facade error", "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, stats)
}
