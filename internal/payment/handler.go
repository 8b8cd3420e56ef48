package payment

import (
	"log/slog"
	"net/http"

	errors "github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/transport"
)

type Handler struct {
	transport.BaseHandler
	PaymentService ServiceAPI
}

func NewHandler(paymentService ServiceAPI, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler:    transport.BaseHandler{Logger: logger},
		PaymentService: paymentService,
	}
}

// ChargeBooking handles POST /api/v1/bookings/{id}/charge
func (h *Handler) ChargeBooking(w http.ResponseWriter, r *http.Request) {
	actor := errors.ActorFromContext(r.Context())
	if actor == "" {
		h.Logger.Error("ChargeBooking: actor not found in context")
		h.HandleError(w, errors.NewUnauthorizedError("authentication required", errors.ErrCodeInvalidToken))
		return
	}

	bookingID, appErr := h.PathInt64(r, "id")
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	var req ChargeRequest
	if appErr := h.DecodeJSON(r, &req); appErr != nil {
		h.Logger.Error("ChargeBooking: failed to parse request body", "booking_id", bookingID)
		h.HandleError(w, appErr)
		return
	}

	in, err := req.ToInput(bookingID, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	receipt, err := h.PaymentService.ChargeBooking(r.Context(), in)
	if err != nil {
		h.Logger.Error("ChargeBooking: service error", "error", err, "booking_id", bookingID, "actor", actor)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("ChargeBooking: booking charged",
		"booking_id", bookingID,
		"payment_id", receipt.PaymentID,
		"actor", actor)

	h.WriteJSON(w, http.StatusCreated, receipt)
}
