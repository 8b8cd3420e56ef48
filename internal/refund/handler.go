package refund

import (
	"log/slog"
	"net/http"

	errors "github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/transport"
)

type Handler struct {
	transport.BaseHandler
	RefundService ServiceAPI
}

func NewHandler(refundService ServiceAPI, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler:   transport.BaseHandler{Logger: logger},
		RefundService: refundService,
	}
}

// CreateRefund handles POST /api/v1/refunds
func (h *Handler) CreateRefund(w http.ResponseWriter, r *http.Request) {
	actor := errors.ActorFromContext(r.Context())
	if actor == "" {
		h.Logger.Error("CreateRefund: actor not found in context")
		h.HandleError(w, errors.NewUnauthorizedError("authentication required", errors.ErrCodeInvalidToken))
		return
	}

	var req RefundRequest
	if appErr := h.DecodeJSON(r, &req); appErr != nil {
		h.Logger.Error("CreateRefund: failed to parse request body")
		h.HandleError(w, appErr)
		return
	}

	in, err := req.ToInput(actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	receipt, err := h.RefundService.Refund(r.Context(), in)
	if err != nil {
		h.Logger.Error("CreateRefund: service error", "error", err, "payment_ref", in.PaymentRef, "actor", actor)
		h.HandleServiceError(w, err)
		return
	}

	if receipt.Warning != nil {
		h.Logger.Warn("CreateRefund: refund needs reconciliation", "payment_ref", in.PaymentRef, "warning", receipt.Warning.String())
	}
	h.WriteJSON(w, http.StatusOK, receipt)
}
