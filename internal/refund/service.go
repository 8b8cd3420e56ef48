package refund

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/core/datamodel/ledger"
	pgtypes "github.com/frahmantamala/care-payments/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/care-payments/internal/core/events"
	"github.com/frahmantamala/care-payments/internal/core/money"
	"github.com/frahmantamala/care-payments/internal/paymentgateway"
)

type RefundService struct {
	repository RepositoryAPI
	gateway    paymentgateway.Gateway
	publisher  events.Publisher
	logger     *slog.Logger
}

func NewRefundService(repository RepositoryAPI, gateway paymentgateway.Gateway, publisher events.Publisher, logger *slog.Logger) *RefundService {
	return &RefundService{
		repository: repository,
		gateway:    gateway,
		publisher:  publisher,
		logger:     logger,
	}
}

// Refund returns money for a processed payment. The processor is authoritative for the
// refunded amount; a refund the ledger cannot record still succeeds with a warning.
func (s *RefundService) Refund(ctx context.Context, in RefundInput) (*Receipt, error) {
	if err := in.Validate(); err != nil {
		s.logger.Warn("refund rejected by validation", "payment_ref", in.PaymentRef, "actor", in.Actor, "error", err)
		return nil, err
	}

	payment, err := s.repository.GetPaymentByRef(ctx, in.PaymentRef)
	if err != nil && !errors.Is(err, internal.ErrPaymentNotFound) {
		s.logger.Error("failed to load payment for refund", "payment_ref", in.PaymentRef, "error", err)
		return nil, internal.NewInternalError("Failed to load payment", err)
	}
	if err := checkRefundable(payment, in.Amount); err != nil {
		s.logger.Warn("refund rejected", "payment_ref", in.PaymentRef, "actor", in.Actor, "error", err)
		return nil, err
	}

	res, err := s.gateway.Refund(ctx, pgtypes.RefundRequest{
		PaymentRef:     in.PaymentRef,
		Amount:         in.Amount,
		Reason:         in.Reason,
		IdempotencyKey: idempotencyKey(in, payment),
	})
	if err != nil {
		s.logger.Warn("processor refund failed",
			"payment_ref", in.PaymentRef,
			"amount", amountLabel(in.Amount),
			"actor", in.Actor,
			"error", err)
		return nil, err
	}

	refunded := res.Amount
	receipt := &Receipt{
		RefundRef:  res.RefundRef,
		PaymentRef: in.PaymentRef,
		Amount:     refunded,
		Status:     res.Status,
	}

	switch {
	case payment == nil:
		receipt.Warning = s.warn(ctx, WarningUntrackedPayment, "refund issued for a payment with no ledger record", in, res.RefundRef)
	case refunded <= 0:
		receipt.Warning = s.warn(ctx, WarningZeroAmount, "processor reported no refunded amount; the payment was left unchanged", in, res.RefundRef)
	default:
		if err := s.record(context.WithoutCancel(ctx), in.PaymentRef, res, refunded, receipt); err != nil {
			s.logger.Error("processor refund succeeded but ledger write failed",
				"payment_ref", in.PaymentRef,
				"refund_ref", res.RefundRef,
				"amount", refunded.String(),
				"actor", in.Actor,
				"error", err)
			receipt.Warning = s.warn(ctx, WarningLedgerWrite, "refund issued but the payment could not be updated", in, res.RefundRef)
		}
	}

	s.logger.Info("payment refunded",
		"payment_ref", in.PaymentRef,
		"refund_ref", res.RefundRef,
		"amount", refunded.String(),
		"payment_status", receipt.PaymentStatus,
		"actor", in.Actor)
	s.publish(ctx, events.NewRefundProcessedEvent(in.PaymentRef, res.RefundRef, refunded.Cents(), res.Status, in.Actor))

	return receipt, nil
}

// checkRefundable runs the ledger-side checks. A nil payment is untracked and skips them.
func checkRefundable(p *ledger.Payment, amount *money.Money) error {
	if p == nil {
		return nil
	}
	remaining := p.Refundable()
	if p.Status == ledger.PaymentRefunded || remaining <= 0 {
		return internal.ErrPaymentRefunded
	}
	if amount != nil && *amount > remaining {
		return internal.NewValidationFieldError("amount",
			"amount must not exceed the refundable balance of $"+remaining.String(), internal.ErrCodeAmountTooHigh)
	}
	return nil
}

func (s *RefundService) record(ctx context.Context, paymentRef string, res *pgtypes.RefundResult, refunded money.Money, receipt *Receipt) error {
	return s.repository.WithinTx(ctx, func(tx TxRepositoryAPI) error {
		p, err := tx.LockPaymentByRef(ctx, paymentRef)
		if err != nil {
			return err
		}

		total := p.RefundAmount + refunded
		if total > p.Amount {
			total = p.Amount
		}
		status, bookingStatus := ledger.PaymentPartialRefund, ledger.BookingPartialRefund
		if res.FullyRefunded || total == p.Amount {
			status, bookingStatus = ledger.PaymentRefunded, ledger.BookingRefunded
		}

		if err := tx.ApplyRefund(ctx, p.ID, status, res.RefundRef, total); err != nil {
			return err
		}
		if err := tx.MirrorBooking(ctx, p.BookingID, paymentRef, bookingStatus); err != nil {
			return err
		}
		receipt.PaymentStatus = status
		receipt.TotalRefunded = total
		return nil
	})
}

func (s *RefundService) warn(ctx context.Context, code, message string, in RefundInput, refundRef string) *internal.ReconciliationWarning {
	w := &internal.ReconciliationWarning{Code: code, Message: message, ProcessorRef: in.PaymentRef}
	s.logger.Warn("refund reconciliation warning",
		"code", code,
		"payment_ref", in.PaymentRef,
		"refund_ref", refundRef,
		"actor", in.Actor)
	s.publish(ctx, events.NewReconciliationWarningEvent(code, message+" (refund "+refundRef+")", in.PaymentRef))
	return w
}

func (s *RefundService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

// idempotencyKey folds in what was already refunded so that a second partial refund
// of the same amount is a new request while a retry of the same one is not.
func idempotencyKey(in RefundInput, p *ledger.Payment) string {
	prior := "0"
	if p != nil {
		prior = strconv.FormatInt(p.RefundAmount.Cents(), 10)
	}
	return paymentgateway.IdempotencyKey("refund", in.PaymentRef, amountLabel(in.Amount), prior)
}

func amountLabel(amount *money.Money) string {
	if amount == nil {
		return "full"
	}
	return strconv.FormatInt(amount.Cents(), 10)
}
