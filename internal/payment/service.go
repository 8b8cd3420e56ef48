package payment

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/core/datamodel/ledger"
	pgtypes "github.com/frahmantamala/care-payments/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/care-payments/internal/core/events"
	"github.com/frahmantamala/care-payments/internal/paymentgateway"
)

const (
	failureLedgerWrite = "ledger_write_failed"
	failureProcessing  = "processing"
)

// PaymentService charges clients for bookings.
type PaymentService struct {
	repository RepositoryAPI
	gateway    paymentgateway.Gateway
	publisher  events.Publisher
	currency   string
	logger     *slog.Logger
}

func NewPaymentService(repository RepositoryAPI, gateway paymentgateway.Gateway, publisher events.Publisher, currency string, logger *slog.Logger) *PaymentService {
	return &PaymentService{
		repository: repository,
		gateway:    gateway,
		publisher:  publisher,
		currency:   currency,
		logger:     logger,
	}
}

// ChargeBooking charges the booking's client once. The booking row stays locked from
// the paid check until the Payment row is committed, so parallel charges of the same
// booking produce one Payment and one ConflictError.
func (s *PaymentService) ChargeBooking(ctx context.Context, in ChargeInput) (*Receipt, error) {
	if err := in.Validate(); err != nil {
		s.logger.Warn("charge rejected by validation", "booking_id", in.BookingID, "amount", in.Amount.String(), "actor", in.Actor, "error", err)
		return nil, err
	}

	booking, err := s.repository.GetBooking(ctx, in.BookingID)
	if err != nil {
		s.logger.Warn("charge for unknown booking", "booking_id", in.BookingID, "actor", in.Actor, "error", err)
		return nil, err
	}
	if !booking.PaymentStatus.Chargeable() {
		s.logger.Warn("charge rejected, booking already settled",
			"booking_id", booking.ID,
			"payment_status", booking.PaymentStatus,
			"actor", in.Actor)
		s.appendAttempt(ctx, booking, in, ledger.AttemptRejected, string(internal.ErrCodeBookingAlreadyPaid), "booking already settled", nil)
		return nil, internal.ErrBookingAlreadyPaid
	}

	customerRef, err := s.customerRef(ctx, booking.ClientID)
	if err != nil {
		return nil, err
	}

	var (
		charged *pgtypes.ChargeResult
		created *ledger.Payment
	)

	// A charge that reached the processor must be recorded even if the caller goes away.
	txCtx := context.WithoutCancel(ctx)
	err = s.repository.WithinTx(txCtx, func(tx TxRepositoryAPI) error {
		locked, err := tx.LockBooking(txCtx, booking.ID)
		if err != nil {
			return err
		}
		if !locked.PaymentStatus.Chargeable() {
			return internal.ErrBookingAlreadyPaid
		}

		res, err := s.gateway.Charge(ctx, pgtypes.ChargeRequest{
			CustomerRef:      customerRef,
			Amount:           in.Amount,
			Currency:         s.currency,
			PaymentMethodRef: in.PaymentMethodRef,
			Description:      "Booking #" + strconv.FormatInt(booking.ID, 10),
			IdempotencyKey: paymentgateway.IdempotencyKey("charge",
				strconv.FormatInt(booking.ID, 10), strconv.FormatInt(in.Amount.Cents(), 10), in.PaymentMethodRef),
			Metadata: map[string]string{
				"booking_id":   strconv.FormatInt(booking.ID, 10),
				"service_type": booking.ServiceType,
				"actor":        in.Actor,
			},
		})
		if err != nil {
			return err
		}
		charged = res
		if res.Status != pgtypes.ChargeSucceeded {
			return internal.NewGatewayError("Payment is pending confirmation by the processor", internal.ErrCodeGatewayPending, false, nil)
		}

		if err := tx.MarkBookingPaid(txCtx, booking.ID, res.ProcessorRef); err != nil {
			return err
		}
		p := &ledger.Payment{
			BookingID:           booking.ID,
			ClientID:            booking.ClientID,
			Amount:              in.Amount,
			ProcessorPaymentRef: res.ProcessorRef,
			PaymentMethodRef:    in.PaymentMethodRef,
			Status:              ledger.PaymentSucceeded,
			ProcessedBy:         in.Actor,
		}
		if err := tx.CreatePayment(txCtx, p); err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, s.chargeFailed(txCtx, booking, in, charged, err)
	}

	s.logger.Info("booking charged",
		"booking_id", booking.ID,
		"payment_id", created.ID,
		"amount", in.Amount.String(),
		"processor_ref", created.ProcessorPaymentRef,
		"actor", in.Actor)

	ref := created.ProcessorPaymentRef
	s.appendAttempt(txCtx, booking, in, ledger.AttemptSucceeded, "", "", &ref)
	s.publish(txCtx, events.NewPaymentProcessedEvent(booking.ID, in.Amount.Cents(), in.Actor, ref))

	return receiptFrom(created), nil
}

// chargeFailed records the failed attempt and decides what the caller sees.
func (s *PaymentService) chargeFailed(ctx context.Context, booking *ledger.Booking, in ChargeInput, charged *pgtypes.ChargeResult, err error) error {
	if charged != nil && charged.Status == pgtypes.ChargeSucceeded {
		ref := charged.ProcessorRef
		s.logger.Error("processor charge succeeded but ledger write failed",
			"booking_id", booking.ID,
			"amount", in.Amount.String(),
			"processor_ref", ref,
			"actor", in.Actor,
			"error", err)
		s.appendAttempt(ctx, booking, in, ledger.AttemptSucceeded, failureLedgerWrite, err.Error(), &ref)
		s.publish(ctx, events.NewReconciliationWarningEvent(failureLedgerWrite,
			"charge captured at processor but not recorded for booking "+strconv.FormatInt(booking.ID, 10), ref))
		return internal.NewInternalError("Payment was captured but could not be recorded", err)
	}

	if charged != nil {
		ref := charged.ProcessorRef
		s.logger.Warn("processor charge not settled",
			"booking_id", booking.ID,
			"status", charged.Status,
			"processor_ref", ref,
			"actor", in.Actor)
		s.appendAttempt(ctx, booking, in, ledger.AttemptFailed, failureProcessing, string(charged.Status), &ref)
		s.publish(ctx, events.NewReconciliationWarningEvent(failureProcessing,
			"charge for booking "+strconv.FormatInt(booking.ID, 10)+" is still processing", ref))
		return err
	}

	appErr, ok := internal.IsAppError(err)
	switch {
	case ok && appErr.Type == internal.ErrorTypeGateway:
		s.logger.Warn("processor charge failed",
			"booking_id", booking.ID,
			"amount", in.Amount.String(),
			"code", appErr.Code,
			"retryable", appErr.Retryable,
			"actor", in.Actor,
			"error", err)
		s.appendAttempt(ctx, booking, in, ledger.AttemptFailed, string(appErr.Code), appErr.Message, nil)
		s.publish(ctx, events.NewPaymentFailedEvent(booking.ID, in.Amount.Cents(), in.Actor, string(appErr.Code), appErr.Message))
		return err
	case errors.Is(err, internal.ErrBookingAlreadyPaid):
		s.logger.Warn("charge lost the race for booking", "booking_id", booking.ID, "actor", in.Actor)
		s.appendAttempt(ctx, booking, in, ledger.AttemptRejected, string(internal.ErrCodeBookingAlreadyPaid), "booking already settled", nil)
		return err
	case ok:
		return err
	default:
		s.logger.Error("charge transaction failed", "booking_id", booking.ID, "actor", in.Actor, "error", err)
		return internal.NewInternalError("Failed to charge booking", err)
	}
}

func (s *PaymentService) customerRef(ctx context.Context, clientID int64) (string, error) {
	acct, err := s.repository.GetClientAccount(ctx, clientID)
	if errors.Is(err, internal.ErrClientNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if acct.ProcessorCustomerRef == nil {
		return "", nil
	}
	return *acct.ProcessorCustomerRef, nil
}

func (s *PaymentService) appendAttempt(ctx context.Context, booking *ledger.Booking, in ChargeInput, outcome ledger.AttemptOutcome, code, message string, ref *string) {
	attempt := &ledger.PaymentAttempt{
		BookingID:           booking.ID,
		ClientID:            booking.ClientID,
		Amount:              in.Amount,
		PaymentMethodRef:    in.PaymentMethodRef,
		Actor:               in.Actor,
		Outcome:             outcome,
		ProcessorPaymentRef: ref,
	}
	if code != "" {
		attempt.FailureCode = &code
	}
	if message != "" {
		attempt.FailureMessage = &message
	}
	if err := s.repository.AppendAttempt(ctx, attempt); err != nil {
		s.logger.Warn("failed to append payment attempt", "booking_id", booking.ID, "outcome", outcome, "error", err)
	}
}

func (s *PaymentService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}
