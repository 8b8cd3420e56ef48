package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentProcessed      = "payment.processed"
	EventTypePaymentFailed         = "payment.failed"
	EventTypePayoutDispatched      = "payout.dispatched"
	EventTypePayoutFailed          = "payout.failed"
	EventTypePayoutRunCompleted    = "payout.run_completed"
	EventTypeRefundProcessed       = "refund.processed"
	EventTypeReconciliationWarning = "reconciliation.warning"
	EventTypeOnboardingChanged     = "onboarding.status_changed"
)

func newBase(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

type PaymentProcessedEvent struct {
	BaseEvent
	BookingID    int64  `json:"booking_id"`
	AmountCents  int64  `json:"amount_cents"`
	Actor        string `json:"actor"`
	ProcessorRef string `json:"processor_ref"`
}

func NewPaymentProcessedEvent(bookingID, amountCents int64, actor, processorRef string) *PaymentProcessedEvent {
	return &PaymentProcessedEvent{
		BaseEvent: newBase(EventTypePaymentProcessed, map[string]interface{}{
			"booking_id":    bookingID,
			"amount_cents":  amountCents,
			"actor":         actor,
			"processor_ref": processorRef,
		}),
		BookingID:    bookingID,
		AmountCents:  amountCents,
		Actor:        actor,
		ProcessorRef: processorRef,
	}
}

type PaymentFailedEvent struct {
	BaseEvent
	BookingID   int64  `json:"booking_id"`
	AmountCents int64  `json:"amount_cents"`
	Actor       string `json:"actor"`
	FailureCode string `json:"failure_code"`
	Reason      string `json:"reason"`
}

func NewPaymentFailedEvent(bookingID, amountCents int64, actor, failureCode, reason string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent: newBase(EventTypePaymentFailed, map[string]interface{}{
			"booking_id":   bookingID,
			"amount_cents": amountCents,
			"actor":        actor,
			"failure_code": failureCode,
			"reason":       reason,
		}),
		BookingID:   bookingID,
		AmountCents: amountCents,
		Actor:       actor,
		FailureCode: failureCode,
		Reason:      reason,
	}
}

type PayoutDispatchedEvent struct {
	BaseEvent
	WorkerID    int64  `json:"worker_id"`
	AmountCents int64  `json:"amount_cents"`
	TransferRef string `json:"transfer_ref"`
	RecordCount int    `json:"record_count"`
	PeriodEnd   string `json:"period_end"`
}

func NewPayoutDispatchedEvent(workerID, amountCents int64, transferRef string, recordCount int, periodEnd string) *PayoutDispatchedEvent {
	return &PayoutDispatchedEvent{
		BaseEvent: newBase(EventTypePayoutDispatched, map[string]interface{}{
			"worker_id":    workerID,
			"amount_cents": amountCents,
			"transfer_ref": transferRef,
			"record_count": recordCount,
			"period_end":   periodEnd,
		}),
		WorkerID:    workerID,
		AmountCents: amountCents,
		TransferRef: transferRef,
		RecordCount: recordCount,
		PeriodEnd:   periodEnd,
	}
}

type PayoutFailedEvent struct {
	BaseEvent
	WorkerID    int64  `json:"worker_id"`
	AmountCents int64  `json:"amount_cents"`
	Code        string `json:"code"`
	Reason      string `json:"reason"`
	PeriodEnd   string `json:"period_end"`
}

func NewPayoutFailedEvent(workerID, amountCents int64, code, reason, periodEnd string) *PayoutFailedEvent {
	return &PayoutFailedEvent{
		BaseEvent: newBase(EventTypePayoutFailed, map[string]interface{}{
			"worker_id":    workerID,
			"amount_cents": amountCents,
			"code":         code,
			"reason":       reason,
			"period_end":   periodEnd,
		}),
		WorkerID:    workerID,
		AmountCents: amountCents,
		Code:        code,
		Reason:      reason,
		PeriodEnd:   periodEnd,
	}
}

type PayoutRunCompletedEvent struct {
	BaseEvent
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	Successes   int    `json:"successes"`
	Errors      int    `json:"errors"`
	Skipped     int    `json:"skipped"`
	TotalCents  int64  `json:"total_cents"`
}

func NewPayoutRunCompletedEvent(periodStart, periodEnd string, successes, errs, skipped int, totalCents int64) *PayoutRunCompletedEvent {
	return &PayoutRunCompletedEvent{
		BaseEvent: newBase(EventTypePayoutRunCompleted, map[string]interface{}{
			"period_start": periodStart,
			"period_end":   periodEnd,
			"successes":    successes,
			"errors":       errs,
			"skipped":      skipped,
			"total_cents":  totalCents,
		}),
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Successes:   successes,
		Errors:      errs,
		Skipped:     skipped,
		TotalCents:  totalCents,
	}
}

type RefundProcessedEvent struct {
	BaseEvent
	PaymentRef  string `json:"payment_ref"`
	RefundRef   string `json:"refund_ref"`
	AmountCents int64  `json:"amount_cents"`
	Status      string `json:"status"`
	Actor       string `json:"actor"`
}

func NewRefundProcessedEvent(paymentRef, refundRef string, amountCents int64, status, actor string) *RefundProcessedEvent {
	return &RefundProcessedEvent{
		BaseEvent: newBase(EventTypeRefundProcessed, map[string]interface{}{
			"payment_ref":  paymentRef,
			"refund_ref":   refundRef,
			"amount_cents": amountCents,
			"status":       status,
			"actor":        actor,
		}),
		PaymentRef:  paymentRef,
		RefundRef:   refundRef,
		AmountCents: amountCents,
		Status:      status,
		Actor:       actor,
	}
}

// ReconciliationWarningEvent flags money that moved at the processor without a ledger match.
type ReconciliationWarningEvent struct {
	BaseEvent
	Code         string `json:"code"`
	Message      string `json:"message"`
	ProcessorRef string `json:"processor_ref"`
}

func NewReconciliationWarningEvent(code, message, processorRef string) *ReconciliationWarningEvent {
	return &ReconciliationWarningEvent{
		BaseEvent: newBase(EventTypeReconciliationWarning, map[string]interface{}{
			"code":          code,
			"message":       message,
			"processor_ref": processorRef,
		}),
		Code:         code,
		Message:      message,
		ProcessorRef: processorRef,
	}
}

type OnboardingChangedEvent struct {
	BaseEvent
	WorkerID int64  `json:"worker_id"`
	From     string `json:"from"`
	To       string `json:"to"`
}

func NewOnboardingChangedEvent(workerID int64, from, to string) *OnboardingChangedEvent {
	return &OnboardingChangedEvent{
		BaseEvent: newBase(EventTypeOnboardingChanged, map[string]interface{}{
			"worker_id": workerID,
			"from":      from,
			"to":        to,
		}),
		WorkerID: workerID,
		From:     from,
		To:       to,
	}
}
