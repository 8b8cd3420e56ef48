package refund

import (
	"context"

	"github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/core/datamodel/ledger"
	"github.com/frahmantamala/care-payments/internal/core/money"
)

// Reasons accepted by the processor. An empty reason is allowed.
const (
	ReasonDuplicate           = "duplicate"
	ReasonFraudulent          = "fraudulent"
	ReasonRequestedByCustomer = "requested_by_customer"
)

const (
	WarningUntrackedPayment = "untracked_payment"
	WarningLedgerWrite      = "ledger_write_failed"
	WarningZeroAmount       = "zero_refund_amount"
)

type RepositoryAPI interface {
	GetPaymentByRef(ctx context.Context, processorRef string) (*ledger.Payment, error)
	WithinTx(ctx context.Context, fn func(tx TxRepositoryAPI) error) error
}

// TxRepositoryAPI is the write side available while the payment row is locked.
type TxRepositoryAPI interface {
	LockPaymentByRef(ctx context.Context, processorRef string) (*ledger.Payment, error)
	ApplyRefund(ctx context.Context, paymentID int64, status ledger.PaymentStatus, refundRef string, refunded money.Money) error
	// MirrorBooking copies the refund status onto the booking the payment settled.
	MirrorBooking(ctx context.Context, bookingID int64, processorRef string, status ledger.BookingPaymentStatus) error
}

type ServiceAPI interface {
	Refund(ctx context.Context, in RefundInput) (*Receipt, error)
}

type RefundInput struct {
	PaymentRef string
	// Amount nil refunds whatever is left on the payment.
	Amount *money.Money
	Reason string
	Actor  string
}

type Receipt struct {
	RefundRef     string                          `json:"refund_ref"`
	PaymentRef    string                          `json:"payment_ref"`
	Amount        money.Money                     `json:"amount_cents"`
	Status        string                          `json:"status"`
	PaymentStatus ledger.PaymentStatus            `json:"payment_status,omitempty"`
	TotalRefunded money.Money                     `json:"total_refunded_cents"`
	Warning       *internal.ReconciliationWarning `json:"warning,omitempty"`
}
