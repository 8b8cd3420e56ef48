package payment

import (
	"context"
	"time"

	"github.com/frahmantamala/care-payments/internal/core/datamodel/ledger"
	"github.com/frahmantamala/care-payments/internal/core/money"
)

type RepositoryAPI interface {
	GetBooking(ctx context.Context, id int64) (*ledger.Booking, error)
	GetClientAccount(ctx context.Context, clientID int64) (*ledger.ClientAccount, error)
	AppendAttempt(ctx context.Context, attempt *ledger.PaymentAttempt) error
	// WithinTx runs fn in one database transaction; a returned error rolls it back.
	WithinTx(ctx context.Context, fn func(tx TxRepositoryAPI) error) error
}

// TxRepositoryAPI is the write side available inside a charge transaction.
type TxRepositoryAPI interface {
	LockBooking(ctx context.Context, id int64) (*ledger.Booking, error)
	MarkBookingPaid(ctx context.Context, id int64, processorRef string) error
	CreatePayment(ctx context.Context, p *ledger.Payment) error
}

type ServiceAPI interface {
	ChargeBooking(ctx context.Context, in ChargeInput) (*Receipt, error)
}

type ChargeInput struct {
	BookingID        int64
	Amount           money.Money
	PaymentMethodRef string
	Actor            string
}

type Receipt struct {
	PaymentID    int64                `json:"payment_id"`
	BookingID    int64                `json:"booking_id"`
	Amount       money.Money          `json:"amount_cents"`
	ProcessorRef string               `json:"processor_payment_ref"`
	Status       ledger.PaymentStatus `json:"status"`
	ProcessedBy  string               `json:"processed_by"`
	ProcessedAt  time.Time            `json:"processed_at"`
}

func receiptFrom(p *ledger.Payment) *Receipt {
	return &Receipt{
		PaymentID:    p.ID,
		BookingID:    p.BookingID,
		Amount:       p.Amount,
		ProcessorRef: p.ProcessorPaymentRef,
		Status:       p.Status,
		ProcessedBy:  p.ProcessedBy,
		ProcessedAt:  p.CreatedAt,
	}
}
