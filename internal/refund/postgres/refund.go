package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/core/datamodel/ledger"
	"github.com/frahmantamala/care-payments/internal/core/money"
	refundpkg "github.com/frahmantamala/care-payments/internal/refund"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RefundRepository struct {
	db *gorm.DB
}

func NewRefundRepository(db *gorm.DB) *RefundRepository {
	return &RefundRepository{db: db}
}

var _ refundpkg.RepositoryAPI = (*RefundRepository)(nil)

func (r *RefundRepository) GetPaymentByRef(ctx context.Context, processorRef string) (*ledger.Payment, error) {
	return findPayment(r.db.WithContext(ctx), processorRef)
}

func (r *RefundRepository) WithinTx(ctx context.Context, fn func(tx refundpkg.TxRepositoryAPI) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txRepository{db: tx})
	})
}

type txRepository struct {
	db *gorm.DB
}

func (r *txRepository) LockPaymentByRef(ctx context.Context, processorRef string) (*ledger.Payment, error) {
	return findPayment(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), processorRef)
}

func (r *txRepository) ApplyRefund(ctx context.Context, paymentID int64, status ledger.PaymentStatus, refundRef string, refunded money.Money) error {
	result := r.db.WithContext(ctx).
		Model(&ledger.Payment{}).
		Where("id = ?", paymentID).
		Updates(map[string]interface{}{
			"status":              status,
			"refund_ref":          refundRef,
			"refund_amount_cents": refunded,
		})
	if result.Error != nil {
		return fmt.Errorf("apply refund to payment %d: %w", paymentID, result.Error)
	}
	if result.RowsAffected != 1 {
		return internal.ErrPaymentNotFound
	}
	return nil
}

// MirrorBooking leaves bookings that were since re-charged under another ref alone.
func (r *txRepository) MirrorBooking(ctx context.Context, bookingID int64, processorRef string, status ledger.BookingPaymentStatus) error {
	err := r.db.WithContext(ctx).
		Model(&ledger.Booking{}).
		Where("id = ? AND processor_payment_ref = ?", bookingID, processorRef).
		Update("payment_status", status).Error
	if err != nil {
		return fmt.Errorf("mirror refund on booking %d: %w", bookingID, err)
	}
	return nil
}

func findPayment(db *gorm.DB, processorRef string) (*ledger.Payment, error) {
	var p ledger.Payment
	err := db.Where("processor_payment_ref = ?", processorRef).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
