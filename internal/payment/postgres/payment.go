package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/core/datamodel/ledger"
	paymentpkg "github.com/frahmantamala/care-payments/internal/payment"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{
		db: db,
	}
}

var _ paymentpkg.RepositoryAPI = (*PaymentRepository)(nil)

func (r *PaymentRepository) GetBooking(ctx context.Context, id int64) (*ledger.Booking, error) {
	return findBooking(r.db.WithContext(ctx), id)
}

func (r *PaymentRepository) GetClientAccount(ctx context.Context, clientID int64) (*ledger.ClientAccount, error) {
	var acct ledger.ClientAccount
	err := r.db.WithContext(ctx).Where("client_id = ?", clientID).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal.ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (r *PaymentRepository) AppendAttempt(ctx context.Context, attempt *ledger.PaymentAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *PaymentRepository) WithinTx(ctx context.Context, fn func(tx paymentpkg.TxRepositoryAPI) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txRepository{db: tx})
	})
}

type txRepository struct {
	db *gorm.DB
}

func (r *txRepository) LockBooking(ctx context.Context, id int64) (*ledger.Booking, error) {
	return findBooking(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

// MarkBookingPaid only moves an unpaid booking, so a lost race surfaces as a conflict.
func (r *txRepository) MarkBookingPaid(ctx context.Context, id int64, processorRef string) error {
	result := r.db.WithContext(ctx).
		Model(&ledger.Booking{}).
		Where("id = ? AND payment_status = ?", id, ledger.BookingUnpaid).
		Updates(map[string]interface{}{
			"payment_status":        ledger.BookingPaid,
			"processor_payment_ref": processorRef,
		})
	if result.Error != nil {
		return fmt.Errorf("mark booking %d paid: %w", id, result.Error)
	}
	if result.RowsAffected != 1 {
		return internal.ErrBookingAlreadyPaid
	}
	return nil
}

func (r *txRepository) CreatePayment(ctx context.Context, p *ledger.Payment) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("insert payment for booking %d: %w", p.BookingID, err)
	}
	return nil
}

func findBooking(db *gorm.DB, id int64) (*ledger.Booking, error) {
	var b ledger.Booking
	err := db.Where("id = ?", id).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal.ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}
