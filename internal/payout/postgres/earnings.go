package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/core/datamodel/ledger"
	"github.com/frahmantamala/care-payments/internal/core/money"
	"github.com/frahmantamala/care-payments/internal/payout"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EarningsRepository struct {
	db *gorm.DB
}

func NewEarningsRepository(db *gorm.DB) *EarningsRepository {
	return &EarningsRepository{db: db}
}

var _ payout.RepositoryAPI = (*EarningsRepository)(nil)

func pendingInPeriod(db *gorm.DB, period payout.Period) *gorm.DB {
	return db.Model(&ledger.EarningsRecord{}).
		Where("payout_status = ?", ledger.PayoutPending).
		Where("work_date >= ? AND work_date < ?", period.Start, period.EndExclusive())
}

func (r *EarningsRepository) PendingWorkerIDs(ctx context.Context, period payout.Period, filter []int64) ([]int64, error) {
	q := pendingInPeriod(r.db.WithContext(ctx), period)
	if len(filter) > 0 {
		q = q.Where("worker_id IN ?", filter)
	}
	var ids []int64
	err := q.Distinct("worker_id").Order("worker_id").Pluck("worker_id", &ids).Error
	return ids, err
}

func (r *EarningsRepository) PendingTotal(ctx context.Context, workerID int64, period payout.Period) (money.Money, error) {
	var total int64
	err := pendingInPeriod(r.db.WithContext(ctx), period).
		Where("worker_id = ?", workerID).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error
	return money.FromCents(total), err
}

func (r *EarningsRepository) GetWorkerAccount(ctx context.Context, workerID int64) (*ledger.WorkerAccount, error) {
	var acct ledger.WorkerAccount
	err := r.db.WithContext(ctx).Where("worker_id = ?", workerID).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal.ErrWorkerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (r *EarningsRepository) WithinTx(ctx context.Context, fn func(tx payout.TxRepositoryAPI) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txRepository{db: tx})
	})
}

type txRepository struct {
	db *gorm.DB
}

func (r *txRepository) LockPending(ctx context.Context, workerID int64, period payout.Period) ([]ledger.EarningsRecord, error) {
	var records []ledger.EarningsRecord
	err := pendingInPeriod(r.db.WithContext(ctx), period).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("worker_id = ?", workerID).
		Order("id").
		Find(&records).Error
	return records, err
}

// MarkPaid only touches rows still pending, so a concurrent payer shows up as a short count.
func (r *txRepository) MarkPaid(ctx context.Context, ids []int64, transferRef string, paidAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&ledger.EarningsRecord{}).
		Where("id IN ? AND payout_status = ?", ids, ledger.PayoutPending).
		Updates(map[string]interface{}{
			"payout_status": ledger.PayoutPaid,
			"payout_ref":    transferRef,
			"paid_at":       paidAt,
		})
	return result.RowsAffected, result.Error
}
