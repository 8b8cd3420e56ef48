package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/core/datamodel/ledger"
	onboardingpkg "github.com/frahmantamala/care-payments/internal/onboarding"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

var _ onboardingpkg.RepositoryAPI = (*AccountRepository)(nil)

func (r *AccountRepository) GetWorker(ctx context.Context, workerID int64) (*ledger.Worker, error) {
	var w ledger.Worker
	err := r.db.WithContext(ctx).Where("id = ?", workerID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal.ErrWorkerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *AccountRepository) GetAccount(ctx context.Context, workerID int64) (*ledger.WorkerAccount, error) {
	return findAccount(r.db.WithContext(ctx).Where("worker_id = ?", workerID))
}

func (r *AccountRepository) GetAccountByProcessorID(ctx context.Context, accountID string) (*ledger.WorkerAccount, error) {
	return findAccount(r.db.WithContext(ctx).Where("processor_account_id = ?", accountID))
}

// SaveAccount upserts on worker_id. A stored processor account id is never replaced, and
// capability flags are only written for the account already on the row.
func (r *AccountRepository) SaveAccount(ctx context.Context, acct *ledger.WorkerAccount) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "worker_id"}},
			DoUpdates: clause.Set{
				{
					Column: clause.Column{Name: "processor_account_id"},
					Value:  gorm.Expr("COALESCE(worker_accounts.processor_account_id, excluded.processor_account_id)"),
				},
				sameAccountOnly("onboarding_status"),
				sameAccountOnly("details_submitted"),
				sameAccountOnly("payouts_enabled"),
				sameAccountOnly("charges_enabled"),
				sameAccountOnly("synced_at"),
				{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
			},
		}).
		Create(acct).Error
}

func sameAccountOnly(column string) clause.Assignment {
	return clause.Assignment{
		Column: clause.Column{Name: column},
		Value: gorm.Expr("CASE WHEN worker_accounts.processor_account_id IS NULL" +
			" OR worker_accounts.processor_account_id = excluded.processor_account_id" +
			" THEN excluded." + column + " ELSE worker_accounts." + column + " END"),
	}
}

func findAccount(db *gorm.DB) (*ledger.WorkerAccount, error) {
	var acct ledger.WorkerAccount
	err := db.First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal.ErrWorkerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}
