package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/care-payments/internal"
	adminpkg "github.com/frahmantamala/care-payments/internal/admin"
	"github.com/frahmantamala/care-payments/internal/core/datamodel/ledger"
	"gorm.io/gorm"
)

type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

var _ adminpkg.RepositoryAPI = (*HistoryRepository)(nil)

// ListClientPayments returns the client's ledger payments, newest first.
func (r *HistoryRepository) ListClientPayments(ctx context.Context, clientID int64) ([]ledger.Payment, error) {
	var payments []ledger.Payment
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

func (r *HistoryRepository) GetClientAccount(ctx context.Context, clientID int64) (*ledger.ClientAccount, error) {
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

func (r *HistoryRepository) GetWorkerAccount(ctx context.Context, workerID int64) (*ledger.WorkerAccount, error) {
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
