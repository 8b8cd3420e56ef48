package onboarding

import (
	"context"
	"time"

	"github.com/frahmantamala/care-payments/internal/core/datamodel/ledger"
)

type RepositoryAPI interface {
	GetWorker(ctx context.Context, workerID int64) (*ledger.Worker, error)
	// GetAccount returns ErrWorkerNotFound when the worker has no account row yet.
	GetAccount(ctx context.Context, workerID int64) (*ledger.WorkerAccount, error)
	GetAccountByProcessorID(ctx context.Context, accountID string) (*ledger.WorkerAccount, error)
	SaveAccount(ctx context.Context, acct *ledger.WorkerAccount) error
}

type TrackerAPI interface {
	GetStatus(ctx context.Context, workerID int64) (*Status, error)
	CreateOnboardingLink(ctx context.Context, workerID int64) (*Link, error)
	SyncAccount(ctx context.Context, accountID string, flags Flags) (*Status, error)
	IsPayoutEligible(ctx context.Context, workerID int64) (bool, error)
}

// Flags are the processor-side capability bits onboarding status is derived from.
type Flags struct {
	DetailsSubmitted bool
	PayoutsEnabled   bool
	ChargesEnabled   bool
}

type Status struct {
	WorkerID         int64                   `json:"worker_id"`
	Status           ledger.OnboardingStatus `json:"status"`
	AccountID        string                  `json:"account_id,omitempty"`
	DetailsSubmitted bool                    `json:"details_submitted"`
	PayoutsEnabled   bool                    `json:"payouts_enabled"`
	ChargesEnabled   bool                    `json:"charges_enabled"`
}

type Link struct {
	WorkerID  int64     `json:"worker_id"`
	AccountID string    `json:"account_id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DeriveStatus is recomputed from the processor flags on every check, so a revoked
// capability moves the status backward.
func DeriveStatus(hasAccount bool, flags Flags) ledger.OnboardingStatus {
	switch {
	case !hasAccount:
		return ledger.OnboardingNotStarted
	case !flags.DetailsSubmitted:
		return ledger.OnboardingPending
	case !flags.PayoutsEnabled:
		return ledger.OnboardingPendingVerification
	default:
		return ledger.OnboardingComplete
	}
}

func statusOf(acct *ledger.WorkerAccount, workerID int64) *Status {
	s := &Status{WorkerID: workerID, Status: ledger.OnboardingNotStarted}
	if !acct.HasProcessorAccount() {
		return s
	}
	s.AccountID = *acct.ProcessorAccountID
	s.Status = acct.OnboardingStatus
	s.DetailsSubmitted = acct.DetailsSubmitted
	s.PayoutsEnabled = acct.PayoutsEnabled
	s.ChargesEnabled = acct.ChargesEnabled
	return s
}
