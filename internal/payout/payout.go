package payout

import (
	"context"
	"time"

	"github.com/frahmantamala/care-payments/internal/core/datamodel/ledger"
	"github.com/frahmantamala/care-payments/internal/core/money"
)

type RepositoryAPI interface {
	// PendingWorkerIDs lists workers with pending earnings dated inside the period.
	PendingWorkerIDs(ctx context.Context, period Period, filter []int64) ([]int64, error)
	PendingTotal(ctx context.Context, workerID int64, period Period) (money.Money, error)
	GetWorkerAccount(ctx context.Context, workerID int64) (*ledger.WorkerAccount, error)
	WithinTx(ctx context.Context, fn func(tx TxRepositoryAPI) error) error
}

type TxRepositoryAPI interface {
	// LockPending selects the worker's pending records in the period FOR UPDATE.
	LockPending(ctx context.Context, workerID int64, period Period) ([]ledger.EarningsRecord, error)
	// MarkPaid moves pending records to paid and returns how many rows changed.
	MarkPaid(ctx context.Context, ids []int64, transferRef string, paidAt time.Time) (int64, error)
}

// RunLocker serializes payout runs. Acquire fails with a conflict while another run holds it.
type RunLocker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

type EngineAPI interface {
	DispatchPayouts(ctx context.Context, periodEnd time.Time, workerIDs []int64) (*Report, error)
}

const (
	CodeAccountMissing   = "account_not_set_up"
	CodePayoutsDisabled  = "payouts_disabled"
	CodeReconciliation   = "reconciliation"
	CodeLedger           = "ledger_error"
	CodeCancelled        = "run_cancelled"
	reasonBelowMinimum   = "total below minimum transfer"
	reasonNothingPending = "no pending earnings"
)

type Success struct {
	WorkerID    int64       `json:"worker_id"`
	Amount      money.Money `json:"amount_cents"`
	TransferRef string      `json:"transfer_ref"`
	RecordCount int         `json:"record_count"`
}

type Failure struct {
	WorkerID int64       `json:"worker_id"`
	Amount   money.Money `json:"amount_cents"`
	Code     string      `json:"code"`
	Reason   string      `json:"reason"`
}

type Skip struct {
	WorkerID int64       `json:"worker_id"`
	Amount   money.Money `json:"amount_cents"`
	Reason   string      `json:"reason"`
}

// Report is the outcome of one run. Every candidate worker appears in exactly one list.
type Report struct {
	PeriodStart string    `json:"period_start"`
	PeriodEnd   string    `json:"period_end"`
	Successes   []Success `json:"successes"`
	Errors      []Failure `json:"errors"`
	Skipped     []Skip    `json:"skipped"`
}

func (r *Report) TotalPaid() money.Money {
	var total money.Money
	for _, s := range r.Successes {
		total += s.Amount
	}
	return total
}
