package admin

import (
	"context"
	"time"

	"github.com/frahmantamala/care-payments/internal/core/datamodel/ledger"
	"github.com/frahmantamala/care-payments/internal/core/money"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
	// processorPageSize and processorMaxPages bound how much of the processor's list one
	// history call walks. Histories cut at the cap are marked Truncated.
	processorPageSize = 100
	processorMaxPages = 20
)

const (
	SourceLedger    = "ledger"
	SourceProcessor = "processor"
)

type RepositoryAPI interface {
	ListClientPayments(ctx context.Context, clientID int64) ([]ledger.Payment, error)
	GetClientAccount(ctx context.Context, clientID int64) (*ledger.ClientAccount, error)
	GetWorkerAccount(ctx context.Context, workerID int64) (*ledger.WorkerAccount, error)
}

// StatsRepositoryAPI runs the dashboard aggregates. Range bounds are optional.
type StatsRepositoryAPI interface {
	BookingCounts(ctx context.Context, r Range) (map[ledger.BookingPaymentStatus]int64, error)
	Revenue(ctx context.Context, r Range) (gross, refunded money.Money, err error)
	Earnings(ctx context.Context, r Range) (pending, paid money.Money, err error)
	OnboardedWorkers(ctx context.Context) (int64, error)
}

type FacadeAPI interface {
	PaymentHistory(ctx context.Context, clientID int64, page Page) (*PaymentHistory, error)
	PayoutHistory(ctx context.Context, workerID int64, page Page) (*PayoutHistory, error)
	DashboardStats(ctx context.Context, r Range) (*Stats, error)
}

type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Range is [From, Until). Nil bounds are open.
type Range struct {
	From  *time.Time
	Until *time.Time
}

type PaymentEntry struct {
	ProcessorRef string      `json:"processor_ref"`
	BookingID    *int64      `json:"booking_id,omitempty"`
	Amount       money.Money `json:"amount_cents"`
	Refunded     money.Money `json:"refunded_cents"`
	Currency     string      `json:"currency,omitempty"`
	Status       string      `json:"status"`
	Source       string      `json:"source"`
	// Reconciled is true when the ledger and the processor both know the payment.
	Reconciled bool      `json:"reconciled"`
	CreatedAt  time.Time `json:"created_at"`
}

type PaymentHistory struct {
	ClientID int64 `json:"client_id"`
	Page     Page  `json:"page"`
	Total    int   `json:"total"`
	HasMore  bool  `json:"has_more"`
	// Truncated is set when the processor list was longer than one call walks.
	Truncated bool           `json:"truncated,omitempty"`
	Payments  []PaymentEntry `json:"payments"`
}

type PayoutEntry struct {
	TransferRef string      `json:"transfer_ref"`
	Amount      money.Money `json:"amount_cents"`
	Currency    string      `json:"currency"`
	Reversed    bool        `json:"reversed"`
	PeriodEnd   string      `json:"period_end,omitempty"`
	RecordCount string      `json:"record_count,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

type PayoutHistory struct {
	WorkerID  int64         `json:"worker_id"`
	AccountID string        `json:"account_id,omitempty"`
	Page      Page          `json:"page"`
	Total     int           `json:"total"`
	HasMore   bool          `json:"has_more"`
	Truncated bool          `json:"truncated,omitempty"`
	Payouts   []PayoutEntry `json:"payouts"`
}

type Stats struct {
	From             *time.Time       `json:"from,omitempty"`
	Until            *time.Time       `json:"until,omitempty"`
	Bookings         map[string]int64 `json:"bookings"`
	GrossRevenue     money.Money      `json:"gross_revenue_cents"`
	Refunded         money.Money      `json:"refunded_cents"`
	NetRevenue       money.Money      `json:"net_revenue_cents"`
	PendingEarnings  money.Money      `json:"pending_earnings_cents"`
	PaidEarnings     money.Money      `json:"paid_earnings_cents"`
	OnboardedWorkers int64            `json:"onboarded_workers"`
	AvailableBalance *money.Money     `json:"available_balance_cents,omitempty"`
	// BalanceError is set when the processor balance could not be read.
	BalanceError string `json:"balance_error,omitempty"`
}
