package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	adminpkg "github.com/frahmantamala/care-payments/internal/admin"
	"github.com/frahmantamala/care-payments/internal/core/datamodel/ledger"
	"github.com/frahmantamala/care-payments/internal/core/money"
)

const (
	bookingCountsQuery = `SELECT payment_status, COUNT(*) AS count
FROM bookings
WHERE ($1::timestamptz IS NULL OR created_at >= $1)
  AND ($2::timestamptz IS NULL OR created_at < $2)
GROUP BY payment_status`

	revenueQuery = `SELECT COALESCE(SUM(amount_cents), 0) AS gross_cents,
       COALESCE(SUM(refund_amount_cents), 0) AS refunded_cents
FROM payments
WHERE ($1::timestamptz IS NULL OR created_at >= $1)
  AND ($2::timestamptz IS NULL OR created_at < $2)`

	earningsQuery = `SELECT COALESCE(SUM(amount_cents) FILTER (WHERE payout_status = 'pending'), 0) AS pending_cents,
       COALESCE(SUM(amount_cents) FILTER (WHERE payout_status = 'paid'), 0) AS paid_cents
FROM earnings_records
WHERE ($1::date IS NULL OR work_date >= $1::date)
  AND ($2::date IS NULL OR work_date < $2::date)`

	onboardedQuery = `SELECT COUNT(*) FROM worker_accounts WHERE onboarding_status = 'complete'`
)

// StatsRepository runs the dashboard aggregates as plain SQL.
type StatsRepository struct {
	db *sqlx.DB
}

func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

var _ adminpkg.StatsRepositoryAPI = (*StatsRepository)(nil)

type statusCount struct {
	Status string `db:"payment_status"`
	Count  int64  `db:"count"`
}

func (r *StatsRepository) BookingCounts(ctx context.Context, rng adminpkg.Range) (map[ledger.BookingPaymentStatus]int64, error) {
	var rows []statusCount
	if err := r.db.SelectContext(ctx, &rows, bookingCountsQuery, rng.From, rng.Until); err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}
	counts := make(map[ledger.BookingPaymentStatus]int64, len(rows))
	for _, row := range rows {
		counts[ledger.BookingPaymentStatus(row.Status)] = row.Count
	}
	return counts, nil
}

func (r *StatsRepository) Revenue(ctx context.Context, rng adminpkg.Range) (money.Money, money.Money, error) {
	var row struct {
		Gross    int64 `db:"gross_cents"`
		Refunded int64 `db:"refunded_cents"`
	}
	if err := r.db.GetContext(ctx, &row, revenueQuery, rng.From, rng.Until); err != nil {
		return 0, 0, fmt.Errorf("sum revenue: %w", err)
	}
	return money.FromCents(row.Gross), money.FromCents(row.Refunded), nil
}

func (r *StatsRepository) Earnings(ctx context.Context, rng adminpkg.Range) (money.Money, money.Money, error) {
	var row struct {
		Pending int64 `db:"pending_cents"`
		Paid    int64 `db:"paid_cents"`
	}
	if err := r.db.GetContext(ctx, &row, earningsQuery, rng.From, rng.Until); err != nil {
		return 0, 0, fmt.Errorf("sum earnings: %w", err)
	}
	return money.FromCents(row.Pending), money.FromCents(row.Paid), nil
}

func (r *StatsRepository) OnboardedWorkers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, onboardedQuery); err != nil {
		return 0, fmt.Errorf("count onboarded workers: %w", err)
	}
	return n, nil
}
