package admin

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/core/datamodel/ledger"
	pgtypes "github.com/frahmantamala/care-payments/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/care-payments/internal/paymentgateway"
)

// Facade serves read-only history and dashboard queries over the ledger and the processor.
type Facade struct {
	repository RepositoryAPI
	stats      StatsRepositoryAPI
	gateway    paymentgateway.Gateway
	currency   string
	logger     *slog.Logger
}

func NewFacade(repository RepositoryAPI, stats StatsRepositoryAPI, gateway paymentgateway.Gateway, currency string, logger *slog.Logger) *Facade {
	return &Facade{
		repository: repository,
		stats:      stats,
		gateway:    gateway,
		currency:   currency,
		logger:     logger,
	}
}

// PaymentHistory merges ledger payments with the processor's list for the client's
// customer, one entry per processor ref, newest first.
func (f *Facade) PaymentHistory(ctx context.Context, clientID int64, page Page) (*PaymentHistory, error) {
	payments, err := f.repository.ListClientPayments(ctx, clientID)
	if err != nil {
		f.logger.Error("failed to list ledger payments", "client_id", clientID, "error", err)
		return nil, internal.NewInternalError("Failed to load payment history", err)
	}

	byRef := make(map[string]int, len(payments))
	entries := make([]PaymentEntry, 0, len(payments))
	for _, p := range payments {
		bookingID := p.BookingID
		byRef[p.ProcessorPaymentRef] = len(entries)
		entries = append(entries, PaymentEntry{
			ProcessorRef: p.ProcessorPaymentRef,
			BookingID:    &bookingID,
			Amount:       p.Amount,
			Refunded:     p.RefundAmount,
			Currency:     f.currency,
			Status:       string(p.Status),
			Source:       SourceLedger,
			CreatedAt:    p.CreatedAt,
		})
	}

	customerRef, err := f.customerRef(ctx, clientID)
	if err != nil {
		return nil, err
	}
	truncated := false
	if customerRef != "" {
		var processed []pgtypes.ProcessorPayment
		processed, truncated, err = walkPages(func(after string) ([]pgtypes.ProcessorPayment, bool, error) {
			list, err := f.gateway.ListPayments(ctx, pgtypes.ListPaymentsRequest{CustomerRef: customerRef, Limit: processorPageSize, StartingAfter: after})
			if err != nil {
				return nil, false, err
			}
			return list.Data, list.HasMore, nil
		}, func(p pgtypes.ProcessorPayment) string { return p.Ref })
		if err != nil {
			f.logger.Warn("failed to list processor payments", "client_id", clientID, "customer_ref", customerRef, "error", err)
			return nil, err
		}
		if truncated {
			f.logger.Warn("processor payment list truncated", "client_id", clientID, "fetched", len(processed))
		}
		for _, pp := range processed {
			if i, ok := byRef[pp.Ref]; ok {
				entries[i].Reconciled = true
				continue
			}
			byRef[pp.Ref] = len(entries)
			entries = append(entries, PaymentEntry{
				ProcessorRef: pp.Ref,
				Amount:       pp.Amount,
				Currency:     pp.Currency,
				Status:       pp.Status,
				Source:       SourceProcessor,
				CreatedAt:    pp.Created,
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ProcessorRef > entries[j].ProcessorRef
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	start, end, hasMore := paginate(len(entries), page)
	return &PaymentHistory{
		ClientID:  clientID,
		Page:      page,
		Total:     len(entries),
		HasMore:   hasMore,
		Truncated: truncated,
		Payments:  entries[start:end],
	}, nil
}

// PayoutHistory lists transfers the processor sent to the worker's account.
func (f *Facade) PayoutHistory(ctx context.Context, workerID int64, page Page) (*PayoutHistory, error) {
	history := &PayoutHistory{WorkerID: workerID, Page: page, Payouts: []PayoutEntry{}}

	acct, err := f.repository.GetWorkerAccount(ctx, workerID)
	if errors.Is(err, internal.ErrWorkerNotFound) || (err == nil && !acct.HasProcessorAccount()) {
		return history, nil
	}
	if err != nil {
		f.logger.Error("failed to load worker account", "worker_id", workerID, "error", err)
		return nil, internal.NewInternalError("Failed to load payout history", err)
	}
	history.AccountID = *acct.ProcessorAccountID

	transfers, truncated, err := walkPages(func(after string) ([]pgtypes.ProcessorTransfer, bool, error) {
		list, err := f.gateway.ListTransfers(ctx, pgtypes.ListTransfersRequest{
			DestinationAccount: history.AccountID,
			Limit:              processorPageSize,
			StartingAfter:      after,
		})
		if err != nil {
			return nil, false, err
		}
		return list.Data, list.HasMore, nil
	}, func(t pgtypes.ProcessorTransfer) string { return t.Ref })
	if err != nil {
		f.logger.Warn("failed to list processor transfers", "worker_id", workerID, "account_id", history.AccountID, "error", err)
		return nil, err
	}
	if truncated {
		f.logger.Warn("processor transfer list truncated", "worker_id", workerID, "fetched", len(transfers))
	}
	history.Truncated = truncated

	payouts := make([]PayoutEntry, 0, len(transfers))
	for _, t := range transfers {
		if t.Destination != "" && t.Destination != history.AccountID {
			continue
		}
		payouts = append(payouts, PayoutEntry{
			TransferRef: t.Ref,
			Amount:      t.Amount,
			Currency:    t.Currency,
			Reversed:    t.Reversed,
			PeriodEnd:   t.Metadata["period_end"],
			RecordCount: t.Metadata["record_count"],
			CreatedAt:   t.Created,
		})
	}
	sort.SliceStable(payouts, func(i, j int) bool { return payouts[i].CreatedAt.After(payouts[j].CreatedAt) })

	start, end, hasMore := paginate(len(payouts), page)
	history.Total = len(payouts)
	history.HasMore = hasMore
	history.Payouts = payouts[start:end]
	return history, nil
}

// walkPages follows the processor's starting_after cursor until the list ends or
// processorMaxPages pages were read. The bool reports whether the list was cut.
func walkPages[T any](fetch func(after string) ([]T, bool, error), ref func(T) string) ([]T, bool, error) {
	var all []T
	after := ""
	for page := 0; page < processorMaxPages; page++ {
		items, more, err := fetch(after)
		if err != nil {
			return nil, false, err
		}
		all = append(all, items...)
		if !more || len(items) == 0 {
			return all, false, nil
		}
		after = ref(items[len(items)-1])
	}
	return all, true, nil
}

// DashboardStats aggregates the ledger over r. A processor balance failure is reported
// on the result rather than failing the whole dashboard.
func (f *Facade) DashboardStats(ctx context.Context, r Range) (*Stats, error) {
	counts, err := f.stats.BookingCounts(ctx, r)
	if err != nil {
		return nil, f.statsFailed("booking counts", err)
	}
	gross, refunded, err := f.stats.Revenue(ctx, r)
	if err != nil {
		return nil, f.statsFailed("revenue", err)
	}
	pending, paid, err := f.stats.Earnings(ctx, r)
	if err != nil {
		return nil, f.statsFailed("earnings", err)
	}
	onboarded, err := f.stats.OnboardedWorkers(ctx)
	if err != nil {
		return nil, f.statsFailed("onboarded workers", err)
	}

	stats := &Stats{
		From:             r.From,
		Until:            r.Until,
		Bookings:         map[string]int64{},
		GrossRevenue:     gross,
		Refunded:         refunded,
		NetRevenue:       gross - refunded,
		PendingEarnings:  pending,
		PaidEarnings:     paid,
		OnboardedWorkers: onboarded,
	}
	for _, status := range []ledger.BookingPaymentStatus{ledger.BookingUnpaid, ledger.BookingPaid, ledger.BookingPartialRefund, ledger.BookingRefunded} {
		stats.Bookings[string(status)] = counts[status]
	}

	balance, err := f.gateway.RetrieveBalance(ctx)
	if err != nil {
		f.logger.Warn("failed to retrieve processor balance", "error", err)
		stats.BalanceError = err.Error()
		if appErr, ok := internal.IsAppError(err); ok {
			stats.BalanceError = appErr.Message
		}
		return stats, nil
	}
	available := balance.AvailableIn(f.currency)
	stats.AvailableBalance = &available
	return stats, nil
}

func (f *Facade) statsFailed(what string, err error) error {
	f.logger.Error("dashboard query failed", "query", what, "error", err)
	return internal.NewInternalError("Failed to load dashboard stats", err)
}

func (f *Facade) customerRef(ctx context.Context, clientID int64) (string, error) {
	acct, err := f.repository.GetClientAccount(ctx, clientID)
	if errors.Is(err, internal.ErrClientNotFound) {
		return "", nil
	}
	if err != nil {
		f.logger.Error("failed to load client account", "client_id", clientID, "error", err)
		return "", internal.NewInternalError("Failed to load payment history", err)
	}
	if acct.ProcessorCustomerRef == nil {
		return "", nil
	}
	return *acct.ProcessorCustomerRef, nil
}
