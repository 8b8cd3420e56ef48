package payout

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/frahmantamala/care-payments/internal"
	pgtypes "github.com/frahmantamala/care-payments/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/care-payments/internal/core/events"
	"github.com/frahmantamala/care-payments/internal/core/money"
	"github.com/frahmantamala/care-payments/internal/paymentgateway"
)

var (
	errNothingPending = errors.New("no pending earnings")
	errBelowMinimum   = errors.New("below minimum transfer")
)

type Config struct {
	Location    *time.Location
	Concurrency int
	Currency    string
}

// Engine aggregates pending earnings per worker and pays them out with one transfer each.
type Engine struct {
	repository RepositoryAPI
	gateway    paymentgateway.Gateway
	locker     RunLocker
	publisher  events.Publisher
	cfg        Config
	now        func() time.Time
	logger     *slog.Logger
}

func NewEngine(repository RepositoryAPI, gateway paymentgateway.Gateway, locker RunLocker, publisher events.Publisher, cfg Config, logger *slog.Logger) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if locker == nil {
		locker = NewLocalRunLock()
	}
	return &Engine{
		repository: repository,
		gateway:    gateway,
		locker:     locker,
		publisher:  publisher,
		cfg:        cfg,
		now:        time.Now,
		logger:     logger,
	}
}

// WithClock replaces the time source used for the default period and paid_at.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// DispatchPayouts pays every worker with pending earnings in the week ending at periodEnd.
// Per-worker failures land in the report; only run-level problems return an error.
func (e *Engine) DispatchPayouts(ctx context.Context, periodEnd time.Time, workerIDs []int64) (*Report, error) {
	release, err := e.locker.Acquire(ctx)
	if err != nil {
		e.logger.Warn("payout run rejected", "error", err)
		return nil, err
	}
	defer release()

	period := WeekEnding(periodEnd, e.now(), e.cfg.Location)
	logger := e.logger.With("period", period.String())

	candidates, err := e.repository.PendingWorkerIDs(ctx, period, workerIDs)
	if err != nil {
		logger.Error("failed to select payout candidates", "error", err)
		return nil, internal.NewInternalError("Failed to select workers for payout", err)
	}

	logger.Info("payout run started", "workers", len(candidates), "filter", workerIDs)

	report := &Report{
		PeriodStart: period.Start.Format(dateLayout),
		PeriodEnd:   period.End.Format(dateLayout),
		Successes:   []Success{},
		Errors:      []Failure{},
		Skipped:     []Skip{},
	}

	var mu sync.Mutex
	jobs := make([]dispatchJob, len(candidates))
	for i, id := range candidates {
		jobs[i] = dispatchJob{WorkerID: id}
	}

	// Work already handed to a worker finishes even if the run is cancelled.
	workCtx := context.WithoutCancel(ctx)
	undispatched := runPool(ctx, e.cfg.Concurrency, jobs, func(job dispatchJob) {
		outcome := e.payWorker(workCtx, job.WorkerID, period, logger)
		mu.Lock()
		defer mu.Unlock()
		outcome.addTo(report)
	}, logger)

	for _, job := range undispatched {
		report.Errors = append(report.Errors, Failure{WorkerID: job.WorkerID, Code: CodeCancelled, Reason: "payout run cancelled before this worker was processed"})
	}

	sort.Slice(report.Successes, func(i, j int) bool { return report.Successes[i].WorkerID < report.Successes[j].WorkerID })
	sort.Slice(report.Errors, func(i, j int) bool { return report.Errors[i].WorkerID < report.Errors[j].WorkerID })
	sort.Slice(report.Skipped, func(i, j int) bool { return report.Skipped[i].WorkerID < report.Skipped[j].WorkerID })

	logger.Info("payout run completed",
		"successes", len(report.Successes),
		"errors", len(report.Errors),
		"skipped", len(report.Skipped),
		"total", report.TotalPaid().String())

	e.publish(workCtx, events.NewPayoutRunCompletedEvent(report.PeriodStart, report.PeriodEnd,
		len(report.Successes), len(report.Errors), len(report.Skipped), report.TotalPaid().Cents()))

	return report, nil
}

type workerOutcome struct {
	success *Success
	failure *Failure
	skip    *Skip
}

func (o workerOutcome) addTo(r *Report) {
	switch {
	case o.success != nil:
		r.Successes = append(r.Successes, *o.success)
	case o.failure != nil:
		r.Errors = append(r.Errors, *o.failure)
	case o.skip != nil:
		r.Skipped = append(r.Skipped, *o.skip)
	}
}

func (e *Engine) fail(ctx context.Context, period Period, f Failure, logger *slog.Logger) workerOutcome {
	logger.Warn("worker payout failed",
		"worker_id", f.WorkerID,
		"amount", f.Amount.String(),
		"code", f.Code,
		"reason", f.Reason)
	e.publish(ctx, events.NewPayoutFailedEvent(f.WorkerID, f.Amount.Cents(), f.Code, f.Reason, period.End.Format(dateLayout)))
	return workerOutcome{failure: &f}
}

func (e *Engine) payWorker(ctx context.Context, workerID int64, period Period, logger *slog.Logger) workerOutcome {
	acct, err := e.repository.GetWorkerAccount(ctx, workerID)
	if err != nil && !errors.Is(err, internal.ErrWorkerNotFound) {
		return e.fail(ctx, period, Failure{WorkerID: workerID, Code: CodeLedger, Reason: "failed to load processor account"}, logger)
	}
	if !acct.HasProcessorAccount() {
		pending, _ := e.repository.PendingTotal(ctx, workerID, period)
		return e.fail(ctx, period, Failure{WorkerID: workerID, Amount: pending, Code: CodeAccountMissing, Reason: "processor account not set up"}, logger)
	}
	if !acct.PayoutsEnabled {
		pending, _ := e.repository.PendingTotal(ctx, workerID, period)
		return e.fail(ctx, period, Failure{WorkerID: workerID, Amount: pending, Code: CodePayoutsDisabled, Reason: "payouts not enabled for processor account"}, logger)
	}

	var (
		total       money.Money
		recordCount int
		transferred *pgtypes.TransferResult
	)

	err = e.repository.WithinTx(ctx, func(tx TxRepositoryAPI) error {
		records, err := tx.LockPending(ctx, workerID, period)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return errNothingPending
		}

		ids := make([]int64, len(records))
		idParts := make([]string, len(records))
		for i, rec := range records {
			ids[i] = rec.ID
			idParts[i] = strconv.FormatInt(rec.ID, 10)
			total += rec.Amount
		}
		recordCount = len(records)
		if total < money.MinimumTransfer {
			return errBelowMinimum
		}

		periodEnd := period.End.Format(dateLayout)
		res, err := e.gateway.Transfer(ctx, pgtypes.TransferRequest{
			DestinationAccount: *acct.ProcessorAccountID,
			Amount:             total,
			Currency:           e.cfg.Currency,
			IdempotencyKey:     paymentgateway.IdempotencyKey("payout", strconv.FormatInt(workerID, 10), periodEnd, strings.Join(idParts, ",")),
			Metadata: map[string]string{
				"worker_id":    strconv.FormatInt(workerID, 10),
				"period_end":   periodEnd,
				"record_count": strconv.Itoa(recordCount),
			},
		})
		if err != nil {
			return err
		}
		transferred = res

		affected, err := tx.MarkPaid(ctx, ids, res.TransferRef, e.now().UTC())
		if err != nil {
			return err
		}
		if affected != int64(recordCount) {
			return errors.New("earnings changed while the payout was in flight")
		}
		return nil
	})

	switch {
	case err == nil:
		logger.Info("worker paid",
			"worker_id", workerID,
			"amount", total.String(),
			"records", recordCount,
			"transfer_ref", transferred.TransferRef)
		e.publish(ctx, events.NewPayoutDispatchedEvent(workerID, total.Cents(), transferred.TransferRef, recordCount, period.End.Format(dateLayout)))
		return workerOutcome{success: &Success{WorkerID: workerID, Amount: total, TransferRef: transferred.TransferRef, RecordCount: recordCount}}

	case errors.Is(err, errNothingPending):
		return workerOutcome{skip: &Skip{WorkerID: workerID, Reason: reasonNothingPending}}

	case errors.Is(err, errBelowMinimum):
		logger.Info("worker payout skipped", "worker_id", workerID, "amount", total.String(), "reason", reasonBelowMinimum)
		return workerOutcome{skip: &Skip{WorkerID: workerID, Amount: total, Reason: reasonBelowMinimum}}

	case transferred != nil:
		logger.Error("transfer sent but earnings not marked paid",
			"worker_id", workerID,
			"amount", total.String(),
			"transfer_ref", transferred.TransferRef,
			"error", err)
		e.publish(ctx, events.NewReconciliationWarningEvent(CodeReconciliation,
			"transfer sent for worker "+strconv.FormatInt(workerID, 10)+" but earnings were not marked paid", transferred.TransferRef))
		return e.fail(ctx, period, Failure{WorkerID: workerID, Amount: total, Code: CodeReconciliation, Reason: "transfer sent but earnings could not be marked paid"}, logger)
	}

	if appErr, ok := internal.IsAppError(err); ok && appErr.Type == internal.ErrorTypeGateway {
		return e.fail(ctx, period, Failure{WorkerID: workerID, Amount: total, Code: string(appErr.Code), Reason: appErr.Message}, logger)
	}
	logger.Error("payout transaction failed", "worker_id", workerID, "error", err)
	return e.fail(ctx, period, Failure{WorkerID: workerID, Amount: total, Code: CodeLedger, Reason: "failed to update earnings"}, logger)
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}
