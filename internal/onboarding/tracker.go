package onboarding

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/core/datamodel/ledger"
	pgtypes "github.com/frahmantamala/care-payments/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/care-payments/internal/core/events"
	"github.com/frahmantamala/care-payments/internal/paymentgateway"
)

type LinkConfig struct {
	RefreshURL string
	ReturnURL  string
}

// Tracker keeps worker Connect accounts in step with the processor.
type Tracker struct {
	repository RepositoryAPI
	gateway    paymentgateway.Gateway
	publisher  events.Publisher
	links      LinkConfig
	now        func() time.Time
	logger     *slog.Logger
}

func NewTracker(repository RepositoryAPI, gateway paymentgateway.Gateway, publisher events.Publisher, links LinkConfig, logger *slog.Logger) *Tracker {
	return &Tracker{
		repository: repository,
		gateway:    gateway,
		publisher:  publisher,
		links:      links,
		now:        time.Now,
		logger:     logger,
	}
}

// GetStatus refreshes the worker's flags from the processor and returns the derived status.
func (t *Tracker) GetStatus(ctx context.Context, workerID int64) (*Status, error) {
	if _, err := t.repository.GetWorker(ctx, workerID); err != nil {
		return nil, err
	}
	acct, err := t.account(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if !acct.HasProcessorAccount() {
		return statusOf(acct, workerID), nil
	}

	remote, err := t.gateway.RetrieveAccount(ctx, *acct.ProcessorAccountID)
	if err != nil {
		t.logger.Warn("failed to retrieve processor account", "worker_id", workerID, "account_id", *acct.ProcessorAccountID, "error", err)
		return nil, err
	}
	if err := t.apply(ctx, acct, Flags{
		DetailsSubmitted: remote.DetailsSubmitted,
		PayoutsEnabled:   remote.PayoutsEnabled,
		ChargesEnabled:   remote.ChargesEnabled,
	}); err != nil {
		return nil, err
	}
	return statusOf(acct, workerID), nil
}

// CreateOnboardingLink provisions a processor account on first use and returns a hosted
// onboarding link for it.
func (t *Tracker) CreateOnboardingLink(ctx context.Context, workerID int64) (*Link, error) {
	worker, err := t.repository.GetWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}
	acct, err := t.account(ctx, workerID)
	if err != nil {
		return nil, err
	}

	if !acct.HasProcessorAccount() {
		created, err := t.gateway.CreateAccount(ctx, pgtypes.CreateAccountRequest{
			Email: worker.Email,
			Metadata: map[string]string{
				"worker_id":   strconv.FormatInt(worker.ID, 10),
				"worker_kind": worker.Kind.String(),
			},
		})
		if err != nil {
			t.logger.Warn("failed to create processor account", "worker_id", workerID, "error", err)
			return nil, err
		}

		id := created.ID
		acct.ProcessorAccountID = &id
		if err := t.apply(context.WithoutCancel(ctx), acct, Flags{
			DetailsSubmitted: created.DetailsSubmitted,
			PayoutsEnabled:   created.PayoutsEnabled,
			ChargesEnabled:   created.ChargesEnabled,
		}); err != nil {
			t.logger.Error("processor account created but not saved", "worker_id", workerID, "account_id", id, "error", err)
			return nil, err
		}

		// A concurrent first call may have stored its account before ours; the stored one wins.
		saved, err := t.repository.GetAccount(context.WithoutCancel(ctx), workerID)
		if err != nil {
			return nil, internal.NewInternalError("Failed to load processor account", err)
		}
		if saved.HasProcessorAccount() && *saved.ProcessorAccountID != id {
			t.logger.Warn("processor account created concurrently, keeping the stored one",
				"worker_id", workerID, "account_id", *saved.ProcessorAccountID, "orphaned_account_id", id)
			acct = saved
		} else {
			t.logger.Info("processor account created", "worker_id", workerID, "account_id", id, "kind", worker.Kind.String())
		}
	}

	link, err := t.gateway.CreateAccountLink(ctx, pgtypes.AccountLinkRequest{
		AccountID:  *acct.ProcessorAccountID,
		RefreshURL: t.links.RefreshURL,
		ReturnURL:  t.links.ReturnURL,
	})
	if err != nil {
		t.logger.Warn("failed to create onboarding link", "worker_id", workerID, "error", err)
		return nil, err
	}

	return &Link{
		WorkerID:  workerID,
		AccountID: *acct.ProcessorAccountID,
		URL:       link.URL,
		ExpiresAt: link.ExpiresAt,
	}, nil
}

// SyncAccount applies flags pushed by the processor for one of our accounts.
func (t *Tracker) SyncAccount(ctx context.Context, accountID string, flags Flags) (*Status, error) {
	acct, err := t.repository.GetAccountByProcessorID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := t.apply(ctx, acct, flags); err != nil {
		return nil, err
	}
	return statusOf(acct, acct.WorkerID), nil
}

func (t *Tracker) IsPayoutEligible(ctx context.Context, workerID int64) (bool, error) {
	acct, err := t.account(ctx, workerID)
	if err != nil {
		return false, err
	}
	return acct.HasProcessorAccount() && acct.PayoutsEnabled, nil
}

// account returns a blank row for workers that never started onboarding.
func (t *Tracker) account(ctx context.Context, workerID int64) (*ledger.WorkerAccount, error) {
	acct, err := t.repository.GetAccount(ctx, workerID)
	if errors.Is(err, internal.ErrWorkerNotFound) {
		return &ledger.WorkerAccount{WorkerID: workerID, OnboardingStatus: ledger.OnboardingNotStarted}, nil
	}
	if err != nil {
		return nil, internal.NewInternalError("Failed to load processor account", err)
	}
	return acct, nil
}

func (t *Tracker) apply(ctx context.Context, acct *ledger.WorkerAccount, flags Flags) error {
	previous := acct.OnboardingStatus
	next := DeriveStatus(acct.HasProcessorAccount(), flags)

	synced := t.now().UTC()
	acct.DetailsSubmitted = flags.DetailsSubmitted
	acct.PayoutsEnabled = flags.PayoutsEnabled
	acct.ChargesEnabled = flags.ChargesEnabled
	acct.OnboardingStatus = next
	acct.SyncedAt = &synced

	if err := t.repository.SaveAccount(ctx, acct); err != nil {
		return internal.NewInternalError("Failed to save processor account", err)
	}

	if previous != next {
		t.logger.Info("onboarding status changed", "worker_id", acct.WorkerID, "from", previous, "to", next)
		t.publish(ctx, events.NewOnboardingChangedEvent(acct.WorkerID, string(previous), string(next)))
	}
	return nil
}

func (t *Tracker) publish(ctx context.Context, event events.Event) {
	if t.publisher == nil {
		return
	}
	if err := t.publisher.Publish(ctx, event); err != nil {
		t.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}
