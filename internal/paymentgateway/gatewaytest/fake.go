// Package gatewaytest provides an in-memory Gateway for service tests and local dry runs.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"
	"time"

	pgtypes "github.com/frahmantamala/care-payments/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/care-payments/internal/core/money"
)

// Fake records every call. Set the *Func fields to script responses; unset funcs succeed
// with generated refs.
type Fake struct {
	mu sync.Mutex

	ChargeFunc            func(pgtypes.ChargeRequest) (*pgtypes.ChargeResult, error)
	TransferFunc          func(pgtypes.TransferRequest) (*pgtypes.TransferResult, error)
	RefundFunc            func(pgtypes.RefundRequest) (*pgtypes.RefundResult, error)
	CreateAccountFunc     func(pgtypes.CreateAccountRequest) (*pgtypes.Account, error)
	RetrieveAccountFunc   func(string) (*pgtypes.Account, error)
	CreateAccountLinkFunc func(pgtypes.AccountLinkRequest) (*pgtypes.AccountLink, error)
	RetrieveBalanceFunc   func() (*pgtypes.Balance, error)
	ListPaymentsFunc      func(pgtypes.ListPaymentsRequest) (*pgtypes.PaymentList, error)
	ListTransfersFunc     func(pgtypes.ListTransfersRequest) (*pgtypes.TransferList, error)

	Charges      []pgtypes.ChargeRequest
	Transfers    []pgtypes.TransferRequest
	Refunds      []pgtypes.RefundRequest
	Accounts     []pgtypes.CreateAccountRequest
	AccountLinks []pgtypes.AccountLinkRequest
	Retrievals   []string

	// Charged holds the amount captured per payment ref. Charge fills it and tests may
	// seed it so that full refunds report a real amount.
	Charged  map[string]money.Money
	refunded map[string]money.Money

	seq int
}

func New() *Fake {
	return &Fake{Charged: map[string]money.Money{}, refunded: map[string]money.Money{}}
}

func (f *Fake) next(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s_%d", prefix, f.seq)
}

func (f *Fake) Charge(_ context.Context, req pgtypes.ChargeRequest) (*pgtypes.ChargeResult, error) {
	f.mu.Lock()
	f.Charges = append(f.Charges, req)
	fn := f.ChargeFunc
	ref := f.next("pi")
	f.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	f.mu.Lock()
	f.Charged[ref] = req.Amount
	f.mu.Unlock()
	return &pgtypes.ChargeResult{ProcessorRef: ref, Status: pgtypes.ChargeSucceeded}, nil
}

func (f *Fake) Transfer(_ context.Context, req pgtypes.TransferRequest) (*pgtypes.TransferResult, error) {
	f.mu.Lock()
	f.Transfers = append(f.Transfers, req)
	fn := f.TransferFunc
	ref := f.next("tr")
	f.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	return &pgtypes.TransferResult{TransferRef: ref}, nil
}

func (f *Fake) Refund(_ context.Context, req pgtypes.RefundRequest) (*pgtypes.RefundResult, error) {
	f.mu.Lock()
	f.Refunds = append(f.Refunds, req)
	fn := f.RefundFunc
	ref := f.next("re")
	f.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	remaining := f.Charged[req.PaymentRef] - f.refunded[req.PaymentRef]
	res := &pgtypes.RefundResult{RefundRef: ref, Status: "succeeded", Amount: remaining, FullyRefunded: true}
	if req.Amount != nil {
		res.Amount = *req.Amount
		res.FullyRefunded = remaining > 0 && *req.Amount >= remaining
	}
	f.refunded[req.PaymentRef] += res.Amount
	return res, nil
}

func (f *Fake) CreateAccount(_ context.Context, req pgtypes.CreateAccountRequest) (*pgtypes.Account, error) {
	f.mu.Lock()
	f.Accounts = append(f.Accounts, req)
	fn := f.CreateAccountFunc
	ref := f.next("acct")
	f.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	return &pgtypes.Account{ID: ref}, nil
}

func (f *Fake) RetrieveAccount(_ context.Context, accountID string) (*pgtypes.Account, error) {
	f.mu.Lock()
	f.Retrievals = append(f.Retrievals, accountID)
	fn := f.RetrieveAccountFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(accountID)
	}
	return &pgtypes.Account{ID: accountID}, nil
}

func (f *Fake) CreateAccountLink(_ context.Context, req pgtypes.AccountLinkRequest) (*pgtypes.AccountLink, error) {
	f.mu.Lock()
	f.AccountLinks = append(f.AccountLinks, req)
	fn := f.CreateAccountLinkFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	return &pgtypes.AccountLink{
		URL:       "https://connect.test/onboarding/" + req.AccountID,
		ExpiresAt: time.Now().Add(5 * time.Minute).UTC(),
	}, nil
}

func (f *Fake) RetrieveBalance(context.Context) (*pgtypes.Balance, error) {
	f.mu.Lock()
	fn := f.RetrieveBalanceFunc
	f.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return &pgtypes.Balance{}, nil
}

func (f *Fake) ListPayments(_ context.Context, req pgtypes.ListPaymentsRequest) (*pgtypes.PaymentList, error) {
	f.mu.Lock()
	fn := f.ListPaymentsFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	return &pgtypes.PaymentList{}, nil
}

func (f *Fake) ListTransfers(_ context.Context, req pgtypes.ListTransfersRequest) (*pgtypes.TransferList, error) {
	f.mu.Lock()
	fn := f.ListTransfersFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	return &pgtypes.TransferList{}, nil
}

// ChargeCount is safe to call while other goroutines use the fake.
func (f *Fake) ChargeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Charges)
}

func (f *Fake) TransferCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Transfers)
}

func (f *Fake) RefundCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Refunds)
}
