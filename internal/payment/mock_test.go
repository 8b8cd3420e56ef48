package payment_test

import (
	"context"
	"sync"

	"github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/core/datamodel/ledger"
	paymentPkg "github.com/frahmantamala/care-payments/internal/payment"
)

// mockPaymentRepository serializes transactions on one mutex, standing in for the row lock.
type mockPaymentRepository struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	bookings map[int64]ledger.Booking
	clients  map[int64]ledger.ClientAccount
	payments []ledger.Payment
	attempts []ledger.PaymentAttempt

	createPaymentError error
	getBookingError    error
}

func newMockPaymentRepository() *mockPaymentRepository {
	return &mockPaymentRepository{
		bookings: make(map[int64]ledger.Booking),
		clients:  make(map[int64]ledger.ClientAccount),
	}
}

func (m *mockPaymentRepository) GetBooking(_ context.Context, id int64) (*ledger.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getBookingError != nil {
		return nil, m.getBookingError
	}
	b, ok := m.bookings[id]
	if !ok {
		return nil, internal.ErrBookingNotFound
	}
	return &b, nil
}

func (m *mockPaymentRepository) GetClientAccount(_ context.Context, clientID int64) (*ledger.ClientAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[clientID]
	if !ok {
		return nil, internal.ErrClientNotFound
	}
	return &c, nil
}

func (m *mockPaymentRepository) AppendAttempt(_ context.Context, attempt *ledger.PaymentAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	attempt.ID = int64(len(m.attempts) + 1)
	m.attempts = append(m.attempts, *attempt)
	return nil
}

func (m *mockPaymentRepository) WithinTx(_ context.Context, fn func(tx paymentPkg.TxRepositoryAPI) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := &mockTx{repo: m, paid: map[int64]string{}}
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ref := range tx.paid {
		b := m.bookings[id]
		b.PaymentStatus = ledger.BookingPaid
		r := ref
		b.ProcessorPaymentRef = &r
		m.bookings[id] = b
	}
	for _, p := range tx.payments {
		p.ID = int64(len(m.payments) + 1)
		m.payments = append(m.payments, p)
	}
	return nil
}

func (m *mockPaymentRepository) booking(id int64) ledger.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id]
}

func (m *mockPaymentRepository) allPayments() []ledger.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ledger.Payment(nil), m.payments...)
}

func (m *mockPaymentRepository) allAttempts() []ledger.PaymentAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ledger.PaymentAttempt(nil), m.attempts...)
}

type mockTx struct {
	repo     *mockPaymentRepository
	paid     map[int64]string
	payments []ledger.Payment
}

func (t *mockTx) LockBooking(ctx context.Context, id int64) (*ledger.Booking, error) {
	return t.repo.GetBooking(ctx, id)
}

func (t *mockTx) MarkBookingPaid(_ context.Context, id int64, processorRef string) error {
	t.paid[id] = processorRef
	return nil
}

func (t *mockTx) CreatePayment(_ context.Context, p *ledger.Payment) error {
	if t.repo.createPaymentError != nil {
		return t.repo.createPaymentError
	}
	p.ID = int64(len(t.repo.allPayments()) + len(t.payments) + 1)
	t.payments = append(t.payments, *p)
	return nil
}

type mockPaymentService struct {
	receipt *paymentPkg.Receipt
	err     error
	lastIn  paymentPkg.ChargeInput
}

func (m *mockPaymentService) ChargeBooking(_ context.Context, in paymentPkg.ChargeInput) (*paymentPkg.Receipt, error) {
	m.lastIn = in
	if m.err != nil {
		return nil, m.err
	}
	return m.receipt, nil
}
