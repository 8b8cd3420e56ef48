package payment_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/core/datamodel/ledger"
	pgtypes "github.com/frahmantamala/care-payments/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/care-payments/internal/core/events"
	"github.com/frahmantamala/care-payments/internal/core/events/eventstest"
	"github.com/frahmantamala/care-payments/internal/core/money"
	paymentPkg "github.com/frahmantamala/care-payments/internal/payment"
	"github.com/frahmantamala/care-payments/internal/paymentgateway/gatewaytest"
	"github.com/frahmantamala/care-payments/pkg/logger"
)

var _ = Describe("PaymentService", func() {
	var (
		repo     *mockPaymentRepository
		gateway  *gatewaytest.Fake
		recorder *eventstest.Recorder
		service  *paymentPkg.PaymentService
		ctx      context.Context
		input    paymentPkg.ChargeInput
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = newMockPaymentRepository()
		gateway = gatewaytest.New()
		recorder = eventstest.New()
		service = paymentPkg.NewPaymentService(repo, gateway, recorder, "usd", logger.Discard())

		customer := "cus_1"
		repo.clients[7] = ledger.ClientAccount{ClientID: 7, ProcessorCustomerRef: &customer}
		repo.bookings[42] = ledger.Booking{
			ID:            42,
			ClientID:      7,
			ServiceType:   "caregiving",
			Total:         money.FromCents(15000),
			PaymentStatus: ledger.BookingUnpaid,
		}
		input = paymentPkg.ChargeInput{
			BookingID:        42,
			Amount:           money.FromCents(15000),
			PaymentMethodRef: "pm_card_visa",
			Actor:            "admin-1",
		}
	})

	Describe("ChargeBooking", func() {
		Context("when the booking is unpaid and the charge succeeds", func() {
			It("marks the booking paid and records a succeeded payment", func() {
				receipt, err := service.ChargeBooking(ctx, input)
				Expect(err).NotTo(HaveOccurred())
				Expect(receipt.Amount).To(Equal(money.FromCents(15000)))
				Expect(receipt.Status).To(Equal(ledger.PaymentSucceeded))
				Expect(receipt.ProcessedBy).To(Equal("admin-1"))

				booking := repo.booking(42)
				Expect(booking.PaymentStatus).To(Equal(ledger.BookingPaid))
				Expect(booking.ProcessorPaymentRef).NotTo(BeNil())
				Expect(*booking.ProcessorPaymentRef).To(Equal(receipt.ProcessorRef))

				payments := repo.allPayments()
				Expect(payments).To(HaveLen(1))
				Expect(payments[0].Amount).To(Equal(money.FromCents(15000)))
				Expect(payments[0].Status).To(Equal(ledger.PaymentSucceeded))
				Expect(payments[0].ProcessorPaymentRef).To(Equal(receipt.ProcessorRef))
			})

			It("sends customer, metadata and an idempotency key to the processor", func() {
				_, err := service.ChargeBooking(ctx, input)
				Expect(err).NotTo(HaveOccurred())

				Expect(gateway.Charges).To(HaveLen(1))
				req := gateway.Charges[0]
				Expect(req.CustomerRef).To(Equal("cus_1"))
				Expect(req.Currency).To(Equal("usd"))
				Expect(req.IdempotencyKey).NotTo(BeEmpty())
				Expect(req.Metadata).To(HaveKeyWithValue("booking_id", "42"))
				Expect(req.Metadata).To(HaveKeyWithValue("service_type", "caregiving"))
				Expect(req.Metadata).To(HaveKeyWithValue("actor", "admin-1"))
			})

			It("publishes payment.processed and logs a succeeded attempt", func() {
				_, err := service.ChargeBooking(ctx, input)
				Expect(err).NotTo(HaveOccurred())

				Expect(recorder.Types()).To(Equal([]string{events.EventTypePaymentProcessed}))
				evt := recorder.Last(events.EventTypePaymentProcessed).(*events.PaymentProcessedEvent)
				Expect(evt.BookingID).To(Equal(int64(42)))
				Expect(evt.AmountCents).To(Equal(int64(15000)))
				Expect(evt.Actor).To(Equal("admin-1"))

				attempts := repo.allAttempts()
				Expect(attempts).To(HaveLen(1))
				Expect(attempts[0].Outcome).To(Equal(ledger.AttemptSucceeded))
			})

			It("charges without a customer when the client has no processor customer", func() {
				delete(repo.clients, 7)
				_, err := service.ChargeBooking(ctx, input)
				Expect(err).NotTo(HaveOccurred())
				Expect(gateway.Charges[0].CustomerRef).To(BeEmpty())
			})
		})

		Context("when the input is invalid", func() {
			It("rejects amounts below one dollar before calling the processor", func() {
				input.Amount = money.FromCents(99)
				_, err := service.ChargeBooking(ctx, input)
				Expect(internal.IsType(err, internal.ErrorTypeValidation)).To(BeTrue())
				Expect(gateway.ChargeCount()).To(Equal(0))
			})

			It("requires a payment method and an actor", func() {
				input.PaymentMethodRef = ""
				input.Actor = ""
				_, err := service.ChargeBooking(ctx, input)
				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				details := appErr.Details.(internal.ValidationErrors)
				Expect(details.Errors).To(HaveLen(2))
				Expect(gateway.ChargeCount()).To(Equal(0))
			})
		})

		Context("when the booking does not exist", func() {
			It("returns not found", func() {
				input.BookingID = 999
				_, err := service.ChargeBooking(ctx, input)
				Expect(err).To(MatchError(internal.ErrBookingNotFound))
				Expect(gateway.ChargeCount()).To(Equal(0))
			})
		})

		Context("when the booking is already paid", func() {
			It("rejects with a conflict before any processor call", func() {
				b := repo.bookings[42]
				b.PaymentStatus = ledger.BookingPaid
				repo.bookings[42] = b

				_, err := service.ChargeBooking(ctx, input)
				Expect(internal.IsType(err, internal.ErrorTypeConflict)).To(BeTrue())
				Expect(gateway.ChargeCount()).To(Equal(0))

				attempts := repo.allAttempts()
				Expect(attempts).To(HaveLen(1))
				Expect(attempts[0].Outcome).To(Equal(ledger.AttemptRejected))
			})

			It("treats refunded bookings as settled", func() {
				b := repo.bookings[42]
				b.PaymentStatus = ledger.BookingPartialRefund
				repo.bookings[42] = b

				_, err := service.ChargeBooking(ctx, input)
				Expect(err).To(MatchError(internal.ErrBookingAlreadyPaid))
			})
		})

		Context("when the processor declines", func() {
			BeforeEach(func() {
				gateway.ChargeFunc = func(pgtypes.ChargeRequest) (*pgtypes.ChargeResult, error) {
					return nil, internal.NewGatewayError("Your card was declined.", internal.ErrCodeGatewayDeclined, false, nil)
				}
			})

			It("leaves the ledger untouched and returns the processor reason", func() {
				_, err := service.ChargeBooking(ctx, input)
				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(internal.ErrCodeGatewayDeclined))
				Expect(appErr.Message).To(Equal("Your card was declined."))

				Expect(repo.booking(42).PaymentStatus).To(Equal(ledger.BookingUnpaid))
				Expect(repo.allPayments()).To(BeEmpty())
			})

			It("records the failed attempt and publishes payment.failed", func() {
				_, _ = service.ChargeBooking(ctx, input)

				attempts := repo.allAttempts()
				Expect(attempts).To(HaveLen(1))
				Expect(attempts[0].Outcome).To(Equal(ledger.AttemptFailed))
				Expect(*attempts[0].FailureCode).To(Equal(string(internal.ErrCodeGatewayDeclined)))
				Expect(recorder.Types()).To(Equal([]string{events.EventTypePaymentFailed}))
			})

			It("reuses the idempotency key when the same charge is retried", func() {
				_, _ = service.ChargeBooking(ctx, input)
				gateway.ChargeFunc = nil
				_, err := service.ChargeBooking(ctx, input)
				Expect(err).NotTo(HaveOccurred())

				Expect(gateway.Charges).To(HaveLen(2))
				Expect(gateway.Charges[1].IdempotencyKey).To(Equal(gateway.Charges[0].IdempotencyKey))
			})
		})

		Context("when the processor leaves the charge processing", func() {
			It("does not record a payment and raises a reconciliation warning", func() {
				gateway.ChargeFunc = func(pgtypes.ChargeRequest) (*pgtypes.ChargeResult, error) {
					return &pgtypes.ChargeResult{ProcessorRef: "pi_slow", Status: pgtypes.ChargeProcessing}, nil
				}

				_, err := service.ChargeBooking(ctx, input)
				appErr, _ := internal.IsAppError(err)
				Expect(appErr.Code).To(Equal(internal.ErrCodeGatewayPending))
				Expect(repo.allPayments()).To(BeEmpty())
				Expect(recorder.Types()).To(ContainElement(events.EventTypeReconciliationWarning))
			})
		})

		Context("when the ledger write fails after the processor succeeded", func() {
			It("rolls back and reports the reconciliation gap", func() {
				repo.createPaymentError = errors.New("connection reset")

				_, err := service.ChargeBooking(ctx, input)
				Expect(internal.IsType(err, internal.ErrorTypeInternal)).To(BeTrue())
				Expect(repo.booking(42).PaymentStatus).To(Equal(ledger.BookingUnpaid))
				Expect(repo.allPayments()).To(BeEmpty())

				warning := recorder.Last(events.EventTypeReconciliationWarning).(*events.ReconciliationWarningEvent)
				Expect(warning.ProcessorRef).NotTo(BeEmpty())

				attempts := repo.allAttempts()
				Expect(attempts).To(HaveLen(1))
				Expect(*attempts[0].FailureCode).To(Equal("ledger_write_failed"))
			})
		})

		Context("when the same booking is charged in parallel", func() {
			It("produces exactly one payment and conflicts for the rest", func() {
				const callers = 8
				var (
					wg        sync.WaitGroup
					mu        sync.Mutex
					successes int
					conflicts int
				)
				for i := 0; i < callers; i++ {
					wg.Add(1)
					go func() {
						defer GinkgoRecover()
						defer wg.Done()
						_, err := service.ChargeBooking(ctx, input)
						mu.Lock()
						defer mu.Unlock()
						if err == nil {
							successes++
						} else if internal.IsType(err, internal.ErrorTypeConflict) {
							conflicts++
						}
					}()
				}
				wg.Wait()

				Expect(successes).To(Equal(1))
				Expect(conflicts).To(Equal(callers - 1))
				Expect(gateway.ChargeCount()).To(Equal(1))
				Expect(repo.allPayments()).To(HaveLen(1))
			})
		})
	})
})
