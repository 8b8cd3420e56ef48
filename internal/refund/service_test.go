package refund_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/core/datamodel/ledger"
	pgtypes "github.com/frahmantamala/care-payments/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/care-payments/internal/core/events"
	"github.com/frahmantamala/care-payments/internal/core/events/eventstest"
	"github.com/frahmantamala/care-payments/internal/core/money"
	"github.com/frahmantamala/care-payments/internal/paymentgateway/gatewaytest"
	"github.com/frahmantamala/care-payments/internal/refund"
	"github.com/frahmantamala/care-payments/internal/refund/postgres"
	"github.com/frahmantamala/care-payments/pkg/logger"
)

// failingTxRepository lets the processor call through and then loses the ledger write.
type failingTxRepository struct {
	*postgres.RefundRepository
}

func (failingTxRepository) WithinTx(context.Context, func(tx refund.TxRepositoryAPI) error) error {
	return errors.New("connection reset")
}

func amount(cents int64) *money.Money {
	m := money.FromCents(cents)
	return &m
}

var _ = Describe("RefundService", func() {
	var (
		db       *gorm.DB
		gateway  *gatewaytest.Fake
		recorder *eventstest.Recorder
		service  *refund.RefundService
		ctx      context.Context
	)

	paymentRow := func() ledger.Payment {
		var p ledger.Payment
		Expect(db.Where("processor_payment_ref = ?", "pi_1").First(&p).Error).To(Succeed())
		return p
	}
	bookingRow := func() ledger.Booking {
		var b ledger.Booking
		Expect(db.First(&b, 42).Error).To(Succeed())
		return b
	}

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&ledger.Booking{}, &ledger.Payment{})).To(Succeed())

		ref := "pi_1"
		Expect(db.Create(&ledger.Booking{
			ID:                  42,
			ClientID:            7,
			Total:               money.FromCents(15000),
			PaymentStatus:       ledger.BookingPaid,
			ProcessorPaymentRef: &ref,
		}).Error).To(Succeed())
		Expect(db.Create(&ledger.Payment{
			BookingID:           42,
			ClientID:            7,
			Amount:              money.FromCents(15000),
			ProcessorPaymentRef: "pi_1",
			Status:              ledger.PaymentSucceeded,
		}).Error).To(Succeed())

		gateway = gatewaytest.New()
		gateway.Charged["pi_1"] = money.FromCents(15000)
		recorder = eventstest.New()
		service = refund.NewRefundService(postgres.NewRefundRepository(db), gateway, recorder, logger.Discard())
		ctx = context.Background()
	})

	Describe("Refund", func() {
		It("refunds the whole payment when no amount is given", func() {
			receipt, err := service.Refund(ctx, refund.RefundInput{PaymentRef: "pi_1", Actor: "admin-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.Warning).To(BeNil())
			Expect(receipt.Amount).To(Equal(money.FromCents(15000)))
			Expect(receipt.PaymentStatus).To(Equal(ledger.PaymentRefunded))

			p := paymentRow()
			Expect(p.Status).To(Equal(ledger.PaymentRefunded))
			Expect(p.RefundAmount).To(Equal(money.FromCents(15000)))
			Expect(*p.RefundRef).To(Equal(receipt.RefundRef))
			Expect(bookingRow().PaymentStatus).To(Equal(ledger.BookingRefunded))
		})

		It("marks a $50 refund of a $150 payment as partial on payment and booking", func() {
			receipt, err := service.Refund(ctx, refund.RefundInput{PaymentRef: "pi_1", Amount: amount(5000), Actor: "admin-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.PaymentStatus).To(Equal(ledger.PaymentPartialRefund))

			p := paymentRow()
			Expect(p.Status).To(Equal(ledger.PaymentPartialRefund))
			Expect(p.RefundAmount).To(Equal(money.FromCents(5000)))
			Expect(bookingRow().PaymentStatus).To(Equal(ledger.BookingPartialRefund))
		})

		It("treats an explicit amount equal to the payment as a full refund", func() {
			_, err := service.Refund(ctx, refund.RefundInput{PaymentRef: "pi_1", Amount: amount(15000), Actor: "admin-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(paymentRow().Status).To(Equal(ledger.PaymentRefunded))
			Expect(bookingRow().PaymentStatus).To(Equal(ledger.BookingRefunded))
		})

		It("stores the amount the processor reports, not the requested one", func() {
			gateway.RefundFunc = func(req pgtypes.RefundRequest) (*pgtypes.RefundResult, error) {
				return &pgtypes.RefundResult{RefundRef: "re_x", Status: "succeeded", Amount: money.FromCents(4500)}, nil
			}
			receipt, err := service.Refund(ctx, refund.RefundInput{PaymentRef: "pi_1", Amount: amount(5000), Actor: "admin-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.Amount).To(Equal(money.FromCents(4500)))
			Expect(paymentRow().RefundAmount).To(Equal(money.FromCents(4500)))
		})

		It("accumulates partial refunds until the payment is exhausted", func() {
			_, err := service.Refund(ctx, refund.RefundInput{PaymentRef: "pi_1", Amount: amount(5000), Actor: "admin-1"})
			Expect(err).NotTo(HaveOccurred())
			receipt, err := service.Refund(ctx, refund.RefundInput{PaymentRef: "pi_1", Amount: amount(10000), Actor: "admin-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.TotalRefunded).To(Equal(money.FromCents(15000)))

			Expect(paymentRow().Status).To(Equal(ledger.PaymentRefunded))
			Expect(gateway.Refunds).To(HaveLen(2))
			Expect(gateway.Refunds[0].IdempotencyKey).NotTo(Equal(gateway.Refunds[1].IdempotencyKey))
		})

		It("passes reason and an idempotency key to the processor", func() {
			_, err := service.Refund(ctx, refund.RefundInput{PaymentRef: "pi_1", Reason: refund.ReasonDuplicate, Actor: "admin-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(gateway.Refunds[0].Reason).To(Equal("duplicate"))
			Expect(gateway.Refunds[0].Amount).To(BeNil())
			Expect(gateway.Refunds[0].IdempotencyKey).NotTo(BeEmpty())
		})

		It("publishes refund.processed", func() {
			_, err := service.Refund(ctx, refund.RefundInput{PaymentRef: "pi_1", Amount: amount(5000), Actor: "admin-1"})
			Expect(err).NotTo(HaveOccurred())

			evt := recorder.Last(events.EventTypeRefundProcessed).(*events.RefundProcessedEvent)
			Expect(evt.PaymentRef).To(Equal("pi_1"))
			Expect(evt.AmountCents).To(Equal(int64(5000)))
			Expect(evt.Actor).To(Equal("admin-1"))
		})

		Context("when the request is invalid", func() {
			It("rejects an unknown reason before calling the processor", func() {
				_, err := service.Refund(ctx, refund.RefundInput{PaymentRef: "pi_1", Reason: "changed_mind", Actor: "admin-1"})
				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				details := appErr.Details.(internal.ValidationErrors)
				Expect(details.Errors[0].Code).To(Equal(string(internal.ErrCodeInvalidReason)))
				Expect(gateway.RefundCount()).To(BeZero())
			})

			It("rejects amounts below fifty cents", func() {
				_, err := service.Refund(ctx, refund.RefundInput{PaymentRef: "pi_1", Amount: amount(49), Actor: "admin-1"})
				Expect(internal.IsType(err, internal.ErrorTypeValidation)).To(BeTrue())
				Expect(gateway.RefundCount()).To(BeZero())
			})

			It("rejects amounts above the refundable balance", func() {
				_, err := service.Refund(ctx, refund.RefundInput{PaymentRef: "pi_1", Amount: amount(15001), Actor: "admin-1"})
				appErr, _ := internal.IsAppError(err)
				details := appErr.Details.(internal.ValidationErrors)
				Expect(details.Errors[0].Code).To(Equal(string(internal.ErrCodeAmountTooHigh)))
				Expect(gateway.RefundCount()).To(BeZero())
			})

			It("requires a payment ref", func() {
				_, err := service.Refund(ctx, refund.RefundInput{Actor: "admin-1"})
				Expect(internal.IsType(err, internal.ErrorTypeValidation)).To(BeTrue())
			})
		})

		It("rejects a payment that is already fully refunded", func() {
			Expect(db.Model(&ledger.Payment{}).Where("processor_payment_ref = ?", "pi_1").
				Updates(map[string]interface{}{"status": ledger.PaymentRefunded, "refund_amount_cents": 15000}).Error).To(Succeed())

			_, err := service.Refund(ctx, refund.RefundInput{PaymentRef: "pi_1", Actor: "admin-1"})
			Expect(err).To(MatchError(internal.ErrPaymentRefunded))
			Expect(gateway.RefundCount()).To(BeZero())
		})

		It("returns the processor error and leaves the ledger alone", func() {
			gateway.RefundFunc = func(pgtypes.RefundRequest) (*pgtypes.RefundResult, error) {
				return nil, internal.NewGatewayError("Payment processor rejected the request", internal.ErrCodeGatewayRejected, false, nil)
			}
			_, err := service.Refund(ctx, refund.RefundInput{PaymentRef: "pi_1", Actor: "admin-1"})
			Expect(internal.IsType(err, internal.ErrorTypeGateway)).To(BeTrue())
			Expect(paymentRow().Status).To(Equal(ledger.PaymentSucceeded))
			Expect(bookingRow().PaymentStatus).To(Equal(ledger.BookingPaid))
		})

		Context("when the ledger cannot be reconciled", func() {
			It("succeeds with a warning for a payment the ledger never recorded", func() {
				receipt, err := service.Refund(ctx, refund.RefundInput{PaymentRef: "pi_unknown", Amount: amount(2000), Actor: "admin-1"})
				Expect(err).NotTo(HaveOccurred())
				Expect(receipt.Warning).NotTo(BeNil())
				Expect(receipt.Warning.Code).To(Equal(refund.WarningUntrackedPayment))
				Expect(gateway.RefundCount()).To(Equal(1))

				warning := recorder.Last(events.EventTypeReconciliationWarning).(*events.ReconciliationWarningEvent)
				Expect(warning.ProcessorRef).To(Equal("pi_unknown"))
				Expect(recorder.Types()).To(ContainElement(events.EventTypeRefundProcessed))
			})

			It("leaves the payment alone when the processor reports no amount", func() {
				gateway.RefundFunc = func(pgtypes.RefundRequest) (*pgtypes.RefundResult, error) {
					return &pgtypes.RefundResult{RefundRef: "re_zero", Status: "pending"}, nil
				}

				receipt, err := service.Refund(ctx, refund.RefundInput{PaymentRef: "pi_1", Amount: amount(5000), Actor: "admin-1"})
				Expect(err).NotTo(HaveOccurred())
				Expect(receipt.Amount).To(Equal(money.Zero))
				Expect(receipt.Warning.Code).To(Equal(refund.WarningZeroAmount))

				p := paymentRow()
				Expect(p.Status).To(Equal(ledger.PaymentSucceeded))
				Expect(p.RefundAmount).To(Equal(money.Zero))
				Expect(bookingRow().PaymentStatus).To(Equal(ledger.BookingPaid))

				warning := recorder.Last(events.EventTypeReconciliationWarning).(*events.ReconciliationWarningEvent)
				Expect(warning.Code).To(Equal(refund.WarningZeroAmount))
			})

			It("succeeds with a warning when the ledger write fails", func() {
				service = refund.NewRefundService(failingTxRepository{postgres.NewRefundRepository(db)}, gateway, recorder, logger.Discard())

				receipt, err := service.Refund(ctx, refund.RefundInput{PaymentRef: "pi_1", Actor: "admin-1"})
				Expect(err).NotTo(HaveOccurred())
				Expect(receipt.Warning.Code).To(Equal(refund.WarningLedgerWrite))
				Expect(paymentRow().Status).To(Equal(ledger.PaymentSucceeded))
			})
		})
	})
})
