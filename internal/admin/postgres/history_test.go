package postgres

import (
	"context"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/core/datamodel/ledger"
)

var _ = ginkgo.Describe("HistoryRepository", func() {
	var (
		db   *gorm.DB
		repo *HistoryRepository
		ctx  context.Context
	)

	ginkgo.BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		sqlDB, err := db.DB()
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		gomega.Expect(db.AutoMigrate(&ledger.Payment{}, &ledger.ClientAccount{}, &ledger.WorkerAccount{})).To(gomega.Succeed())

		repo = NewHistoryRepository(db)
		ctx = context.Background()
	})

	ginkgo.It("lists a client's payments newest first", func() {
		older := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		newer := older.AddDate(0, 0, 5)
		gomega.Expect(db.Create(&[]ledger.Payment{
			{BookingID: 1, ClientID: 7, Amount: 1000, ProcessorPaymentRef: "pi_old", Status: ledger.PaymentSucceeded, CreatedAt: older},
			{BookingID: 2, ClientID: 7, Amount: 2000, ProcessorPaymentRef: "pi_new", Status: ledger.PaymentSucceeded, CreatedAt: newer},
			{BookingID: 3, ClientID: 8, Amount: 3000, ProcessorPaymentRef: "pi_other", Status: ledger.PaymentSucceeded, CreatedAt: newer},
		}).Error).To(gomega.Succeed())

		payments, err := repo.ListClientPayments(ctx, 7)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(payments).To(gomega.HaveLen(2))
		gomega.Expect(payments[0].ProcessorPaymentRef).To(gomega.Equal("pi_new"))
	})

	ginkgo.It("maps missing accounts to not found", func() {
		_, err := repo.GetClientAccount(ctx, 7)
		gomega.Expect(err).To(gomega.MatchError(internal.ErrClientNotFound))

		_, err = repo.GetWorkerAccount(ctx, 5)
		gomega.Expect(err).To(gomega.MatchError(internal.ErrWorkerNotFound))
	})

	ginkgo.It("returns the worker's processor account", func() {
		acct := "acct_5"
		gomega.Expect(db.Create(&ledger.WorkerAccount{WorkerID: 5, ProcessorAccountID: &acct, OnboardingStatus: ledger.OnboardingComplete}).Error).To(gomega.Succeed())

		got, err := repo.GetWorkerAccount(ctx, 5)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(got.HasProcessorAccount()).To(gomega.BeTrue())
	})
})
