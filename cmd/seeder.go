package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/care-payments/internal/core/datamodel/ledger"
	"github.com/frahmantamala/care-payments/internal/core/money"
	"github.com/frahmantamala/care-payments/internal/payout"
)

var clearData bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed clients, workers, unpaid bookings and last week's pending earnings for development and testing.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configDir)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlDB.Close()

		db, err := initGorm(sqlDB, cfg.Env)
		if err != nil {
			log.Fatalf("failed to init orm: %v", err)
		}

		loc, err := cfg.Payout.Location()
		if err != nil {
			log.Fatalf("invalid payout timezone: %v", err)
		}

		if err := seed(cmd.Context(), db, loc); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
	},
}

func ptr[T any](v T) *T { return &v }

func seed(ctx context.Context, db *gorm.DB, loc *time.Location) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if clearData {
			for _, table := range []string{"payment_attempts", "payments", "earnings_records", "bookings", "worker_accounts", "workers", "client_accounts"} {
				if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
					return fmt.Errorf("clear %s: %w", table, err)
				}
			}
			fmt.Println("Cleared existing ledger data")
		}

		clients := []ledger.ClientAccount{
			{ClientID: 1, Email: "dana.client@example.com", ProcessorCustomerRef: ptr("cus_test_dana")},
			{ClientID: 2, Email: "lee.client@example.com"},
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&clients).Error; err != nil {
			return fmt.Errorf("seed client accounts: %w", err)
		}

		workers := []ledger.Worker{
			{ID: 1, Kind: ledger.KindCaregiver, Name: "Maya Caregiver", Email: "maya@example.com"},
			{ID: 2, Kind: ledger.KindHousekeeper, Name: "Omar Housekeeper", Email: "omar@example.com"},
			{ID: 3, Kind: ledger.KindCaregiver, Name: "Ines Caregiver", Email: "ines@example.com"},
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&workers).Error; err != nil {
			return fmt.Errorf("seed workers: %w", err)
		}

		accounts := []ledger.WorkerAccount{
			{
				WorkerID:           1,
				ProcessorAccountID: ptr("acct_test_maya"),
				OnboardingStatus:   ledger.OnboardingComplete,
				DetailsSubmitted:   true,
				PayoutsEnabled:     true,
				ChargesEnabled:     true,
			},
			{WorkerID: 2, OnboardingStatus: ledger.OnboardingNotStarted},
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&accounts).Error; err != nil {
			return fmt.Errorf("seed worker accounts: %w", err)
		}

		caregiver, housekeeper := ledger.KindCaregiver, ledger.KindHousekeeper
		bookings := []ledger.Booking{
			{ID: 1, ClientID: 1, WorkerID: ptr(int64(1)), WorkerKind: &caregiver, ServiceType: "caregiving", Total: money.FromCents(15000), PaymentStatus: ledger.BookingUnpaid},
			{ID: 2, ClientID: 1, WorkerID: ptr(int64(2)), WorkerKind: &housekeeper, ServiceType: "housekeeping", Total: money.FromCents(8000), PaymentStatus: ledger.BookingUnpaid},
			{ID: 3, ClientID: 2, WorkerID: ptr(int64(3)), WorkerKind: &caregiver, ServiceType: "caregiving", Total: money.FromCents(22550), PaymentStatus: ledger.BookingUnpaid},
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&bookings).Error; err != nil {
			return fmt.Errorf("seed bookings: %w", err)
		}

		// Explicit ids leave the serial sequences behind.
		for _, table := range []string{"workers", "bookings"} {
			if err := tx.Exec("SELECT setval(pg_get_serial_sequence(?, 'id'), (SELECT MAX(id) FROM "+table+"))", table).Error; err != nil {
				return fmt.Errorf("reset %s sequence: %w", table, err)
			}
		}

		week := payout.WeekEnding(time.Time{}, time.Now(), loc)
		earnings := []ledger.EarningsRecord{
			{WorkerID: 1, BookingID: ptr(int64(1)), WorkDate: week.Start, Amount: money.FromCents(12000)},
			{WorkerID: 1, BookingID: ptr(int64(1)), WorkDate: week.Start.AddDate(0, 0, 2), Amount: money.FromCents(6000)},
			{WorkerID: 2, BookingID: ptr(int64(2)), WorkDate: week.Start.AddDate(0, 0, 1), Amount: money.FromCents(6400)},
			{WorkerID: 3, BookingID: ptr(int64(3)), WorkDate: week.Start.AddDate(0, 0, 3), Amount: money.FromCents(50)},
		}
		var pending int64
		if err := tx.Model(&ledger.EarningsRecord{}).Where("payout_status = ?", ledger.PayoutPending).Count(&pending).Error; err != nil {
			return fmt.Errorf("count pending earnings: %w", err)
		}
		if pending == 0 {
			for i := range earnings {
				earnings[i].PayoutStatus = ledger.PayoutPending
			}
			if err := tx.Create(&earnings).Error; err != nil {
				return fmt.Errorf("seed earnings: %w", err)
			}
			fmt.Println("Seeded pending earnings for week", week.String())
		}

		fmt.Printf("Seeded %d clients, %d workers, %d bookings\n", len(clients), len(workers), len(bookings))
		return nil
	})
}

func init() {
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing data before seeding")
}
