package ledger

import (
	"time"

	"github.com/frahmantamala/care-payments/internal/core/money"
)

type BookingPaymentStatus string

const (
	BookingUnpaid        BookingPaymentStatus = "unpaid"
	BookingPaid          BookingPaymentStatus = "paid"
	BookingRefunded      BookingPaymentStatus = "refunded"
	BookingPartialRefund BookingPaymentStatus = "partial_refund"
)

// Chargeable reports whether a booking may still be charged.
func (s BookingPaymentStatus) Chargeable() bool {
	return s == BookingUnpaid || s == ""
}

type PaymentStatus string

const (
	PaymentSucceeded     PaymentStatus = "succeeded"
	PaymentRefunded      PaymentStatus = "refunded"
	PaymentPartialRefund PaymentStatus = "partial_refund"
)

type PayoutStatus string

const (
	PayoutPending PayoutStatus = "pending"
	PayoutPaid    PayoutStatus = "paid"
)

type AttemptOutcome string

const (
	AttemptSucceeded AttemptOutcome = "succeeded"
	AttemptFailed    AttemptOutcome = "failed"
	AttemptRejected  AttemptOutcome = "rejected"
)

type OnboardingStatus string

const (
	OnboardingNotStarted          OnboardingStatus = "not_started"
	OnboardingPending             OnboardingStatus = "pending"
	OnboardingPendingVerification OnboardingStatus = "pending_verification"
	OnboardingComplete            OnboardingStatus = "complete"
)

type Booking struct {
	ID                  int64                `gorm:"primaryKey"`
	ClientID            int64                `gorm:"column:client_id;not null;index"`
	WorkerID            *int64               `gorm:"column:worker_id"`
	WorkerKind          *WorkerKind          `gorm:"column:worker_kind"`
	ServiceType         string               `gorm:"column:service_type"`
	Total               money.Money          `gorm:"column:total_cents;not null"`
	PaymentStatus       BookingPaymentStatus `gorm:"column:payment_status;not null;default:unpaid"`
	ProcessorPaymentRef *string              `gorm:"column:processor_payment_ref"`
	CreatedAt           time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (Booking) TableName() string { return "bookings" }

type Payment struct {
	ID                  int64         `gorm:"primaryKey"`
	BookingID           int64         `gorm:"column:booking_id;not null;index"`
	ClientID            int64         `gorm:"column:client_id;not null;index"`
	Amount              money.Money   `gorm:"column:amount_cents;not null"`
	ProcessorPaymentRef string        `gorm:"column:processor_payment_ref;not null;uniqueIndex"`
	PaymentMethodRef    string        `gorm:"column:processor_payment_method_ref"`
	Status              PaymentStatus `gorm:"column:status;not null"`
	RefundRef           *string       `gorm:"column:refund_ref"`
	RefundAmount        money.Money   `gorm:"column:refund_amount_cents;not null;default:0"`
	ProcessedBy         string        `gorm:"column:processed_by"`
	CreatedAt           time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string { return "payments" }

// Refundable is the part of the payment not yet returned to the client.
func (p Payment) Refundable() money.Money {
	return p.Amount - p.RefundAmount
}

// PaymentAttempt is an append-only audit row written for every charge attempt, successful or not.
type PaymentAttempt struct {
	ID                  int64          `gorm:"primaryKey"`
	BookingID           int64          `gorm:"column:booking_id;not null;index"`
	ClientID            int64          `gorm:"column:client_id"`
	Amount              money.Money    `gorm:"column:amount_cents;not null"`
	PaymentMethodRef    string         `gorm:"column:payment_method_ref"`
	Actor               string         `gorm:"column:actor"`
	Outcome             AttemptOutcome `gorm:"column:outcome;not null"`
	FailureCode         *string        `gorm:"column:failure_code"`
	FailureMessage      *string        `gorm:"column:failure_message"`
	ProcessorPaymentRef *string        `gorm:"column:processor_payment_ref"`
	CreatedAt           time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (PaymentAttempt) TableName() string { return "payment_attempts" }

type EarningsRecord struct {
	ID           int64        `gorm:"primaryKey"`
	WorkerID     int64        `gorm:"column:worker_id;not null;index"`
	BookingID    *int64       `gorm:"column:booking_id"`
	WorkDate     time.Time    `gorm:"column:work_date;type:date;not null"`
	Amount       money.Money  `gorm:"column:amount_cents;not null"`
	PayoutStatus PayoutStatus `gorm:"column:payout_status;not null;default:pending"`
	PayoutRef    *string      `gorm:"column:payout_ref"`
	PaidAt       *time.Time   `gorm:"column:paid_at"`
	CreatedAt    time.Time    `gorm:"column:created_at;autoCreateTime"`
}

func (EarningsRecord) TableName() string { return "earnings_records" }

type Worker struct {
	ID        int64      `gorm:"primaryKey"`
	Kind      WorkerKind `gorm:"column:kind;not null"`
	Name      string     `gorm:"column:name"`
	Email     string     `gorm:"column:email"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (Worker) TableName() string { return "workers" }

// WorkerAccount is the worker's processor-side Connect account state.
type WorkerAccount struct {
	WorkerID           int64            `gorm:"column:worker_id;primaryKey;autoIncrement:false"`
	ProcessorAccountID *string          `gorm:"column:processor_account_id;uniqueIndex"`
	OnboardingStatus   OnboardingStatus `gorm:"column:onboarding_status;not null;default:not_started"`
	DetailsSubmitted   bool             `gorm:"column:details_submitted;not null;default:false"`
	PayoutsEnabled     bool             `gorm:"column:payouts_enabled;not null;default:false"`
	ChargesEnabled     bool             `gorm:"column:charges_enabled;not null;default:false"`
	SyncedAt           *time.Time       `gorm:"column:synced_at"`
	UpdatedAt          time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (WorkerAccount) TableName() string { return "worker_accounts" }

// HasProcessorAccount reports whether an account has been provisioned at the processor.
func (a *WorkerAccount) HasProcessorAccount() bool {
	return a != nil && a.ProcessorAccountID != nil && *a.ProcessorAccountID != ""
}

type ClientAccount struct {
	ClientID             int64     `gorm:"column:client_id;primaryKey;autoIncrement:false"`
	Email                string    `gorm:"column:email"`
	ProcessorCustomerRef *string   `gorm:"column:processor_customer_ref"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ClientAccount) TableName() string { return "client_accounts" }
