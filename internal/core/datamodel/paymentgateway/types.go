package paymentgateway

import (
	"errors"
	"time"

	"github.com/frahmantamala/care-payments/internal/core/money"
)

type ChargeStatus string

const (
	ChargeSucceeded  ChargeStatus = "succeeded"
	ChargeProcessing ChargeStatus = "processing"
	ChargeFailed     ChargeStatus = "failed"
)

type ChargeRequest struct {
	CustomerRef      string            `json:"customer_ref,omitempty"`
	Amount           money.Money       `json:"amount"`
	Currency         string            `json:"currency"`
	PaymentMethodRef string            `json:"payment_method_ref"`
	Description      string            `json:"description,omitempty"`
	IdempotencyKey   string            `json:"-"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

func (r *ChargeRequest) Validate() error {
	if r.PaymentMethodRef == "" {
		return errors.New("payment_method_ref is required")
	}
	if r.Amount <= 0 {
		return errors.New("amount must be greater than 0")
	}
	if r.Currency == "" {
		return errors.New("currency is required")
	}
	return nil
}

type ChargeResult struct {
	ProcessorRef string       `json:"id"`
	Status       ChargeStatus `json:"status"`
	FailureCode  string       `json:"failure_code,omitempty"`
	FailureMsg   string       `json:"failure_message,omitempty"`
}

type TransferRequest struct {
	DestinationAccount string            `json:"destination"`
	Amount             money.Money       `json:"amount"`
	Currency           string            `json:"currency"`
	IdempotencyKey     string            `json:"-"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

func (r *TransferRequest) Validate() error {
	if r.DestinationAccount == "" {
		return errors.New("destination is required")
	}
	if r.Amount <= 0 {
		return errors.New("amount must be greater than 0")
	}
	if r.Currency == "" {
		return errors.New("currency is required")
	}
	return nil
}

type TransferResult struct {
	TransferRef string `json:"id"`
}

type RefundRequest struct {
	PaymentRef string `json:"payment_ref"`
	// Amount nil means refund the remaining balance.
	Amount         *money.Money `json:"amount,omitempty"`
	Reason         string       `json:"reason,omitempty"`
	IdempotencyKey string       `json:"-"`
}

type RefundResult struct {
	RefundRef string      `json:"id"`
	Status    string      `json:"status"`
	Amount    money.Money `json:"amount"`
	// FullyRefunded reports whether the underlying charge has nothing left to refund.
	FullyRefunded bool `json:"fully_refunded"`
}

type CreateAccountRequest struct {
	Email    string            `json:"email"`
	Country  string            `json:"country,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Account is a processor Connect account for a worker.
type Account struct {
	ID               string `json:"id"`
	DetailsSubmitted bool   `json:"details_submitted"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	ChargesEnabled   bool   `json:"charges_enabled"`
}

type AccountLinkRequest struct {
	AccountID  string `json:"account"`
	RefreshURL string `json:"refresh_url"`
	ReturnURL  string `json:"return_url"`
}

type AccountLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type BalanceAmount struct {
	Amount   money.Money `json:"amount"`
	Currency string      `json:"currency"`
}

type Balance struct {
	Available []BalanceAmount `json:"available"`
	Pending   []BalanceAmount `json:"pending"`
}

// AvailableIn returns the available amount for one currency.
func (b *Balance) AvailableIn(currency string) money.Money {
	var total money.Money
	for _, a := range b.Available {
		if a.Currency == currency {
			total += a.Amount
		}
	}
	return total
}

type ListPaymentsRequest struct {
	CustomerRef   string
	Limit         int
	StartingAfter string
}

type ProcessorPayment struct {
	Ref      string            `json:"id"`
	Amount   money.Money       `json:"amount"`
	Currency string            `json:"currency"`
	Status   string            `json:"status"`
	Created  time.Time         `json:"created"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type PaymentList struct {
	Data    []ProcessorPayment `json:"data"`
	HasMore bool               `json:"has_more"`
}

type ListTransfersRequest struct {
	DestinationAccount string
	Limit              int
	StartingAfter      string
}

type ProcessorTransfer struct {
	Ref         string            `json:"id"`
	Amount      money.Money       `json:"amount"`
	Currency    string            `json:"currency"`
	Destination string            `json:"destination"`
	Reversed    bool              `json:"reversed"`
	Created     time.Time         `json:"created"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type TransferList struct {
	Data    []ProcessorTransfer `json:"data"`
	HasMore bool                `json:"has_more"`
}

// APIError is the error body returned by the REST processor API.
type APIError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type APIErrorResponse struct {
	Error APIError `json:"error"`
}
