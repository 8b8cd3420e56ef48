package refund

import (
	"encoding/json"

	errors "github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/core/common/validation"
	"github.com/frahmantamala/care-payments/internal/core/money"
)

// RefundRequest is the body of POST /refunds. Amount is in dollars and optional.
type RefundRequest struct {
	PaymentRef string      `json:"payment_ref"`
	Amount     json.Number `json:"amount,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

func (r *RefundRequest) ToInput(actor string) (RefundInput, error) {
	in := RefundInput{
		PaymentRef: r.PaymentRef,
		Reason:     r.Reason,
		Actor:      actor,
	}
	if r.Amount != "" {
		amount, err := money.Parse(r.Amount.String())
		if err != nil {
			return RefundInput{}, errors.NewValidationFieldError("amount", "amount must be a dollar value with at most two decimals", errors.ErrCodeInvalidAmount)
		}
		in.Amount = &amount
	}
	return in, nil
}

func (in RefundInput) Validate() error {
	validator := validation.NewValidator()

	validator.Field("payment_ref", in.PaymentRef).Required()
	validator.Field("amount", in.Amount).MinAmount(money.MinimumRefund, errors.ErrCodeAmountTooLow)
	validator.Field("reason", in.Reason).OneOf(errors.ErrCodeInvalidReason, ReasonDuplicate, ReasonFraudulent, ReasonRequestedByCustomer)
	validator.Field("actor", in.Actor).Required()

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}
