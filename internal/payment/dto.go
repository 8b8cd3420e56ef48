package payment

import (
	"encoding/json"

	errors "github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/core/common/validation"
	"github.com/frahmantamala/care-payments/internal/core/money"
)

// ChargeRequest is the body of POST /bookings/{id}/charge. Amount is in dollars.
type ChargeRequest struct {
	Amount           json.Number `json:"amount"`
	PaymentMethodRef string      `json:"payment_method_id"`
}

func (r *ChargeRequest) ToInput(bookingID int64, actor string) (ChargeInput, error) {
	if r.Amount == "" {
		return ChargeInput{}, errors.NewValidationFieldError("amount", "amount is required", errors.ErrCodeMissingField)
	}
	amount, err := money.Parse(r.Amount.String())
	if err != nil {
		return ChargeInput{}, errors.NewValidationFieldError("amount", "amount must be a dollar value with at most two decimals", errors.ErrCodeInvalidAmount)
	}
	return ChargeInput{
		BookingID:        bookingID,
		Amount:           amount,
		PaymentMethodRef: r.PaymentMethodRef,
		Actor:            actor,
	}, nil
}

func (in ChargeInput) Validate() error {
	validator := validation.NewValidator()

	validator.Field("booking_id", in.BookingID).Required().Positive()
	validator.Field("amount", in.Amount).Required().MinAmount(money.MinimumCharge, errors.ErrCodeAmountTooLow)
	validator.Field("payment_method_id", in.PaymentMethodRef).Required()
	validator.Field("actor", in.Actor).Required()

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}
