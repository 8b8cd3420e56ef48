package payout

import (
	"time"

	errors "github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/core/common/validation"
)

// RunRequest is the body of POST /payouts/run. Both fields are optional.
type RunRequest struct {
	WeekEnding string  `json:"week_ending"`
	WorkerIDs  []int64 `json:"worker_ids"`
}

func (r *RunRequest) Validate(loc *time.Location) (time.Time, error) {
	validator := validation.NewValidator()
	for _, id := range r.WorkerIDs {
		validator.Field("worker_ids", id).Positive()
	}
	if appErr := validator.Validate(); appErr != nil {
		return time.Time{}, appErr
	}

	end, err := ParseWeekEnding(r.WeekEnding, loc)
	if err != nil {
		return time.Time{}, errors.NewValidationFieldError("week_ending", "week_ending must be a date in YYYY-MM-DD format", errors.ErrCodeInvalidDate)
	}
	return end, nil
}
