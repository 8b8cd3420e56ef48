package admin

import (
	"net/url"
	"strconv"
	"time"

	errors "github.com/frahmantamala/care-payments/internal"
)

const dateLayout = "2006-01-02"

// ParsePage reads limit and offset. A missing limit means DefaultPageLimit.
func ParsePage(q url.Values) (Page, error) {
	page := Page{Limit: DefaultPageLimit}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > MaxPageLimit {
			return Page{}, errors.NewValidationFieldError("limit", "limit must be between 1 and 100", errors.ErrCodeValidationFailed)
		}
		page.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return Page{}, errors.NewValidationFieldError("offset", "offset must be zero or positive", errors.ErrCodeValidationFailed)
		}
		page.Offset = offset
	}
	return page, nil
}

// ParseRange reads from and to as inclusive YYYY-MM-DD dates in loc.
func ParseRange(q url.Values, loc *time.Location) (Range, error) {
	if loc == nil {
		loc = time.UTC
	}
	var r Range
	if raw := q.Get("from"); raw != "" {
		from, err := time.ParseInLocation(dateLayout, raw, loc)
		if err != nil {
			return Range{}, errors.NewValidationFieldError("from", "from must be a date in YYYY-MM-DD format", errors.ErrCodeInvalidDate)
		}
		r.From = &from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.ParseInLocation(dateLayout, raw, loc)
		if err != nil {
			return Range{}, errors.NewValidationFieldError("to", "to must be a date in YYYY-MM-DD format", errors.ErrCodeInvalidDate)
		}
		until := to.AddDate(0, 0, 1)
		r.Until = &until
	}
	if r.From != nil && r.Until != nil && !r.From.Before(*r.Until) {
		return Range{}, errors.NewValidationFieldError("from", "from must not be after to", errors.ErrCodeInvalidDate)
	}
	return r, nil
}

func paginate(total int, page Page) (start, end int, hasMore bool) {
	start = page.Offset
	if start > total {
		start = total
	}
	end = start + page.Limit
	if end > total {
		end = total
	}
	return start, end, end < total
}
