package payout

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Period is an inclusive range of civil dates, each held as midnight UTC so it compares
// directly against DATE columns.
type Period struct {
	Start time.Time
	End   time.Time
}

func (p Period) String() string {
	return p.Start.Format(dateLayout) + ".." + p.End.Format(dateLayout)
}

// EndExclusive is the day after End.
func (p Period) EndExclusive() time.Time {
	return p.End.AddDate(0, 0, 1)
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysSinceMonday maps Monday to 0 and Sunday to 6.
func daysSinceMonday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WeekEnding returns the Monday..Sunday pay week. A zero periodEnd selects the last full
// week before now in loc. An explicit periodEnd is read as a calendar date in loc and
// the week is the one containing it, ending on that date.
func WeekEnding(periodEnd, now time.Time, loc *time.Location) Period {
	if loc == nil {
		loc = time.UTC
	}
	if periodEnd.IsZero() {
		today := civilDate(now.In(loc))
		end := today.AddDate(0, 0, -daysSinceMonday(today)-1)
		return Period{Start: end.AddDate(0, 0, -6), End: end}
	}
	end := civilDate(periodEnd.In(loc))
	return Period{Start: end.AddDate(0, 0, -daysSinceMonday(end)), End: end}
}

// ParseWeekEnding reads a YYYY-MM-DD date in loc. An empty string yields the zero time.
func ParseWeekEnding(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("week_ending must be YYYY-MM-DD: %w", err)
	}
	return t, nil
}
