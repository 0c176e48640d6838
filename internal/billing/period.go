package billing

import (
	"fmt"
	"strings"
	"time"
)

// PeriodLayout renders billing periods as "October 2025".
const PeriodLayout = "January 2006"

// PeriodLabel returns the billing period that contains now in loc. Every writer and
// reader of billing_period goes through this function.
func PeriodLabel(now time.Time, loc *time.Location) string {
	return now.In(location(loc)).Format(PeriodLayout)
}

// PeriodStart returns midnight of the first day of the period containing now.
func PeriodStart(now time.Time, loc *time.Location) time.Time {
	local := now.In(location(loc))
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, local.Location())
}

// PreviousPeriodLabel returns the label of the month before the one containing now.
func PreviousPeriodLabel(now time.Time, loc *time.Location) string {
	return PeriodStart(now, loc).AddDate(0, -1, 0).Format(PeriodLayout)
}

// ParsePeriod validates a label and returns the first instant of that month in UTC.
func ParsePeriod(label string) (time.Time, error) {
	t, err := time.Parse(PeriodLayout, strings.TrimSpace(label))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid billing period %q", label)
	}
	return t, nil
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
