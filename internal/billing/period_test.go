package billing

import (
	"testing"
	"time"
)

func TestPeriodLabelUsesLocation(t *testing.T) {
	karachi := time.FixedZone("PKT", 5*60*60)
	// 21:00 UTC on Oct 31 is already November in UTC+5
	now := time.Date(2025, 10, 31, 21, 0, 0, 0, time.UTC)

	if got := PeriodLabel(now, time.UTC); got != "October 2025" {
		t.Fatalf("expected October 2025, got %q", got)
	}
	if got := PeriodLabel(now, karachi); got != "November 2025" {
		t.Fatalf("expected November 2025, got %q", got)
	}
	if got := PeriodLabel(now, nil); got != "October 2025" {
		t.Fatalf("nil location should fall back to UTC, got %q", got)
	}
}

func TestPreviousPeriodLabelAcrossYear(t *testing.T) {
	now := time.Date(2026, 1, 3, 8, 0, 0, 0, time.UTC)
	if got := PreviousPeriodLabel(now, time.UTC); got != "December 2025" {
		t.Fatalf("expected December 2025, got %q", got)
	}
	start := PeriodStart(now, time.UTC)
	if !start.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected period start %v", start)
	}
}

func TestParsePeriod(t *testing.T) {
	got, err := ParsePeriod(" March 2025 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Month() != time.March || got.Year() != 2025 {
		t.Fatalf("unexpected parse result %v", got)
	}
	for _, bad := range []string{"", "2025-03", "Marchy 2025"} {
		if _, err := ParsePeriod(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
