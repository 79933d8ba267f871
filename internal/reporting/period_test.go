package reporting

import (
	"testing"
	"time"
)

func TestPeriodFor_DailyIsPreviousCalendarDay(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	p := PeriodFor(Daily, now)

	wantStart := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 3, 14, 23, 59, 59, 999_000_000, time.UTC)
	if !p.Start.Equal(wantStart) || !p.End.Equal(wantEnd) {
		t.Fatalf("unexpected window %s..%s", p.Start, p.End)
	}
	if p.Label != "Daily Report - Mar 14, 2024" {
		t.Fatalf("unexpected label %q", p.Label)
	}
}

func TestPeriodFor_DailyAcrossMonthBoundary(t *testing.T) {
	p := PeriodFor(Daily, time.Date(2024, 3, 1, 0, 30, 0, 0, time.UTC))
	if !p.Start.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected leap day, got %s", p.Start)
	}
}

func TestPeriodFor_RollingWindows(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	endOfDay := time.Date(2024, 3, 15, 23, 59, 59, 999_000_000, time.UTC)

	cases := []struct {
		freq  Frequency
		start time.Time
		label string
	}{
		{Weekly, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), "Weekly Report - Mar 8 - Mar 15, 2024"},
		{Monthly, time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC), "Monthly Report - Feb 14 - Mar 15, 2024"},
		{Frequency("fortnightly"), time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), "Report - Mar 8 - Mar 15, 2024"},
	}
	for _, tc := range cases {
		p := PeriodFor(tc.freq, now)
		if !p.Start.Equal(tc.start) || !p.End.Equal(endOfDay) {
			t.Fatalf("%s: unexpected window %s..%s", tc.freq, p.Start, p.End)
		}
		if p.Label != tc.label {
			t.Fatalf("%s: unexpected label %q", tc.freq, p.Label)
		}
	}
}

func TestPeriodFor_UsesNowLocation(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	now := time.Date(2024, 3, 15, 1, 0, 0, 0, loc)
	p := PeriodFor(Daily, now)
	if p.Start.Location() != loc || p.Start.Day() != 14 {
		t.Fatalf("expected previous local day in EST, got %s", p.Start)
	}
}
