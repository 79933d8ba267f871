package reporting

import (
	"testing"
	"time"
)

func intp(n int) *int { return &n }

func TestNextSendAt(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		cfg  ReportConfig
		want time.Time
	}{
		{"daily", ReportConfig{Frequency: Daily, FrequencyValue: 1, HourOfDay: 8}, time.Date(2024, 3, 16, 8, 0, 0, 0, time.UTC)},
		{"every 3 days", ReportConfig{Frequency: Daily, FrequencyValue: 3, HourOfDay: 8}, time.Date(2024, 3, 18, 8, 0, 0, 0, time.UTC)},
		{"zero multiplier is one", ReportConfig{Frequency: Daily, HourOfDay: 23}, time.Date(2024, 3, 16, 23, 0, 0, 0, time.UTC)},
		{"weekly ignores day of week", ReportConfig{Frequency: Weekly, FrequencyValue: 1, DayOfWeek: intp(1), HourOfDay: 9}, time.Date(2024, 3, 22, 9, 0, 0, 0, time.UTC)},
		{"biweekly", ReportConfig{Frequency: Weekly, FrequencyValue: 2, HourOfDay: 9}, time.Date(2024, 3, 29, 9, 0, 0, 0, time.UTC)},
		{"monthly keeps day", ReportConfig{Frequency: Monthly, FrequencyValue: 1, HourOfDay: 7}, time.Date(2024, 4, 15, 7, 0, 0, 0, time.UTC)},
		{"monthly day override", ReportConfig{Frequency: Monthly, FrequencyValue: 1, DayOfMonth: intp(1), HourOfDay: 7}, time.Date(2024, 4, 1, 7, 0, 0, 0, time.UTC)},
		{"unknown uses weekly", ReportConfig{Frequency: "hourly", FrequencyValue: 1, HourOfDay: 9}, time.Date(2024, 3, 22, 9, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got := NextSendAt(tc.cfg, now)
		if !got.Equal(tc.want) {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
		if !got.After(now) {
			t.Fatalf("%s: expected result after now", tc.name)
		}
	}
}

func TestNextSendAt_MonthlyDayOverflowNormalizes(t *testing.T) {
	now := time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)
	got := NextSendAt(ReportConfig{Frequency: Monthly, FrequencyValue: 1, DayOfMonth: intp(31)}, now)
	// February 2024 has 29 days; day 31 rolls to March 2.
	want := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestNextSendAt_FallsForwardWhenNotInFuture(t *testing.T) {
	// Day 0 of next month normalizes to the last day of this month, which
	// is already past on Jan 31 at noon.
	now := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
	cfg := ReportConfig{Frequency: Monthly, FrequencyValue: 1, DayOfMonth: intp(0)}
	got := NextSendAt(cfg, now)
	if !got.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("expected now+24h fallback, got %s", got)
	}
}
