package reporting

import "time"

// NextSendAt computes the send time following a dispatch at now.
//
//   - daily: now's date + FrequencyValue days at HourOfDay:00
//   - weekly: + 7*FrequencyValue days at HourOfDay:00; DayOfWeek is not applied
//   - monthly: + FrequencyValue months with the day replaced by DayOfMonth
//     when set; overflowing days roll into the next month (Feb 31 is Mar 3)
//   - unknown frequencies use the weekly cadence
//
// The result is always after now; if the cadence would not move forward the
// config is retried 24 hours later.
func NextSendAt(cfg ReportConfig, now time.Time) time.Time {
	fv := cfg.FrequencyValue
	if fv < 1 {
		fv = 1
	}
	hour := cfg.HourOfDay
	if hour < 0 || hour > 23 {
		hour = 0
	}

	y, m, d := now.Date()
	loc := now.Location()

	var next time.Time
	switch cfg.Frequency {
	case Daily:
		next = time.Date(y, m, d+fv, hour, 0, 0, 0, loc)
	case Monthly:
		day := d
		if cfg.DayOfMonth != nil {
			day = *cfg.DayOfMonth
		}
		next = time.Date(y, m+time.Month(fv), day, hour, 0, 0, 0, loc)
	default:
		next = time.Date(y, m, d+7*fv, hour, 0, 0, 0, loc)
	}

	if !next.After(now) {
		next = now.Add(24 * time.Hour)
	}
	return next
}
