package reporting

import "time"

const (
	labelDate      = "Jan 2, 2006"
	labelRangeFrom = "Jan 2"
)

// PeriodFor returns the window a report sent at now covers, computed in
// now's location.
//
// Daily covers the previous calendar day. Weekly and monthly are rolling
// 7 and 30 day windows ending with now's day; they are not calendar aligned.
// Anything else is treated as weekly.
func PeriodFor(freq Frequency, now time.Time) Period {
	y, m, d := now.Date()
	loc := now.Location()
	endOfToday := time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)

	switch freq {
	case Daily:
		start := time.Date(y, m, d-1, 0, 0, 0, 0, loc)
		end := time.Date(y, m, d-1, 23, 59, 59, int(999*time.Millisecond), loc)
		return Period{Start: start, End: end, Label: "Daily Report - " + start.Format(labelDate)}
	case Monthly:
		start := time.Date(y, m, d-30, 0, 0, 0, 0, loc)
		return Period{Start: start, End: endOfToday, Label: rangeLabel("Monthly Report", start, endOfToday)}
	case Weekly:
		start := time.Date(y, m, d-7, 0, 0, 0, 0, loc)
		return Period{Start: start, End: endOfToday, Label: rangeLabel("Weekly Report", start, endOfToday)}
	default:
		start := time.Date(y, m, d-7, 0, 0, 0, 0, loc)
		return Period{Start: start, End: endOfToday, Label: rangeLabel("Report", start, endOfToday)}
	}
}

func rangeLabel(prefix string, start, end time.Time) string {
	return prefix + " - " + start.Format(labelRangeFrom) + " - " + end.Format(labelDate)
}
