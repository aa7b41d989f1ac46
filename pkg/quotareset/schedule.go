package quotareset

import "time"

// Next trigger projections for each reset kind. These are pure calendar
// arithmetic over UTC period boundaries; the external job runtime owns the
// actual cron wiring.

// NextDailyReset returns the next UTC midnight strictly after now.
func NextDailyReset(now time.Time) time.Time {
	return startOfDayUTC(now).Add(24 * time.Hour)
}

// NextWeeklyReset returns the next UTC Monday midnight strictly after now.
func NextWeeklyReset(now time.Time) time.Time {
	day := startOfDayUTC(now)
	// Monday is weekday 1; Sunday wraps to 7 so the offset stays in 1..7.
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return day.AddDate(0, 0, 8-weekday)
}

// NextMonthlyReset returns midnight UTC on the first of the next month.
func NextMonthlyReset(now time.Time) time.Time {
	n := now.UTC()
	return time.Date(n.Year(), n.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// startOfDayUTC returns the start of day (00:00:00) in UTC for the given time.
func startOfDayUTC(t time.Time) time.Time {
	tt := t.UTC()
	return time.Date(tt.Year(), tt.Month(), tt.Day(), 0, 0, 0, 0, time.UTC)
}
