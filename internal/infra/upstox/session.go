package upstox

import "time"

// IST is fixed at UTC+05:30; India has no daylight saving.
var IST = time.FixedZone("IST", 5*60*60+30*60)

const (
	sessionOpenMinute  = 9*60 + 15
	sessionCloseMinute = 15*60 + 30
)

// MarketOpen reports whether the NSE cash session is open at t
// (weekdays 09:15-15:30 IST; exchange holidays are not modelled).
func MarketOpen(t time.Time) bool {
	local := t.In(IST)
	if isWeekend(local) {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	return minute >= sessionOpenMinute && minute < sessionCloseMinute
}

// lastDailyDate is the most recent date whose daily bar is complete:
// today after the close, otherwise the previous weekday.
func lastDailyDate(now time.Time) time.Time {
	local := now.In(IST)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, IST)
	if isWeekend(day) || local.Hour()*60+local.Minute() < sessionCloseMinute {
		day = day.AddDate(0, 0, -1)
	}
	for isWeekend(day) {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
