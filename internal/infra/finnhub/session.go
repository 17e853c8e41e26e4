package finnhub

import (
	"time"
	_ "time/tzdata"
)

var newYork = loadNewYork()

func loadNewYork() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// MarketOpen reports whether the regular NYSE/Nasdaq session (09:30-16:00 ET,
// weekdays) is open at t. Holidays are not modelled.
func MarketOpen(t time.Time) bool {
	local := t.In(newYork)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	return minute >= 9*60+30 && minute < 16*60
}

// lastSessionClose is the close of the most recent completed regular session
// at or before now. Daily bars stamped after it are still forming.
func lastSessionClose(now time.Time) time.Time {
	local := now.In(newYork)
	day := time.Date(local.Year(), local.Month(), local.Day(), 16, 0, 0, 0, newYork)
	if local.Before(day) {
		day = day.AddDate(0, 0, -1)
	}
	for wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday; wd = day.Weekday() {
		day = day.AddDate(0, 0, -1)
	}
	return day
}
