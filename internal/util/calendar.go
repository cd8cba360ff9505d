package util

import "time"

// FXCalendar provides market-hours awareness for the spot forex market,
// which trades continuously from Sunday 22:00 UTC to Friday 22:00 UTC.
type FXCalendar struct{}

// NewFXCalendar creates an FXCalendar.
func NewFXCalendar() *FXCalendar {
	return &FXCalendar{}
}

// IsMarketOpen returns whether the forex market is open at time t.
func (c *FXCalendar) IsMarketOpen(t time.Time) bool {
	t = t.UTC()
	switch t.Weekday() {
	case time.Saturday:
		return false
	case time.Sunday:
		return t.Hour() >= 22
	case time.Friday:
		return t.Hour() < 22
	default:
		return true
	}
}

// NextOpen returns the next market open time at or after t.
func (c *FXCalendar) NextOpen(t time.Time) time.Time {
	t = t.UTC()
	if c.IsMarketOpen(t) {
		return t
	}
	d := t
	for d.Weekday() != time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	open := time.Date(d.Year(), d.Month(), d.Day(), 22, 0, 0, 0, time.UTC)
	if open.Before(t) {
		open = open.AddDate(0, 0, 7)
	}
	return open
}

// NextClose returns the next market close time at or after t.
func (c *FXCalendar) NextClose(t time.Time) time.Time {
	t = t.UTC()
	d := t
	for d.Weekday() != time.Friday {
		d = d.AddDate(0, 0, 1)
	}
	end := time.Date(d.Year(), d.Month(), d.Day(), 22, 0, 0, 0, time.UTC)
	if end.Before(t) {
		end = end.AddDate(0, 0, 7)
	}
	return end
}
