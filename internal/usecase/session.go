package usecase

import "time"

// SessionWindow is the trading-session range of a calendar date.
type SessionWindow struct {
	Loc   *time.Location
	Open  time.Duration
	Close time.Duration
}

// Bounds returns the session open and close of date's calendar day, in UTC.
func (w SessionWindow) Bounds(date time.Time) (time.Time, time.Time) {
	y, m, d := date.Date()
	at := func(off time.Duration) time.Time {
		h := int(off / time.Hour)
		min := int((off % time.Hour) / time.Minute)
		return time.Date(y, m, d, h, min, 0, 0, w.Loc).UTC()
	}
	return at(w.Open), at(w.Close)
}
