package models

import "time"

// Segment is an interval during which the flow is active, priced at AnchorPrice.
// The interval is [Start, End); when EndInclusive is set it is [Start, End].
type Segment struct {
	Start        time.Time
	End          time.Time
	EndInclusive bool
	AnchorPrice  float64
}

// Contains reports whether t falls inside the segment.
func (s Segment) Contains(t time.Time) bool {
	if t.Before(s.Start) {
		return false
	}
	if s.EndInclusive {
		return !t.After(s.End)
	}
	return t.Before(s.End)
}

// Ended reports whether t is past the segment's right edge.
func (s Segment) Ended(t time.Time) bool {
	if s.EndInclusive {
		return t.After(s.End)
	}
	return !t.Before(s.End)
}

// OutputPoint is one overlay value aligned to a candle.
type OutputPoint struct {
	Time   int64   `json:"time"`
	Value  float64 `json:"value"`
	Active bool    `json:"active"`
}
