package models

import "time"

// Candle is one OHLC bar as served by the upstream feed. Time is the bar open in UTC.
type Candle struct {
	Time  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// Unix returns the bar open as UTC seconds.
func (c Candle) Unix() int64 { return c.Time.Unix() }

// CandleData is the JSON shape of a candle on the wire (history responses and live updates).
type CandleData struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// ToData converts a candle to its wire shape.
func (c Candle) ToData() CandleData {
	return CandleData{
		Time:  c.Unix(),
		Open:  c.Open,
		High:  c.High,
		Low:   c.Low,
		Close: c.Close,
	}
}

// CandlesToData converts an ordered series to wire shape. A nil series yields an empty slice.
func CandlesToData(cs []Candle) []CandleData {
	out := make([]CandleData, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ToData())
	}
	return out
}
