package models

const (
	MessageTypeCandle  = "candle"
	MessageTypeMarkers = "markers"
)

// CandleUpdate is pushed to live subscribers whenever the refresher sees a new or changed bar.
type CandleUpdate struct {
	Type string     `json:"type"`
	Data CandleData `json:"data"`
}

// NewCandleUpdate wraps a candle for broadcast.
func NewCandleUpdate(c Candle) CandleUpdate {
	return CandleUpdate{Type: MessageTypeCandle, Data: c.ToData()}
}

// MarkersMessage is pushed to every channel of a symbol when markers arrive.
type MarkersMessage struct {
	Type string   `json:"type"`
	Data []Marker `json:"data"`
}

// NewMarkersMessage wraps markers for broadcast.
func NewMarkersMessage(ms []Marker) MarkersMessage {
	if ms == nil {
		ms = []Marker{}
	}
	return MarkersMessage{Type: MessageTypeMarkers, Data: ms}
}
