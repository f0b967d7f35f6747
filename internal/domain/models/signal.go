package models

import (
	"fmt"
	"strings"
	"time"
)

// SignalKind is one of the two flow states.
type SignalKind string

const (
	FlowOn  SignalKind = "FLOW_ON"
	FlowOff SignalKind = "FLOW_OFF"
)

// ParseSignalKind accepts the canonical names and the legacy terminal export names.
func ParseSignalKind(s string) (SignalKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FLOW_ON", "LIGA_COMPRA":
		return FlowOn, nil
	case "FLOW_OFF", "DESLIGA_COMPRA":
		return FlowOff, nil
	default:
		return "", fmt.Errorf("unknown signal kind %q", s)
	}
}

// Valid reports whether k is FlowOn or FlowOff.
func (k SignalKind) Valid() bool { return k == FlowOn || k == FlowOff }

// SignalEvent is a timestamped on/off flow signal.
type SignalEvent struct {
	Time time.Time
	Kind SignalKind
}
