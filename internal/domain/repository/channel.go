package repository

import (
	"fmt"
	"strings"
)

const channelKeySep = "-"

// ChannelKey identifies one live stream: a symbol at a timeframe.
type ChannelKey struct {
	Symbol    string
	Timeframe Timeframe
}

// NewChannelKey validates and builds a key.
func NewChannelKey(symbol, timeframe string) (ChannelKey, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return ChannelKey{}, fmt.Errorf("%w: empty symbol", ErrInvalidChannelKey)
	}
	if strings.Contains(symbol, channelKeySep) {
		return ChannelKey{}, fmt.Errorf("%w: symbol %q contains %q", ErrInvalidChannelKey, symbol, channelKeySep)
	}
	tf, err := ParseTimeframe(timeframe)
	if err != nil {
		return ChannelKey{}, err
	}
	return ChannelKey{Symbol: symbol, Timeframe: tf}, nil
}

// ParseChannelKey parses the "SYMBOL-TF" form.
func ParseChannelKey(s string) (ChannelKey, error) {
	i := strings.LastIndex(s, channelKeySep)
	if i < 0 {
		return ChannelKey{}, fmt.Errorf("%w: %q", ErrInvalidChannelKey, s)
	}
	return NewChannelKey(s[:i], s[i+1:])
}

// String returns the "SYMBOL-TF" form, e.g. "WDOV25-M5".
func (k ChannelKey) String() string {
	return k.Symbol + channelKeySep + string(k.Timeframe)
}

// HasPrefix reports whether the key's string form starts with prefix.
func (k ChannelKey) HasPrefix(prefix string) bool {
	return strings.HasPrefix(k.String(), prefix)
}
