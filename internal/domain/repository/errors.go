package repository

import "errors"

var (
	// ErrUpstreamUnavailable means the market-data feed cannot be reached. Retryable.
	ErrUpstreamUnavailable = errors.New("upstream feed unavailable")
	// ErrNoCandle means the feed is reachable but has no bar for the channel yet.
	ErrNoCandle = errors.New("no candle available")
	// ErrInvalidChannelKey rejects a subscribe before any task starts.
	ErrInvalidChannelKey = errors.New("invalid channel key")
	// ErrSignalSourceUnreadable fails an overlay request as a whole.
	ErrSignalSourceUnreadable = errors.New("signal source unreadable")
	// ErrMalformedSeries is returned by the aligner for unsorted or duplicate candle times.
	ErrMalformedSeries = errors.New("malformed candle series")
	// ErrUnknownSignalKind is returned for events outside the on/off pair.
	ErrUnknownSignalKind = errors.New("unknown signal kind")
)
