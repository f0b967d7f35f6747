package repository

import (
	"context"
	"time"

	"CandleFlow/internal/domain/models"
)

// CandleFeed is the upstream market-data boundary.
type CandleFeed interface {
	// FetchLatest returns the most recent (possibly still forming) bar.
	// It returns ErrUpstreamUnavailable when the feed cannot be reached and ErrNoCandle when it has no data.
	FetchLatest(ctx context.Context, symbol string, tf Timeframe) (models.Candle, error)
	// FetchRange returns bars with start <= time <= end, ordered ascending.
	FetchRange(ctx context.Context, symbol string, tf Timeframe, start, end time.Time) ([]models.Candle, error)
}

// SignalSource supplies flow signals for one symbol and session date. Order is not guaranteed.
type SignalSource interface {
	FetchEvents(ctx context.Context, symbol string, date time.Time) ([]models.SignalEvent, error)
}

// SignalStore persists ingested flow signals.
type SignalStore interface {
	StoreSignal(ctx context.Context, symbol string, ev models.SignalEvent) error
}

// Subscriber is a live connection handle. Send must be safe for concurrent use.
type Subscriber interface {
	ID() string
	Send(ctx context.Context, msg []byte) error
}

// Health reports upstream reachability.
type Health interface {
	Health(ctx context.Context) error
}

type Metrics interface {
	RecordBroadcast(channel string, delivered int)
	RecordSendFailure(channel string)
	RecordError(kind string)
	RecordSubscribers(channel string, n int)
	RecordRefresherActive(delta int)
	RecordLastClose(channel string, price float64)
	RecordLatency(op string, seconds float64)
}
