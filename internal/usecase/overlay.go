package usecase

import (
	"context"
	"fmt"
	"time"

	"CandleFlow/internal/domain/models"
	domrepo "CandleFlow/internal/domain/repository"
	"CandleFlow/internal/domain/service"
	applogger "CandleFlow/pkg/logger"
)

// OverlayUseCase aligns a day's flow signals onto its candles.
type OverlayUseCase struct {
	feed    domrepo.CandleFeed
	signals domrepo.SignalSource
	window  SessionWindow
	l       *applogger.Logger
	metrics domrepo.Metrics
}

func NewOverlayUseCase(feed domrepo.CandleFeed, signals domrepo.SignalSource, window SessionWindow, l *applogger.Logger, metrics domrepo.Metrics) *OverlayUseCase {
	return &OverlayUseCase{feed: feed, signals: signals, window: window, l: l, metrics: metrics}
}

// GetOverlay returns one point per session candle of date. No candles means an empty
// result and the signal source is not consulted.
func (uc *OverlayUseCase) GetOverlay(ctx context.Context, symbol string, date time.Time, tf domrepo.Timeframe) ([]models.OutputPoint, error) {
	start := time.Now()
	defer func() { uc.metrics.RecordLatency("overlay", time.Since(start).Seconds()) }()

	from, to := uc.window.Bounds(date)
	candles, err := uc.feed.FetchRange(ctx, symbol, tf, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch candles: %w", err)
	}
	if len(candles) == 0 {
		return []models.OutputPoint{}, nil
	}

	events, err := uc.signals.FetchEvents(ctx, symbol, date)
	if err != nil {
		uc.metrics.RecordError("signal_source")
		return nil, fmt.Errorf("%w: %v", domrepo.ErrSignalSourceUnreadable, err)
	}

	al, err := service.Align(candles, events)
	if err != nil {
		return nil, err
	}
	for _, d := range al.Dropped {
		uc.l.Warn("flow segment has no candles, dropped",
			applogger.String("symbol", symbol),
			applogger.String("timeframe", string(tf)),
			applogger.Time("start", d.Start),
			applogger.Time("end", d.End),
		)
	}
	return al.Points, nil
}
