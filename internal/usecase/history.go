package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CandleFlow/internal/domain/models"
	domrepo "CandleFlow/internal/domain/repository"
)

// ErrInvalidRange is returned when start is not before end.
var ErrInvalidRange = errors.New("start must be before end")

// HistoryUseCase serves closed candle ranges.
type HistoryUseCase struct {
	feed    domrepo.CandleFeed
	metrics domrepo.Metrics
}

func NewHistoryUseCase(feed domrepo.CandleFeed, metrics domrepo.Metrics) *HistoryUseCase {
	return &HistoryUseCase{feed: feed, metrics: metrics}
}

type GetHistoryParams struct {
	Symbol    string
	Timeframe domrepo.Timeframe
	Start     time.Time
	End       time.Time
}

func (uc *HistoryUseCase) GetHistory(ctx context.Context, p GetHistoryParams) ([]models.CandleData, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol required", domrepo.ErrInvalidChannelKey)
	}
	if !domrepo.IsValidTimeframe(p.Timeframe) {
		return nil, fmt.Errorf("%w: timeframe %q", domrepo.ErrInvalidChannelKey, p.Timeframe)
	}
	if !p.Start.Before(p.End) {
		return nil, ErrInvalidRange
	}

	start := time.Now()
	candles, err := uc.feed.FetchRange(ctx, p.Symbol, p.Timeframe, p.Start.UTC(), p.End.UTC())
	uc.metrics.RecordLatency("history", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("fetch range: %w", err)
	}
	return models.CandlesToData(candles), nil
}
