package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CandleFlow/internal/domain/models"
	domrepo "CandleFlow/internal/domain/repository"
	"CandleFlow/pkg/cache"
	applogger "CandleFlow/pkg/logger"
)

type countingFeed struct {
	ranges int
	latest int
}

func (f *countingFeed) FetchLatest(context.Context, string, domrepo.Timeframe) (models.Candle, error) {
	f.latest++
	return models.Candle{Time: time.Unix(60, 0).UTC(), Close: 1}, nil
}

func (f *countingFeed) FetchRange(_ context.Context, _ string, _ domrepo.Timeframe, start, _ time.Time) ([]models.Candle, error) {
	f.ranges++
	return []models.Candle{{Time: start.UTC(), Open: 1, High: 2, Low: 0.5, Close: 1.5}}, nil
}

func TestCachedFeedCachesClosedRanges(t *testing.T) {
	next := &countingFeed{}
	f := NewCachedCandleFeed(next, cache.NewMemoryCache(), time.Minute, applogger.Nop())
	ctx := context.Background()
	start := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	first, err := f.FetchRange(ctx, "WDO", domrepo.TFM5, start, end)
	require.NoError(t, err)
	second, err := f.FetchRange(ctx, "WDO", domrepo.TFM5, start, end)
	require.NoError(t, err)

	assert.Equal(t, 1, next.ranges)
	assert.Equal(t, first, second)
	assert.Equal(t, time.UTC, second[0].Time.Location())
}

func TestCachedFeedBypassesOpenRanges(t *testing.T) {
	next := &countingFeed{}
	f := NewCachedCandleFeed(next, cache.NewMemoryCache(), time.Minute, applogger.Nop())
	now := time.Date(2025, 1, 15, 12, 2, 0, 0, time.UTC)
	f.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.FetchRange(ctx, "WDO", domrepo.TFM5, now.Add(-time.Hour), now)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, next.ranges)

	for i := 0; i < 2; i++ {
		_, err := f.FetchLatest(ctx, "WDO", domrepo.TFM5)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, next.latest)
}

func TestIntervalSeconds(t *testing.T) {
	s, err := intervalSeconds(domrepo.TFH1)
	require.NoError(t, err)
	assert.Equal(t, 3600, s)

	_, err = intervalSeconds("D1")
	assert.ErrorIs(t, err, domrepo.ErrInvalidChannelKey)
}
