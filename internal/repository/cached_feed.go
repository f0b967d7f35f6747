package repository

import (
	"context"
	"time"

	"CandleFlow/internal/domain/models"
	domrepo "CandleFlow/internal/domain/repository"
	"CandleFlow/pkg/cache"
	applogger "CandleFlow/pkg/logger"
)

// CachedCandleFeed caches FetchRange results for ranges that are already closed.
// FetchLatest always goes to the wrapped feed.
type CachedCandleFeed struct {
	next  domrepo.CandleFeed
	cache cache.Service
	ttl   time.Duration
	l     *applogger.Logger
	now   func() time.Time
}

func NewCachedCandleFeed(next domrepo.CandleFeed, c cache.Service, ttl time.Duration, l *applogger.Logger) *CachedCandleFeed {
	return &CachedCandleFeed{next: next, cache: c, ttl: ttl, l: l, now: time.Now}
}

func (f *CachedCandleFeed) FetchLatest(ctx context.Context, symbol string, tf domrepo.Timeframe) (models.Candle, error) {
	return f.next.FetchLatest(ctx, symbol, tf)
}

func (f *CachedCandleFeed) FetchRange(ctx context.Context, symbol string, tf domrepo.Timeframe, start, end time.Time) ([]models.Candle, error) {
	// the bar opening at end is still forming until end+tf
	if !end.Add(tf.Duration()).Before(f.now()) {
		return f.next.FetchRange(ctx, symbol, tf, start, end)
	}

	key := cache.GenerateKeyWithParams("range", symbol, tf, start.Unix(), end.Unix())
	out, hit, err := cache.GetOrLoad(ctx, f.cache, key, f.ttl, func(ctx context.Context) ([]models.Candle, error) {
		return f.next.FetchRange(ctx, symbol, tf, start, end)
	})
	if err != nil {
		return nil, err
	}
	f.l.Debug("range cache", applogger.String("key", key), applogger.Bool("hit", hit))
	for i := range out {
		out[i].Time = out[i].Time.UTC()
	}
	return out, nil
}

var _ domrepo.CandleFeed = (*CachedCandleFeed)(nil)
