package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"CandleFlow/internal/domain/models"
	domrepo "CandleFlow/internal/domain/repository"
	applogger "CandleFlow/pkg/logger"
)

// RefresherConfig holds the polling cadence of every refresher.
type RefresherConfig struct {
	PollInterval       time.Duration
	UnavailableBackoff time.Duration
	ErrorBackoff       time.Duration
}

func (c RefresherConfig) withDefaults() RefresherConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.UnavailableBackoff <= 0 {
		c.UnavailableBackoff = 5 * time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 10 * time.Second
	}
	return c
}

// FeedRefresherFactory builds refreshers that poll a CandleFeed.
type FeedRefresherFactory struct {
	feed    domrepo.CandleFeed
	bc      *Broadcaster
	cfg     RefresherConfig
	l       *applogger.Logger
	metrics domrepo.Metrics
}

func NewFeedRefresherFactory(feed domrepo.CandleFeed, bc *Broadcaster, cfg RefresherConfig, l *applogger.Logger, metrics domrepo.Metrics) *FeedRefresherFactory {
	return &FeedRefresherFactory{feed: feed, bc: bc, cfg: cfg.withDefaults(), l: l, metrics: metrics}
}

func (f *FeedRefresherFactory) NewRefresher(key domrepo.ChannelKey, subs SubscriberSet) ChannelTask {
	return &Refresher{
		key:     key,
		feed:    f.feed,
		subs:    subs,
		bc:      f.bc,
		cfg:     f.cfg,
		l:       f.l.With(applogger.String("channel", key.String())),
		metrics: f.metrics,
		last:    math.MinInt64,
	}
}

// Refresher polls the latest candle of one channel and broadcasts it when its
// timestamp is not older than the last one sent.
type Refresher struct {
	key     domrepo.ChannelKey
	feed    domrepo.CandleFeed
	subs    SubscriberSet
	bc      *Broadcaster
	cfg     RefresherConfig
	l       *applogger.Logger
	metrics domrepo.Metrics

	last int64
}

// Run loops until ctx is cancelled. Fetch failures and panics only delay the next poll.
func (r *Refresher) Run(ctx context.Context) {
	for {
		wait := r.tick(ctx)
		if ctx.Err() != nil {
			return
		}
		if !sleepCtx(ctx, wait) {
			return
		}
	}
}

func (r *Refresher) tick(ctx context.Context) (wait time.Duration) {
	defer func() {
		if p := recover(); p != nil {
			r.metrics.RecordError("refresher_panic")
			r.l.Error("refresher tick panicked", applogger.Error(fmt.Errorf("%v", p)))
			wait = r.cfg.ErrorBackoff
		}
	}()

	start := time.Now()
	c, err := r.feed.FetchLatest(ctx, r.key.Symbol, r.key.Timeframe)
	r.metrics.RecordLatency("fetch_latest", time.Since(start).Seconds())
	switch {
	case ctx.Err() != nil:
		return 0
	case errors.Is(err, domrepo.ErrUpstreamUnavailable):
		r.metrics.RecordError("upstream_unavailable")
		r.l.Warn("upstream unavailable", applogger.Error(err))
		return r.cfg.UnavailableBackoff
	case errors.Is(err, domrepo.ErrNoCandle):
		return r.cfg.PollInterval
	case err != nil:
		r.metrics.RecordError("fetch_latest")
		r.l.Error("fetch latest candle failed", applogger.Error(err))
		return r.cfg.ErrorBackoff
	}

	ts := c.Unix()
	if ts < r.last {
		return r.cfg.PollInterval
	}
	r.last = ts

	msg, err := json.Marshal(models.NewCandleUpdate(c))
	if err != nil {
		r.metrics.RecordError("encode_candle")
		r.l.Error("encode candle update failed", applogger.Error(err))
		return r.cfg.ErrorBackoff
	}
	if ctx.Err() != nil {
		return 0
	}
	r.bc.Broadcast(ctx, r.key.String(), r.subs, msg)
	r.metrics.RecordLastClose(r.key.String(), c.Close)
	return r.cfg.PollInterval
}

// sleepCtx waits d or until ctx is done. It reports whether the full wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
