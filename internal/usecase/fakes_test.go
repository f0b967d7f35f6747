package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"CandleFlow/internal/domain/models"
	domrepo "CandleFlow/internal/domain/repository"
)

type fakeSub struct {
	id   string
	fail bool

	mu   sync.Mutex
	msgs [][]byte
}

func newFakeSub(id string) *fakeSub { return &fakeSub{id: id} }

func (s *fakeSub) ID() string { return s.id }

func (s *fakeSub) Send(_ context.Context, msg []byte) error {
	if s.fail {
		return errors.New("connection reset")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, append([]byte(nil), msg...))
	return nil
}

func (s *fakeSub) received() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.msgs...)
}

type panicSub struct{ id string }

func (s panicSub) ID() string                         { return s.id }
func (s panicSub) Send(context.Context, []byte) error { panic("boom") }

type fakeFeed struct {
	latest func(ctx context.Context, symbol string, tf domrepo.Timeframe) (models.Candle, error)
	rng    func(ctx context.Context, symbol string, tf domrepo.Timeframe, start, end time.Time) ([]models.Candle, error)
}

func (f *fakeFeed) FetchLatest(ctx context.Context, symbol string, tf domrepo.Timeframe) (models.Candle, error) {
	if f.latest == nil {
		return models.Candle{}, domrepo.ErrNoCandle
	}
	return f.latest(ctx, symbol, tf)
}

func (f *fakeFeed) FetchRange(ctx context.Context, symbol string, tf domrepo.Timeframe, start, end time.Time) ([]models.Candle, error) {
	if f.rng == nil {
		return nil, nil
	}
	return f.rng(ctx, symbol, tf, start, end)
}

// trackingFactory builds tasks that block until cancelled and records overlap per factory.
type trackingFactory struct {
	created   atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
}

func (f *trackingFactory) NewRefresher(domrepo.ChannelKey, SubscriberSet) ChannelTask {
	f.created.Add(1)
	return &trackingTask{f: f}
}

type trackingTask struct{ f *trackingFactory }

func (t *trackingTask) Run(ctx context.Context) {
	n := t.f.active.Add(1)
	for {
		m := t.f.maxActive.Load()
		if n <= m || t.f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	<-ctx.Done()
	t.f.active.Add(-1)
}

func candleAt(sec int64, close float64) models.Candle {
	return models.Candle{Time: time.Unix(sec, 0).UTC(), Open: close, High: close, Low: close, Close: close}
}
