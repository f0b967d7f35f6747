package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CandleFlow/internal/domain/models"
	domrepo "CandleFlow/internal/domain/repository"
	applogger "CandleFlow/pkg/logger"
	"CandleFlow/pkg/metrics"
)

type fakeSignals struct {
	events []models.SignalEvent
	err    error
	calls  int
}

func (f *fakeSignals) FetchEvents(context.Context, string, time.Time) ([]models.SignalEvent, error) {
	f.calls++
	return f.events, f.err
}

func saoPauloWindow(t *testing.T) SessionWindow {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	return SessionWindow{Loc: loc, Open: 9 * time.Hour, Close: 18*time.Hour + 30*time.Minute}
}

func TestSessionWindowBounds(t *testing.T) {
	w := saoPauloWindow(t)
	from, to := w.Bounds(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 1, 15, 21, 30, 0, 0, time.UTC), to)
}

func TestOverlayAlignsSignals(t *testing.T) {
	w := saoPauloWindow(t)
	day := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	open, _ := w.Bounds(day)
	var gotFrom, gotTo time.Time
	feed := &fakeFeed{rng: func(_ context.Context, _ string, _ domrepo.Timeframe, start, end time.Time) ([]models.Candle, error) {
		gotFrom, gotTo = start, end
		return []models.Candle{
			{Time: open, Close: 10},
			{Time: open.Add(time.Minute), Close: 11},
			{Time: open.Add(2 * time.Minute), Close: 12},
		}, nil
	}}
	sig := &fakeSignals{events: []models.SignalEvent{
		{Time: open.Add(90 * time.Second), Kind: models.FlowOff},
		{Time: open.Add(30 * time.Second), Kind: models.FlowOn},
	}}
	uc := NewOverlayUseCase(feed, sig, w, applogger.Nop(), metrics.Noop{})

	pts, err := uc.GetOverlay(context.Background(), "WDO", day, domrepo.TFM1)
	require.NoError(t, err)

	assert.Equal(t, open, gotFrom)
	assert.Equal(t, open.Add(9*time.Hour+30*time.Minute), gotTo)
	require.Len(t, pts, 3)
	assert.Equal(t, models.OutputPoint{Time: open.Unix(), Value: 10, Active: false}, pts[0])
	assert.Equal(t, models.OutputPoint{Time: open.Add(time.Minute).Unix(), Value: 11, Active: true}, pts[1])
	assert.False(t, pts[2].Active)
}

func TestOverlayEmptyCandlesSkipsSignals(t *testing.T) {
	sig := &fakeSignals{err: errors.New("unreachable")}
	uc := NewOverlayUseCase(&fakeFeed{}, sig, saoPauloWindow(t), applogger.Nop(), metrics.Noop{})

	pts, err := uc.GetOverlay(context.Background(), "WDO", time.Now(), domrepo.TFM5)
	require.NoError(t, err)
	assert.NotNil(t, pts)
	assert.Empty(t, pts)
	assert.Equal(t, 0, sig.calls)
}

func TestOverlaySignalSourceFailure(t *testing.T) {
	feed := &fakeFeed{rng: func(context.Context, string, domrepo.Timeframe, time.Time, time.Time) ([]models.Candle, error) {
		return []models.Candle{candleAt(60, 1)}, nil
	}}
	uc := NewOverlayUseCase(feed, &fakeSignals{err: errors.New("permission denied")}, saoPauloWindow(t), applogger.Nop(), metrics.Noop{})

	pts, err := uc.GetOverlay(context.Background(), "WDO", time.Now(), domrepo.TFM1)
	assert.ErrorIs(t, err, domrepo.ErrSignalSourceUnreadable)
	assert.Nil(t, pts)
}

func TestOverlayUpstreamUnavailable(t *testing.T) {
	feed := &fakeFeed{rng: func(context.Context, string, domrepo.Timeframe, time.Time, time.Time) ([]models.Candle, error) {
		return nil, domrepo.ErrUpstreamUnavailable
	}}
	uc := NewOverlayUseCase(feed, &fakeSignals{}, saoPauloWindow(t), applogger.Nop(), metrics.Noop{})

	_, err := uc.GetOverlay(context.Background(), "WDO", time.Now(), domrepo.TFM1)
	assert.ErrorIs(t, err, domrepo.ErrUpstreamUnavailable)
}
