package service

import (
	"testing"
	"time"

	"CandleFlow/internal/domain/models"
	domrepo "CandleFlow/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

// four bars at t=0,60,120,180 with closes 10,11,12,13
func fourCandles() []models.Candle {
	out := make([]models.Candle, 0, 4)
	for i, t := range []int64{0, 60, 120, 180} {
		c := float64(10 + i)
		out = append(out, models.Candle{Time: ts(t), Open: c, High: c + 1, Low: c - 1, Close: c})
	}
	return out
}

func on(sec int64) models.SignalEvent  { return models.SignalEvent{Time: ts(sec), Kind: models.FlowOn} }
func off(sec int64) models.SignalEvent { return models.SignalEvent{Time: ts(sec), Kind: models.FlowOff} }

func TestAlignOpenSegmentClosesAtLastCandle(t *testing.T) {
	res, err := Align(fourCandles(), []models.SignalEvent{on(30)})
	require.NoError(t, err)

	require.Len(t, res.Segments, 1)
	seg := res.Segments[0]
	assert.Equal(t, ts(30), seg.Start)
	assert.Equal(t, ts(180), seg.End)
	assert.True(t, seg.EndInclusive)
	assert.Equal(t, 11.0, seg.AnchorPrice)

	assert.Equal(t, []models.OutputPoint{
		{Time: 0, Value: 10, Active: false},
		{Time: 60, Value: 11, Active: true},
		{Time: 120, Value: 11, Active: true},
		{Time: 180, Value: 11, Active: true},
	}, res.Points)
}

func TestAlignClosedSegmentIsHalfOpen(t *testing.T) {
	res, err := Align(fourCandles(), []models.SignalEvent{on(30), off(150)})
	require.NoError(t, err)

	require.Len(t, res.Segments, 1)
	assert.False(t, res.Segments[0].EndInclusive)
	assert.Equal(t, []models.OutputPoint{
		{Time: 0, Value: 10, Active: false},
		{Time: 60, Value: 11, Active: true},
		{Time: 120, Value: 11, Active: true},
		{Time: 180, Value: 13, Active: false},
	}, res.Points)
}

func TestAlignCandleOnEndBoundaryIsInactive(t *testing.T) {
	res, err := Align(fourCandles(), []models.SignalEvent{on(60), off(120)})
	require.NoError(t, err)

	assert.True(t, res.Points[1].Active)
	assert.False(t, res.Points[2].Active, "candle at segment end must not be part of it")
	assert.Equal(t, 12.0, res.Points[2].Value)
}

func TestAlignDropsSegmentWithoutPriceData(t *testing.T) {
	res, err := Align(fourCandles(), []models.SignalEvent{on(200), off(220)})
	require.NoError(t, err)

	assert.Empty(t, res.Segments)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, ts(200), res.Dropped[0].Start)
	for i, p := range res.Points {
		assert.False(t, p.Active)
		assert.Equal(t, float64(10+i), p.Value)
	}
}

func TestAlignDropsOpenSegmentAfterLastCandle(t *testing.T) {
	res, err := Align(fourCandles(), []models.SignalEvent{on(240)})
	require.NoError(t, err)
	assert.Empty(t, res.Segments)
	assert.Len(t, res.Dropped, 1)
}

func TestAlignIgnoresDuplicateOnAndSpuriousOff(t *testing.T) {
	events := []models.SignalEvent{off(5), on(30), on(70), off(150), off(160)}
	res, err := Align(fourCandles(), events)
	require.NoError(t, err)

	require.Len(t, res.Segments, 1)
	assert.Equal(t, ts(30), res.Segments[0].Start, "second on must not restart the segment")
	assert.Equal(t, ts(150), res.Segments[0].End)
}

func TestAlignSortsEvents(t *testing.T) {
	sorted, err := Align(fourCandles(), []models.SignalEvent{on(30), off(150)})
	require.NoError(t, err)
	shuffled, err := Align(fourCandles(), []models.SignalEvent{off(150), on(30)})
	require.NoError(t, err)
	assert.Equal(t, sorted.Points, shuffled.Points)
}

func TestAlignKeepsOrderOfEqualTimestamps(t *testing.T) {
	// on then off at the same instant: an empty segment, nothing active afterwards
	res, err := Align(fourCandles(), []models.SignalEvent{on(60), off(60)})
	require.NoError(t, err)
	require.Len(t, res.Segments, 1)
	for _, p := range res.Points {
		assert.False(t, p.Active)
	}

	// off then on at the same instant: the off is spurious, the on opens through end of series
	res, err = Align(fourCandles(), []models.SignalEvent{off(60), on(60)})
	require.NoError(t, err)
	require.Len(t, res.Segments, 1)
	assert.True(t, res.Points[1].Active)
	assert.True(t, res.Points[3].Active)
}

func TestAlignSegmentsSortedAndDisjoint(t *testing.T) {
	var candles []models.Candle
	for i := int64(0); i < 100; i++ {
		candles = append(candles, models.Candle{Time: ts(i * 60), Close: float64(i)})
	}
	events := []models.SignalEvent{
		on(4000), off(4500), on(100), off(900), on(910), off(2000), on(5000), on(5100), off(5200), off(5300), on(5900),
	}
	res, err := Align(candles, events)
	require.NoError(t, err)
	require.Len(t, res.Points, len(candles))

	for i := 1; i < len(res.Segments); i++ {
		prev, cur := res.Segments[i-1], res.Segments[i]
		assert.True(t, !cur.Start.Before(prev.Start), "segments sorted by start")
		assert.True(t, !cur.Start.Before(prev.End), "segments disjoint")
	}
}

func TestAlignIsIdempotent(t *testing.T) {
	events := []models.SignalEvent{on(30), off(150), on(170)}
	first, err := Align(fourCandles(), events)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Align(fourCandles(), events)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAlignDoesNotMutateEvents(t *testing.T) {
	events := []models.SignalEvent{off(150), on(30)}
	_, err := Align(fourCandles(), events)
	require.NoError(t, err)
	assert.Equal(t, models.FlowOff, events[0].Kind)
}

func TestAlignEmptyCandles(t *testing.T) {
	res, err := Align(nil, []models.SignalEvent{on(30)})
	require.NoError(t, err)
	assert.NotNil(t, res.Points)
	assert.Empty(t, res.Points)
	assert.Empty(t, res.Segments)
}

func TestAlignRejectsMalformedSeries(t *testing.T) {
	candles := fourCandles()
	candles[2].Time = candles[1].Time
	_, err := Align(candles, nil)
	require.ErrorIs(t, err, domrepo.ErrMalformedSeries)
}

func TestAlignRejectsUnknownKind(t *testing.T) {
	_, err := Align(fourCandles(), []models.SignalEvent{{Time: ts(30), Kind: "VENDE"}})
	require.ErrorIs(t, err, domrepo.ErrUnknownSignalKind)
}
