package service

import (
	"fmt"
	"sort"
	"time"

	"CandleFlow/internal/domain/models"
	domrepo "CandleFlow/internal/domain/repository"
)

// DroppedSegment is an on-signal that had no price data at or after its start.
type DroppedSegment struct {
	Start time.Time
	End   time.Time
}

// Alignment is the result of aligning a flow-signal series with a candle series.
type Alignment struct {
	Points   []models.OutputPoint
	Segments []models.Segment
	Dropped  []DroppedSegment
}

// Align produces exactly one output point per candle. Candles must be strictly ascending
// by time; events may arrive in any order. Align does no I/O and keeps no state.
func Align(candles []models.Candle, events []models.SignalEvent) (Alignment, error) {
	if err := checkSeries(candles); err != nil {
		return Alignment{}, err
	}
	for _, ev := range events {
		if !ev.Kind.Valid() {
			return Alignment{}, fmt.Errorf("%w: %q at %s", domrepo.ErrUnknownSignalKind, ev.Kind, ev.Time.Format(time.RFC3339))
		}
	}
	if len(candles) == 0 {
		return Alignment{Points: []models.OutputPoint{}}, nil
	}

	segs, dropped := BuildSegments(candles, events)
	return Alignment{
		Points:   sweep(candles, segs),
		Segments: segs,
		Dropped:  dropped,
	}, nil
}

// BuildSegments turns on/off events into sorted, non-overlapping segments anchored on candles.
// A segment still open after the last event is closed at the last candle, inclusive.
func BuildSegments(candles []models.Candle, events []models.SignalEvent) ([]models.Segment, []DroppedSegment) {
	sorted := make([]models.SignalEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	var (
		segs    []models.Segment
		dropped []DroppedSegment
		open    bool
		start   time.Time
	)
	closeAt := func(end time.Time, inclusive bool) {
		open = false
		price, ok := anchorPrice(candles, start)
		if !ok {
			dropped = append(dropped, DroppedSegment{Start: start, End: end})
			return
		}
		segs = append(segs, models.Segment{Start: start, End: end, EndInclusive: inclusive, AnchorPrice: price})
	}

	for _, ev := range sorted {
		switch {
		case ev.Kind == models.FlowOn && !open:
			open = true
			start = ev.Time
		case ev.Kind == models.FlowOff && open:
			closeAt(ev.Time, false)
		}
		// duplicate on and spurious off are ignored
	}
	if open && len(candles) > 0 {
		closeAt(candles[len(candles)-1].Time, true)
	}
	return segs, dropped
}

// anchorPrice returns the close of the first candle at or after t.
func anchorPrice(candles []models.Candle, t time.Time) (float64, bool) {
	i := sort.Search(len(candles), func(i int) bool { return !candles[i].Time.Before(t) })
	if i == len(candles) {
		return 0, false
	}
	return candles[i].Close, true
}

func sweep(candles []models.Candle, segs []models.Segment) []models.OutputPoint {
	out := make([]models.OutputPoint, 0, len(candles))
	i := 0
	for _, c := range candles {
		for i < len(segs) && segs[i].Ended(c.Time) {
			i++
		}
		p := models.OutputPoint{Time: c.Unix(), Value: c.Close}
		if i < len(segs) && segs[i].Contains(c.Time) {
			p.Active = true
			p.Value = segs[i].AnchorPrice
		}
		out = append(out, p)
	}
	return out
}

func checkSeries(candles []models.Candle) error {
	for i := 1; i < len(candles); i++ {
		if !candles[i-1].Time.Before(candles[i].Time) {
			return fmt.Errorf("%w: candle %d at %s is not after %s", domrepo.ErrMalformedSeries,
				i, candles[i].Time.UTC().Format(time.RFC3339), candles[i-1].Time.UTC().Format(time.RFC3339))
		}
	}
	return nil
}
