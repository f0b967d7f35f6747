package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"CandleFlow/internal/domain/models"
	applogger "CandleFlow/pkg/logger"
)

// MarkerFanout pushes annotation markers to every live channel of a symbol.
type MarkerFanout struct {
	registry *ChannelRegistry
	bc       *Broadcaster
	l        *applogger.Logger
}

func NewMarkerFanout(registry *ChannelRegistry, bc *Broadcaster, l *applogger.Logger) *MarkerFanout {
	return &MarkerFanout{registry: registry, bc: bc, l: l}
}

// Publish sends the markers to all channels whose key starts with symbol and
// returns how many channels were targeted.
func (m *MarkerFanout) Publish(ctx context.Context, req models.MarkersRequest) (int, error) {
	keys := m.registry.KeysWithPrefix(req.Symbol)
	if len(keys) == 0 {
		m.l.Info("no active channels for markers", applogger.String("symbol", req.Symbol))
		return 0, nil
	}

	msg, err := json.Marshal(models.NewMarkersMessage(req.Markers))
	if err != nil {
		return 0, fmt.Errorf("encode markers: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			m.bc.Broadcast(gctx, key.String(), m.registry.SetFor(key), msg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	m.l.Info("markers published",
		applogger.String("symbol", req.Symbol),
		applogger.Int("markers", len(req.Markers)),
		applogger.Int("channels", len(keys)),
	)
	return len(keys), nil
}
