package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CandleFlow/internal/domain/models"
	applogger "CandleFlow/pkg/logger"
	"CandleFlow/pkg/metrics"
)

func TestMarkerFanoutPrefixMatch(t *testing.T) {
	r := newTestRegistry(&trackingFactory{})
	defer r.Close()
	m1, m5, win := newFakeSub("m1"), newFakeSub("m5"), newFakeSub("win")
	require.NoError(t, r.Subscribe(mustKey(t, "WDOV25-M1"), m1))
	require.NoError(t, r.Subscribe(mustKey(t, "WDOV25-M5"), m5))
	require.NoError(t, r.Subscribe(mustKey(t, "WINZ25-M1"), win))

	fan := NewMarkerFanout(r, NewBroadcaster(applogger.Nop(), metrics.Noop{}), applogger.Nop())
	req := models.MarkersRequest{
		Symbol:  "WDOV25",
		Markers: []models.Marker{{Data: "2025-09-01", Hora: "10:15:00", Preco: 5421.5, Tipo: models.MarkerPOCCompra}},
	}

	n, err := fan.Publish(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, win.received())

	for _, s := range []*fakeSub{m1, m5} {
		msgs := s.received()
		require.Len(t, msgs, 1)
		var got models.MarkersMessage
		require.NoError(t, json.Unmarshal(msgs[0], &got))
		assert.Equal(t, models.MessageTypeMarkers, got.Type)
		assert.Equal(t, req.Markers, got.Data)
	}
}

func TestMarkerFanoutNoChannels(t *testing.T) {
	r := newTestRegistry(&trackingFactory{})
	defer r.Close()
	fan := NewMarkerFanout(r, NewBroadcaster(applogger.Nop(), metrics.Noop{}), applogger.Nop())

	n, err := fan.Publish(context.Background(), models.MarkersRequest{Symbol: "PETR4"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestKafkaMarkersHandler(t *testing.T) {
	r := newTestRegistry(&trackingFactory{})
	defer r.Close()
	sub := newFakeSub("a")
	require.NoError(t, r.Subscribe(mustKey(t, "WDO-M15"), sub))
	fan := NewMarkerFanout(r, NewBroadcaster(applogger.Nop(), metrics.Noop{}), applogger.Nop())
	h := NewKafkaMarkersHandler("markers", fan, metrics.Noop{})

	assert.Equal(t, "markers", h.Topic())
	err := h.Handle(context.Background(), []byte(`{"symbol":"WDO","markers":[{"Data":"2025-09-01","Hora":"09:30:00","Preco":1,"Tipo":"AJUSTE"}]}`))
	require.NoError(t, err)
	assert.Len(t, sub.received(), 1)

	err = h.Handle(context.Background(), []byte(`{"symbol":"WDO","markers":[{"Data":"2025-09-01","Hora":"09:30:00","Tipo":"OTHER"}]}`))
	assert.Error(t, err)
	assert.Error(t, h.Handle(context.Background(), []byte(`not json`)))
	assert.Len(t, sub.received(), 1)
}
