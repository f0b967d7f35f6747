package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"CandleFlow/internal/domain/models"
	domrepo "CandleFlow/internal/domain/repository"
	"CandleFlow/internal/handler/ws"
	"CandleFlow/internal/service/ratelimit"
	"CandleFlow/internal/usecase"
	xhttp "CandleFlow/pkg/http"
	xlogger "CandleFlow/pkg/logger"
	"CandleFlow/pkg/metrics"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFeed struct {
	candles []models.Candle
	err     error
}

func (f *stubFeed) FetchLatest(ctx context.Context, symbol string, tf domrepo.Timeframe) (models.Candle, error) {
	return models.Candle{}, domrepo.ErrNoCandle
}

func (f *stubFeed) FetchRange(ctx context.Context, symbol string, tf domrepo.Timeframe, start, end time.Time) ([]models.Candle, error) {
	return f.candles, f.err
}

type stubSignals struct {
	events []models.SignalEvent
	err    error
}

func (s *stubSignals) FetchEvents(ctx context.Context, symbol string, date time.Time) ([]models.SignalEvent, error) {
	return s.events, s.err
}

type stubHealth struct{ err error }

func (h stubHealth) Health(ctx context.Context) error { return h.err }

type idleFactory struct{}

type idleTask struct{}

func (idleTask) Run(ctx context.Context) { <-ctx.Done() }

func (idleFactory) NewRefresher(domrepo.ChannelKey, usecase.SubscriberSet) usecase.ChannelTask {
	return idleTask{}
}

type captureSub struct {
	id   string
	mu   sync.Mutex
	msgs [][]byte
}

func (s *captureSub) ID() string { return s.id }

func (s *captureSub) Send(ctx context.Context, msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *captureSub) received() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.msgs...)
}

type fixture struct {
	e        *echo.Echo
	feed     *stubFeed
	signals  *stubSignals
	health   *stubHealth
	registry *usecase.ChannelRegistry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	l := xlogger.Nop()
	m := metrics.Noop{}
	f := &fixture{feed: &stubFeed{}, signals: &stubSignals{}, health: &stubHealth{}}

	f.registry = usecase.NewChannelRegistry(idleFactory{}, l, m)
	t.Cleanup(f.registry.Close)
	bc := usecase.NewBroadcaster(l, m)
	window := usecase.SessionWindow{Loc: loc, Open: 9 * time.Hour, Close: 18*time.Hour + 30*time.Minute}

	router := NewRouter(
		NewChartEchoHandler(l, usecase.NewHistoryUseCase(f.feed, m), usecase.NewOverlayUseCase(f.feed, f.signals, window, l, m), loc),
		NewStreamEchoHandler(l, ws.NewServer(f.registry, time.Second, l), ratelimit.New(1, 1), usecase.NewMarkerFanout(f.registry, bc, l), f.registry),
		NewHealthEchoHandler(f.health),
	)
	f.e = xhttp.NewServer(router, xhttp.WithLogger(l)).Echo()
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func bar(unix int64, close float64) models.Candle {
	return models.Candle{Time: time.Unix(unix, 0).UTC(), Open: close, High: close + 1, Low: close - 1, Close: close}
}

func TestHistoryReturnsCandles(t *testing.T) {
	f := newFixture(t)
	f.feed.candles = []models.Candle{bar(1736942400, 5000), bar(1736942700, 5010)}

	rec := f.do(http.MethodGet, "/api/history/WDOV25?timeframe=M5&start=2025-01-15T09:00:00&end=2025-01-15T10:00:00", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.CandleData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, int64(1736942400), got[0].Time)
	assert.Equal(t, 5010.0, got[1].Close)
}

func TestHistoryEmptyIsEmptyArray(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/history/WDOV25?timeframe=M1&start=2025-01-15T09:00:00Z&end=2025-01-15T10:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHistoryRejections(t *testing.T) {
	f := newFixture(t)
	cases := map[string]string{
		"start after end":  "/api/history/WDOV25?timeframe=M5&start=2025-01-15T10:00:00&end=2025-01-15T09:00:00",
		"start equals end": "/api/history/WDOV25?timeframe=M5&start=2025-01-15T10:00:00&end=2025-01-15T10:00:00",
		"bad timeframe":    "/api/history/WDOV25?timeframe=M7&start=2025-01-15T09:00:00&end=2025-01-15T10:00:00",
		"bad start":        "/api/history/WDOV25?timeframe=M5&start=noon&end=2025-01-15T10:00:00",
		"missing end":      "/api/history/WDOV25?timeframe=M5&start=2025-01-15T09:00:00",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			rec := f.do(http.MethodGet, target, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestHistoryUpstreamUnavailable(t *testing.T) {
	f := newFixture(t)
	f.feed.err = domrepo.ErrUpstreamUnavailable
	rec := f.do(http.MethodGet, "/api/history/WDOV25?timeframe=M5&start=2025-01-15T09:00:00&end=2025-01-15T10:00:00", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOverlayAlignsSignals(t *testing.T) {
	f := newFixture(t)
	base := int64(1736942400)
	f.feed.candles = []models.Candle{bar(base, 10), bar(base+60, 11), bar(base+120, 12), bar(base+180, 13)}
	f.signals.events = []models.SignalEvent{
		{Time: time.Unix(base+150, 0).UTC(), Kind: models.FlowOff},
		{Time: time.Unix(base+30, 0).UTC(), Kind: models.FlowOn},
	}

	rec := f.do(http.MethodGet, "/api/history/fluxo_compra/WDOV25/2025-01-15/M1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.OutputPoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []models.OutputPoint{
		{Time: base, Value: 10, Active: false},
		{Time: base + 60, Value: 11, Active: true},
		{Time: base + 120, Value: 11, Active: true},
		{Time: base + 180, Value: 13, Active: false},
	}, got)
}

func TestOverlayEmptyCandles(t *testing.T) {
	f := newFixture(t)
	f.signals.err = errors.New("must not be called")
	rec := f.do(http.MethodGet, "/api/history/fluxo_compra/WDOV25/2025-01-15/M5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestOverlayRejections(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/history/fluxo_compra/WDOV25/15-01-2025/M5", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/history/fluxo_compra/WDOV25/2025-01-15/D1", "").Code)
}

func TestOverlaySignalSourceFailure(t *testing.T) {
	f := newFixture(t)
	f.feed.candles = []models.Candle{bar(1736942400, 10)}
	f.signals.err = errors.New("disk on fire")

	rec := f.do(http.MethodGet, "/api/history/fluxo_compra/WDOV25/2025-01-15/M5", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"active"`)
}

func TestMarkersFanOutToSymbolChannels(t *testing.T) {
	f := newFixture(t)
	m5 := &captureSub{id: "a"}
	other := &captureSub{id: "b"}
	require.NoError(t, f.registry.Subscribe(domrepo.ChannelKey{Symbol: "WDOV25", Timeframe: domrepo.TFM5}, m5))
	require.NoError(t, f.registry.Subscribe(domrepo.ChannelKey{Symbol: "WINV25", Timeframe: domrepo.TFM5}, other))

	body := `{"symbol":"WDOV25","markers":[{"Data":"2025-01-15","Hora":"10:30:00","Preco":5012.5,"Tipo":"POC_COMPRA"}]}`
	rec := f.do(http.MethodPost, "/api/markers", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"status":"ok","message":"markers sent","channels":1}`, rec.Body.String())

	msgs := m5.received()
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"type":"markers","data":[{"Data":"2025-01-15","Hora":"10:30:00","Preco":5012.5,"Tipo":"POC_COMPRA"}]}`, string(msgs[0]))
	assert.Empty(t, other.received())
}

func TestMarkersNoChannelsIsOK(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/markers", `{"symbol":"ABC","markers":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"channels":0`)
}

func TestMarkersRejectsUnknownType(t *testing.T) {
	f := newFixture(t)
	body := `{"symbol":"WDOV25","markers":[{"Data":"2025-01-15","Hora":"10:30","Preco":1,"Tipo":"TOPO"}]}`
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/markers", body).Code)
}

func TestHealthAndFeedStatus(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	assert.JSONEq(t, `{"connected":true}`, f.do(http.MethodGet, "/feed-status", "").Body.String())
	f.health.err = domrepo.ErrUpstreamUnavailable
	assert.JSONEq(t, `{"connected":false}`, f.do(http.MethodGet, "/feed-status", "").Body.String())
}

func TestChannelsStats(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.registry.Subscribe(domrepo.ChannelKey{Symbol: "WDOV25", Timeframe: domrepo.TFM1}, &captureSub{id: "x"}))

	rec := f.do(http.MethodGet, "/api/channels", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"channel":"WDOV25-M1","subscribers":1,"refreshing":true}]`, rec.Body.String())
}

func TestCandlesSubscribeIsRateLimited(t *testing.T) {
	f := newFixture(t)
	// First attempt consumes the only token; it is not a websocket handshake so the upgrade fails.
	first := f.do(http.MethodGet, "/ws/candles?symbol=WDOV25&timeframe=M5", "")
	assert.NotEqual(t, http.StatusTooManyRequests, first.Code)

	second := f.do(http.MethodGet, "/ws/candles?symbol=WDOV25&timeframe=M5", "")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
