package api

import (
	"net/http"

	models "CandleFlow/internal/domain/models"
	"CandleFlow/internal/handler/ws"
	"CandleFlow/internal/service/ratelimit"
	"CandleFlow/internal/usecase"
	xhttp "CandleFlow/pkg/http"
	xlogger "CandleFlow/pkg/logger"

	"github.com/labstack/echo/v4"
)

// StreamEchoHandler serves the live candle websocket and the pushes that ride on it.
type StreamEchoHandler struct {
	logger   *xlogger.Logger
	ws       *ws.Server
	limiter  *ratelimit.Limiter
	fanout   *usecase.MarkerFanout
	registry *usecase.ChannelRegistry
}

func NewStreamEchoHandler(logger *xlogger.Logger, wsServer *ws.Server, limiter *ratelimit.Limiter, fanout *usecase.MarkerFanout, registry *usecase.ChannelRegistry) *StreamEchoHandler {
	return &StreamEchoHandler{logger: logger, ws: wsServer, limiter: limiter, fanout: fanout, registry: registry}
}

func (h *StreamEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/candles", h.Candles)
	g := e.Group("/api")
	g.POST("/markers", h.Markers)
	g.GET("/channels", h.Channels)
}

func (h *StreamEchoHandler) Candles(c echo.Context) error {
	if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many subscribe attempts"))
	}
	_ = h.ws.Serve(c.Response(), c.Request(), c.QueryParam("symbol"), c.QueryParam("timeframe"))
	return nil
}

type markersResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Channels int    `json:"channels"`
}

func (h *StreamEchoHandler) Markers(c echo.Context) error {
	req := &models.MarkersRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	n, err := h.fanout.Publish(c.Request().Context(), *req)
	if err != nil {
		h.logger.Error("markers fanout error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to publish markers").WithError(err))
	}

	msg := "markers sent"
	if n == 0 {
		msg = "no active channels for symbol"
	}
	return c.JSON(http.StatusOK, markersResponse{Status: "ok", Message: msg, Channels: n})
}

func (h *StreamEchoHandler) Channels(c echo.Context) error {
	return xhttp.RawResponse(c, h.registry.Stats())
}
