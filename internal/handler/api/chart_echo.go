package api

import (
	"errors"
	"time"

	models "CandleFlow/internal/domain/models"
	domrepo "CandleFlow/internal/domain/repository"
	"CandleFlow/internal/usecase"
	xhttp "CandleFlow/pkg/http"
	xlogger "CandleFlow/pkg/logger"
	"CandleFlow/pkg/util"

	"github.com/labstack/echo/v4"
)

// ChartEchoHandler serves historical candles and the flow overlay.
type ChartEchoHandler struct {
	logger  *xlogger.Logger
	history *usecase.HistoryUseCase
	overlay *usecase.OverlayUseCase
	loc     *time.Location
}

func NewChartEchoHandler(logger *xlogger.Logger, history *usecase.HistoryUseCase, overlay *usecase.OverlayUseCase, loc *time.Location) *ChartEchoHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ChartEchoHandler{logger: logger, history: history, overlay: overlay, loc: loc}
}

func (h *ChartEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/history")
	g.GET("/:symbol", h.History)
	g.GET("/fluxo_compra/:symbol/:date/:timeframe", h.Overlay)
}

func (h *ChartEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	start, ok := util.ParseTimeIn(req.Start, h.loc)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid start %q", req.Start))
	}
	end, ok := util.ParseTimeIn(req.End, h.loc)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid end %q", req.End))
	}

	candles, err := h.history.GetHistory(c.Request().Context(), usecase.GetHistoryParams{
		Symbol:    req.Symbol,
		Timeframe: domrepo.Timeframe(req.Timeframe),
		Start:     start,
		End:       end,
	})
	if err != nil {
		return h.fail(c, "history usecase error", err)
	}
	return xhttp.RawResponse(c, candles)
}

func (h *ChartEchoHandler) Overlay(c echo.Context) error {
	req := &models.OverlayRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	date, err := util.ParseDate(req.Date, h.loc)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid date %q, expected YYYY-MM-DD", req.Date))
	}
	tf, err := domrepo.ParseTimeframe(req.Timeframe)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	points, err := h.overlay.GetOverlay(c.Request().Context(), req.Symbol, date, tf)
	if err != nil {
		return h.fail(c, "overlay usecase error", err)
	}
	return xhttp.RawResponse(c, points)
}

func (h *ChartEchoHandler) fail(c echo.Context, msg string, err error) error {
	switch {
	case errors.Is(err, usecase.ErrInvalidRange), errors.Is(err, domrepo.ErrInvalidChannelKey):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	case errors.Is(err, domrepo.ErrUpstreamUnavailable):
		h.logger.Warn(msg, xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("market data feed unavailable").WithError(err))
	}
	h.logger.Error(msg, xlogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to load data").WithError(err))
}
