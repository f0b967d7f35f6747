package api

import (
	xhttp "CandleFlow/pkg/http"

	"github.com/labstack/echo/v4"
)

// Router registers a group of handlers as one.
type Router []xhttp.Handler

func NewRouter(chart *ChartEchoHandler, stream *StreamEchoHandler, health *HealthEchoHandler) Router {
	return Router{chart, stream, health}
}

func (r Router) RegisterRoutes(e *echo.Echo) {
	for _, h := range r {
		h.RegisterRoutes(e)
	}
}
