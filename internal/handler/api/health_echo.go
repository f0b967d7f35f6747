package api

import (
	"context"
	"net/http"
	"time"

	domrepo "CandleFlow/internal/domain/repository"

	"github.com/labstack/echo/v4"
)

// HealthEchoHandler reports liveness and upstream reachability.
type HealthEchoHandler struct {
	feed    domrepo.Health
	timeout time.Duration
}

func NewHealthEchoHandler(feed domrepo.Health) *HealthEchoHandler {
	return &HealthEchoHandler{feed: feed, timeout: 2 * time.Second}
}

func (h *HealthEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/feed-status", h.FeedStatus)
}

func (h *HealthEchoHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthEchoHandler) FeedStatus(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()
	connected := h.feed != nil && h.feed.Health(ctx) == nil
	return c.JSON(http.StatusOK, map[string]bool{"connected": connected})
}
