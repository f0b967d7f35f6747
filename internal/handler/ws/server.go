package ws

import (
	"net/http"
	"time"

	domrepo "CandleFlow/internal/domain/repository"
	applogger "CandleFlow/pkg/logger"

	"github.com/gorilla/websocket"
)

// Registry is the subscription surface the websocket endpoint needs.
type Registry interface {
	Subscribe(key domrepo.ChannelKey, sub domrepo.Subscriber) error
	Unsubscribe(key domrepo.ChannelKey, sub domrepo.Subscriber)
}

// Server upgrades requests and attaches each connection to one channel.
type Server struct {
	registry     Registry
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	l            *applogger.Logger
}

func NewServer(registry Registry, writeTimeout time.Duration, l *applogger.Logger) *Server {
	if l == nil {
		l = applogger.Nop()
	}
	return &Server{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		writeTimeout: writeTimeout,
		l:            l,
	}
}

// Serve blocks until the client disconnects. The channel key is validated after the upgrade
// so the client receives a close code rather than an HTTP error.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, symbol, timeframe string) error {
	raw, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return err
	}
	conn := NewConn(raw, s.writeTimeout)

	key, err := domrepo.NewChannelKey(symbol, timeframe)
	if err != nil {
		s.l.Debug("ws rejected",
			applogger.String("symbol", symbol),
			applogger.String("timeframe", timeframe),
			applogger.Error(err),
		)
		return conn.CloseWith(CloseInvalidChannel, "invalid timeframe")
	}

	if err := s.registry.Subscribe(key, conn); err != nil {
		s.l.Warn("ws subscribe failed", applogger.String("channel", key.String()), applogger.Error(err))
		return conn.CloseWith(websocket.CloseGoingAway, "server shutting down")
	}
	s.l.Info("ws connected", applogger.String("channel", key.String()), applogger.String("id", conn.ID()))

	err = conn.ReadLoop()
	s.registry.Unsubscribe(key, conn)
	_ = conn.Close()

	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		s.l.Debug("ws read ended", applogger.String("channel", key.String()), applogger.Error(err))
	}
	s.l.Info("ws disconnected", applogger.String("channel", key.String()), applogger.String("id", conn.ID()))
	return nil
}
