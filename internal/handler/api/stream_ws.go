package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"MoexPull/internal/domain/models"
	"MoexPull/internal/usecase"
	"MoexPull/pkg/http/middleware"
	xlogger "MoexPull/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Stream message types.
const (
	StreamHolding  = "holding"
	StreamSnapshot = "snapshot"
	StreamError    = "error"
)

// StreamMessage is one websocket frame of the dashboard stream.
type StreamMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// DashboardStream pushes each holding to the client as soon as it is
// enriched, then the full dashboard, then closes.
type DashboardStream struct {
	logger       *xlogger.Logger
	svc          Portfolio
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	pingInterval time.Duration
}

func NewDashboardStream(logger *xlogger.Logger, svc Portfolio, writeTimeout, pingInterval time.Duration) *DashboardStream {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &DashboardStream{
		logger: logger,
		svc:    svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
	}
}

// Serve upgrades the request. Query parameter signals=true adds signals to
// the final snapshot.
func (s *DashboardStream) Serve(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Warn("dashboard stream upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	userID := middleware.UserID(c)
	withSignals := c.QueryParam("signals") == "true"

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	w := &wsWriter{conn: conn, timeout: s.writeTimeout}

	// Reads only detect the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.ping(); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	d, err := s.svc.Dashboard(ctx, userID, withSignals, usecase.WithProgress(func(h models.EnrichedHolding) {
		if werr := w.send(StreamMessage{Type: StreamHolding, Data: h}); werr != nil {
			cancel()
		}
	}))
	if err != nil {
		s.logger.Error("dashboard stream failed", xlogger.String("user_id", userID), xlogger.Error(err))
		_ = w.send(StreamMessage{Type: StreamError, Data: err.Error()})
		return nil
	}
	if err := w.send(StreamMessage{Type: StreamSnapshot, Data: d}); err != nil {
		s.logger.Debug("dashboard stream closed early", xlogger.String("user_id", userID), xlogger.Error(err))
		return nil
	}

	_ = w.close()
	return nil
}

// wsWriter serializes writes; gorilla connections allow one writer at a time.
type wsWriter struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	timeout time.Duration
}

func (w *wsWriter) send(m StreamMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(w.timeout))
	return w.conn.WriteJSON(m)
}

func (w *wsWriter) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.timeout))
}

func (w *wsWriter) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	return w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(w.timeout))
}
