package httpserver

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/faredesk/internal/domain"
	"github.com/pscheid92/faredesk/internal/metrics"
	"github.com/pscheid92/faredesk/internal/notify"
)

const (
	writeDeadline    = 5 * time.Second
	pingInterval     = 30 * time.Second
	pongDeadline     = 60 * time.Second
	streamBufferSize = 16
	reloadCloseText  = "console reloading"
)

type snapshotMessage struct {
	Type          string                  `json:"type"`
	Notifications []domain.Notification   `json:"notifications"`
	Tasks         []domain.BackgroundTask `json:"tasks"`
}

type tasksMessage struct {
	Type  string                  `json:"type"`
	Tasks []domain.BackgroundTask `json:"tasks"`
}

// handleNotificationStream upgrades to a WebSocket and forwards every sink
// event and task list change, starting with a snapshot of both. When the
// runtime is replaced the sink closes and the client is told to reconnect.
func (s *Server) handleNotificationStream(c echo.Context) error {
	console, err := s.console()
	if err != nil {
		return err
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote the HTTP error
		slog.DebugContext(c.Request().Context(), "Stream upgrade failed", "error", err)
		return nil
	}

	events, cancel := console.Notifications.Subscribe(streamBufferSize)
	defer cancel()

	taskChanges := make(chan []domain.BackgroundTask, streamBufferSize)
	unsubscribe := console.Tasks.Subscribe(func(all []domain.BackgroundTask) {
		select {
		case taskChanges <- all:
		default:
		}
	})
	defer unsubscribe()

	metrics.NotificationStreamClients.Inc()
	defer metrics.NotificationStreamClients.Dec()

	w := &streamWriter{conn: conn, clock: s.clock}
	w.serve(snapshotMessage{
		Type:          "snapshot",
		Notifications: console.Notifications.List(),
		Tasks:         console.Tasks.GetAllTasks(),
	}, events, taskChanges)
	return nil
}

type streamWriter struct {
	conn  *websocket.Conn
	clock clockwork.Clock
}

func (w *streamWriter) serve(snapshot snapshotMessage, events <-chan notify.Event, taskChanges <-chan []domain.BackgroundTask) {
	defer w.conn.Close()

	gone := make(chan struct{})
	go w.drainReads(gone)

	if err := w.writeJSON(snapshot); err != nil {
		return
	}

	ticker := w.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				w.close(reloadCloseText)
				return
			}
			if err := w.writeJSON(ev); err != nil {
				return
			}
		case all := <-taskChanges:
			if err := w.writeJSON(tasksMessage{Type: "tasks", Tasks: all}); err != nil {
				return
			}
		case <-ticker.Chan():
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

// drainReads discards client frames so control frames are processed, and
// signals when the client goes away.
func (w *streamWriter) drainReads(gone chan<- struct{}) {
	defer close(gone)

	_ = w.conn.SetReadDeadline(time.Now().Add(pongDeadline))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(pongDeadline))
	})
	for {
		if _, _, err := w.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (w *streamWriter) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *streamWriter) close(reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseServiceRestart, reason)
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeDeadline))
}
