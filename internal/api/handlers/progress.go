package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/futsync/pkg/logger"
)

// ProgressEvent is one progress update pushed to observers. Percent -1
// signals abnormal termination of the run.
type ProgressEvent struct {
	Percent   int       `json:"percent"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ProgressHub fans sync progress out to connected websocket observers.
// Broadcast satisfies syncer.ProgressFunc.
// ⭐ SSOT: 진행률 브로드캐스트는 이 허브에서만
type ProgressHub struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	conns    map[*websocket.Conn]bool
	logger   *logger.Logger
}

// NewProgressHub creates a new progress hub
func NewProgressHub(log *logger.Logger) *ProgressHub {
	return &ProgressHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Observers are trusted internal tools.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns:  make(map[*websocket.Conn]bool),
		logger: log,
	}
}

// Serve upgrades the connection and registers it for progress updates.
// GET /ws/progress
func (h *ProgressHub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()

	h.logger.WithField("remote", conn.RemoteAddr().String()).Debug("Progress observer connected")

	// Drain incoming frames to detect close; observers never send data.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast pushes one progress update to every connected observer.
// Dead connections are dropped; broadcasting never fails the sync run.
func (h *ProgressHub) Broadcast(percent int, message string) {
	event := ProgressEvent{
		Percent:   percent,
		Message:   message,
		Timestamp: time.Now(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(event); err != nil {
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// Count returns the number of connected observers.
func (h *ProgressHub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *ProgressHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if h.conns[conn] {
		delete(h.conns, conn)
		conn.Close()
	}
	h.mu.Unlock()
}
