package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"vigil/sim-api/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // demo service, any origin may subscribe
	},
}

const wsPingInterval = 30 * time.Second

// Live streams engine updates (events, alerts, live-indicator toggles) over a
// WebSocket. The first message is a full snapshot so a client can render
// immediately; subsequent messages are incremental updates.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("live: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.LiveClients.Inc()
	defer metrics.LiveClients.Dec()
	slog.Info("live: client connected", "remote", conn.RemoteAddr().String())

	updates := h.engine.Subscribe()
	defer h.engine.Unsubscribe(updates)

	// Drain reads so close frames are processed; the feed is write-only.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(map[string]any{
		"type":     "snapshot",
		"snapshot": h.engine.Snapshot(),
	}); err != nil {
		return
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case u, open := <-updates:
			if !open {
				return // engine torn down
			}
			if err := conn.WriteJSON(u); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-clientGone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
