package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/franzhentze92/druma-chat/internal/metrics"
	"github.com/franzhentze92/druma-chat/internal/models"
)

var (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The web client is served from a different origin; membership is
	// checked per room, not per origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamRoom upgrades to a websocket and forwards the room's insert
// events to the client until either side goes away.
func (h *Handler) StreamRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	metrics.StreamConnections.Inc()
	defer metrics.StreamConnections.Dec()

	send := make(chan models.Message, 32)
	sub, err := h.feed.Subscribe(r.Context(), room.ID.String(), func(msg models.Message) {
		select {
		case send <- msg:
		default:
			// Slow consumer; it will re-sync from history on reconnect.
		}
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("room_id", room.ID.String()).
			Msg("stream subscription failed")
		return
	}
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(maxBodyBytes)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
