package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/feedlab/feedlab/internal/core/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Operator tooling connects from arbitrary origins; the admin password
	// middleware already gates this route.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleRosterWatch streams the roster over a websocket: the current roster
// on connect, then a fresh copy after every durable change, including writes
// from other processes sharing the store.
func (h *Handler) handleRosterWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		AddError(r.Context(), err)
		return
	}
	defer conn.Close()

	updates := make(chan []domain.ParticipantRow, 8)
	unsubscribe := h.roster.OnChange(func(rows []domain.ParticipantRow) {
		select {
		case updates <- rows:
		default:
			// Slow consumer; it will catch up on the next change.
		}
	})
	defer unsubscribe()

	if err := conn.WriteJSON(h.roster.Load(r.Context())); err != nil {
		return
	}

	// Reader goroutine: drains control frames and signals close. The
	// connection outlives the request timeout, so its lifetime is governed by
	// the peer, not the request context.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case rows := <-updates:
			if err := conn.WriteJSON(rows); err != nil {
				h.logger.Debug("roster watch write failed", slog.String("error", err.Error()))
				return
			}
		case <-done:
			return
		}
	}
}
