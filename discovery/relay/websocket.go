// Copyright (C) 2025 aicollab-project
//
// SPDX-License-Identifier: LGPL-3.0-or-later

package relay

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aicollab-project/platform/internal/logger"
)

// WSHub holds the live WebSocket connections of relay-registered peers,
// giving Service.Forward a push path to a recipient instead of the
// enqueue-and-wait-for-next-registration fallback.
type WSHub struct {
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*websocket.Conn

	writeTimeout time.Duration
	log          logger.Logger
}

// NewWSHub creates an empty WSHub. Connections accepted through Handler
// are indexed by the entity_id query parameter the peer connects with.
func NewWSHub(log logger.Logger) *WSHub {
	return &WSHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns:        make(map[string]*websocket.Conn),
		writeTimeout: 10 * time.Second,
		log:          log,
	}
}

// Handler upgrades ?entity_id=... connections and keeps them registered
// in the hub until the peer disconnects, discarding any frames it sends
// (this hub is push-only: inbound relay traffic arrives over the
// ordinary HTTP peer transport, not this socket).
func (h *WSHub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entityID := r.URL.Query().Get("entity_id")
		if entityID == "" {
			http.Error(w, "missing entity_id", http.StatusBadRequest)
			return
		}
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn("relay ws: upgrade failed", logger.Error(err))
			return
		}

		h.mu.Lock()
		if old, ok := h.conns[entityID]; ok {
			old.Close()
		}
		h.conns[entityID] = conn
		h.mu.Unlock()

		h.log.Info("relay ws: peer connected", logger.String("entity_id", entityID))

		defer func() {
			h.mu.Lock()
			if h.conns[entityID] == conn {
				delete(h.conns, entityID)
			}
			h.mu.Unlock()
			conn.Close()
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

// Send pushes msg to recipient's live socket if one is open, returning
// false (not an error) when no socket is registered so the caller can
// fall back to the durable queue.
func (h *WSHub) Send(recipient string, msg Message) bool {
	h.mu.RLock()
	conn, ok := h.conns[recipient]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Warn("relay ws: encoding message failed", logger.Error(err))
		return false
	}

	conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		h.log.Warn("relay ws: push failed, falling back to queue",
			logger.String("recipient", recipient), logger.Error(err))
		return false
	}
	return true
}

// Connected reports whether recipient currently has a live socket.
func (h *WSHub) Connected(recipient string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[recipient]
	return ok
}
