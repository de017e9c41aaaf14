package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/agentstation/clinicsync/internal/server/events/adapters"
	ws "github.com/agentstation/clinicsync/internal/server/websocket"
)

// HandleWebSocket handles GET {prefix}/updates/ws. A new peer receives the
// current status and every view before live changes.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	var initial []ws.Message
	if h.greeting != nil {
		for _, e := range h.greeting() {
			initial = append(initial, adapters.WSMessage(e))
		}
	}

	peer := ws.NewPeer(uuid.NewString(), h.wsHub, conn, initial...)
	h.logger.Debug().Str("peer", peer.ID()).Str("remote", r.RemoteAddr).Msg("WebSocket peer joined")
	peer.Serve()
}

// HandleSSE handles GET {prefix}/updates/stream.
func (h *Handlers) HandleSSE(w http.ResponseWriter, r *http.Request) {
	h.sseBroadcaster.ServeHTTP(w, r)
}
