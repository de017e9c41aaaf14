// Package handlers provides the HTTP handlers of the dashboard API.
package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/clinicsync"
	"github.com/agentstation/clinicsync/internal/server/cache"
	"github.com/agentstation/clinicsync/internal/server/events"
	"github.com/agentstation/clinicsync/internal/server/response"
	"github.com/agentstation/clinicsync/internal/server/sse"
	ws "github.com/agentstation/clinicsync/internal/server/websocket"
	"github.com/agentstation/clinicsync/pkg/status"
)

// Dashboard is the read side of the sync client the handlers serve.
type Dashboard interface {
	clinicsync.Views
	Status() status.Status
	Topics() []string
}

// Handlers provides access to all HTTP handlers.
type Handlers struct {
	dashboard      Dashboard
	cache          *cache.Cache
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	upgrader       websocket.Upgrader
	greeting       func() []events.Event
	startTime      time.Time
	logger         *zerolog.Logger
}

// New creates a new Handlers instance. greeting supplies the events every
// new WebSocket peer receives before live updates.
func New(
	dashboard Dashboard,
	cache *cache.Cache,
	wsHub *ws.Hub,
	sseBroadcaster *sse.Broadcaster,
	upgrader websocket.Upgrader,
	greeting func() []events.Event,
	logger *zerolog.Logger,
) *Handlers {
	return &Handlers{
		dashboard:      dashboard,
		cache:          cache,
		wsHub:          wsHub,
		sseBroadcaster: sseBroadcaster,
		upgrader:       upgrader,
		greeting:       greeting,
		startTime:      time.Now(),
		logger:         logger,
	}
}

// writeView writes an unfiltered view, reusing the encoded body while the
// projection version is unchanged.
func (h *Handlers) writeView(w http.ResponseWriter, name string, version uint64, view any) {
	body, err := h.cache.Snapshot(name, version, func() ([]byte, error) {
		return response.Encode(view)
	})
	if err != nil {
		h.logger.Error().Err(err).Str("view", name).Msg("Failed to encode view")
		response.InternalError(w, err)
		return
	}
	response.Raw(w, body)
}
