package handlers

import (
	"net/http"
	"time"

	"github.com/agentstation/clinicsync/internal/server/response"
)

// HandleHealth handles GET /health. The process is alive whatever the
// state of the upstream connection.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]any{
		"status":  "healthy",
		"service": "clinicsync",
	})
}

// HandleReady handles GET {prefix}/ready. It is ready only while the event
// server connection is open.
func (h *Handlers) HandleReady(w http.ResponseWriter, _ *http.Request) {
	st := h.dashboard.Status()
	if !st.Connected() {
		msg := "Event server connection is " + string(st.Phase)
		if e := st.ErrorMessage(); e != "" {
			msg += ": " + e
		}
		response.ServiceUnavailable(w, msg)
		return
	}

	response.OK(w, map[string]any{
		"status":            "ready",
		"websocket_clients": h.wsHub.ClientCount(),
		"sse_clients":       h.sseBroadcaster.ClientCount(),
	})
}

// HandleStatus handles GET {prefix}/status.
func (h *Handlers) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]any{
		"connection": h.dashboard.Status(),
		"topics":     h.dashboard.Topics(),
		"uptime":     time.Since(h.startTime).Round(time.Second).String(),
		"clients": map[string]int{
			"websocket": h.wsHub.ClientCount(),
			"sse":       h.sseBroadcaster.ClientCount(),
		},
		"cache": h.cache.GetStats(),
	})
}
