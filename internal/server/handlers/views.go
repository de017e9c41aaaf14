package handlers

import (
	"net/http"

	"github.com/agentstation/clinicsync/internal/server/filter"
	"github.com/agentstation/clinicsync/internal/server/response"
	"github.com/agentstation/clinicsync/pkg/errors"
)

// HandleQueue handles GET {prefix}/queue.
// Query: status, priority (comma separated), limit.
func (h *Handlers) HandleQueue(w http.ResponseWriter, r *http.Request) {
	state := h.dashboard.Queue()
	if f := filter.ParseQueueFilter(r); !f.IsZero() {
		response.OK(w, f.Apply(state))
		return
	}
	h.writeView(w, "queue", state.Version, state)
}

// HandleBeds handles GET {prefix}/beds.
// Query: ward, status (comma separated).
func (h *Handlers) HandleBeds(w http.ResponseWriter, r *http.Request) {
	state := h.dashboard.Beds()
	if f := filter.ParseBedFilter(r); !f.IsZero() {
		response.OK(w, f.Apply(state))
		return
	}
	h.writeView(w, "beds", state.Version, state)
}

// HandleBed handles GET {prefix}/beds/{id}.
func (h *Handlers) HandleBed(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	for _, bed := range h.dashboard.Beds().Beds {
		if bed.BedID == id {
			response.OK(w, bed)
			return
		}
	}
	response.ErrorFromType(w, errors.NewNotFoundError("bed", id))
}

// HandleAlerts handles GET {prefix}/alerts.
// Query: severity, action_required, limit.
func (h *Handlers) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	state := h.dashboard.Alerts()
	if f := filter.ParseAlertFilter(r); !f.IsZero() {
		response.OK(w, f.Apply(state))
		return
	}
	h.writeView(w, "alerts", state.Version, state)
}

// HandleAppointments handles GET {prefix}/appointments.
// Query: status, provider, department, from, to (RFC 3339).
func (h *Handlers) HandleAppointments(w http.ResponseWriter, r *http.Request) {
	state := h.dashboard.Appointments()
	if f := filter.ParseAppointmentFilter(r); !f.IsZero() {
		response.OK(w, f.Apply(state))
		return
	}
	h.writeView(w, "appointments", state.Version, state)
}

// HandleStats handles GET {prefix}/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, _ *http.Request) {
	state := h.dashboard.Stats()
	h.writeView(w, "stats", state.Version, state)
}
