// Package filter parses query parameters that narrow the dashboard views.
package filter

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/clinicsync/pkg/events"
	"github.com/agentstation/clinicsync/pkg/projections"
)

// QueueFilter narrows queue entries.
type QueueFilter struct {
	Status   []events.QueueStatus
	Priority []events.Priority
	Limit    int
}

// ParseQueueFilter reads status, priority and limit.
func ParseQueueFilter(r *http.Request) QueueFilter {
	q := r.URL.Query()
	return QueueFilter{
		Status:   splitAs[events.QueueStatus](q.Get("status")),
		Priority: splitAs[events.Priority](q.Get("priority")),
		Limit:    parseIntOrDefault(q.Get("limit"), 0),
	}
}

// IsZero reports whether the filter keeps every entry.
func (f QueueFilter) IsZero() bool {
	return len(f.Status) == 0 && len(f.Priority) == 0 && f.Limit <= 0
}

// Apply returns the matching entries, in queue order. The summary is left
// as computed over the whole queue.
func (f QueueFilter) Apply(state projections.QueueState) projections.QueueState {
	entries := make([]events.QueueEntry, 0, len(state.Entries))
	for _, e := range state.Entries {
		if matchAny(f.Status, e.Status) && matchAny(f.Priority, e.Priority) {
			entries = append(entries, e)
		}
	}
	state.Entries = limit(entries, f.Limit)
	return state
}

// BedFilter narrows the bed map.
type BedFilter struct {
	Ward   []string
	Status []events.BedStatus
}

// ParseBedFilter reads ward and status.
func ParseBedFilter(r *http.Request) BedFilter {
	q := r.URL.Query()
	return BedFilter{
		Ward:   splitAs[string](q.Get("ward")),
		Status: splitAs[events.BedStatus](q.Get("status")),
	}
}

// IsZero reports whether the filter keeps every bed.
func (f BedFilter) IsZero() bool {
	return len(f.Ward) == 0 && len(f.Status) == 0
}

// Apply returns the matching beds with counts recomputed over them.
func (f BedFilter) Apply(state projections.BedsState) projections.BedsState {
	beds := make([]projections.Bed, 0, len(state.Beds))
	counts := make(map[events.BedStatus]int)
	for _, b := range state.Beds {
		if matchAny(f.Ward, b.WardID) && matchAny(f.Status, b.Status) {
			beds = append(beds, b)
			counts[b.Status]++
		}
	}
	state.Beds = beds
	state.Counts = counts
	return state
}

// AlertFilter narrows the alert feed.
type AlertFilter struct {
	Severity       []events.Severity
	ActionRequired *bool
	Limit          int
}

// ParseAlertFilter reads severity, action_required and limit.
func ParseAlertFilter(r *http.Request) AlertFilter {
	q := r.URL.Query()
	f := AlertFilter{
		Severity: splitAs[events.Severity](q.Get("severity")),
		Limit:    parseIntOrDefault(q.Get("limit"), 0),
	}
	if v := q.Get("action_required"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.ActionRequired = &b
		}
	}
	return f
}

// IsZero reports whether the filter keeps every alert.
func (f AlertFilter) IsZero() bool {
	return len(f.Severity) == 0 && f.ActionRequired == nil && f.Limit <= 0
}

// Apply returns the matching alerts, newest first.
func (f AlertFilter) Apply(state projections.AlertsState) projections.AlertsState {
	alerts := make([]events.Alert, 0, len(state.Alerts))
	for _, a := range state.Alerts {
		if !matchAny(f.Severity, a.Severity) {
			continue
		}
		if f.ActionRequired != nil && a.ActionRequired != *f.ActionRequired {
			continue
		}
		alerts = append(alerts, a)
	}
	state.Alerts = limit(alerts, f.Limit)
	return state
}

// AppointmentFilter narrows the appointment board.
type AppointmentFilter struct {
	Status     []events.AppointmentStatus
	Provider   string
	Department string
	From       *time.Time
	To         *time.Time
}

// ParseAppointmentFilter reads status, provider, department, from and to.
// Unparseable times are ignored.
func ParseAppointmentFilter(r *http.Request) AppointmentFilter {
	q := r.URL.Query()
	return AppointmentFilter{
		Status:     splitAs[events.AppointmentStatus](q.Get("status")),
		Provider:   q.Get("provider"),
		Department: q.Get("department"),
		From:       parseTime(q.Get("from")),
		To:         parseTime(q.Get("to")),
	}
}

// IsZero reports whether the filter keeps every appointment.
func (f AppointmentFilter) IsZero() bool {
	return len(f.Status) == 0 && f.Provider == "" && f.Department == "" && f.From == nil && f.To == nil
}

// Apply returns the appointments scheduled in [From, To) that match.
func (f AppointmentFilter) Apply(state projections.AppointmentsState) projections.AppointmentsState {
	out := make([]events.Appointment, 0, len(state.Appointments))
	for _, a := range state.Appointments {
		switch {
		case !matchAny(f.Status, a.Status):
		case f.Provider != "" && a.ProviderID != f.Provider:
		case f.Department != "" && a.DepartmentID != f.Department:
		case f.From != nil && a.ScheduledAt.Before(*f.From):
		case f.To != nil && !a.ScheduledAt.Before(*f.To):
		default:
			out = append(out, a)
		}
	}
	state.Appointments = out
	return state
}

// splitAs splits a comma separated list, dropping blanks.
func splitAs[T ~string](s string) []T {
	if s == "" {
		return nil
	}
	var out []T
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, T(part))
		}
	}
	return out
}

// matchAny reports whether v is in set. An empty set matches everything.
func matchAny[T comparable](set []T, v T) bool {
	return len(set) == 0 || slices.Contains(set, v)
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// parseIntOrDefault parses an integer or returns default.
func parseIntOrDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	return def
}
