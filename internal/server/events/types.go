// Package events fans dashboard changes out to the push transports of the
// HTTP surface.
//
// The sync client's hooks and status watcher publish into a Broker, which
// hands every event to each registered Subscriber (WebSocket hub, SSE
// broadcaster). Transports never read the client directly.
package events

import "time"

// EventType names a change pushed to dashboard readers.
type EventType string

// Event types pushed to readers.
const (
	// Connection status of the upstream event server.
	StatusChanged EventType = "status.changed"

	// Projection changes. Data is the new snapshot.
	QueueChanged        EventType = "queue.changed"
	BedsChanged         EventType = "beds.changed"
	AlertsChanged       EventType = "alerts.changed"
	AppointmentsChanged EventType = "appointments.changed"
	StatsChanged        EventType = "stats.changed"

	// A new alert entered the feed. Data is the alert.
	AlertRaised EventType = "alert.raised"
)

var channelEvents = map[string]EventType{
	"queue":        QueueChanged,
	"beds":         BedsChanged,
	"alerts":       AlertsChanged,
	"appointments": AppointmentsChanged,
	"stats":        StatsChanged,
}

// ForChannel returns the change event for a server channel.
func ForChannel(channel string) (EventType, bool) {
	t, ok := channelEvents[channel]
	return t, ok
}

// Event is one published change.
type Event struct {
	Seq       uint64    `json:"seq"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}
