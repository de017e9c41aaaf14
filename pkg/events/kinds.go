// Package events defines the envelope exchanged with the clinic event server,
// the closed enumeration of event kinds, and the payload shape of each kind.
package events

import (
	"encoding/json"
	"sort"

	"github.com/agentstation/clinicsync/pkg/errors"
)

// Kind discriminates an envelope and determines the shape of its payload.
type Kind string

// Inbound event kinds pushed by the server.
const (
	// Queue events.
	QueueUpdated             Kind = "queue.updated"
	QueuePatientAdded        Kind = "queue.patientAdded"
	QueuePatientCalled       Kind = "queue.patientCalled"
	QueueConsultationStarted Kind = "queue.consultationStarted"
	QueuePatientCompleted    Kind = "queue.patientCompleted"
	QueuePatientNoShow       Kind = "queue.patientNoShow"

	// Bed events.
	BedStatusChanged Kind = "bed.statusChanged"

	// Alert events.
	AlertCreated   Kind = "alert.created"
	AlertDismissed Kind = "alert.dismissed"

	// Appointment events.
	AppointmentUpserted  Kind = "appointment.upserted"
	AppointmentCancelled Kind = "appointment.cancelled"

	// Server-computed dashboard statistics.
	StatsUpdated Kind = "stats.updated"
)

// Outbound control kinds. These are never accepted inbound.
const (
	Subscribe   Kind = "subscribe"
	Unsubscribe Kind = "unsubscribe"
)

// payloadDecoder turns a raw payload into its typed value.
type payloadDecoder func(raw json.RawMessage) (any, error)

var registry = map[Kind]payloadDecoder{
	QueueUpdated:             decodeAs[QueueSnapshot],
	QueuePatientAdded:        decodeAs[QueueEntry],
	QueuePatientCalled:       decodeAs[PatientCalled],
	QueueConsultationStarted: decodeAs[PatientRef],
	QueuePatientCompleted:    decodeAs[PatientRef],
	QueuePatientNoShow:       decodeAs[PatientRef],
	BedStatusChanged:         decodeAs[BedStatusChange],
	AlertCreated:             decodeAs[Alert],
	AlertDismissed:           decodeAs[AlertRef],
	AppointmentUpserted:      decodeAs[Appointment],
	AppointmentCancelled:     decodeAs[AppointmentRef],
	StatsUpdated:             decodeAs[DashboardStats],
}

var channels = map[Kind]string{
	QueueUpdated:             "queue",
	QueuePatientAdded:        "queue",
	QueuePatientCalled:       "queue",
	QueueConsultationStarted: "queue",
	QueuePatientCompleted:    "queue",
	QueuePatientNoShow:       "queue",
	BedStatusChanged:         "beds",
	AlertCreated:             "alerts",
	AlertDismissed:           "alerts",
	AppointmentUpserted:      "appointments",
	AppointmentCancelled:     "appointments",
	StatsUpdated:             "stats",
}

// Known reports whether k is part of the inbound enumeration.
func (k Kind) Known() bool {
	_, ok := registry[k]
	return ok
}

// Channel returns the server channel that carries k, or "" for control kinds.
func (k Kind) Channel() string {
	return channels[k]
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	return string(k)
}

// Kinds returns every inbound kind, sorted.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// normalizer is implemented by payloads that fill defaults and reject bad shapes.
type normalizer interface {
	normalize() error
}

func decodeAs[T any](raw json.RawMessage) (any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("payload is required")
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}

	if n, ok := any(&v).(normalizer); ok {
		if err := n.normalize(); err != nil {
			return nil, err
		}
	}

	return v, nil
}

// PayloadAs returns the envelope payload as T.
func PayloadAs[T any](env Envelope) (T, bool) {
	v, ok := env.Payload.(T)
	return v, ok
}
