package events

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/agentstation/clinicsync/pkg/errors"
)

// Envelope is the decoded unit of communication with the server.
// Envelopes are immutable once decoded.
type Envelope struct {
	Kind          Kind      `json:"kind"`
	Payload       any       `json:"payload"`
	OccurredAt    time.Time `json:"occurredAt"`
	Source        string    `json:"source,omitempty"`
	CorrelationID string    `json:"correlationId,omitempty"`
}

// wireEnvelope is the JSON shape on the socket.
type wireEnvelope struct {
	Kind          string          `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    string          `json:"occurredAt,omitempty"`
	Source        string          `json:"source,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
}

// Decoder validates raw frames and tags them with their kind.
type Decoder struct {
	now func() time.Time
}

// NewDecoder creates a decoder that stamps envelopes lacking occurredAt with
// the receive time.
func NewDecoder() *Decoder {
	return &Decoder{now: time.Now}
}

// NewDecoderWithClock creates a decoder with a custom receive clock.
func NewDecoderWithClock(now func() time.Time) *Decoder {
	return &Decoder{now: now}
}

var defaultDecoder = NewDecoder()

// Decode decodes a frame with the default decoder.
func Decode(frame []byte) (Envelope, error) {
	return defaultDecoder.Decode(frame)
}

// Decode parses one inbound frame. It never panics; failures are returned as
// *errors.DecodeError with reason MalformedFrame or UnknownKind.
func (d *Decoder) Decode(frame []byte) (Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(frame, &wire); err != nil {
		return Envelope{}, errors.NewMalformedFrame("", "unmarshal envelope", err)
	}

	if wire.Kind == "" {
		return Envelope{}, errors.NewMalformedFrame("", "missing kind", nil)
	}

	kind := Kind(wire.Kind)
	decode, ok := registry[kind]
	if !ok {
		return Envelope{}, errors.NewUnknownKind(wire.Kind)
	}

	payload, err := decode(wire.Payload)
	if err != nil {
		return Envelope{}, errors.NewMalformedFrame(wire.Kind, "invalid payload: "+err.Error(), err)
	}

	occurredAt := d.now()
	if wire.OccurredAt != "" {
		occurredAt, err = time.Parse(time.RFC3339, wire.OccurredAt)
		if err != nil {
			return Envelope{}, errors.NewMalformedFrame(wire.Kind, "invalid occurredAt", err)
		}
	}

	return Envelope{
		Kind:          kind,
		Payload:       payload,
		OccurredAt:    occurredAt,
		Source:        wire.Source,
		CorrelationID: wire.CorrelationID,
	}, nil
}

// Encode produces the wire frame for an outbound envelope.
func Encode(env Envelope) ([]byte, error) {
	if env.Kind == "" {
		return nil, errors.NewValidationError("kind", env.Kind, "is required")
	}

	payload, err := json.Marshal(env.Payload)
	if err != nil {
		return nil, errors.WrapParse("json", "", err)
	}

	wire := wireEnvelope{
		Kind:          string(env.Kind),
		Payload:       payload,
		Source:        env.Source,
		CorrelationID: env.CorrelationID,
	}
	if !env.OccurredAt.IsZero() {
		wire.OccurredAt = env.OccurredAt.UTC().Format(time.RFC3339Nano)
	}

	return json.Marshal(wire)
}

// Control builds a subscribe or unsubscribe envelope for the given channels.
// Channels are sorted so repeated requests for the same set are identical.
func Control(kind Kind, channels []string) Envelope {
	sorted := append([]string(nil), channels...)
	sort.Strings(sorted)
	return Envelope{
		Kind:    kind,
		Payload: Channels{Channels: sorted},
	}
}

// Action builds an outbound request envelope with a fresh correlation id.
// The server answers with the matching confirmation event.
func Action(kind Kind, payload any) Envelope {
	return Envelope{
		Kind:          kind,
		Payload:       payload,
		OccurredAt:    time.Now(),
		CorrelationID: uuid.NewString(),
	}
}
