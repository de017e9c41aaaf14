// Package adapters connects the event broker to the push transports.
package adapters

import (
	"strconv"

	"github.com/agentstation/clinicsync/internal/server/events"
	"github.com/agentstation/clinicsync/internal/server/sse"
	ws "github.com/agentstation/clinicsync/internal/server/websocket"
)

// forwarder converts each broker event and hands it to a transport's
// non-blocking broadcast. Transports stop with their own context, so Close
// has nothing to release.
type forwarder[T any] struct {
	convert   func(events.Event) T
	broadcast func(T)
}

func (f forwarder[T]) Send(e events.Event) error {
	f.broadcast(f.convert(e))
	return nil
}

func (f forwarder[T]) Close() error { return nil }

// NewWebSocketSubscriber forwards broker events to every hub peer.
func NewWebSocketSubscriber(hub *ws.Hub) events.Subscriber {
	return &forwarder[ws.Message]{convert: WSMessage, broadcast: hub.Broadcast}
}

// NewSSESubscriber forwards broker events to every open SSE stream.
func NewSSESubscriber(b *sse.Broadcaster) events.Subscriber {
	return &forwarder[sse.Event]{convert: SSEEvent, broadcast: b.Broadcast}
}

// WSMessage is the hub form of a broker event.
func WSMessage(e events.Event) ws.Message {
	return ws.Message{Seq: e.Seq, Type: string(e.Type), Timestamp: e.Timestamp, Data: e.Data}
}

// SSEEvent is the stream form of a broker event; the sequence number becomes
// the event id so readers can resume with Last-Event-ID.
func SSEEvent(e events.Event) sse.Event {
	return sse.Event{Event: string(e.Type), ID: strconv.FormatUint(e.Seq, 10), Data: e.Data}
}
