// Package transport owns the physical duplex channel to the clinic event server.
//
// Two EventSource implementations exist: WebSocket, a gorilla/websocket client
// for real deployments, and Scripted, which plays a recorded script of frames
// for demos and tests. Callers select one by configuration.
package transport

// Handler receives connection notifications. Implementations must not block
// for long; the websocket read pump waits for OnMessage to return.
type Handler interface {
	// OnOpen is called once the connection is established.
	OnOpen()

	// OnMessage is called for every inbound frame, in arrival order.
	OnMessage(frame []byte)

	// OnClose is called with a non-nil error when the connection drops or a
	// dial fails. It is not called for connections ended through Close.
	OnClose(err error)
}

// EventSource is the capability the client needs from a transport.
type EventSource interface {
	// Open starts connecting to address. It returns immediately; the outcome is
	// reported to h. Calling Open while a connection is open or being
	// established is a no-op.
	Open(address string, h Handler)

	// Send writes one frame. It returns errors.ErrNotConnected when no
	// connection is open; the frame is dropped, not queued.
	Send(frame []byte) error

	// Close ends the current connection, if any.
	Close()

	// IsOpen reports whether a connection is currently open.
	IsOpen() bool
}

// Kind selects an EventSource implementation.
type Kind string

const (
	// KindWebSocket selects the gorilla/websocket transport.
	KindWebSocket Kind = "websocket"
	// KindScripted selects the scripted transport.
	KindScripted Kind = "scripted"
)
