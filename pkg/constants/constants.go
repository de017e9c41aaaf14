// Package constants provides shared constants used throughout the clinicsync codebase.
// This includes timeouts, limits, file permissions, and the defaults of the
// reconnection policy that should be consistent across the application.
package constants

import "time"

// Connection constants define the defaults of the event source connection
const (
	// DefaultAddress is the event endpoint used when none is configured
	DefaultAddress = "ws://localhost:8080/ws"

	// HandshakeTimeout bounds the websocket opening handshake
	HandshakeTimeout = 15 * time.Second

	// WriteWait is the time allowed to write a frame to the peer
	WriteWait = 10 * time.Second

	// PongWait is the time allowed to read the next pong from the peer
	PongWait = 60 * time.Second

	// PingPeriod is how often pings are sent. Must be less than PongWait.
	PingPeriod = (PongWait * 9) / 10

	// MaxFrameSize is the largest inbound frame accepted, in bytes
	MaxFrameSize = 1 << 20

	// SendBufferSize is the number of outbound frames buffered per connection
	SendBufferSize = 256
)

// Reconnection constants
const (
	// DefaultMaxAttempts is the retry ceiling before the client gives up
	DefaultMaxAttempts = 10

	// DefaultBaseDelay is the delay unit multiplied by the attempt number
	DefaultBaseDelay = 1 * time.Second

	// DefaultMaxDelay caps exponential growth
	DefaultMaxDelay = 30 * time.Second
)

// Buffer constants
const (
	// LoopBufferSize is the capacity of the client's serialized work queue
	LoopBufferSize = 512

	// WatchBufferSize is the capacity of each status watcher channel
	WatchBufferSize = 16

	// ShutdownTimeout bounds graceful shutdown of the HTTP surface
	ShutdownTimeout = 5 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)
