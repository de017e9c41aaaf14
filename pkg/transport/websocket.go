package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/clinicsync/pkg/constants"
	"github.com/agentstation/clinicsync/pkg/errors"
	"github.com/agentstation/clinicsync/pkg/logging"
)

type connState int

const (
	stateIdle connState = iota
	stateDialing
	stateOpen
)

// WebSocket is an EventSource backed by a gorilla/websocket client connection.
type WebSocket struct {
	dialer *websocket.Dialer
	header http.Header
	logger *zerolog.Logger

	mu     sync.Mutex
	state  connState
	gen    uint64 // bumped on every Open and Close; stale pumps compare against it
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	cancel context.CancelFunc
}

// WebSocketOption configures a WebSocket transport.
type WebSocketOption func(*WebSocket)

// WithHeader sets extra handshake headers.
func WithHeader(header http.Header) WebSocketOption {
	return func(w *WebSocket) {
		for k, v := range header {
			w.header[k] = append([]string(nil), v...)
		}
	}
}

// WithBearerToken authenticates the handshake with a bearer token.
func WithBearerToken(token string) WebSocketOption {
	return func(w *WebSocket) {
		if token != "" {
			w.header.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithDialer replaces the default dialer.
func WithDialer(d *websocket.Dialer) WebSocketOption {
	return func(w *WebSocket) {
		w.dialer = d
	}
}

// WithTransportLogger sets the transport logger.
func WithTransportLogger(logger *zerolog.Logger) WebSocketOption {
	return func(w *WebSocket) {
		w.logger = logger
	}
}

// NewWebSocket creates a websocket transport. No connection is made until Open.
func NewWebSocket(opts ...WebSocketOption) *WebSocket {
	w := &WebSocket{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: constants.HandshakeTimeout,
		},
		header: make(http.Header),
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Open implements EventSource.
func (w *WebSocket) Open(address string, h Handler) {
	w.mu.Lock()
	if w.state != stateIdle {
		w.mu.Unlock()
		w.logger.Debug().Str("address", address).Msg("Open ignored, connection already active")
		return
	}
	w.state = stateDialing
	w.gen++
	gen := w.gen
	ctx, cancel := context.WithTimeout(context.Background(), constants.HandshakeTimeout)
	w.cancel = cancel
	w.mu.Unlock()

	go w.dial(ctx, cancel, gen, address, h)
}

func (w *WebSocket) dial(ctx context.Context, cancel context.CancelFunc, gen uint64, address string, h Handler) {
	defer cancel()

	conn, resp, err := w.dialer.DialContext(ctx, address, w.header)

	w.mu.Lock()
	if w.gen != gen {
		// Close was called while dialing.
		w.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}

	if err != nil {
		w.state = stateIdle
		w.mu.Unlock()
		event := w.logger.Warn().Err(err).Str("address", address)
		if resp != nil {
			event = event.Int("status", resp.StatusCode)
		}
		event.Msg("WebSocket dial failed")
		h.OnClose(errors.WrapTransport("dial", address, err))
		return
	}

	conn.SetReadLimit(constants.MaxFrameSize)
	send := make(chan []byte, constants.SendBufferSize)
	done := make(chan struct{})
	w.conn = conn
	w.send = send
	w.done = done
	w.state = stateOpen
	w.mu.Unlock()

	w.logger.Info().Str("address", address).Msg("WebSocket connected")

	h.OnOpen()
	go w.writePump(conn, send, done)
	w.readPump(gen, conn, address, h)
}

// readPump delivers inbound frames until the connection fails.
func (w *WebSocket) readPump(gen uint64, conn *websocket.Conn, address string, h Handler) {
	_ = conn.SetReadDeadline(time.Now().Add(constants.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(constants.PongWait))
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if !w.release(gen) {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				w.logger.Error().Err(err).Str("address", address).Msg("WebSocket read error")
			} else {
				w.logger.Info().Err(err).Str("address", address).Msg("WebSocket closed by server")
			}
			h.OnClose(errors.WrapTransport("read", address, err))
			return
		}

		if !w.current(gen) {
			return
		}
		h.OnMessage(frame)
	}
}

// writePump drains the send buffer and keeps the connection alive with pings.
func (w *WebSocket) writePump(conn *websocket.Conn, send <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(constants.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case frame := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(constants.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				w.logger.Warn().Err(err).Msg("WebSocket write failed")
				// Closing the socket fails the read pump, which reports the drop.
				_ = conn.Close()
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(constants.WriteWait)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

// current reports whether gen is still the live connection.
func (w *WebSocket) current(gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gen == gen && w.state == stateOpen
}

// release tears down the live connection if it still belongs to gen.
func (w *WebSocket) release(gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen || w.state != stateOpen {
		return false
	}
	close(w.done)
	_ = w.conn.Close()
	w.conn = nil
	w.state = stateIdle
	return true
}

// Send implements EventSource.
func (w *WebSocket) Send(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != stateOpen {
		return errors.ErrNotConnected
	}

	select {
	case w.send <- frame:
		return nil
	default:
		return errors.ErrBufferFull
	}
}

// Close implements EventSource.
func (w *WebSocket) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case stateDialing:
		w.cancel()
	case stateOpen:
		close(w.done)
		_ = w.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(constants.WriteWait),
		)
		_ = w.conn.Close()
		w.conn = nil
	}

	w.state = stateIdle
	w.gen++
}

// IsOpen implements EventSource.
func (w *WebSocket) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == stateOpen
}
