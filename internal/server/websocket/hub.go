// Package websocket pushes dashboard changes to browser WebSocket clients.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Readers only send control frames.
	maxMessageSize = 512

	peerBufferSize = 64
)

// Message is one pushed change.
type Message struct {
	Seq       uint64    `json:"seq,omitempty"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Hub maintains the connected peers and broadcasts messages to them.
type Hub struct {
	peers      map[*Peer]struct{}
	broadcast  chan Message
	register   chan *Peer
	unregister chan *Peer
	done       chan struct{}
	mu         sync.RWMutex
	logger     *zerolog.Logger
}

// NewHub creates a hub. Nothing is delivered until Run.
func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		peers:      make(map[*Peer]struct{}),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Peer, 8),
		unregister: make(chan *Peer, 8),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run delivers broadcasts until ctx is cancelled, then disconnects every peer.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for peer := range h.peers {
				close(peer.send)
			}
			h.peers = make(map[*Peer]struct{})
			h.mu.Unlock()
			h.logger.Info().Msg("WebSocket hub shut down")
			return

		case peer := <-h.register:
			h.mu.Lock()
			h.peers[peer] = struct{}{}
			total := len(h.peers)
			h.mu.Unlock()
			h.logger.Info().
				Str("peer_id", peer.id).
				Int("total_clients", total).
				Msg("WebSocket client connected")

		case peer := <-h.unregister:
			h.drop(peer)

		case message := <-h.broadcast:
			h.mu.Lock()
			for peer := range h.peers {
				select {
				case peer.send <- message:
				default:
					// A peer this far behind is disconnected.
					delete(h.peers, peer)
					close(peer.send)
					h.logger.Warn().Str("peer_id", peer.id).Msg("WebSocket client too slow, disconnected")
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) drop(peer *Peer) {
	h.mu.Lock()
	if _, ok := h.peers[peer]; ok {
		delete(h.peers, peer)
		close(peer.send)
	}
	total := len(h.peers)
	h.mu.Unlock()
	h.logger.Info().
		Str("peer_id", peer.id).
		Int("total_clients", total).
		Msg("WebSocket client disconnected")
}

// Register adds a peer.
func (h *Hub) Register(peer *Peer) {
	select {
	case h.register <- peer:
	case <-h.done:
		close(peer.send)
	}
}

// Broadcast queues a message for every peer.
func (h *Hub) Broadcast(message Message) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn().Str("type", message.Type).Msg("Broadcast channel full, message dropped")
	}
}

// ClientCount returns the number of connected peers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Peer is one connected WebSocket reader.
type Peer struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewPeer creates a peer for conn. initial messages are queued ahead of
// any broadcast.
func NewPeer(id string, hub *Hub, conn *websocket.Conn, initial ...Message) *Peer {
	p := &Peer{
		id:   id,
		hub:  hub,
		conn: conn,
		send: make(chan Message, peerBufferSize+len(initial)),
	}
	for _, m := range initial {
		p.send <- m
	}
	return p
}

// ID returns the peer id.
func (p *Peer) ID() string { return p.id }

// Serve registers the peer and runs its pumps. It returns immediately.
func (p *Peer) Serve() {
	p.hub.Register(p)
	go p.writePump()
	go p.readPump()
}

// readPump discards inbound frames and detects the peer going away.
func (p *Peer) readPump() {
	defer func() {
		select {
		case p.hub.unregister <- p:
		case <-p.hub.done:
		}
		_ = p.conn.Close()
	}()

	p.conn.SetReadLimit(maxMessageSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := p.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.hub.logger.Warn().Err(err).Str("peer_id", p.id).Msg("WebSocket read error")
			}
			return
		}
	}
}

// writePump writes queued messages and pings until the send channel closes.
func (p *Peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = p.conn.Close()
	}()

	for {
		select {
		case message, ok := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = p.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				p.hub.logger.Error().Err(err).Str("type", message.Type).Msg("Failed to marshal WebSocket message")
				continue
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
