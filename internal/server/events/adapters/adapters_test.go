package adapters

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/clinicsync/internal/server/events"
	"github.com/agentstation/clinicsync/internal/server/sse"
	ws "github.com/agentstation/clinicsync/internal/server/websocket"
)

func TestConversions(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	e := events.Event{Seq: 12, Type: events.AlertRaised, Timestamp: at, Data: "oxygen low"}

	assert.Equal(t, sse.Event{Event: "alert.raised", ID: "12", Data: "oxygen low"}, SSEEvent(e))
	assert.Equal(t, ws.Message{Seq: 12, Type: "alert.raised", Timestamp: at, Data: "oxygen low"}, WSMessage(e))
}

// TestBrokerToTransports publishes through the broker and reads the event
// back from both an SSE stream and a WebSocket peer.
func TestBrokerToTransports(t *testing.T) {
	logger := zerolog.Nop()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	broker := events.NewBroker(&logger)
	hub := ws.NewHub(&logger)
	broadcaster := sse.NewBroadcaster(&logger)
	go broker.Run(ctx)
	go hub.Run(ctx)
	go broadcaster.Run(ctx)

	broker.Subscribe(NewWebSocketSubscriber(hub))
	broker.Subscribe(NewSSESubscriber(broadcaster))
	require.Eventually(t, func() bool { return broker.SubscriberCount() == 2 }, time.Second, 5*time.Millisecond)

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.Handle("/stream", broadcaster)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.NewPeer("peer", hub, conn).Serve()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1 && broadcaster.ClientCount() == 1
	}, time.Second, 5*time.Millisecond)

	broker.Publish(events.QueueChanged, map[string]int{"totalWaiting": 2})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg ws.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "queue.changed", msg.Type)
	assert.Equal(t, uint64(1), msg.Seq)

	r := bufio.NewReader(resp.Body)
	var lines []string
	for len(lines) < 3 {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		lines = append(lines, strings.TrimRight(line, "\n"))
	}
	assert.Equal(t, []string{"event: queue.changed", "id: 1", `data: {"totalWaiting":2}`}, lines)
}
