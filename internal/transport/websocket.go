// Package transport provides the two wire implementations of the hub's
// Transport interface: the bidirectional websocket channel and the
// one-way SSE push stream.
package transport

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/jamesaja2/tradesim-live/internal/hub"
)

const writeDeadline = 5 * time.Second

// WebSocket adapts a gorilla websocket connection to the hub's Transport.
// Writes are serialized with a mutex because Close may race the writer
// goroutine's Send.
type WebSocket struct {
	conn      *websocket.Conn
	clock     clockwork.Clock
	mu        sync.Mutex
	closeOnce sync.Once
}

func NewWebSocket(conn *websocket.Conn, clock clockwork.Clock) *WebSocket {
	return &WebSocket{conn: conn, clock: clock}
}

func (t *WebSocket) Kind() hub.Kind { return hub.KindWebSocket }

func (t *WebSocket) Send(frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.SetWriteDeadline(t.clock.Now().Add(writeDeadline))
	return t.conn.WriteMessage(websocket.TextMessage, frame)
}

func (t *WebSocket) Close(reason string) {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		_ = t.conn.SetWriteDeadline(t.clock.Now().Add(writeDeadline))
		_ = t.conn.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = t.conn.Close()
	})
}

var _ hub.Transport = (*WebSocket)(nil)
