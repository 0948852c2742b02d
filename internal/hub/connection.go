package hub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/jamesaja2/tradesim-live/internal/metrics"
)

// Connection is one live viewer session. Frames are enqueued onto a
// bounded channel and drained by a single writer goroutine, so a stalled
// peer can never block the hub's fan-out over other connections.
type Connection struct {
	id        uuid.UUID
	transport Transport
	clock     clockwork.Clock

	sendCh   chan []byte
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// onClosed converges every teardown path (peer close, send error,
	// request abort, failed heartbeat) onto the same unregister routine.
	onClosed func(*Connection)

	mu            sync.Mutex
	lastSeen      time.Time
	subscriptions map[string]struct{}
}

func newConnection(transport Transport, clock clockwork.Clock, bufferSize int, onClosed func(*Connection)) *Connection {
	c := &Connection{
		id:            uuid.New(),
		transport:     transport,
		clock:         clock,
		sendCh:        make(chan []byte, bufferSize),
		done:          make(chan struct{}),
		onClosed:      onClosed,
		lastSeen:      clock.Now(),
		subscriptions: make(map[string]struct{}),
	}
	c.wg.Add(1)
	go c.run()
	return c
}

// ID is the opaque handle under which the connection is registered.
func (c *Connection) ID() uuid.UUID { return c.id }

// Kind reports the connection's transport kind.
func (c *Connection) Kind() Kind { return c.transport.Kind() }

func (c *Connection) run() {
	defer c.wg.Done()
	defer func() {
		c.transport.Close("connection closed")
		if c.onClosed != nil {
			c.onClosed(c)
		}
	}()

	for {
		select {
		case frame, ok := <-c.sendCh:
			if !ok {
				return
			}
			if err := c.transport.Send(frame); err != nil {
				slog.Debug("Send failed, reaping connection",
					"connection_id", c.id.String(),
					"transport", string(c.Kind()),
					"error", err,
				)
				metrics.HubSendFailuresTotal.WithLabelValues(string(c.Kind())).Inc()
				return
			}
			c.Touch()
		case <-c.done:
			return
		}
	}
}

// Enqueue offers a frame to the connection's send queue without blocking.
// It reports false when the queue is full (backpressure past the limit),
// in which case the caller evicts the connection.
func (c *Connection) Enqueue(frame []byte) bool {
	select {
	case c.sendCh <- frame:
		return true
	default:
		return false
	}
}

// Stop tears the connection down. Idempotent; every lifecycle end
// (explicit close, error, abort) funnels through here or the writer's
// own exit, both of which invoke onClosed exactly once.
func (c *Connection) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}

// Touch records successful peer activity (a completed send or a pong).
func (c *Connection) Touch() {
	c.mu.Lock()
	c.lastSeen = c.clock.Now()
	c.mu.Unlock()
}

// LastSeen returns the liveness timestamp.
func (c *Connection) LastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

// Subscribe records interest in a named channel. Subscriptions are
// acknowledged but not filtered on: every connection receives every event.
func (c *Connection) Subscribe(channel string) {
	c.mu.Lock()
	c.subscriptions[channel] = struct{}{}
	c.mu.Unlock()
}

// Subscribed reports whether the named channel has been subscribed.
func (c *Connection) Subscribed(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subscriptions[channel]
	return ok
}
