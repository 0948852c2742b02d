// Package hub implements the live broadcast layer: a connection registry,
// a fan-out hub feeding both overlay transports, and a keepalive scheduler
// that reaps dead connections.
package hub

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jamesaja2/tradesim-live/internal/event"
	"github.com/jamesaja2/tradesim-live/internal/metrics"
)

const (
	commandBuffer  = 256
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

// Publisher accepts domain events from trusted producers. The hub is the
// canonical implementation; the relay wraps it for multi-instance setups.
type Publisher interface {
	Publish(ev event.Event)
}

type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type attachCmd struct {
	baseHubCmd
	transport Transport
	replyCh   chan attachResult
}

type attachResult struct {
	conn *Connection
	err  error
}

type detachCmd struct {
	baseHubCmd
	conn *Connection
}

type publishCmd struct {
	baseHubCmd
	ev event.Event
}

type countCmd struct {
	baseHubCmd
	replyCh chan int
}

type stopCmd struct {
	baseHubCmd
}

// Options configure a Hub.
type Options struct {
	Clock             clockwork.Clock
	HeartbeatInterval time.Duration
	MaxClients        int
	SendBufferSize    int
	SnapshotOnConnect bool
}

// Hub fans domain events out to every registered connection, serializing
// each event once per transport kind. It runs as a single actor goroutine,
// which gives any one connection delivery in publish order; individual
// sends are handed to per-connection writer goroutines so one stalled peer
// never blocks the rest.
type Hub struct {
	registry  *Registry
	keepalive *keepalive
	clock     clockwork.Clock
	opts      Options

	cmdCh   chan hubCmd
	stopped chan struct{}

	// Retained for snapshot-on-connect: the last bell and leaderboard
	// events, already stamped with their original dispatch time.
	lastBell        *event.Event
	lastLeaderboard *event.Event
}

// NewHub creates and starts a hub. The caller owns its lifecycle: create
// at server start, Stop at shutdown.
func NewHub(opts Options) *Hub {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	if opts.MaxClients <= 0 {
		opts.MaxClients = 200
	}
	if opts.SendBufferSize <= 0 {
		opts.SendBufferSize = 16
	}

	h := &Hub{
		registry: NewRegistry(),
		clock:    opts.Clock,
		opts:     opts,
		cmdCh:    make(chan hubCmd, commandBuffer),
		stopped:  make(chan struct{}),
	}
	h.keepalive = newKeepalive(h.registry, opts.Clock, opts.HeartbeatInterval)
	go h.run()
	return h
}

// Attach registers a new viewer connection on the given transport and
// returns it. It fails when the hub is at capacity or shut down.
func (h *Hub) Attach(t Transport) (*Connection, error) {
	replyCh := make(chan attachResult, 1)
	select {
	case h.cmdCh <- attachCmd{transport: t, replyCh: replyCh}:
	case <-h.stopped:
		return nil, fmt.Errorf("hub is stopped")
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case res := <-replyCh:
		return res.conn, res.err
	case <-timer.Chan():
		return nil, fmt.Errorf("attach command timed out after %v", commandTimeout)
	}
}

// Publish broadcasts a domain event to every registered connection. It
// never raises to the publisher; per-recipient failures are isolated,
// logged, and end in that one connection being unregistered.
func (h *Hub) Publish(ev event.Event) {
	select {
	case h.cmdCh <- publishCmd{ev: ev}:
	case <-h.stopped:
	}
}

// ClientCount returns the current number of registered connections.
// Returns -1 if the command times out.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	select {
	case h.cmdCh <- countCmd{replyCh: replyCh}:
	case <-h.stopped:
		return 0
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// ClientCountByKind returns the number of connections on one transport.
func (h *Hub) ClientCountByKind(kind Kind) int {
	return h.registry.LenByKind(kind)
}

// Stop shuts the hub down, closing all client connections. Blocks until
// the hub goroutine has exited or the stop timeout is reached.
func (h *Hub) Stop() {
	select {
	case h.cmdCh <- stopCmd{}:
	case <-h.stopped:
		return
	}

	timer := h.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-h.stopped:
		slog.Info("Hub stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Hub stop timeout exceeded", "timeout", stopTimeout)
	}
}

func (h *Hub) run() {
	defer close(h.stopped)
	defer h.keepalive.stop()

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case attachCmd:
			c.replyCh <- h.handleAttach(c.transport)
		case detachCmd:
			h.handleDetach(c.conn)
		case publishCmd:
			h.handlePublish(c.ev)
		case countCmd:
			c.replyCh <- h.registry.Len()
		case stopCmd:
			h.handleStop()
			return
		default:
			slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleAttach(t Transport) attachResult {
	if h.registry.Len() >= h.opts.MaxClients {
		slog.Warn("Rejecting client: max clients reached", "max_clients", h.opts.MaxClients)
		t.Close("server at capacity")
		return attachResult{err: fmt.Errorf("max clients (%d) reached", h.opts.MaxClients)}
	}

	conn := newConnection(t, h.clock, h.opts.SendBufferSize, h.scheduleDetach)
	h.registry.Register(conn)
	h.updateGauges()

	if h.opts.SnapshotOnConnect {
		h.deliverSnapshot(conn)
	}

	slog.Debug("Client registered",
		"connection_id", conn.ID().String(),
		"transport", string(conn.Kind()),
		"total_clients", h.registry.Len(),
	)
	return attachResult{conn: conn}
}

// deliverSnapshot enqueues the retained bell and leaderboard events so a
// freshly connected viewer learns the current day state and standings
// before live fan-out begins. Ordering is guaranteed because the actor
// processes any later publish strictly after this attach.
func (h *Hub) deliverSnapshot(conn *Connection) {
	for _, retained := range []*event.Event{h.lastBell, h.lastLeaderboard} {
		if retained == nil {
			continue
		}
		frame, err := h.encodeFor(conn.Kind(), *retained)
		if err != nil {
			slog.Error("Failed to encode retained event", "error", err)
			continue
		}
		conn.Enqueue(frame)
	}
}

func (h *Hub) handleDetach(conn *Connection) {
	h.registry.Unregister(conn.ID())
	h.updateGauges()
	slog.Debug("Client unregistered",
		"connection_id", conn.ID().String(),
		"transport", string(conn.Kind()),
		"total_clients", h.registry.Len(),
	)
}

func (h *Hub) handlePublish(ev event.Event) {
	stamped := event.Stamp(ev, h.clock.Now())
	metrics.HubEventsPublishedTotal.WithLabelValues(string(ev.Type)).Inc()

	wsFrame, err := stamped.EncodeJSON()
	if err != nil {
		slog.Error("Failed to encode event", "type", string(ev.Type), "error", err)
		return
	}
	sseFrame, err := stamped.EncodeSSE()
	if err != nil {
		slog.Error("Failed to encode event", "type", string(ev.Type), "error", err)
		return
	}

	h.registry.ForEach(func(conn *Connection) {
		frame := wsFrame
		if conn.Kind() == KindEventStream {
			frame = sseFrame
		}
		if !conn.Enqueue(frame) {
			slog.Warn("Disconnecting slow client",
				"connection_id", conn.ID().String(),
				"transport", string(conn.Kind()),
			)
			metrics.HubSlowClientsEvicted.Inc()
			h.registry.Unregister(conn.ID())
			conn.Stop()
		}
	})
	h.updateGauges()

	switch stamped.Type {
	case event.TypeBell:
		h.lastBell = &stamped
	case event.TypeLeaderboard:
		h.lastLeaderboard = &stamped
	}
}

func (h *Hub) handleStop() {
	total := h.registry.Len()
	slog.Info("Hub shutting down", "total_clients", total)

	h.registry.ForEach(func(conn *Connection) {
		h.registry.Unregister(conn.ID())
		conn.Stop()
	})
	h.updateGauges()

	slog.Info("Hub shutdown complete", "disconnected_clients", total)
}

// scheduleDetach is the convergence point for connection teardown: the
// writer goroutine calls it once, whatever killed the connection.
func (h *Hub) scheduleDetach(conn *Connection) {
	select {
	case h.cmdCh <- detachCmd{conn: conn}:
	case <-h.stopped:
	}
}

func (h *Hub) encodeFor(kind Kind, ev event.Event) ([]byte, error) {
	if kind == KindEventStream {
		return ev.EncodeSSE()
	}
	return ev.EncodeJSON()
}

func (h *Hub) updateGauges() {
	metrics.HubConnectedClients.WithLabelValues(string(KindWebSocket)).Set(float64(h.registry.LenByKind(KindWebSocket)))
	metrics.HubConnectedClients.WithLabelValues(string(KindEventStream)).Set(float64(h.registry.LenByKind(KindEventStream)))
}

var _ Publisher = (*Hub)(nil)
