package hub

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jamesaja2/tradesim-live/internal/event"
	"github.com/jamesaja2/tradesim-live/internal/logging"
	"github.com/jamesaja2/tradesim-live/internal/metrics"
)

// keepalive periodically emits a liveness frame on every registered
// connection so idle transports are not reclaimed by intermediaries. On
// the bidirectional channel this is a `heartbeat` JSON frame; on the push
// stream it is a comment-only record. A connection whose frame cannot be
// enqueued, or whose transport write fails, is reaped immediately rather
// than waiting for a read-side timeout. This is push-only liveness: the
// peer is never required to respond.
type keepalive struct {
	registry *Registry
	clock    clockwork.Clock
	interval time.Duration
	stopCh   chan struct{}
	done     chan struct{}
}

func newKeepalive(registry *Registry, clock clockwork.Clock, interval time.Duration) *keepalive {
	k := &keepalive{
		registry: registry,
		clock:    clock,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go k.run()
	return k
}

func (k *keepalive) run() {
	defer close(k.done)

	ticker := k.clock.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			k.sweep()
		case <-k.stopCh:
			return
		}
	}
}

func (k *keepalive) sweep() {
	stamped := event.Stamp(event.NewHeartbeat(), k.clock.Now())
	wsFrame, err := stamped.EncodeJSON()
	if err != nil {
		slog.Error("Failed to encode heartbeat frame", "error", err)
		return
	}

	k.registry.ForEach(func(conn *Connection) {
		frame := wsFrame
		if conn.Kind() == KindEventStream {
			frame = event.SSEKeepalive
		}
		if !conn.Enqueue(frame) {
			logging.WithTransport(string(conn.Kind())).Warn("Heartbeat enqueue failed, reaping connection",
				"connection_id", conn.ID().String(),
			)
			metrics.HubHeartbeatFailuresTotal.WithLabelValues(string(conn.Kind())).Inc()
			k.registry.Unregister(conn.ID())
			conn.Stop()
		}
	})
}

func (k *keepalive) stop() {
	close(k.stopCh)
	<-k.done
}
