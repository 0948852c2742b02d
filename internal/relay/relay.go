// Package relay bridges hub events across server instances over Redis
// Pub/Sub. Without it each instance holds an independent registry and
// events stay local; with it, an event published on any instance reaches
// the viewers of all of them.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jamesaja2/tradesim-live/internal/event"
	"github.com/jamesaja2/tradesim-live/internal/hub"
	"github.com/jamesaja2/tradesim-live/internal/logging"
	"github.com/jamesaja2/tradesim-live/internal/metrics"
)

const (
	eventsChannel  = "obs:events"
	publishTimeout = 2 * time.Second
)

// envelope carries an event between instances, tagged with its origin so
// the publishing instance can drop its own echo.
type envelope struct {
	Origin string      `json:"origin"`
	Event  event.Event `json:"event"`
}

// NewRedisClient creates a go-redis client from a URL and verifies the
// connection.
func NewRedisClient(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

// Relay wraps a local publisher. Publish delivers locally first, then
// republishes on the shared channel; the subscriber loop injects remote
// events into the local hub.
type Relay struct {
	rdb        *goredis.Client
	local      hub.Publisher
	instanceID string
	sub        *goredis.PubSub
	cancel     context.CancelFunc
	done       chan struct{}
}

// New starts a relay. Call Close at shutdown.
func New(ctx context.Context, rdb *goredis.Client, local hub.Publisher) *Relay {
	subCtx, cancel := context.WithCancel(ctx)
	r := &Relay{
		rdb:        rdb,
		local:      local,
		instanceID: uuid.NewString(),
		sub:        rdb.Subscribe(subCtx, eventsChannel),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go r.receive(subCtx)
	slog.Info("Relay started", "instance_id", r.instanceID)
	return r
}

// Publish delivers the event to local viewers and republishes it for the
// other instances. Redis failures are logged and swallowed; local
// delivery must never depend on relay health.
func (r *Relay) Publish(ev event.Event) {
	r.local.Publish(ev)

	payload, err := json.Marshal(envelope{Origin: r.instanceID, Event: ev})
	if err != nil {
		slog.Error("Failed to marshal relay envelope", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.rdb.Publish(ctx, eventsChannel, payload).Err(); err != nil {
		slog.Warn("Failed to publish relay event", "error", err)
		return
	}
	metrics.RelayEventsTotal.WithLabelValues("published").Inc()
}

func (r *Relay) receive(ctx context.Context) {
	defer close(r.done)

	msgCh := r.sub.Channel()
	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logging.WithError(err).Warn("Failed to unmarshal relay envelope")
				continue
			}
			if !shouldDeliver(env, r.instanceID) {
				metrics.RelayEventsTotal.WithLabelValues("dropped").Inc()
				continue
			}
			metrics.RelayEventsTotal.WithLabelValues("received").Inc()
			r.local.Publish(env.Event)
		case <-ctx.Done():
			return
		}
	}
}

// shouldDeliver filters out this instance's own echo from the shared
// channel.
func shouldDeliver(env envelope, instanceID string) bool {
	return env.Origin != instanceID
}

// Close stops the subscriber loop and releases the subscription.
func (r *Relay) Close() {
	r.cancel()
	_ = r.sub.Close()
	<-r.done
}

var _ hub.Publisher = (*Relay)(nil)
