package server

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jamesaja2/tradesim-live/internal/config"
	"github.com/jamesaja2/tradesim-live/internal/event"
	"github.com/jamesaja2/tradesim-live/internal/hub"
)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *recordingPublisher) Publish(ev event.Event) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *recordingPublisher) Events() []event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.Event, len(p.events))
	copy(out, p.events)
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:            "test",
		Port:              "0",
		LogLevel:          "error",
		LogFormat:         "text",
		HeartbeatInterval: time.Minute,
		MaxClients:        10,
		SendBufferSize:    16,
		BellRatePerSecond: 100,
		BellBurst:         100,
	}
}

// newTestServer spins up the full HTTP surface with a live hub. A nil
// publisher means events go straight to the hub.
func newTestServer(t *testing.T, cfg *config.Config, publisher hub.Publisher, leaderboard LeaderboardSource) (*Server, *httptest.Server) {
	t.Helper()

	clock := clockwork.NewRealClock()
	h := hub.NewHub(hub.Options{
		Clock:             clock,
		HeartbeatInterval: cfg.HeartbeatInterval,
		MaxClients:        cfg.MaxClients,
		SendBufferSize:    cfg.SendBufferSize,
		SnapshotOnConnect: cfg.SnapshotOnConnect,
	})
	t.Cleanup(h.Stop)

	if publisher == nil {
		publisher = h
	}

	srv := NewServer(cfg, h, publisher, leaderboard, nil, nil, clock)
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)
	return srv, ts
}
