// Package overlay implements the viewer-side state machine behind the OBS
// overlay: two independent transport links, a bounded notification feed,
// the derived trading-day state, and the current leaderboard snapshot.
package overlay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/jamesaja2/tradesim-live/internal/event"
)

// LinkState is one transport link's connection status.
type LinkState string

const (
	StateDisconnected LinkState = "disconnected"
	StateConnecting   LinkState = "connecting"
	StateConnected    LinkState = "connected"
)

// View is a consistent copy of the overlay's render state.
type View struct {
	WebSocketState LinkState
	StreamState    LinkState
	// Live combines both link states for the single "is the overlay live"
	// indicator: true while either transport is connected.
	Live          bool
	DayActive     bool
	Leaderboard   []event.LeaderboardEntry
	Notifications []Notification
}

// Options configure a Client. BaseURL is the only required field.
type Options struct {
	BaseURL string

	Clock      clockwork.Clock
	HTTPClient *http.Client
	Dialer     *websocket.Dialer

	// ReconnectDelay is the fixed back-off before the bidirectional
	// channel redials after a failure.
	ReconnectDelay time.Duration
	// StreamRetryDelay plays the role of the browser's native SSE retry.
	StreamRetryDelay time.Duration
	// PingInterval drives the client-side ping on the bidirectional channel.
	PingInterval time.Duration

	// OnEvent, if set, observes every applied domain event. Called after
	// the event has been folded into the view state.
	OnEvent func(event.Event)
}

// Client runs the two link state machines and folds incoming events into
// the view. All view mutation happens under one mutex so event
// application appears atomic to any concurrent Snapshot.
type Client struct {
	opts Options

	mu          sync.Mutex
	wsState     LinkState
	streamState LinkState
	dayActive   bool
	leaderboard []event.LeaderboardEntry
	feed        notificationLog
}

func NewClient(opts Options) *Client {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 3 * time.Second
	}
	if opts.StreamRetryDelay <= 0 {
		opts.StreamRetryDelay = 3 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	return &Client{
		opts:        opts,
		wsState:     StateDisconnected,
		streamState: StateDisconnected,
	}
}

// Run drives both links until ctx is cancelled. The two state machines
// run concurrently and independently; they share nothing beyond the
// combined Live display bit.
func (c *Client) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.runWebSocket(ctx)
	}()
	go func() {
		defer wg.Done()
		c.runStream(ctx)
	}()
	wg.Wait()
}

// Snapshot returns a consistent copy of the current view state.
func (c *Client) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	leaderboard := make([]event.LeaderboardEntry, len(c.leaderboard))
	copy(leaderboard, c.leaderboard)

	return View{
		WebSocketState: c.wsState,
		StreamState:    c.streamState,
		Live:           c.wsState == StateConnected || c.streamState == StateConnected,
		DayActive:      c.dayActive,
		Leaderboard:    leaderboard,
		Notifications:  c.feed.list(),
	}
}

// RingBell fires the operator's start/end-day trigger. The view does not
// flip DayActive optimistically: it waits for the resulting broadcast
// bell, which may never arrive if delivery fails.
func (c *Client) RingBell(ctx context.Context, action event.BellAction) error {
	body, err := json.Marshal(map[string]string{"action": string(action)})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/api/obs/bell", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bell trigger rejected with status %d", resp.StatusCode)
	}
	return nil
}

// apply folds one received event into the view state. Unknown event tags
// are ignored without error; channel-control frames never enter the feed.
func (c *Client) apply(ev event.Event) {
	c.mu.Lock()
	switch ev.Type {
	case event.TypeBell:
		switch ev.Action {
		case event.ActionStartDay:
			c.dayActive = true
		case event.ActionEndDay:
			c.dayActive = false
		}
		c.record(ev)
	case event.TypeLeaderboard:
		// Wholesale replacement; nothing from the old snapshot survives.
		c.leaderboard = append([]event.LeaderboardEntry(nil), ev.Leaderboard...)
		c.record(ev)
	case event.TypeTrade, event.TypeSystem:
		c.record(ev)
	case event.TypeConnected, event.TypeHeartbeat, event.TypePong, event.TypeSubscribed:
		// control frames
	default:
		// forward-compatible decoding
	}
	onEvent := c.opts.OnEvent
	c.mu.Unlock()

	if onEvent != nil {
		onEvent(ev)
	}
}

func (c *Client) record(ev event.Event) {
	c.feed.add(Notification{Event: ev, ReceivedAt: c.opts.Clock.Now()})
}

func (c *Client) setWSState(s LinkState) {
	c.mu.Lock()
	c.wsState = s
	c.mu.Unlock()
}

func (c *Client) setStreamState(s LinkState) {
	c.mu.Lock()
	c.streamState = s
	c.mu.Unlock()
}

// sleep waits for d or until ctx is cancelled. Reports false on cancel.
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	timer := c.opts.Clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.Chan():
		return true
	case <-ctx.Done():
		return false
	}
}
