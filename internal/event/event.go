// Package event defines the domain events fanned out to live overlay
// viewers and their two wire encodings (JSON frames for the websocket
// channel, SSE records for the push stream).
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type tags an event payload.
type Type string

// Domain event types, broadcast on both transports.
const (
	TypeBell        Type = "bell"
	TypeTrade       Type = "trade"
	TypeLeaderboard Type = "leaderboard_update"
	TypeSystem      Type = "system"
)

// Channel-control types, only ever sent on the bidirectional channel.
const (
	TypeConnected  Type = "connected"
	TypeHeartbeat  Type = "heartbeat"
	TypePong       Type = "pong"
	TypeSubscribed Type = "subscribed"
)

// BellAction marks the start or end of a simulated trading day.
type BellAction string

const (
	ActionStartDay BellAction = "start_day"
	ActionEndDay   BellAction = "end_day"
)

// ValidBellAction reports whether s is one of the two bell action literals.
func ValidBellAction(s string) bool {
	return s == string(ActionStartDay) || s == string(ActionEndDay)
}

// LeaderboardEntry is one ranked standing. Rank is derived upstream and
// trusted as given.
type LeaderboardEntry struct {
	Rank           int    `json:"rank"`
	TeamName       string `json:"teamName"`
	PortfolioValue string `json:"portfolioValue"`
	Gains          string `json:"gains"`
	Trades         int    `json:"trades"`
}

// Trade describes one executed order.
type Trade struct {
	Team     string `json:"team"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"` // "buy" or "sell"
	Quantity int    `json:"quantity"`
}

// Event is a tagged payload broadcast to all connected viewers. Events are
// immutable once constructed; the hub stamps Timestamp on its own copy at
// the moment of dispatch so ordering stays meaningful across transports.
type Event struct {
	Type        Type               `json:"type"`
	Message     string             `json:"message,omitempty"`
	Action      BellAction         `json:"action,omitempty"`
	Trade       *Trade             `json:"trade,omitempty"`
	Leaderboard []LeaderboardEntry `json:"leaderboard,omitempty"`
	Channel     string             `json:"channel,omitempty"`
	Timestamp   string             `json:"timestamp,omitempty"`
}

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders a time the way event timestamps appear on the
// wire (ISO 8601, millisecond precision, UTC).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Stamp returns a copy of e carrying the dispatch timestamp.
func Stamp(e Event, now time.Time) Event {
	e.Timestamp = FormatTimestamp(now)
	return e
}

// NewBell builds a trading-day bell signal.
func NewBell(action BellAction) Event {
	msg := "🔔 Trading day has ended!"
	if action == ActionStartDay {
		msg = "🔔 Trading day has started!"
	}
	return Event{Type: TypeBell, Action: action, Message: msg}
}

// NewTrade builds a trade ticker notification.
func NewTrade(t Trade) Event {
	verb := "sold"
	if t.Side == "buy" {
		verb = "bought"
	}
	trade := t
	return Event{
		Type:    TypeTrade,
		Message: fmt.Sprintf("%s just %s %d shares of %s", t.Team, verb, t.Quantity, t.Symbol),
		Trade:   &trade,
	}
}

// NewLeaderboardUpdate builds a full leaderboard replacement.
func NewLeaderboardUpdate(entries []LeaderboardEntry) Event {
	return Event{
		Type:        TypeLeaderboard,
		Message:     "Leaderboard has been updated",
		Leaderboard: entries,
	}
}

// NewSystem builds a free-text status notification.
func NewSystem(message string) Event {
	return Event{Type: TypeSystem, Message: message}
}

// NewConnected is the greeting frame sent once per websocket connection.
func NewConnected() Event {
	return Event{Type: TypeConnected, Message: "Connected to OBS WebSocket server"}
}

// NewHeartbeat is the websocket liveness frame.
func NewHeartbeat() Event {
	return Event{Type: TypeHeartbeat}
}

// NewPong answers a client ping.
func NewPong() Event {
	return Event{Type: TypePong}
}

// NewSubscribed acknowledges a subscribe request, echoing the channel.
// No per-channel filtering exists; every connection receives every event.
func NewSubscribed(channel string) Event {
	return Event{Type: TypeSubscribed, Channel: channel}
}

// EncodeJSON renders the event as a single JSON frame for the
// bidirectional channel.
func (e Event) EncodeJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EncodeSSE renders the event as one `data: <json>` record for the push
// stream.
func (e Event) EncodeSSE() ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(payload)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, payload...)
	buf = append(buf, "\n\n"...)
	return buf, nil
}

// SSEKeepalive is the comment-only keepalive record for the push stream.
var SSEKeepalive = []byte(": heartbeat\n\n")
