package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidBellAction(t *testing.T) {
	assert.True(t, ValidBellAction("start_day"))
	assert.True(t, ValidBellAction("end_day"))
	assert.False(t, ValidBellAction("pause"))
	assert.False(t, ValidBellAction(""))
	assert.False(t, ValidBellAction("START_DAY"))
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 30, 0, 123_000_000, time.UTC)
	assert.Equal(t, "2025-03-14T09:30:00.123Z", FormatTimestamp(ts))

	t.Run("converts to UTC", func(t *testing.T) {
		loc := time.FixedZone("CET", 3600)
		local := time.Date(2025, 3, 14, 10, 30, 0, 0, loc)
		assert.Equal(t, "2025-03-14T09:30:00.000Z", FormatTimestamp(local))
	})
}

func TestStampLeavesOriginalUntouched(t *testing.T) {
	original := NewSystem("hello")
	stamped := Stamp(original, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))

	assert.Empty(t, original.Timestamp)
	assert.Equal(t, "2025-01-02T03:04:05.000Z", stamped.Timestamp)
	assert.Equal(t, original.Message, stamped.Message)
}

func TestNewBell(t *testing.T) {
	start := NewBell(ActionStartDay)
	assert.Equal(t, TypeBell, start.Type)
	assert.Equal(t, ActionStartDay, start.Action)
	assert.Equal(t, "🔔 Trading day has started!", start.Message)

	end := NewBell(ActionEndDay)
	assert.Equal(t, ActionEndDay, end.Action)
	assert.Equal(t, "🔔 Trading day has ended!", end.Message)
}

func TestNewTrade(t *testing.T) {
	buy := NewTrade(Trade{Team: "Team Alpha", Symbol: "ACME", Side: "buy", Quantity: 50})
	assert.Equal(t, TypeTrade, buy.Type)
	assert.Equal(t, "Team Alpha just bought 50 shares of ACME", buy.Message)
	require.NotNil(t, buy.Trade)
	assert.Equal(t, "ACME", buy.Trade.Symbol)

	sell := NewTrade(Trade{Team: "Team Beta", Symbol: "GLOB", Side: "sell", Quantity: 3})
	assert.Equal(t, "Team Beta just sold 3 shares of GLOB", sell.Message)
}

func TestNewLeaderboardUpdate(t *testing.T) {
	entries := []LeaderboardEntry{
		{Rank: 1, TeamName: "Alpha", PortfolioValue: "10500.00", Gains: "500.00", Trades: 12},
	}
	ev := NewLeaderboardUpdate(entries)
	assert.Equal(t, TypeLeaderboard, ev.Type)
	assert.Equal(t, "Leaderboard has been updated", ev.Message)
	assert.Equal(t, entries, ev.Leaderboard)
}

func TestControlFrames(t *testing.T) {
	assert.Equal(t, "Connected to OBS WebSocket server", NewConnected().Message)
	assert.Equal(t, TypeHeartbeat, NewHeartbeat().Type)
	assert.Equal(t, TypePong, NewPong().Type)

	sub := NewSubscribed("obs")
	assert.Equal(t, TypeSubscribed, sub.Type)
	assert.Equal(t, "obs", sub.Channel)
}

func TestEncodeJSONOmitsEmptyFields(t *testing.T) {
	frame, err := NewPong().EncodeJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(frame))
}

func TestEncodeJSONLeaderboardFieldNames(t *testing.T) {
	ev := NewLeaderboardUpdate([]LeaderboardEntry{
		{Rank: 2, TeamName: "Beta", PortfolioValue: "9800.50", Gains: "-199.50", Trades: 7},
	})
	frame, err := ev.EncodeJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(frame, &decoded))
	entries, ok := decoded["leaderboard"].([]any)
	require.True(t, ok)
	require.Len(t, entries, 1)

	entry := entries[0].(map[string]any)
	assert.Equal(t, "Beta", entry["teamName"])
	assert.Equal(t, "9800.50", entry["portfolioValue"])
	assert.Equal(t, "-199.50", entry["gains"])
	assert.Equal(t, float64(7), entry["trades"])
}

func TestEncodeSSE(t *testing.T) {
	ev := Stamp(NewSystem("stream online"), time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC))
	record, err := ev.EncodeSSE()
	require.NoError(t, err)

	s := string(record)
	assert.True(t, len(s) > 8)
	assert.Equal(t, "data: ", s[:6])
	assert.Equal(t, "\n\n", s[len(s)-2:])
	assert.JSONEq(t,
		`{"type":"system","message":"stream online","timestamp":"2025-05-01T12:00:00.000Z"}`,
		s[6:len(s)-2])
}

func TestSSEKeepaliveIsCommentRecord(t *testing.T) {
	assert.Equal(t, ": heartbeat\n\n", string(SSEKeepalive))
}
