package overlay

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesaja2/tradesim-live/internal/event"
)

// sseHandler streams the given records, then a keepalive, then parks until
// the client goes away.
func sseHandler(records []event.Event) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		flusher.Flush()

		for _, ev := range records {
			frame, err := ev.EncodeSSE()
			if err != nil {
				return
			}
			_, _ = w.Write(frame)
		}
		_, _ = w.Write(event.SSEKeepalive)
		flusher.Flush()

		<-r.Context().Done()
	}
}

func TestStreamLinkAppliesRecords(t *testing.T) {
	ts := httptest.NewServer(sseHandler([]event.Event{
		event.NewSystem("Connected to live notification stream"),
		event.NewLeaderboardUpdate([]event.LeaderboardEntry{
			{Rank: 1, TeamName: "Alpha", PortfolioValue: "10100.00", Gains: "100.00", Trades: 2},
		}),
	}))
	defer ts.Close()

	c := NewClient(Options{
		BaseURL:          ts.URL,
		StreamRetryDelay: 20 * time.Millisecond,
		ReconnectDelay:   50 * time.Millisecond,
		PingInterval:     time.Minute,
	})
	cancel := runClient(t, c)
	// The handler parks until the client goes away, so stop the client
	// before the deferred ts.Close or Close never returns.
	defer cancel()

	require.Eventually(t, func() bool {
		return c.Snapshot().StreamState == StateConnected
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(c.Snapshot().Leaderboard) == 1
	}, 2*time.Second, 10*time.Millisecond)

	view := c.Snapshot()
	assert.True(t, view.Live)
	assert.Equal(t, "Alpha", view.Leaderboard[0].TeamName)

	// Keepalive comments never surface; the two data records do,
	// newest first.
	require.Len(t, view.Notifications, 2)
	assert.Equal(t, event.TypeLeaderboard, view.Notifications[0].Event.Type)
	assert.Equal(t, event.TypeSystem, view.Notifications[1].Event.Type)
}

func TestStreamLinkRetriesOnFailure(t *testing.T) {
	var streamRequests atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") == "text/event-stream" {
			streamRequests.Add(1)
		}
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := NewClient(Options{
		BaseURL:          ts.URL,
		StreamRetryDelay: 10 * time.Millisecond,
		ReconnectDelay:   time.Minute,
		PingInterval:     time.Minute,
	})
	runClient(t, c)

	require.Eventually(t, func() bool {
		return streamRequests.Load() >= 3
	}, 2*time.Second, 10*time.Millisecond)

	assert.NotEqual(t, StateConnected, c.Snapshot().StreamState)
}
