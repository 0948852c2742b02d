package overlay

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/jamesaja2/tradesim-live/internal/event"
)

// runWebSocket drives the bidirectional channel's state machine:
// disconnected → connecting → connected, re-entering connecting after the
// fixed reconnect delay on any failure.
func (c *Client) runWebSocket(ctx context.Context) {
	url := websocketURL(c.opts.BaseURL) + "/api/obs/websocket"

	for {
		if ctx.Err() != nil {
			c.setWSState(StateDisconnected)
			return
		}

		c.setWSState(StateConnecting)
		conn, resp, err := c.opts.Dialer.DialContext(ctx, url, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			c.setWSState(StateDisconnected)
			if !c.sleep(ctx, c.opts.ReconnectDelay) {
				return
			}
			continue
		}

		c.setWSState(StateConnected)
		c.serveWebSocket(ctx, conn)
		c.setWSState(StateDisconnected)

		if !c.sleep(ctx, c.opts.ReconnectDelay) {
			return
		}
	}
}

// serveWebSocket owns one live connection: it subscribes, pings on the
// configured interval, and pumps reads until the connection dies.
func (c *Client) serveWebSocket(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	var writeMu sync.Mutex
	writeJSON := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	if err := writeJSON(map[string]string{"type": "subscribe", "channel": "obs"}); err != nil {
		return
	}

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go func() {
		ticker := c.opts.Clock.NewTicker(c.opts.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				if err := writeJSON(map[string]string{"type": "ping"}); err != nil {
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	// Tear the read loop down when ctx is cancelled; ReadMessage only
	// unblocks on a closed connection.
	go func() {
		<-pingCtx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var ev event.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			slog.Debug("Ignoring malformed server frame", "error", err)
			continue
		}
		c.apply(ev)
	}
}

func websocketURL(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return baseURL
	}
}
