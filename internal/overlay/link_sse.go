package overlay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jamesaja2/tradesim-live/internal/event"
)

// runStream drives the push-stream link. The server's comment keepalives
// are skipped by the parser; any read failure re-enters connecting after
// the stream retry delay.
func (c *Client) runStream(ctx context.Context) {
	url := c.opts.BaseURL + "/api/obs/events"

	for {
		if ctx.Err() != nil {
			c.setStreamState(StateDisconnected)
			return
		}

		c.setStreamState(StateConnecting)
		if err := c.consumeStream(ctx, url); err != nil {
			slog.Debug("Push stream closed", "error", err)
		}
		c.setStreamState(StateDisconnected)

		if !c.sleep(ctx, c.opts.StreamRetryDelay) {
			return
		}
	}
}

func (c *Client) consumeStream(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &unexpectedStatusError{status: resp.StatusCode}
	}

	c.setStreamState(StateConnected)

	scanner := bufio.NewScanner(resp.Body)
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				c.dispatchRecord(strings.Join(data, "\n"))
				data = data[:0]
			}
		case strings.HasPrefix(line, ":"):
			// comment keepalive
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	return scanner.Err()
}

func (c *Client) dispatchRecord(payload string) {
	var ev event.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		slog.Debug("Ignoring malformed stream record", "error", err)
		return
	}
	c.apply(ev)
}

type unexpectedStatusError struct {
	status int
}

func (e *unexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.status)
}
