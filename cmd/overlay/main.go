// Command overlay runs a headless overlay client against a live event
// server and prints every notification it receives. Useful for checking
// a deployment without opening OBS.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jamesaja2/tradesim-live/internal/event"
	"github.com/jamesaja2/tradesim-live/internal/logging"
	"github.com/jamesaja2/tradesim-live/internal/overlay"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the live event server")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	logging.InitLogger(*logLevel, "text")

	client := overlay.NewClient(overlay.Options{
		BaseURL: *baseURL,
		OnEvent: printEvent,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				printView(client.Snapshot())
			}
		}
	}()

	slog.Info("Overlay client starting", "url", *baseURL)
	client.Run(ctx)
	slog.Info("Overlay client stopped")
}

func printEvent(ev event.Event) {
	switch ev.Type {
	case event.TypeBell:
		fmt.Printf("[%s] BELL %s: %s\n", ev.Timestamp, ev.Action, ev.Message)
	case event.TypeTrade:
		fmt.Printf("[%s] TRADE %s\n", ev.Timestamp, ev.Message)
	case event.TypeLeaderboard:
		fmt.Printf("[%s] LEADERBOARD %d entries\n", ev.Timestamp, len(ev.Leaderboard))
	default:
		fmt.Printf("[%s] %s %s\n", ev.Timestamp, ev.Type, ev.Message)
	}
}

func printView(v overlay.View) {
	day := "closed"
	if v.DayActive {
		day = "open"
	}
	fmt.Printf("-- live=%t ws=%s stream=%s day=%s leaderboard=%d notifications=%d\n",
		v.Live, v.WebSocketState, v.StreamState, day, len(v.Leaderboard), len(v.Notifications))
}
