package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	apperrors "github.com/jamesaja2/tradesim-live/internal/errors"
	"github.com/jamesaja2/tradesim-live/internal/event"
	"github.com/jamesaja2/tradesim-live/internal/hub"
	"github.com/jamesaja2/tradesim-live/internal/logging"
	"github.com/jamesaja2/tradesim-live/internal/metrics"
	"github.com/jamesaja2/tradesim-live/internal/transport"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for OBS browser source
	},
}

// handleEvents serves the one-way push stream (SSE). The response must be
// committed with the stream headers before the connection joins the hub:
// the moment Attach returns, the writer goroutine may push frames (retained
// snapshot events, concurrent publishes) into the response. The handler
// goroutine stays parked until the client aborts or the hub closes the
// stream.
func (s *Server) handleEvents(c echo.Context) error {
	stream, err := transport.NewEventStream(c.Response(), c.Request().Context())
	if err != nil {
		return apperrors.InternalError("streaming unsupported", err)
	}

	if s.hub.ClientCount() >= s.config.MaxClients {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "server at capacity")
	}

	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "Cache-Control")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()

	conn, err := s.hub.Attach(stream)
	if err != nil {
		// Lost a capacity race after the response was committed; the hub
		// has already closed the stream.
		return nil
	}

	s.enqueueEvent(conn, event.NewSystem("Connected to live notification stream"))

	select {
	case <-c.Request().Context().Done():
		// Client abort; converge on the common teardown path.
		conn.Stop()
	case <-stream.Done():
		// Closed by the hub (eviction or shutdown).
	}
	return nil
}

// inboundMessage is a client frame on the bidirectional channel.
type inboundMessage struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// handleWebSocket serves the bidirectional channel: upgrade, greet,
// register, then pump reads until the peer goes away.
func (s *Server) handleWebSocket(c echo.Context) error {
	sock, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return apperrors.InternalError("failed to upgrade WebSocket", err)
	}

	ws := transport.NewWebSocket(sock, s.clock)
	conn, err := s.hub.Attach(ws)
	if err != nil {
		slog.Warn("Failed to register websocket client", "error", err)
		return nil
	}

	s.enqueueEvent(conn, event.NewConnected())

	logger := logging.WithConnection(conn.ID().String())

	// Read pump, blocks until the connection closes. Malformed frames are
	// logged and ignored; the connection stays open.
	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			break
		}
		conn.Touch()

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("Ignoring malformed client frame", "error", err)
			continue
		}

		switch msg.Type {
		case "ping":
			s.enqueueEvent(conn, event.NewPong())
		case "subscribe":
			conn.Subscribe(msg.Channel)
			s.enqueueEvent(conn, event.NewSubscribed(msg.Channel))
		default:
			logger.Debug("Unknown client message type", "type", msg.Type)
		}
	}

	conn.Stop()
	return nil
}

// enqueueEvent stamps and encodes a single-recipient frame for the
// connection's transport and offers it to the send queue. A full queue
// drops the frame: control frames are best-effort, unlike broadcasts,
// where the same condition evicts the connection.
func (s *Server) enqueueEvent(conn *hub.Connection, ev event.Event) {
	stamped := event.Stamp(ev, s.clock.Now())

	var frame []byte
	var err error
	if conn.Kind() == hub.KindEventStream {
		frame, err = stamped.EncodeSSE()
	} else {
		frame, err = stamped.EncodeJSON()
	}
	if err != nil {
		slog.Error("Failed to encode frame", "type", string(ev.Type), "error", err)
		return
	}
	if !conn.Enqueue(frame) {
		logging.WithConnection(conn.ID().String()).Warn("Send queue full, dropping frame",
			"type", string(ev.Type),
		)
	}
}

type bellRequest struct {
	Action string `json:"action"`
}

type bellResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

// handleBell accepts a start_day/end_day trigger and publishes the bell on
// both transports. It acknowledges immediately; it never waits for any
// client to receive the event.
func (s *Server) handleBell(c echo.Context) error {
	var req bellRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	if !event.ValidBellAction(req.Action) {
		return apperrors.ValidationError(`invalid action, must be "start_day" or "end_day"`).
			WithContext("action", req.Action)
	}

	action := event.BellAction(req.Action)
	s.publisher.Publish(event.NewBell(action))
	metrics.BellSignalsTotal.WithLabelValues(req.Action).Inc()

	return c.JSON(http.StatusOK, bellResponse{
		Success:   true,
		Message:   req.Action + " bell signal sent successfully",
		Action:    req.Action,
		Timestamp: event.FormatTimestamp(s.clock.Now()),
	})
}

type tradeRequest struct {
	Team     string `json:"team"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Quantity int    `json:"quantity"`
}

// handleTrade publishes a trade ticker notification.
func (s *Server) handleTrade(c echo.Context) error {
	var req tradeRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Team == "" || req.Symbol == "" {
		return apperrors.ValidationError("team and symbol are required")
	}
	if req.Side != "buy" && req.Side != "sell" {
		return apperrors.ValidationError(`side must be "buy" or "sell"`).
			WithContext("side", req.Side)
	}
	if req.Quantity <= 0 {
		return apperrors.ValidationError("quantity must be positive")
	}

	s.publisher.Publish(event.NewTrade(event.Trade{
		Team:     req.Team,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Quantity: req.Quantity,
	}))

	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"timestamp": event.FormatTimestamp(s.clock.Now()),
	})
}

type leaderboardRequest struct {
	Leaderboard []event.LeaderboardEntry `json:"leaderboard"`
}

// handleLeaderboardRefresh publishes a full leaderboard replacement.
// Standings come from the request body if given, otherwise from the
// configured store. Ranking is trusted as given either way.
func (s *Server) handleLeaderboardRefresh(c echo.Context) error {
	var req leaderboardRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	entries := req.Leaderboard
	if len(entries) == 0 {
		if s.leaderboard == nil {
			return apperrors.ValidationError("no leaderboard entries provided and no store configured")
		}
		var err error
		entries, err = s.leaderboard.Standings(c.Request().Context())
		if err != nil {
			return apperrors.ExternalError("failed to read leaderboard standings", err)
		}
	}

	s.publisher.Publish(event.NewLeaderboardUpdate(entries))

	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"entries":   len(entries),
		"timestamp": event.FormatTimestamp(s.clock.Now()),
	})
}
