package logging

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureDefault(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestInitLoggerSetsDefault(t *testing.T) {
	InitLogger("debug", "json")
	require.NotNil(t, Logger)
	assert.Same(t, Logger, slog.Default())
	assert.True(t, Logger.Enabled(nil, slog.LevelDebug))

	InitLogger("warn", "text")
	assert.False(t, slog.Default().Enabled(nil, slog.LevelInfo))
}

func TestWithConnection(t *testing.T) {
	buf := captureDefault(t)

	WithConnection("conn-1").Info("frame received")

	assert.Contains(t, buf.String(), `"connection_id":"conn-1"`)
	assert.Contains(t, buf.String(), "frame received")
}

func TestWithTransport(t *testing.T) {
	buf := captureDefault(t)

	WithTransport("websocket").Warn("reaping connection")

	assert.Contains(t, buf.String(), `"transport":"websocket"`)
}

func TestWithError(t *testing.T) {
	buf := captureDefault(t)

	WithError(fmt.Errorf("boom")).Warn("decode failed")

	assert.Contains(t, buf.String(), `"error"`)
	assert.Contains(t, buf.String(), "decode failed")
}
