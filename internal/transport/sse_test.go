package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesaja2/tradesim-live/internal/hub"
)

func TestEventStreamSendWritesAndFlushes(t *testing.T) {
	rec := httptest.NewRecorder()
	stream, err := NewEventStream(rec, context.Background())
	require.NoError(t, err)

	assert.Equal(t, hub.KindEventStream, stream.Kind())

	require.NoError(t, stream.Send([]byte("data: {\"type\":\"system\"}\n\n")))
	require.NoError(t, stream.Send([]byte(": heartbeat\n\n")))

	assert.True(t, rec.Flushed)
	assert.Equal(t, "data: {\"type\":\"system\"}\n\n: heartbeat\n\n", rec.Body.String())
}

func TestEventStreamSendFailsAfterClose(t *testing.T) {
	rec := httptest.NewRecorder()
	stream, err := NewEventStream(rec, context.Background())
	require.NoError(t, err)

	stream.Close("shutting down")
	stream.Close("again")

	err = stream.Send([]byte("data: late\n\n"))
	require.Error(t, err)
	assert.Empty(t, rec.Body.String())

	select {
	case <-stream.Done():
	default:
		t.Fatal("Done should fire after Close")
	}
}

func TestEventStreamSendFailsAfterClientAbort(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	stream, err := NewEventStream(rec, ctx)
	require.NoError(t, err)

	cancel()

	err = stream.Send([]byte("data: late\n\n"))
	require.ErrorIs(t, err, context.Canceled)
}

type plainWriter struct{}

func (plainWriter) Header() http.Header         { return http.Header{} }
func (plainWriter) Write(b []byte) (int, error) { return len(b), nil }
func (plainWriter) WriteHeader(statusCode int)  {}

func TestNewEventStreamRequiresFlusher(t *testing.T) {
	_, err := NewEventStream(plainWriter{}, context.Background())
	require.Error(t, err)
}
