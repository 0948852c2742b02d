package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/jamesaja2/tradesim-live/internal/hub"
)

// EventStream adapts a streaming HTTP response to the hub's Transport.
// The handler that created it must keep its goroutine alive until Done
// fires; closing an SSE response is only possible by returning from the
// handler.
type EventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	ctx     context.Context

	mu        sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// NewEventStream wraps the response writer for SSE delivery. The request
// context marks the stream dead once the client aborts.
func NewEventStream(w http.ResponseWriter, ctx context.Context) (*EventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	return &EventStream{
		w:       w,
		flusher: flusher,
		ctx:     ctx,
		done:    make(chan struct{}),
	}, nil
}

func (t *EventStream) Kind() hub.Kind { return hub.KindEventStream }

func (t *EventStream) Send(frame []byte) error {
	select {
	case <-t.ctx.Done():
		return t.ctx.Err()
	case <-t.done:
		return fmt.Errorf("stream closed")
	default:
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.w.Write(frame); err != nil {
		return err
	}
	t.flusher.Flush()
	return nil
}

func (t *EventStream) Close(reason string) {
	t.closeOnce.Do(func() {
		close(t.done)
	})
}

// Done fires when the stream has been closed by the hub side. The owning
// handler selects on this together with the request context.
func (t *EventStream) Done() <-chan struct{} { return t.done }

var _ hub.Transport = (*EventStream)(nil)
