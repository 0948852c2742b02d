package hub

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnection(t *testing.T, kind Kind) *Connection {
	t.Helper()
	c := newConnection(newFakeTransport(kind), clockwork.NewFakeClock(), 4, nil)
	t.Cleanup(c.Stop)
	return c
}

func TestRegistryMembership(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Len())

	ws := newTestConnection(t, KindWebSocket)
	stream := newTestConnection(t, KindEventStream)

	handle := r.Register(ws)
	r.Register(stream)
	assert.Equal(t, ws.ID(), handle)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 1, r.LenByKind(KindWebSocket))
	assert.Equal(t, 1, r.LenByKind(KindEventStream))

	r.Unregister(handle)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 0, r.LenByKind(KindWebSocket))

	// Unknown and repeated handles are no-ops.
	r.Unregister(handle)
	r.Unregister(uuid.New())
	assert.Equal(t, 1, r.Len())
}

func TestRegistryRegisterIsIdempotentPerConnection(t *testing.T) {
	r := NewRegistry()
	conn := newTestConnection(t, KindWebSocket)

	r.Register(conn)
	r.Register(conn)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryForEachVisitsSnapshot(t *testing.T) {
	r := NewRegistry()
	a := newTestConnection(t, KindWebSocket)
	b := newTestConnection(t, KindEventStream)
	r.Register(a)
	r.Register(b)

	seen := make(map[uuid.UUID]int)
	r.ForEach(func(c *Connection) {
		seen[c.ID()]++
		// Mutating membership mid-visit must not disturb the walk.
		r.Unregister(a.ID())
	})

	require.Len(t, seen, 2)
	assert.Equal(t, 1, seen[a.ID()])
	assert.Equal(t, 1, seen[b.ID()])
	assert.Equal(t, 1, r.Len())
}

func TestConnectionEnqueueBackpressure(t *testing.T) {
	blocking := newBlockingTransport(KindWebSocket)
	c := newConnection(blocking, clockwork.NewFakeClock(), 1, nil)
	defer close(blocking.blockSend)
	defer c.Stop()

	// First frame is dequeued by the writer and parks inside Send.
	require.True(t, c.Enqueue([]byte("one")))
	<-blocking.sendEntered

	// Queue holds exactly one pending frame beyond the in-flight send.
	assert.True(t, c.Enqueue([]byte("two")))
	assert.False(t, c.Enqueue([]byte("three")))
}

func TestConnectionSubscriptions(t *testing.T) {
	c := newTestConnection(t, KindWebSocket)

	assert.False(t, c.Subscribed("obs"))
	c.Subscribe("obs")
	assert.True(t, c.Subscribed("obs"))
	assert.False(t, c.Subscribed("other"))
}

func TestConnectionTeardownConverges(t *testing.T) {
	detached := make(chan *Connection, 1)
	ft := newFakeTransport(KindWebSocket)
	c := newConnection(ft, clockwork.NewFakeClock(), 4, func(conn *Connection) {
		detached <- conn
	})

	c.Stop()
	c.Stop()

	got := <-detached
	assert.Equal(t, c.ID(), got.ID())
	assert.True(t, ft.Closed())

	select {
	case <-detached:
		t.Fatal("onClosed invoked more than once")
	default:
	}
}
