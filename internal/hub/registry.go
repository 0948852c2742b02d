package hub

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks the currently connected live viewers across both
// transport kinds. Pure membership tracking; the hub and the keepalive
// scheduler only ever read it to enumerate targets.
//
// Register and Unregister are idempotent per handle and safe under
// concurrent invocation. A connection removed by Unregister is never
// visited by a ForEach that starts afterwards; a connection joining while
// a ForEach is in flight may or may not be visited by that call, but is
// visited by all subsequent ones.
type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*Connection
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[uuid.UUID]*Connection),
	}
}

// Register adds a connection and returns its handle.
func (r *Registry) Register(c *Connection) uuid.UUID {
	r.mu.Lock()
	r.conns[c.ID()] = c
	r.mu.Unlock()
	return c.ID()
}

// Unregister removes the connection with the given handle. Removing an
// unknown or already-removed handle is a no-op.
func (r *Registry) Unregister(handle uuid.UUID) {
	r.mu.Lock()
	delete(r.conns, handle)
	r.mu.Unlock()
}

// ForEach visits every currently registered connection. The member set is
// snapshotted up front so visits run without holding the lock.
func (r *Registry) ForEach(visit func(*Connection)) {
	r.mu.RLock()
	snapshot := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		snapshot = append(snapshot, c)
	}
	r.mu.RUnlock()

	for _, c := range snapshot {
		visit(c)
	}
}

// Len returns the current membership count.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// LenByKind returns the membership count for one transport kind.
func (r *Registry) LenByKind(kind Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.conns {
		if c.Kind() == kind {
			n++
		}
	}
	return n
}
