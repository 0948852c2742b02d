package hub

// Kind identifies which of the two live-update transports a connection
// speaks. The hub encodes each event once per kind.
type Kind string

const (
	// KindWebSocket is the persistent bidirectional channel.
	KindWebSocket Kind = "websocket"
	// KindEventStream is the one-way server-push stream (SSE).
	KindEventStream Kind = "eventstream"
)

// Transport is one live-update channel to a single viewer. Implementations
// must tolerate Send and Close being called from different goroutines.
type Transport interface {
	Kind() Kind

	// Send writes one pre-encoded frame to the peer. A returned error means
	// the connection is dead and will be reaped.
	Send(frame []byte) error

	// Close tears the channel down. Safe to call more than once.
	Close(reason string)
}
