package overlay

import (
	"time"

	"github.com/jamesaja2/tradesim-live/internal/event"
)

// logCapacity bounds the notification feed; the oldest entry is evicted
// first once the feed is full.
const logCapacity = 10

// Notification is one feed entry, tagged with local receipt time. The
// event's origin timestamp is kept only for informational display.
type Notification struct {
	Event      event.Event
	ReceivedAt time.Time
}

// notificationLog is a bounded newest-first feed. Not safe for concurrent
// use; the owning Client serializes access.
type notificationLog struct {
	entries []Notification
}

func (l *notificationLog) add(n Notification) {
	l.entries = append([]Notification{n}, l.entries...)
	if len(l.entries) > logCapacity {
		l.entries = l.entries[:logCapacity]
	}
}

func (l *notificationLog) list() []Notification {
	out := make([]Notification, len(l.entries))
	copy(out, l.entries)
	return out
}
