package service

import "sync"

// Event is a change a viewer publishes: a selection event applied to a
// session, a session opening or closing, or a dataset reload.
type Event struct {
	Session string // empty for reloads
	Origin  string // browser tab that caused it, if known
	Action  string // toggle, select_all, pick, opened, closed, reload
	Active  int    // trees displayed after the change
}

// Actions published besides the filter event kinds.
const (
	ActionOpened = "opened"
	ActionClosed = "closed"
	ActionReload = "reload"
)

// EventBus is a simple fan-out pub/sub for viewer events.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]struct{})}
}

// Publish sends an event to all subscribers (non-blocking).
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
		}
	}
}

// Subscribe returns a buffered channel that receives events.
func (b *EventBus) Subscribe() chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}
