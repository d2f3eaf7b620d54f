package worker

import "sync"

// EventSessionCompleted is emitted after a session has fully completed:
// queue drained, agent detached, row stamped.
const EventSessionCompleted = "session_completed"

// Event is one lifecycle notification.
type Event struct {
	Type      string `json:"type"`
	SessionID int64  `json:"session_id"`
}

// Broadcaster fans lifecycle events out to subscribers. Slow subscribers
// drop events rather than block the completion path.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a listener. The returned cancel func unregisters it
// and closes the channel.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast delivers an event to every subscriber without blocking.
func (b *Broadcaster) Broadcast(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SessionCompleted broadcasts a completion event for the session.
func (b *Broadcaster) SessionCompleted(sessionID int64) {
	b.Broadcast(Event{Type: EventSessionCompleted, SessionID: sessionID})
}
