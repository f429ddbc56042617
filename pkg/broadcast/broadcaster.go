// Package broadcast fans lifecycle events of one session out to zero or
// more live subscribers without ever blocking the publishing engine.
package broadcast

import (
	"sync"
	"time"
)

// EventType enumerates the lifecycle notifications a session emits.
type EventType string

const (
	EventConnected        EventType = "connected"
	EventStageStarted     EventType = "stage_started"
	EventStageCompleted   EventType = "stage_completed"
	EventSessionCompleted EventType = "session_completed"
	EventError            EventType = "error"
)

// Event is one lifecycle notification. Checkpoint carries the pending
// payload when WaitingForHuman is set.
type Event struct {
	Type            EventType `json:"type"`
	SessionID       string    `json:"session_id"`
	Stage           string    `json:"stage,omitempty"`
	WaitingForHuman bool      `json:"waiting_for_human,omitempty"`
	CheckpointKind  string    `json:"checkpoint_kind,omitempty"`
	Checkpoint      any       `json:"checkpoint,omitempty"`
	Detail          string    `json:"detail,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// subscriberBuffer is the per-subscriber queue depth. A subscriber that
// falls this far behind is disconnected rather than allowed to stall the
// engine; the transport layer reconnects and re-queries status.
const subscriberBuffer = 64

// Broadcaster is the per-session fan-out. Subscribers connected at publish
// time receive events in publish order; there is no backlog replay for
// late subscribers.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[uint64]chan Event
	nextID uint64
	closed bool
}

func New() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]chan Event)}
}

// Subscribe attaches a new subscriber and returns its event channel plus a
// cancel function. The channel is closed on cancel, on broadcaster close,
// or when the subscriber is dropped for falling behind.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers ev to every live subscriber. Never blocks: a subscriber
// whose buffer is full is dropped.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			delete(b.subs, id)
			close(ch)
		}
	}
}

// SubscriberCount reports the number of live subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close disconnects every subscriber. Further publishes are no-ops and
// further subscribes receive an already-closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
