package progress

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/shared"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 64

// Subscription is one consumer's view of a session's event stream. The
// Events channel closes when the session ends or the subscriber is dropped.
type Subscription struct {
	ID     int
	Events <-chan models.ProgressEvent
}

// Bus fans a session's progress events out to subscribers.
type Bus struct {
	sessionID string
	buffer    int
	logger    *log.Logger

	mu     sync.Mutex
	subs   map[int]chan models.ProgressEvent
	nextID int
	closed bool
}

// NewBus creates a bus for one session. A non-positive buffer falls back to
// [DefaultBufferSize]; a nil logger falls back to stderr.
func NewBus(sessionID string, buffer int, logger *log.Logger) *Bus {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Bus{
		sessionID: sessionID,
		buffer:    buffer,
		logger:    logger.With("session_id", shared.ShortID(sessionID)),
		subs:      make(map[int]chan models.ProgressEvent),
	}
}

// Subscribe registers a new consumer. Only events published after the call
// are delivered. Subscribing to a closed bus yields an already-closed
// channel.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan models.ProgressEvent, b.buffer)
	if b.closed {
		close(ch)
		return &Subscription{ID: -1, Events: ch}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	return &Subscription{ID: id, Events: ch}
}

// Unsubscribe removes a consumer and closes its channel. Safe to call for
// ids already dropped or unsubscribed.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers an event to every subscriber without blocking. A
// subscriber whose buffer is full is dropped: one buffered event is evicted
// to make room for a final lagged event, then its channel is closed.
func (b *Bus) Publish(event models.ProgressEvent) {
	if event.SessionID == "" {
		event.SessionID = b.sessionID
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.deliver(event)
}

// CloseWith publishes a terminal event to every remaining subscriber and
// closes the bus. Further publishes are no-ops and later subscribers see an
// immediately closed stream.
func (b *Bus) CloseWith(event models.ProgressEvent) {
	if event.SessionID == "" {
		event.SessionID = b.sessionID
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.deliver(event)
	b.shutdown()
}

// Close tears the bus down without a terminal event. Used when a session is
// discarded before it produced one.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.shutdown()
}

// deliver sends to every subscriber, dropping the ones that cannot keep up.
// Caller holds b.mu.
func (b *Bus) deliver(event models.ProgressEvent) {
	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.drop(id, ch)
		}
	}
}

// drop removes a full subscriber. One buffered event is evicted so the
// lagged marker always fits; the subscriber missed that event plus the one
// being published.
func (b *Bus) drop(id int, ch chan models.ProgressEvent) {
	delete(b.subs, id)

	select {
	case <-ch:
	default:
	}
	select {
	case ch <- models.ProgressEvent{
		Kind:      models.EventLagged,
		SessionID: b.sessionID,
		Timestamp: time.Now().UTC(),
		Dropped:   2,
	}:
	default:
	}
	close(ch)

	b.logger.Warn("dropped slow subscriber", "subscriber", id)
}

// shutdown closes all remaining subscriber channels. Caller holds b.mu.
func (b *Bus) shutdown() {
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	b.closed = true
}
