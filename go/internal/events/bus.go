package events

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Handler observes events synchronously on the publishing goroutine.
// Handlers must not block and must not call back into the auction store.
type Handler func(Event)

// Bus fans engine events out to in-process handlers and to buffered
// subscriber channels. Publish never blocks: a subscriber whose buffer is
// full misses the event.
type Bus struct {
	mu        sync.RWMutex
	handlers  []Handler
	subs      map[int]chan Event
	nextSubID int
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Handle registers a synchronous handler.
func (b *Bus) Handle(h Handler) {
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
}

// Subscribe returns a channel receiving every event published after the
// call, and a cancel func that closes it.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextSubID
	b.nextSubID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers ev to handlers in registration order, then to subscribers.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	// Handlers may publish in turn, so no lock is held while they run.
	for _, h := range handlers {
		h(ev)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			log.Warn().
				Int("subscriber_id", id).
				Str("auction_id", ev.AuctionID).
				Str("event_type", string(ev.Type)).
				Msg("subscriber buffer full, dropping event")
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
