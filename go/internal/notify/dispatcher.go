package notify

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/carauction/go/internal/events"
	"github.com/mcdev12/carauction/go/internal/models"
)

// TitleLookup resolves an auction title. It is called from event handlers
// that may run under the auction's lock, so it must not take that lock.
type TitleLookup func(auctionID string) (string, bool)

// OutcomeResolver decides whether the local user won a closed auction.
// ok=false means the outcome is unknown and no won/lost notice is sent.
// It runs on its own goroutine once the closing mutation has committed, so
// it may read auction state back through the engine.
type OutcomeResolver func(auctionID string, p events.AuctionClosedPayload) (won bool, ok bool)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithOutcomeResolver enables AUCTION_WON / AUCTION_LOST notifications.
func WithOutcomeResolver(r OutcomeResolver) Option {
	return func(d *Dispatcher) { d.resolver = r }
}

// Dispatcher turns engine events into user-facing notifications and keeps
// them in an append-only log.
type Dispatcher struct {
	publisher events.Publisher
	clock     clockwork.Clock
	titles    TitleLookup
	resolver  OutcomeResolver

	mu      sync.RWMutex
	entries []*models.Notification
	byID    map[uuid.UUID]*models.Notification

	// in-flight outcome resolutions
	resolving sync.WaitGroup
}

// NewDispatcher creates a dispatcher publishing NotificationCreated and
// NotificationRead events into pub.
func NewDispatcher(pub events.Publisher, clock clockwork.Clock, titles TitleLookup, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		publisher: pub,
		clock:     clock,
		titles:    titles,
		byID:      make(map[uuid.UUID]*models.Notification),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle is registered on the event bus.
func (d *Dispatcher) Handle(ev events.Event) {
	switch p := ev.Data.(type) {
	case events.BidAcceptedPayload:
		title := d.title(ev.AuctionID)
		d.Emit(models.NotificationBidAccepted, ev.AuctionID,
			fmt.Sprintf("Your bid of %s on %s was accepted", FormatWon(p.Amount), title), false)
		if p.PreviousBid > 0 {
			d.Emit(models.NotificationBidOutbid, ev.AuctionID,
				fmt.Sprintf("A bid of %s on %s was outbid by %s", FormatWon(p.PreviousBid), title, FormatWon(p.Amount)), false)
		}

	case events.StatusChangedPayload:
		if p.To != models.StatusEnding {
			return
		}
		d.Emit(models.NotificationAuctionEndingSoon, ev.AuctionID,
			fmt.Sprintf("%s is ending soon, %s left", d.title(ev.AuctionID), remaining(p.RemainingSeconds)), false)

	case events.AuctionClosedPayload:
		if d.resolver == nil {
			return
		}
		// the auction lock is still held here
		d.resolving.Add(1)
		go d.resolveOutcome(ev.AuctionID, p)
	}
}

func (d *Dispatcher) resolveOutcome(auctionID string, p events.AuctionClosedPayload) {
	defer d.resolving.Done()

	won, ok := d.resolver(auctionID, p)
	if !ok {
		log.Debug().Str("auction_id", auctionID).Msg("auction outcome unknown")
		return
	}
	title := d.title(auctionID)
	if won {
		d.Emit(models.NotificationAuctionWon, auctionID,
			fmt.Sprintf("You won %s for %s", title, FormatWon(p.FinalBid)), false)
	} else {
		d.Emit(models.NotificationAuctionLost, auctionID,
			fmt.Sprintf("%s closed at %s, you did not win", title, FormatWon(p.FinalBid)), false)
	}
}

// Wait blocks until every pending won/lost resolution has finished.
func (d *Dispatcher) Wait() {
	d.resolving.Wait()
}

func (d *Dispatcher) title(auctionID string) string {
	if d.titles == nil {
		return auctionID
	}
	if t, ok := d.titles(auctionID); ok {
		return t
	}
	return auctionID
}

func remaining(sec int64) string {
	h, m := sec/3600, (sec%3600)/60
	if h > 0 {
		return fmt.Sprintf("%dh %02dm", h, m)
	}
	return fmt.Sprintf("%dm %02ds", m, sec%60)
}

// Emit appends a new unread notification and publishes NotificationCreated.
func (d *Dispatcher) Emit(kind models.NotificationKind, auctionID, msg string, simulated bool) models.Notification {
	n := &models.Notification{
		ID:        uuid.New(),
		Kind:      kind,
		AuctionID: auctionID,
		Message:   msg,
		CreatedAt: d.clock.Now(),
		Simulated: simulated,
	}

	d.mu.Lock()
	d.entries = append(d.entries, n)
	d.byID[n.ID] = n
	created := *n
	d.mu.Unlock()

	log.Debug().
		Str("notification_id", created.ID.String()).
		Str("kind", string(kind)).
		Str("auction_id", auctionID).
		Bool("simulated", simulated).
		Msg("notification created")

	// published after unlocking: this dispatcher is itself a bus handler
	d.publisher.Publish(events.New(events.TypeNotificationCreated, auctionID, created.CreatedAt,
		events.NotificationCreatedPayload{Notification: created}))
	return created
}

// MarkRead flips read to true. Marking an already-read notification again
// changes nothing and emits nothing.
func (d *Dispatcher) MarkRead(id uuid.UUID) error {
	d.mu.Lock()
	n, ok := d.byID[id]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", models.ErrNotificationNotFound, id)
	}
	if n.Read {
		d.mu.Unlock()
		return nil
	}
	n.Read = true
	auctionID := n.AuctionID
	d.mu.Unlock()

	d.publisher.Publish(events.New(events.TypeNotificationRead, auctionID, d.clock.Now(),
		events.NotificationReadPayload{NotificationID: id.String()}))
	return nil
}

// Get returns a copy of one notification.
func (d *Dispatcher) Get(id uuid.UUID) (models.Notification, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.byID[id]
	if !ok {
		return models.Notification{}, fmt.Errorf("%w: %s", models.ErrNotificationNotFound, id)
	}
	return *n, nil
}

// List returns every notification, newest first.
func (d *Dispatcher) List() []models.Notification {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Notification, 0, len(d.entries))
	for i := len(d.entries) - 1; i >= 0; i-- {
		out = append(out, *d.entries[i])
	}
	return out
}

// Unread counts notifications not yet marked read.
func (d *Dispatcher) Unread() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	count := 0
	for _, n := range d.entries {
		if !n.Read {
			count++
		}
	}
	return count
}
