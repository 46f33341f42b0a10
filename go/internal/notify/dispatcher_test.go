package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/carauction/go/internal/events"
	"github.com/mcdev12/carauction/go/internal/models"
)

type recorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func (r *recorder) Publish(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
}

func (r *recorder) ofType(typ events.Type) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, ev := range r.evs {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func titles(auctionID string) (string, bool) {
	if auctionID == "1" {
		return "2015 Hyundai Genesis Coupe", true
	}
	return "", false
}

func newDispatcher(opts ...Option) (*Dispatcher, *recorder, *clockwork.FakeClock) {
	rec := &recorder{}
	clock := clockwork.NewFakeClock()
	return NewDispatcher(rec, clock, titles, opts...), rec, clock
}

func TestFormatWon(t *testing.T) {
	assert.Equal(t, "₩18,500,000", FormatWon(18500000))
	assert.Equal(t, "₩900", FormatWon(900))
}

func TestHandle_BidAccepted(t *testing.T) {
	d, rec, _ := newDispatcher()

	d.Handle(events.New(events.TypeBidAccepted, "1", time.Now(), events.BidAcceptedPayload{
		Amount: 19000000, PreviousBid: 18500000, BidCount: 25,
	}))

	list := d.List()
	require.Len(t, list, 2)
	assert.Equal(t, models.NotificationBidOutbid, list[0].Kind, "newest first")
	assert.Equal(t, models.NotificationBidAccepted, list[1].Kind)
	assert.Contains(t, list[1].Message, "₩19,000,000")
	assert.Contains(t, list[1].Message, "Genesis Coupe")
	for _, n := range list {
		assert.False(t, n.Read)
		assert.False(t, n.Simulated)
		assert.NotEqual(t, uuid.Nil, n.ID)
	}
	assert.Len(t, rec.ofType(events.TypeNotificationCreated), 2)
}

func TestHandle_FirstBidIsNotAnOutbid(t *testing.T) {
	d, _, _ := newDispatcher()

	d.Handle(events.New(events.TypeBidAccepted, "2", time.Now(), events.BidAcceptedPayload{Amount: 100, BidCount: 1}))

	list := d.List()
	require.Len(t, list, 1)
	assert.Equal(t, models.NotificationBidAccepted, list[0].Kind)
	assert.Contains(t, list[0].Message, "2", "unknown title falls back to the id")
}

func TestHandle_StatusChanged(t *testing.T) {
	d, _, _ := newDispatcher()

	d.Handle(events.New(events.TypeStatusChanged, "1", time.Now(), events.StatusChangedPayload{
		From: models.StatusUpcoming, To: models.StatusActive, RemainingSeconds: 7200,
	}))
	assert.Empty(t, d.List())

	d.Handle(events.New(events.TypeStatusChanged, "1", time.Now(), events.StatusChangedPayload{
		From: models.StatusActive, To: models.StatusEnding, RemainingSeconds: 3600,
	}))
	list := d.List()
	require.Len(t, list, 1)
	assert.Equal(t, models.NotificationAuctionEndingSoon, list[0].Kind)
	assert.Contains(t, list[0].Message, "1h 00m")
}

func TestHandle_AuctionClosed(t *testing.T) {
	closed := events.New(events.TypeAuctionClosed, "1", time.Now(), events.AuctionClosedPayload{
		FinalBid: 18500000, BidCount: 24, StartPrice: 15000000,
	})

	t.Run("no resolver", func(t *testing.T) {
		d, _, _ := newDispatcher()
		d.Handle(closed)
		d.Wait()
		assert.Empty(t, d.List())
	})

	t.Run("won", func(t *testing.T) {
		d, _, _ := newDispatcher(WithOutcomeResolver(func(string, events.AuctionClosedPayload) (bool, bool) {
			return true, true
		}))
		d.Handle(closed)
		d.Wait()
		require.Len(t, d.List(), 1)
		assert.Equal(t, models.NotificationAuctionWon, d.List()[0].Kind)
	})

	t.Run("lost", func(t *testing.T) {
		d, _, _ := newDispatcher(WithOutcomeResolver(func(string, events.AuctionClosedPayload) (bool, bool) {
			return false, true
		}))
		d.Handle(closed)
		d.Wait()
		require.Len(t, d.List(), 1)
		assert.Equal(t, models.NotificationAuctionLost, d.List()[0].Kind)
	})

	t.Run("unknown outcome", func(t *testing.T) {
		d, _, _ := newDispatcher(WithOutcomeResolver(func(string, events.AuctionClosedPayload) (bool, bool) {
			return false, false
		}))
		d.Handle(closed)
		d.Wait()
		assert.Empty(t, d.List())
	})
}

func TestHandle_AuctionClosedResolvesOffTheCallerGoroutine(t *testing.T) {
	// a resolver that needs a lock the publisher is holding must not stall it
	var held sync.Mutex
	d, _, _ := newDispatcher(WithOutcomeResolver(func(string, events.AuctionClosedPayload) (bool, bool) {
		held.Lock()
		defer held.Unlock()
		return true, true
	}))

	held.Lock()
	d.Handle(events.New(events.TypeAuctionClosed, "1", time.Now(), events.AuctionClosedPayload{FinalBid: 10}))
	assert.Empty(t, d.List(), "outcome is resolved after the publisher lets go")
	held.Unlock()

	d.Wait()
	require.Len(t, d.List(), 1)
	assert.Equal(t, models.NotificationAuctionWon, d.List()[0].Kind)
}

func TestHandle_IgnoresOtherEvents(t *testing.T) {
	d, _, _ := newDispatcher()
	d.Handle(events.New(events.TypeTimeUpdated, "1", time.Now(), events.TimeUpdatedPayload{RemainingSeconds: 10}))
	d.Handle(events.New(events.TypeNotificationCreated, "1", time.Now(), events.NotificationCreatedPayload{}))
	assert.Empty(t, d.List())
}

func TestMarkRead_Idempotent(t *testing.T) {
	d, rec, _ := newDispatcher()
	n := d.Emit(models.NotificationBidAccepted, "1", "hello", false)
	assert.Equal(t, 1, d.Unread())

	require.NoError(t, d.MarkRead(n.ID))
	require.NoError(t, d.MarkRead(n.ID))

	got, err := d.Get(n.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)
	assert.Zero(t, d.Unread())

	reads := rec.ofType(events.TypeNotificationRead)
	require.Len(t, reads, 1, "second mark-read emits nothing")
	assert.Equal(t, events.NotificationReadPayload{NotificationID: n.ID.String()}, reads[0].Data)
}

func TestMarkRead_Unknown(t *testing.T) {
	d, _, _ := newDispatcher()
	assert.ErrorIs(t, d.MarkRead(uuid.New()), models.ErrNotificationNotFound)
	_, err := d.Get(uuid.New())
	assert.ErrorIs(t, err, models.ErrNotificationNotFound)
}

func TestList_NewestFirst(t *testing.T) {
	d, _, clock := newDispatcher()
	first := d.Emit(models.NotificationBidAccepted, "1", "a", false)
	clock.Advance(time.Second)
	second := d.Emit(models.NotificationBidOutbid, "1", "b", false)

	list := d.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
}

func TestHandle_ReentrantPublishOnBus(t *testing.T) {
	bus := events.NewBus()
	d := NewDispatcher(bus, clockwork.NewFakeClock(), titles)
	bus.Handle(d.Handle)
	ch, cancel := bus.Subscribe(8)
	defer cancel()

	bus.Publish(events.New(events.TypeBidAccepted, "1", time.Now(), events.BidAcceptedPayload{Amount: 5, BidCount: 1}))

	var types []events.Type
	for len(ch) > 0 {
		types = append(types, (<-ch).Type)
	}
	assert.Equal(t, []events.Type{events.TypeNotificationCreated, events.TypeBidAccepted}, types)
}
