package engine

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/carauction/go/internal/events"
	"github.com/mcdev12/carauction/go/internal/models"
	"github.com/mcdev12/carauction/go/internal/notify"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Sampler.Enabled = false
	return cfg
}

func listing(id string, remaining int64) models.Auction {
	return models.Auction{ID: id, Title: "Listing " + id, StartPrice: 15000000, RemainingSeconds: remaining}
}

func drain(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func types(evs []events.Event) []events.Type {
	out := make([]events.Type, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Type)
	}
	return out
}

func TestRegister_DerivesStatusSilently(t *testing.T) {
	e := New(testConfig(), clockwork.NewFakeClock())
	ch, cancel := e.Subscribe(16)
	defer cancel()

	tests := []struct {
		id        string
		remaining int64
		upcoming  bool
		want      models.Status
	}{
		{"active", 8130, false, models.StatusActive},
		{"ending", 2700, false, models.StatusEnding},
		{"boundary", 3600, false, models.StatusEnding},
		{"upcoming", 86400, true, models.StatusUpcoming},
		{"expired", 0, false, models.StatusClosed},
	}
	for _, tt := range tests {
		a, err := e.Register(models.CreateAuctionParams{Auction: listing(tt.id, tt.remaining), Upcoming: tt.upcoming})
		require.NoError(t, err, tt.id)
		assert.Equal(t, tt.want, a.Status, tt.id)
	}
	assert.Empty(t, drain(ch))
	assert.Len(t, e.Auctions(), len(tests))

	_, err := e.Register(models.CreateAuctionParams{Auction: listing("active", 10)})
	assert.Error(t, err, "duplicate id")
}

func TestSubmitBid_NotifiesAndStreams(t *testing.T) {
	e := New(testConfig(), clockwork.NewFakeClock())
	_, err := e.Register(models.CreateAuctionParams{Auction: listing("1", 8130)})
	require.NoError(t, err)
	ch, cancel := e.Subscribe(16)
	defer cancel()

	r, err := e.SubmitBid("1", 16000000)
	require.NoError(t, err)
	assert.Equal(t, 1, r.BidCount)

	_, err = e.SubmitBid("1", 17000000)
	require.NoError(t, err)

	_, err = e.SubmitBid("1", 17000000)
	assert.ErrorIs(t, err, models.ErrBidTooLow)

	a, err := e.Auction("1")
	require.NoError(t, err)
	assert.Equal(t, int64(17000000), a.CurrentBid)
	assert.Equal(t, 2, a.BidCount)

	// first bid: accepted; second bid: accepted + outbid
	notes := e.Notifications()
	require.Len(t, notes, 3)
	assert.Equal(t, models.NotificationBidOutbid, notes[0].Kind)
	assert.Equal(t, 3, e.UnreadNotifications())

	assert.Equal(t, []events.Type{
		events.TypeNotificationCreated, events.TypeBidAccepted,
		events.TypeNotificationCreated, events.TypeNotificationCreated, events.TypeBidAccepted,
	}, types(drain(ch)))
}

func TestOpenForBidding(t *testing.T) {
	e := New(testConfig(), clockwork.NewFakeClock())
	_, err := e.Register(models.CreateAuctionParams{Auction: listing("far", 86400), Upcoming: true})
	require.NoError(t, err)
	_, err = e.Register(models.CreateAuctionParams{Auction: listing("near", 1800), Upcoming: true})
	require.NoError(t, err)

	_, err = e.SubmitBid("far", 16000000)
	assert.ErrorIs(t, err, models.ErrAuctionNotOpen)

	ch, cancel := e.Subscribe(16)
	defer cancel()

	a, err := e.OpenForBidding("far")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, a.Status)
	evs := drain(ch)
	require.Len(t, evs, 1)
	assert.Equal(t, events.StatusChangedPayload{From: models.StatusUpcoming, To: models.StatusActive, RemainingSeconds: 86400}, evs[0].Data)

	a, err = e.OpenForBidding("far")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, a.Status)
	assert.Empty(t, drain(ch), "opening twice is a no-op")

	a, err = e.OpenForBidding("near")
	require.NoError(t, err)
	assert.Equal(t, models.StatusEnding, a.Status)
	evs = drain(ch)
	// UPCOMING->ACTIVE, NotificationCreated (ending soon), ACTIVE->ENDING
	assert.Equal(t, []events.Type{events.TypeStatusChanged, events.TypeNotificationCreated, events.TypeStatusChanged}, types(evs))

	_, err = e.SubmitBid("far", 16000000)
	assert.NoError(t, err)

	_, err = e.OpenForBidding("missing")
	assert.ErrorIs(t, err, models.ErrAuctionNotFound)
}

func TestStart_CountsDownToClose(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := New(testConfig(), clock, WithOutcomeResolver(func(_ string, p events.AuctionClosedPayload) (bool, bool) {
		return p.FinalBid > 0, true
	}))
	_, err := e.Register(models.CreateAuctionParams{Auction: listing("1", 2)})
	require.NoError(t, err)
	_, err = e.SubmitBid("1", 16000000)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.Start(ctx))
	defer e.Stop()
	assert.Error(t, e.Start(ctx), "second start")

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	assert.Eventually(t, func() bool {
		a, _ := e.Auction("1")
		return a.RemainingSeconds == 1
	}, time.Second, 5*time.Millisecond)
	clock.Advance(time.Second)
	assert.Eventually(t, func() bool {
		a, _ := e.Auction("1")
		return a.Status == models.StatusClosed
	}, time.Second, 5*time.Millisecond)

	_, err = e.SubmitBid("1", 17000000)
	assert.ErrorIs(t, err, models.ErrAuctionNotOpen)

	e.notifications.Wait()
	assert.Equal(t, models.NotificationAuctionWon, e.Notifications()[0].Kind)
}

func TestOutcomeResolver_ReadsClosedAuction(t *testing.T) {
	var e *Engine
	seen := make(chan models.Auction, 1)
	e = New(testConfig(), clockwork.NewFakeClock(), WithOutcomeResolver(func(id string, p events.AuctionClosedPayload) (bool, bool) {
		a, err := e.Auction(id)
		if err != nil {
			return false, false
		}
		seen <- a
		return a.CurrentBid == p.FinalBid && p.FinalBid > 0, true
	}))
	_, err := e.Register(models.CreateAuctionParams{Auction: listing("1", 1)})
	require.NoError(t, err)
	_, err = e.SubmitBid("1", 16000000)
	require.NoError(t, err)

	done := make(chan bool, 1)
	go func() {
		closed, _ := e.Tick("1")
		done <- closed
	}()
	select {
	case closed := <-done:
		assert.True(t, closed)
	case <-time.After(2 * time.Second):
		t.Fatal("tick did not return while the resolver read the auction")
	}

	select {
	case a := <-seen:
		assert.Equal(t, models.StatusClosed, a.Status)
		assert.Zero(t, a.RemainingSeconds)
	case <-time.After(2 * time.Second):
		t.Fatal("resolver never observed the auction")
	}

	e.notifications.Wait()
	assert.Equal(t, models.NotificationAuctionWon, e.Notifications()[0].Kind)

	// the auction stays readable and rejects further bids
	_, err = e.SubmitBid("1", 17000000)
	assert.ErrorIs(t, err, models.ErrAuctionNotOpen)
}

func TestOpenForBidding_StartsCountdownWhenRunning(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := New(testConfig(), clock)
	_, err := e.Register(models.CreateAuctionParams{Auction: listing("1", 100), Upcoming: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.Start(ctx))
	defer e.Stop()

	_, err = e.OpenForBidding("1")
	require.NoError(t, err)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(time.Second)
	assert.Eventually(t, func() bool {
		a, _ := e.Auction("1")
		return a.RemainingSeconds == 99
	}, time.Second, 5*time.Millisecond)
}

func TestStart_LogsEndingThreshold(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	cfg := testConfig()
	cfg.EndingThreshold = 30 * time.Minute
	e := New(cfg, clockwork.NewFakeClock())
	require.NoError(t, e.Start(context.Background()))
	e.Stop()

	assert.Contains(t, buf.String(), `"ending_threshold_seconds":1800`)
}

func TestStop_HaltsCountdown(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := New(testConfig(), clock)
	_, err := e.Register(models.CreateAuctionParams{Auction: listing("1", 100)})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	e.Stop()

	clock.Advance(5 * time.Second)
	time.Sleep(10 * time.Millisecond)
	a, _ := e.Auction("1")
	assert.Equal(t, int64(100), a.RemainingSeconds)
}

func TestMarkNotificationRead(t *testing.T) {
	e := New(testConfig(), clockwork.NewFakeClock())
	_, err := e.Register(models.CreateAuctionParams{Auction: listing("1", 8130)})
	require.NoError(t, err)
	_, err = e.SubmitBid("1", 16000000)
	require.NoError(t, err)

	n := e.Notifications()[0]
	ch, cancel := e.Subscribe(4)
	defer cancel()

	require.NoError(t, e.MarkNotificationRead(n.ID))
	require.NoError(t, e.MarkNotificationRead(n.ID))
	got, err := e.Notification(n.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)
	assert.Equal(t, []events.Type{events.TypeNotificationRead}, types(drain(ch)))
}

func TestSampler_NeverTouchesAuctions(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cfg := testConfig()
	cfg.Sampler = notify.SamplerConfig{Enabled: true, Interval: 30 * time.Second, Probability: 1}
	cfg.TickInterval = time.Hour
	e := New(cfg, clock)
	_, err := e.Register(models.CreateAuctionParams{Auction: listing("1", 8130)})
	require.NoError(t, err)
	_, err = e.Register(models.CreateAuctionParams{Auction: listing("2", 100), Upcoming: true})
	require.NoError(t, err)
	before := e.Auctions()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.Start(ctx))
	defer e.Stop()

	// one countdown ticker plus the sampler ticker
	require.NoError(t, clock.BlockUntilContext(ctx, 2))
	clock.Advance(30 * time.Second)
	assert.Eventually(t, func() bool { return len(e.Notifications()) == 1 }, time.Second, 5*time.Millisecond)

	n := e.Notifications()[0]
	assert.True(t, n.Simulated)
	assert.Equal(t, "1", n.AuctionID, "only open auctions are sampled")
	assert.Equal(t, before, e.Auctions())
}
