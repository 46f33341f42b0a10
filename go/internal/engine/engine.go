// Package engine wires the auction core together: store, lifecycle,
// bidding, countdown and notifications, all sharing one event bus and one
// clock. Transports drive it through the command methods and observe it
// through Subscribe and the query methods.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/carauction/go/internal/bidding"
	"github.com/mcdev12/carauction/go/internal/countdown"
	"github.com/mcdev12/carauction/go/internal/events"
	"github.com/mcdev12/carauction/go/internal/lifecycle"
	"github.com/mcdev12/carauction/go/internal/models"
	"github.com/mcdev12/carauction/go/internal/notify"
	"github.com/mcdev12/carauction/go/internal/store"
)

// Config is the tunable behaviour of the core.
type Config struct {
	TickInterval    time.Duration
	EndingThreshold time.Duration
	Sampler         notify.SamplerConfig
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		TickInterval:    countdown.DefaultTickInterval,
		EndingThreshold: lifecycle.DefaultEndingThreshold,
		Sampler: notify.SamplerConfig{
			Enabled:     true,
			Interval:    notify.DefaultSamplerInterval,
			Probability: notify.DefaultSamplerProbability,
		},
	}
}

type options struct {
	resolver   notify.OutcomeResolver
	samplerRng notify.Rand
}

// Option customises an Engine.
type Option func(*options)

// WithOutcomeResolver enables won/lost notifications when auctions close.
func WithOutcomeResolver(r notify.OutcomeResolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithSamplerRand seeds the demo sampler with a fixed random source.
func WithSamplerRand(r notify.Rand) Option {
	return func(o *options) { o.samplerRng = r }
}

// Engine is the in-process auction core.
type Engine struct {
	cfg   Config
	clock clockwork.Clock

	bus           *events.Bus
	store         *store.Store
	lifecycle     *lifecycle.Manager
	bids          *bidding.Engine
	countdown     *countdown.Scheduler
	notifications *notify.Dispatcher
	sampler       *notify.Sampler

	mu        sync.Mutex
	runCtx    context.Context
	cancel    context.CancelFunc
	samplerWG sync.WaitGroup
}

// New builds an engine. Nothing runs until Start.
func New(cfg Config, clock clockwork.Clock, opts ...Option) *Engine {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	bus := events.NewBus()
	st := store.New(bus)
	lm := lifecycle.NewManager(cfg.EndingThreshold)

	var dispatcherOpts []notify.Option
	if o.resolver != nil {
		dispatcherOpts = append(dispatcherOpts, notify.WithOutcomeResolver(o.resolver))
	}
	dispatcher := notify.NewDispatcher(bus, clock, st.Title, dispatcherOpts...)
	bus.Handle(dispatcher.Handle)

	var samplerOpts []notify.SamplerOption
	if o.samplerRng != nil {
		samplerOpts = append(samplerOpts, notify.WithRand(o.samplerRng))
	}

	return &Engine{
		cfg:           cfg,
		clock:         clock,
		bus:           bus,
		store:         st,
		lifecycle:     lm,
		bids:          bidding.NewEngine(st, clock),
		countdown:     countdown.NewScheduler(st, lm, clock, cfg.TickInterval),
		notifications: dispatcher,
		sampler:       notify.NewSampler(cfg.Sampler, dispatcher, clock, st.OpenIDs, samplerOpts...),
	}
}

// Register seeds an auction. Its status is derived from the remaining time
// and no events are emitted. If the engine is running and the auction is
// open, its countdown starts immediately.
func (e *Engine) Register(p models.CreateAuctionParams) (models.Auction, error) {
	a := p.Auction
	a.Status = e.lifecycle.Initial(p.Upcoming, a.RemainingSeconds)
	if a.Status == models.StatusClosed {
		a.RemainingSeconds = 0
	}
	a.CreatedAt = e.clock.Now()

	if err := e.store.Insert(a); err != nil {
		return models.Auction{}, err
	}
	log.Info().
		Str("auction_id", a.ID).
		Str("status", string(a.Status)).
		Int64("remaining_seconds", a.RemainingSeconds).
		Msg("auction registered")

	if a.Status.Open() {
		if err := e.startCountdown(a.ID); err != nil {
			return models.Auction{}, err
		}
	}
	return a, nil
}

// Start launches countdowns for every open auction and the demo sampler.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.runCtx != nil {
		e.mu.Unlock()
		return errors.New("engine already started")
	}
	e.runCtx, e.cancel = context.WithCancel(ctx)
	runCtx := e.runCtx
	e.mu.Unlock()

	for _, id := range e.store.OpenIDs() {
		if err := e.countdown.Start(runCtx, id); err != nil {
			return fmt.Errorf("start countdown %s: %w", id, err)
		}
	}

	e.samplerWG.Add(1)
	go func() {
		defer e.samplerWG.Done()
		e.sampler.Run(runCtx)
	}()

	log.Info().
		Int("auctions", e.store.Len()).
		Dur("tick_interval", e.cfg.TickInterval).
		Int64("ending_threshold_seconds", e.lifecycle.EndingThresholdSeconds()).
		Msg("auction engine started")
	return nil
}

// Stop cancels every countdown and the sampler and waits for them and for
// any won/lost resolution still in flight.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	e.countdown.Stop()
	e.samplerWG.Wait()
	e.notifications.Wait()
	log.Info().Msg("auction engine stopped")
}

func (e *Engine) startCountdown(auctionID string) error {
	e.mu.Lock()
	runCtx := e.runCtx
	e.mu.Unlock()
	if runCtx == nil || runCtx.Err() != nil {
		return nil
	}
	return e.countdown.Start(runCtx, auctionID)
}

// SubmitBid places a bid. See bidding.Engine.SubmitBid.
func (e *Engine) SubmitBid(auctionID string, amount int64) (bidding.Receipt, error) {
	return e.bids.SubmitBid(auctionID, amount)
}

// OpenForBidding moves an UPCOMING auction into the bidding window and
// starts its countdown. Opening an auction in any other state is a no-op.
func (e *Engine) OpenForBidding(auctionID string) (models.Auction, error) {
	var opened models.Auction
	err := e.store.Mutate(auctionID, func(a *models.Auction) ([]events.Event, error) {
		transitions := e.lifecycle.Open(a)
		now := e.clock.Now()

		var evs []events.Event
		for _, t := range transitions {
			if t.To == models.StatusClosed {
				evs = append(evs, events.New(events.TypeAuctionClosed, a.ID, now, events.AuctionClosedPayload{
					FinalBid:   a.CurrentBid,
					BidCount:   a.BidCount,
					StartPrice: a.StartPrice,
				}))
			}
			evs = append(evs, events.New(events.TypeStatusChanged, a.ID, now, events.StatusChangedPayload{
				From:             t.From,
				To:               t.To,
				RemainingSeconds: a.RemainingSeconds,
			}))
		}
		opened = *a
		return evs, nil
	})
	if err != nil {
		return models.Auction{}, err
	}

	if opened.Status.Open() {
		log.Info().Str("auction_id", auctionID).Str("status", string(opened.Status)).Msg("auction opened for bidding")
		if err := e.startCountdown(auctionID); err != nil {
			return models.Auction{}, err
		}
	}
	return opened, nil
}

// MarkNotificationRead flips a notification to read. Repeating it is a no-op.
func (e *Engine) MarkNotificationRead(id uuid.UUID) error {
	return e.notifications.MarkRead(id)
}

// Tick advances one auction's countdown by a single step outside of the
// scheduled ticker.
func (e *Engine) Tick(auctionID string) (bool, error) {
	return e.countdown.Tick(auctionID)
}

// Auction returns the current state of one auction.
func (e *Engine) Auction(id string) (models.Auction, error) {
	return e.store.Get(id)
}

// Auctions returns every auction in registration order.
func (e *Engine) Auctions() []models.Auction {
	return e.store.List()
}

// Notification returns one notification.
func (e *Engine) Notification(id uuid.UUID) (models.Notification, error) {
	return e.notifications.Get(id)
}

// Notifications returns all notifications, newest first.
func (e *Engine) Notifications() []models.Notification {
	return e.notifications.List()
}

// UnreadNotifications counts unread notifications.
func (e *Engine) UnreadNotifications() int {
	return e.notifications.Unread()
}

// Subscribe streams every event emitted after the call. Slow subscribers
// lose events rather than stall the engine.
func (e *Engine) Subscribe(buffer int) (<-chan events.Event, func()) {
	return e.bus.Subscribe(buffer)
}
