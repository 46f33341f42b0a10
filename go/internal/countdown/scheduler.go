package countdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/carauction/go/internal/events"
	"github.com/mcdev12/carauction/go/internal/lifecycle"
	"github.com/mcdev12/carauction/go/internal/models"
	"github.com/mcdev12/carauction/go/internal/store"
)

// DefaultTickInterval is how often each running auction loses one second.
const DefaultTickInterval = time.Second

// Scheduler owns one countdown per auction. Each countdown is an
// independent ticker goroutine, so a slow auction never delays another.
type Scheduler struct {
	store     *store.Store
	lifecycle *lifecycle.Manager
	clock     clockwork.Clock
	interval  time.Duration

	activeMu sync.Mutex
	active   map[string]context.CancelFunc
	stopped  bool
	wg       sync.WaitGroup
}

// NewScheduler creates a countdown scheduler.
func NewScheduler(s *store.Store, lm *lifecycle.Manager, clock clockwork.Clock, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Scheduler{
		store:     s,
		lifecycle: lm,
		clock:     clock,
		interval:  interval,
		active:    make(map[string]context.CancelFunc),
	}
}

// Tick decrements the auction's remaining time by one second.
// It reports whether the auction is closed after the call. Ticking an
// auction that is closed, or not yet open, is a no-op.
func (s *Scheduler) Tick(auctionID string) (closed bool, err error) {
	err = s.store.Mutate(auctionID, func(a *models.Auction) ([]events.Event, error) {
		if a.Status == models.StatusClosed {
			closed = true
			return nil, nil
		}
		if a.Status == models.StatusUpcoming || a.RemainingSeconds <= 0 {
			return nil, nil
		}

		now := s.clock.Now()
		a.RemainingSeconds--
		evs := []events.Event{
			events.New(events.TypeTimeUpdated, a.ID, now, events.TimeUpdatedPayload{
				RemainingSeconds: a.RemainingSeconds,
			}),
		}
		if t, ok := s.lifecycle.OnTimeUpdated(a); ok {
			evs = append(evs, statusChanged(a, t, now))
		}

		if a.RemainingSeconds == 0 {
			evs = append(evs, events.New(events.TypeAuctionClosed, a.ID, now, events.AuctionClosedPayload{
				FinalBid:   a.CurrentBid,
				BidCount:   a.BidCount,
				StartPrice: a.StartPrice,
			}))
			if t, ok := s.lifecycle.OnClosed(a); ok {
				evs = append(evs, statusChanged(a, t, now))
			}
			closed = true
		}
		return evs, nil
	})
	return closed, err
}

func statusChanged(a *models.Auction, t lifecycle.Transition, at time.Time) events.Event {
	log.Info().
		Str("auction_id", a.ID).
		Str("from", string(t.From)).
		Str("to", string(t.To)).
		Int64("remaining_seconds", a.RemainingSeconds).
		Msg("auction status changed")
	return events.New(events.TypeStatusChanged, a.ID, at, events.StatusChangedPayload{
		From:             t.From,
		To:               t.To,
		RemainingSeconds: a.RemainingSeconds,
	})
}

// Start begins ticking an auction until it closes or ctx is cancelled.
// Starting an auction that already has a running countdown does nothing.
func (s *Scheduler) Start(ctx context.Context, auctionID string) error {
	if _, err := s.store.Get(auctionID); err != nil {
		return err
	}

	s.activeMu.Lock()
	if s.stopped {
		s.activeMu.Unlock()
		log.Debug().Str("auction_id", auctionID).Msg("scheduler stopped, countdown not started")
		return nil
	}
	if _, running := s.active[auctionID]; running {
		s.activeMu.Unlock()
		log.Debug().Str("auction_id", auctionID).Msg("countdown already running")
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.active[auctionID] = cancel
	// registered under the lock so Stop's Wait always sees it
	s.wg.Add(1)
	s.activeMu.Unlock()

	ticker := s.clock.NewTicker(s.interval)
	go s.run(runCtx, auctionID, ticker)

	log.Debug().
		Str("auction_id", auctionID).
		Dur("interval", s.interval).
		Msg("countdown started")
	return nil
}

func (s *Scheduler) run(ctx context.Context, auctionID string, ticker clockwork.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()
	defer s.remove(auctionID)

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("auction_id", auctionID).Msg("countdown cancelled")
			return
		case <-ticker.Chan():
			closed, err := s.Tick(auctionID)
			if errors.Is(err, models.ErrAuctionNotFound) {
				// existence was checked in Start and auctions are never removed
				panic(fmt.Sprintf("countdown: auction %s vanished from store", auctionID))
			}
			if err != nil {
				log.Error().Err(err).Str("auction_id", auctionID).Msg("countdown tick failed")
				continue
			}
			if closed {
				log.Info().Str("auction_id", auctionID).Msg("auction closed, countdown stopped")
				return
			}
		}
	}
}

func (s *Scheduler) remove(auctionID string) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	if cancel, ok := s.active[auctionID]; ok {
		cancel()
		delete(s.active, auctionID)
	}
}

// Running reports whether the auction currently has a countdown.
func (s *Scheduler) Running(auctionID string) bool {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	_, ok := s.active[auctionID]
	return ok
}

// Stop cancels every countdown and waits for the goroutines to exit.
// Later calls to Start are ignored.
func (s *Scheduler) Stop() {
	s.activeMu.Lock()
	s.stopped = true
	for id, cancel := range s.active {
		cancel()
		log.Debug().Str("auction_id", id).Msg("cancelled countdown on shutdown")
	}
	s.activeMu.Unlock()
	s.wg.Wait()
}
