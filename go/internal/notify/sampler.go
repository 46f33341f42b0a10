package notify

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/carauction/go/internal/models"
)

const (
	DefaultSamplerInterval    = 30 * time.Second
	DefaultSamplerProbability = 0.2
)

// Rand is the randomness the sampler draws from. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// SamplerConfig controls the demo notification generator.
type SamplerConfig struct {
	Enabled     bool
	Interval    time.Duration
	Probability float64
}

var demoKinds = []models.NotificationKind{
	models.NotificationBidOutbid,
	models.NotificationAuctionEndingSoon,
	models.NotificationBidAccepted,
}

// Sampler periodically synthesizes a notification for a random open
// auction so an idle demo still shows activity. It only ever appends to the
// notification log and never touches auction state.
type Sampler struct {
	cfg        SamplerConfig
	dispatcher *Dispatcher
	clock      clockwork.Clock
	openIDs    func() []string
	rng        Rand
}

// SamplerOption configures a Sampler.
type SamplerOption func(*Sampler)

// WithRand replaces the sampler's random source.
func WithRand(r Rand) SamplerOption {
	return func(s *Sampler) { s.rng = r }
}

// NewSampler constructs a Sampler with its own seed. openIDs must return a
// snapshot without taking any auction lock.
func NewSampler(cfg SamplerConfig, d *Dispatcher, clock clockwork.Clock, openIDs func() []string, opts ...SamplerOption) *Sampler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSamplerInterval
	}
	s := &Sampler{
		cfg:        cfg,
		dispatcher: d,
		clock:      clock,
		openIDs:    openIDs,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run samples on every interval until ctx is cancelled. A disabled sampler
// returns immediately.
func (s *Sampler) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Info().Msg("notification sampler disabled")
		return
	}

	ticker := s.clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	log.Info().
		Dur("interval", s.cfg.Interval).
		Float64("probability", s.cfg.Probability).
		Msg("notification sampler started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("notification sampler stopped")
			return
		case <-ticker.Chan():
			// a tick racing with shutdown must not produce anything
			if ctx.Err() != nil {
				return
			}
			s.Sample()
		}
	}
}

// Sample performs one draw. It reports the notification it created, if any.
func (s *Sampler) Sample() (models.Notification, bool) {
	if s.rng.Float64() >= s.cfg.Probability {
		return models.Notification{}, false
	}
	ids := s.openIDs()
	if len(ids) == 0 {
		return models.Notification{}, false
	}

	auctionID := ids[s.rng.Intn(len(ids))]
	kind := demoKinds[s.rng.Intn(len(demoKinds))]
	title := s.dispatcher.title(auctionID)

	var msg string
	switch kind {
	case models.NotificationBidOutbid:
		msg = fmt.Sprintf("Someone just outbid you on %s", title)
	case models.NotificationAuctionEndingSoon:
		msg = fmt.Sprintf("%s is ending soon", title)
	default:
		msg = fmt.Sprintf("A new bid was placed on %s", title)
	}
	return s.dispatcher.Emit(kind, auctionID, msg, true), true
}
