package main

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/carauction/go/internal/catalog"
	"github.com/mcdev12/carauction/go/internal/config"
	"github.com/mcdev12/carauction/go/internal/engine"
	"github.com/mcdev12/carauction/go/internal/gateway"
	"github.com/mcdev12/carauction/go/internal/relay"
)

type Services struct {
	Engine  *engine.Engine
	Gateway *gateway.Service
	Relay   *relay.NATSRelay

	natsConn *nats.Conn
}

func setupServices(cfg *config.Config) (*Services, error) {
	// Catalog → Engine → Gateway / Relay
	listings, err := catalog.Load(cfg.SeedFile)
	if err != nil {
		return nil, err
	}

	eng := engine.New(cfg.Engine(), clockwork.NewRealClock())
	for _, p := range listings {
		if _, err := eng.Register(p); err != nil {
			return nil, fmt.Errorf("register auction %s: %w", p.Auction.ID, err)
		}
	}

	services := &Services{
		Engine:  eng,
		Gateway: gateway.NewService(gateway.DefaultConnectionConfig(), eng),
	}

	if cfg.RelayEnabled() {
		nc, err := relay.Connect(cfg.Relay())
		if err != nil {
			return nil, err
		}
		services.natsConn = nc
		services.Relay = relay.NewNATSRelay(nc, cfg.NATSSubjectPrefix)
	} else {
		log.Info().Msg("NATS_URL not set, event relay disabled")
	}

	return services, nil
}

func (s *Services) Close() {
	if s.natsConn != nil {
		if err := s.natsConn.Drain(); err != nil {
			log.Error().Err(err).Msg("failed to drain NATS connection")
		}
	}
}
