// Package relay forwards engine events to NATS so services outside the
// process can follow auctions.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/carauction/go/internal/events"
)

// Config holds the NATS connection settings.
type Config struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConfig returns default relay configuration
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "auction.events",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Publisher is the part of *nats.Conn the relay needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Connect dials NATS with reconnect handling.
func Connect(cfg Config) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("auctiond-relay"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// Envelope is the wire form of an event.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	AuctionID string          `json:"auctionId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Subject returns the subject an event is published on.
func Subject(prefix string, ev events.Event) string {
	return fmt.Sprintf("%s.%s.%s", prefix, ev.AuctionID, ev.Type)
}

// Encode marshals ev into its envelope.
func Encode(ev events.Event) ([]byte, error) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return json.Marshal(Envelope{
		EventID:   ev.ID.String(),
		EventType: string(ev.Type),
		AuctionID: ev.AuctionID,
		Timestamp: ev.Timestamp,
		Payload:   payload,
	})
}

// NATSRelay publishes every event it receives.
type NATSRelay struct {
	pub    Publisher
	prefix string
}

// NewNATSRelay creates a relay publishing under prefix.
func NewNATSRelay(pub Publisher, prefix string) *NATSRelay {
	return &NATSRelay{pub: pub, prefix: prefix}
}

// Run forwards events until ctx is done or the channel closes. Publish
// failures are logged and the event is dropped.
func (r *NATSRelay) Run(ctx context.Context, evs <-chan events.Event) {
	log.Info().Str("prefix", r.prefix).Msg("event relay started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event relay stopped")
			return
		case ev, ok := <-evs:
			if !ok {
				log.Info().Msg("event stream closed, relay stopping")
				return
			}
			if err := r.forward(ev); err != nil {
				log.Error().
					Err(err).
					Str("event_id", ev.ID.String()).
					Str("event_type", string(ev.Type)).
					Msg("failed to relay event")
			}
		}
	}
}

func (r *NATSRelay) forward(ev events.Event) error {
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	subject := Subject(r.prefix, ev)
	if err := r.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	log.Debug().
		Str("subject", subject).
		Int("size", len(data)).
		Msg("relayed event")
	return nil
}
