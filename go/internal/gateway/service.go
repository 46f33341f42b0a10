package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/carauction/go/internal/events"
)

// eventBuffer is how many engine events may queue before the gateway
// starts dropping them.
const eventBuffer = 1024

// Service is the HTTP and WebSocket face of the auction engine
type Service struct {
	engine            AuctionEngine
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	auctionHandler    *AuctionHandler

	eventCh     <-chan events.Event
	unsubscribe func()
}

// NewService creates the gateway and subscribes it to the engine's events.
func NewService(config ConnectionConfig, engine AuctionEngine) *Service {
	cm := NewConnectionManager(config)
	ch, unsubscribe := engine.Subscribe(eventBuffer)

	return &Service{
		engine:            engine,
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm, engine),
		auctionHandler:    NewAuctionHandler(engine),
		eventCh:           ch,
		unsubscribe:       unsubscribe,
	}
}

// Start fans engine events out to WebSocket clients until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting auction gateway service")

	go s.connectionManager.Start(ctx)
	defer s.unsubscribe()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("auction gateway service shutting down")
			return nil
		case ev, ok := <-s.eventCh:
			if !ok {
				return nil
			}
			s.connectionManager.Broadcast(ev)
		}
	}
}

// RegisterRoutes registers every gateway route
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.auctionHandler.RegisterRoutes(mux)
	s.wsHandler.RegisterRoutes(mux)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
	log.Info().Msg("auction gateway routes registered")
}

// Stats returns statistics about the gateway's connections
func (s *Service) Stats() ConnectionStats {
	return s.connectionManager.Stats()
}
