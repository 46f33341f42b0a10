package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for auction event streams
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	engine            AuctionEngine
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, engine AuctionEngine) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		engine:            engine,
	}
}

// HandleEvents streams engine events. With ?auction_id= only that auction's
// events are delivered; without it, everything is.
func (h *WebSocketHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	auctionID := r.URL.Query().Get("auction_id")
	if auctionID != "" {
		if _, err := h.engine.Auction(auctionID); err != nil {
			writeError(w, err)
			return
		}
	}

	if err := h.connectionManager.UpgradeConnection(w, r, auctionID); err != nil {
		// the upgrader has already replied to the client
		log.Error().
			Err(err).
			Str("auction_id", auctionID).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.Stats()); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/events", h.HandleEvents)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
