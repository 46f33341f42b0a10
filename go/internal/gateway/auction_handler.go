package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/carauction/go/internal/bidding"
	"github.com/mcdev12/carauction/go/internal/catalog"
	"github.com/mcdev12/carauction/go/internal/events"
	"github.com/mcdev12/carauction/go/internal/models"
)

// AuctionEngine is the core the HTTP layer drives.
type AuctionEngine interface {
	SubmitBid(auctionID string, amount int64) (bidding.Receipt, error)
	OpenForBidding(auctionID string) (models.Auction, error)
	MarkNotificationRead(id uuid.UUID) error
	Auction(id string) (models.Auction, error)
	Auctions() []models.Auction
	Notification(id uuid.UUID) (models.Notification, error)
	Notifications() []models.Notification
	UnreadNotifications() int
	Subscribe(buffer int) (<-chan events.Event, func())
}

// AuctionListResponse is returned by GET /api/auctions
type AuctionListResponse struct {
	Auctions []models.Auction `json:"auctions"`
	Total    int              `json:"total"`
}

// NotificationListResponse is returned by GET /api/notifications
type NotificationListResponse struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
}

// BidRequest accepts the amount either as a number or as a string with
// thousands separators.
type BidRequest struct {
	Amount json.RawMessage `json:"amount"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error  string              `json:"error"`
	Reason models.RejectReason `json:"reason,omitempty"`
}

// AuctionHandler handles the REST surface of the engine
type AuctionHandler struct {
	engine AuctionEngine
}

// NewAuctionHandler creates a new auction handler
func NewAuctionHandler(engine AuctionEngine) *AuctionHandler {
	return &AuctionHandler{engine: engine}
}

// RegisterRoutes registers the REST routes
func (h *AuctionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/auctions", h.HandleListAuctions)
	mux.HandleFunc("GET /api/auctions/{id}", h.HandleGetAuction)
	mux.HandleFunc("POST /api/auctions/{id}/bids", h.HandleSubmitBid)
	mux.HandleFunc("POST /api/auctions/{id}/open", h.HandleOpen)
	mux.HandleFunc("GET /api/notifications", h.HandleListNotifications)
	mux.HandleFunc("GET /api/notifications/{id}", h.HandleGetNotification)
	mux.HandleFunc("POST /api/notifications/{id}/read", h.HandleMarkRead)
}

// HandleListAuctions lists auctions, optionally filtered by q, brand and year
func (h *AuctionHandler) HandleListAuctions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	year, err := catalog.ParseYear(query.Get("year"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	list := catalog.Filter(h.engine.Auctions(), catalog.Query{
		Text:  query.Get("q"),
		Brand: query.Get("brand"),
		Year:  year,
	})
	writeJSON(w, http.StatusOK, AuctionListResponse{Auctions: list, Total: len(list)})
}

// HandleGetAuction returns one auction
func (h *AuctionHandler) HandleGetAuction(w http.ResponseWriter, r *http.Request) {
	a, err := h.engine.Auction(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleSubmitBid places a bid
func (h *AuctionHandler) HandleSubmitBid(w http.ResponseWriter, r *http.Request) {
	auctionID := r.PathValue("id")

	var req BidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed request body", models.ErrInvalidAmount))
		return
	}
	amount, err := decodeAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	receipt, err := h.engine.SubmitBid(auctionID, amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, receipt)
}

func decodeAmount(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("%w: amount is required", models.ErrInvalidAmount)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return bidding.ParseAmount(s)
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("%w: %s", models.ErrInvalidAmount, raw)
	}
	return n, nil
}

// HandleOpen opens an upcoming auction for bidding
func (h *AuctionHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	a, err := h.engine.OpenForBidding(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleListNotifications lists notifications, newest first
func (h *AuctionHandler) HandleListNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NotificationListResponse{
		Notifications: h.engine.Notifications(),
		Unread:        h.engine.UnreadNotifications(),
	})
}

// HandleGetNotification returns one notification
func (h *AuctionHandler) HandleGetNotification(w http.ResponseWriter, r *http.Request) {
	id, err := notificationID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	n, err := h.engine.Notification(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// HandleMarkRead marks a notification read
func (h *AuctionHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := notificationID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.engine.MarkNotificationRead(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// notificationID parses the {id} path value. A malformed id cannot name a
// notification, so it reports not found.
func notificationID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", models.ErrNotificationNotFound, r.PathValue("id"))
	}
	return id, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrAuctionNotFound), errors.Is(err, models.ErrNotificationNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAuctionNotOpen):
		return http.StatusConflict
	case errors.Is(err, models.ErrBidTooLow), errors.Is(err, models.ErrInvalidAmount):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Reason: models.ReasonOf(err)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
