package events

import (
	"time"

	"github.com/google/uuid"
)

// Type represents the type of engine event
type Type string

const (
	TypeTimeUpdated         Type = "TimeUpdated"
	TypeStatusChanged       Type = "StatusChanged"
	TypeBidAccepted         Type = "BidAccepted"
	TypeAuctionClosed       Type = "AuctionClosed"
	TypeNotificationCreated Type = "NotificationCreated"
	TypeNotificationRead    Type = "NotificationRead"
)

// Event is the envelope for everything the engine emits.
// Data holds one of the payload structs from payloads.go.
type Event struct {
	ID        uuid.UUID `json:"id"`
	AuctionID string    `json:"auction_id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// New builds an event with a fresh id.
func New(typ Type, auctionID string, at time.Time, data any) Event {
	return Event{
		ID:        uuid.New(),
		AuctionID: auctionID,
		Type:      typ,
		Timestamp: at,
		Data:      data,
	}
}

// Publisher is implemented by anything events can be emitted into.
type Publisher interface {
	Publish(ev Event)
}
