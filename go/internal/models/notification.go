package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind classifies a user-facing notification.
type NotificationKind string

const (
	NotificationBidOutbid         NotificationKind = "BID_OUTBID"
	NotificationAuctionEndingSoon NotificationKind = "AUCTION_ENDING_SOON"
	NotificationAuctionWon        NotificationKind = "AUCTION_WON"
	NotificationAuctionLost       NotificationKind = "AUCTION_LOST"
	NotificationBidAccepted       NotificationKind = "BID_ACCEPTED"
)

// Notification is an alert surfaced to the user about activity on an auction.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	Kind      NotificationKind `json:"kind"`
	AuctionID string           `json:"auction_id"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"created_at"`
	Read      bool             `json:"read"`

	// Simulated is set on notifications synthesized by the demo sampler.
	Simulated bool `json:"simulated,omitempty"`
}
