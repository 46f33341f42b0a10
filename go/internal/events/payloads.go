package events

import "github.com/mcdev12/carauction/go/internal/models"

// Event payload types shared by the engine components, the gateway and the relay.

// TimeUpdatedPayload is the payload for a TimeUpdated event
type TimeUpdatedPayload struct {
	RemainingSeconds int64 `json:"remaining_seconds"`
}

// StatusChangedPayload is the payload for a StatusChanged event
type StatusChangedPayload struct {
	From             models.Status `json:"from"`
	To               models.Status `json:"to"`
	RemainingSeconds int64         `json:"remaining_seconds"`
}

// BidAcceptedPayload is the payload for a BidAccepted event
type BidAcceptedPayload struct {
	Amount      int64 `json:"amount"`
	PreviousBid int64 `json:"previous_bid"`
	BidCount    int   `json:"bid_count"`
}

// AuctionClosedPayload is the payload for an AuctionClosed event
type AuctionClosedPayload struct {
	FinalBid   int64 `json:"final_bid"`
	BidCount   int   `json:"bid_count"`
	StartPrice int64 `json:"start_price"`
}

// NotificationCreatedPayload is the payload for a NotificationCreated event
type NotificationCreatedPayload struct {
	Notification models.Notification `json:"notification"`
}

// NotificationReadPayload is the payload for a NotificationRead event
type NotificationReadPayload struct {
	NotificationID string `json:"notification_id"`
}
