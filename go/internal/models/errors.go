package models

import "errors"

var (
	ErrAuctionNotFound      = errors.New("auction not found")
	ErrAuctionNotOpen       = errors.New("auction not open for bidding")
	ErrBidTooLow            = errors.New("bid too low")
	ErrInvalidAmount        = errors.New("invalid bid amount")
	ErrNotificationNotFound = errors.New("notification not found")
)

// RejectReason is the structured code reported to callers for a rejected command.
type RejectReason string

const (
	ReasonNone                 RejectReason = ""
	ReasonAuctionNotFound      RejectReason = "AUCTION_NOT_FOUND"
	ReasonAuctionNotOpen       RejectReason = "AUCTION_NOT_OPEN"
	ReasonBidTooLow            RejectReason = "BID_TOO_LOW"
	ReasonInvalidAmount        RejectReason = "INVALID_AMOUNT"
	ReasonNotificationNotFound RejectReason = "NOTIFICATION_NOT_FOUND"
	ReasonInternal             RejectReason = "INTERNAL"
)

// ReasonOf maps an error returned by the engine to its rejection code.
func ReasonOf(err error) RejectReason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrAuctionNotFound):
		return ReasonAuctionNotFound
	case errors.Is(err, ErrAuctionNotOpen):
		return ReasonAuctionNotOpen
	case errors.Is(err, ErrBidTooLow):
		return ReasonBidTooLow
	case errors.Is(err, ErrInvalidAmount):
		return ReasonInvalidAmount
	case errors.Is(err, ErrNotificationNotFound):
		return ReasonNotificationNotFound
	default:
		return ReasonInternal
	}
}
