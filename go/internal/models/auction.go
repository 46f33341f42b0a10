package models

import "time"

// Status is the lifecycle state of an auction.
type Status string

const (
	StatusUpcoming Status = "UPCOMING"
	StatusActive   Status = "ACTIVE"
	StatusEnding   Status = "ENDING"
	StatusClosed   Status = "CLOSED"
)

// Open reports whether bids may be accepted in this state.
func (s Status) Open() bool {
	return s == StatusActive || s == StatusEnding
}

// InspectionReport is the free-form condition report attached to a listing.
type InspectionReport map[string]string

// Auction is one vehicle listing with a decaying bidding window.
// Descriptive fields are immutable after creation; CurrentBid and BidCount
// are owned by the bid engine, RemainingSeconds by the countdown scheduler
// and Status by the lifecycle manager.
type Auction struct {
	ID           string `json:"id" yaml:"id"`
	Title        string `json:"title" yaml:"title"`
	Location     string `json:"location" yaml:"location"`
	Year         int    `json:"year" yaml:"year"`
	Mileage      int    `json:"mileage" yaml:"mileage"`
	Fuel         string `json:"fuel" yaml:"fuel"`
	Engine       string `json:"engine,omitempty" yaml:"engine"`
	Transmission string `json:"transmission,omitempty" yaml:"transmission"`
	Color        string `json:"color,omitempty" yaml:"color"`
	VIN          string `json:"vin,omitempty" yaml:"vin"`
	Condition    string `json:"condition,omitempty" yaml:"condition"`
	Seller       string `json:"seller,omitempty" yaml:"seller"`

	StartPrice   int64  `json:"start_price" yaml:"start_price"`
	CurrentBid   int64  `json:"current_bid" yaml:"current_bid"`
	ReservePrice *int64 `json:"reserve_price,omitempty" yaml:"reserve_price"`

	RemainingSeconds int64  `json:"remaining_seconds" yaml:"remaining_seconds"`
	Status           Status `json:"status" yaml:"-"`
	BidCount         int    `json:"bid_count" yaml:"bid_count"`

	Images           []string         `json:"images,omitempty" yaml:"images"`
	InspectionReport InspectionReport `json:"inspection_report,omitempty" yaml:"inspection_report"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// DisplayPrice is the price shown on a listing: the highest bid, or the
// start price while nobody has bid.
func (a Auction) DisplayPrice() int64 {
	if a.CurrentBid > 0 {
		return a.CurrentBid
	}
	return a.StartPrice
}

// MinimumBid is the amount a new bid has to exceed.
func (a Auction) MinimumBid() int64 {
	return max(a.CurrentBid, a.StartPrice)
}

// CreateAuctionParams describes a listing being seeded into the store.
// Upcoming marks a listing that has not yet opened for bidding.
type CreateAuctionParams struct {
	Auction  Auction
	Upcoming bool
}
