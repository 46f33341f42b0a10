package bidding

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/carauction/go/internal/events"
	"github.com/mcdev12/carauction/go/internal/models"
	"github.com/mcdev12/carauction/go/internal/store"
)

// Receipt describes an accepted bid.
type Receipt struct {
	AuctionID  string    `json:"auction_id"`
	Amount     int64     `json:"amount"`
	BidCount   int       `json:"bid_count"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// Engine validates bids and applies them to the store. It is the only
// writer of CurrentBid and BidCount.
type Engine struct {
	store *store.Store
	clock clockwork.Clock
}

// NewEngine creates a bid engine
func NewEngine(s *store.Store, clock clockwork.Clock) *Engine {
	return &Engine{store: s, clock: clock}
}

// SubmitBid validates amount against the auction's lifecycle state and
// current high bid. On success CurrentBid and BidCount change together and
// a BidAccepted event is emitted; on rejection nothing changes.
func (e *Engine) SubmitBid(auctionID string, amount int64) (Receipt, error) {
	if amount <= 0 {
		return Receipt{}, fmt.Errorf("%w: %d", models.ErrInvalidAmount, amount)
	}

	var receipt Receipt
	err := e.store.Mutate(auctionID, func(a *models.Auction) ([]events.Event, error) {
		if !a.Status.Open() {
			return nil, fmt.Errorf("%w: auction %s is %s", models.ErrAuctionNotOpen, a.ID, a.Status)
		}
		floor := a.MinimumBid()
		if amount <= floor {
			return nil, fmt.Errorf("%w: %d must exceed %d", models.ErrBidTooLow, amount, floor)
		}

		previous := a.CurrentBid
		a.CurrentBid = amount
		a.BidCount++

		now := e.clock.Now()
		receipt = Receipt{
			AuctionID:  a.ID,
			Amount:     amount,
			BidCount:   a.BidCount,
			AcceptedAt: now,
		}
		return []events.Event{
			events.New(events.TypeBidAccepted, a.ID, now, events.BidAcceptedPayload{
				Amount:      amount,
				PreviousBid: previous,
				BidCount:    a.BidCount,
			}),
		}, nil
	})
	if err != nil {
		log.Debug().
			Err(err).
			Str("auction_id", auctionID).
			Int64("amount", amount).
			Msg("bid rejected")
		return Receipt{}, err
	}

	log.Info().
		Str("auction_id", auctionID).
		Int64("amount", amount).
		Int("bid_count", receipt.BidCount).
		Msg("bid accepted")
	return receipt, nil
}

// ParseAmount turns user input such as "15,500,000" into a positive amount.
func ParseAmount(input string) (int64, error) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(input, ",", ""))
	if cleaned == "" {
		return 0, fmt.Errorf("%w: empty", models.ErrInvalidAmount)
	}
	amount, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", models.ErrInvalidAmount, input)
	}
	if amount <= 0 {
		return 0, fmt.Errorf("%w: %d", models.ErrInvalidAmount, amount)
	}
	return amount, nil
}
