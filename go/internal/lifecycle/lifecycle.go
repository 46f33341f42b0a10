// Package lifecycle owns the auction state machine:
//
//	UPCOMING --open--> ACTIVE --remaining <= threshold--> ENDING
//	    any state --AuctionClosed--> CLOSED (terminal)
//
// Every method operates on an auction the caller already holds exclusively
// (inside store.Mutate) and reports the transition it made, if any.
package lifecycle

import (
	"time"

	"github.com/mcdev12/carauction/go/internal/models"
)

// DefaultEndingThreshold is the remaining time below which an active auction is closing soon.
const DefaultEndingThreshold = time.Hour

// Transition is one status change.
type Transition struct {
	From models.Status
	To   models.Status
}

// Manager derives and updates auction status.
type Manager struct {
	endingThresholdSec int64
}

// NewManager creates a manager with the given ending threshold.
func NewManager(endingThreshold time.Duration) *Manager {
	return &Manager{endingThresholdSec: int64(endingThreshold / time.Second)}
}

// EndingThresholdSeconds returns the configured threshold.
func (m *Manager) EndingThresholdSeconds() int64 {
	return m.endingThresholdSec
}

// Initial derives the status of a freshly seeded auction. Listings that have
// not opened yet start UPCOMING; everything else is derived from the
// remaining time as if the countdown had already been running.
func (m *Manager) Initial(upcoming bool, remainingSeconds int64) models.Status {
	switch {
	case upcoming:
		return models.StatusUpcoming
	case remainingSeconds <= 0:
		return models.StatusClosed
	case remainingSeconds <= m.endingThresholdSec:
		return models.StatusEnding
	default:
		return models.StatusActive
	}
}

// OnTimeUpdated applies the ending rule after a countdown tick.
// Only ACTIVE moves to ENDING; ENDING never goes back.
func (m *Manager) OnTimeUpdated(a *models.Auction) (Transition, bool) {
	if a.Status != models.StatusActive || a.RemainingSeconds > m.endingThresholdSec {
		return Transition{}, false
	}
	return m.set(a, models.StatusEnding)
}

// OnClosed moves the auction to CLOSED regardless of prior state.
func (m *Manager) OnClosed(a *models.Auction) (Transition, bool) {
	return m.set(a, models.StatusClosed)
}

// Open handles the external "open for bidding" signal. An UPCOMING auction
// becomes ACTIVE and, if it is already inside the ending window, ENDING
// right after. Any other state is left alone.
func (m *Manager) Open(a *models.Auction) []Transition {
	if a.Status != models.StatusUpcoming {
		return nil
	}
	var out []Transition
	if a.RemainingSeconds <= 0 {
		if t, ok := m.set(a, models.StatusClosed); ok {
			out = append(out, t)
		}
		return out
	}
	if t, ok := m.set(a, models.StatusActive); ok {
		out = append(out, t)
	}
	if t, ok := m.OnTimeUpdated(a); ok {
		out = append(out, t)
	}
	return out
}

func (m *Manager) set(a *models.Auction, to models.Status) (Transition, bool) {
	if a.Status == to {
		return Transition{}, false
	}
	if a.Status == models.StatusClosed {
		return Transition{}, false
	}
	t := Transition{From: a.Status, To: to}
	a.Status = to
	return t, true
}
