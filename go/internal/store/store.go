package store

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/mcdev12/carauction/go/internal/events"
	"github.com/mcdev12/carauction/go/internal/models"
)

// MutateFunc changes an auction while its owner lock is held and returns
// the events describing the change, in emission order.
type MutateFunc func(a *models.Auction) ([]events.Event, error)

// entry is the single owner of one auction's mutable state.
type entry struct {
	mu      sync.Mutex
	auction models.Auction

	// mirrors auction.Status so snapshots can be taken without the lock
	status atomic.Value
	title  string
}

func (e *entry) currentStatus() models.Status {
	return e.status.Load().(models.Status)
}

// Store is the in-memory mapping of auction id to auction state.
// Every mutation of one auction is serialized through that auction's lock;
// different auctions never contend with each other.
type Store struct {
	mu       sync.RWMutex
	auctions map[string]*entry
	order    []string

	publisher events.Publisher
}

// New creates an empty store publishing mutation events into pub.
func New(pub events.Publisher) *Store {
	return &Store{
		auctions:  make(map[string]*entry),
		publisher: pub,
	}
}

// Insert adds a fully initialised auction. Ids are unique for the life of the store.
func (s *Store) Insert(a models.Auction) error {
	if a.ID == "" {
		return fmt.Errorf("insert auction: empty id")
	}
	if a.StartPrice <= 0 {
		return fmt.Errorf("insert auction %s: start price must be positive", a.ID)
	}
	if a.CurrentBid != 0 && a.CurrentBid <= a.StartPrice {
		return fmt.Errorf("insert auction %s: current bid %d must exceed start price %d", a.ID, a.CurrentBid, a.StartPrice)
	}
	if a.RemainingSeconds < 0 || a.BidCount < 0 {
		return fmt.Errorf("insert auction %s: negative counters", a.ID)
	}

	e := &entry{auction: a, title: a.Title}
	e.status.Store(a.Status)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.auctions[a.ID]; exists {
		return fmt.Errorf("insert auction %s: duplicate id", a.ID)
	}
	s.auctions[a.ID] = e
	s.order = append(s.order, a.ID)
	return nil
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.auctions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrAuctionNotFound, id)
	}
	return e, nil
}

// Get returns a consistent copy of the auction.
func (s *Store) Get(id string) (models.Auction, error) {
	e, err := s.lookup(id)
	if err != nil {
		return models.Auction{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.auction, nil
}

// List returns consistent copies of all auctions in insertion order.
func (s *Store) List() []models.Auction {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.order))
	for _, id := range s.order {
		entries = append(entries, s.auctions[id])
	}
	s.mu.RUnlock()

	out := make([]models.Auction, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.auction)
		e.mu.Unlock()
	}
	return out
}

// Mutate runs fn with exclusive access to the auction. If fn succeeds the
// returned events are published before the lock is released, which keeps
// each auction's event stream in mutation order. A failing fn must leave
// the auction untouched.
func (s *Store) Mutate(id string, fn MutateFunc) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	working := e.auction
	evs, err := fn(&working)
	if err != nil {
		return err
	}
	e.auction = working
	e.status.Store(working.Status)

	for _, ev := range evs {
		s.publisher.Publish(ev)
	}
	return nil
}

// Title returns the immutable title without taking the auction lock, so it
// is safe to call from event handlers running under that lock.
func (s *Store) Title(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.auctions[id]
	if !ok {
		return "", false
	}
	return e.title, true
}

// IDsWithStatus returns a snapshot of auction ids whose status is one of
// statuses, sorted. It never takes an auction lock.
func (s *Store) IDsWithStatus(statuses ...models.Status) []string {
	want := make(map[models.Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, e := range s.auctions {
		if want[e.currentStatus()] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// OpenIDs is the snapshot of auctions currently accepting bids.
func (s *Store) OpenIDs() []string {
	return s.IDsWithStatus(models.StatusActive, models.StatusEnding)
}

// Len returns the number of auctions in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.auctions)
}
