package models

import (
	"context"
	"sort"
	"sync"
	"time"
)

// episodeKey identifies one episode by show and calendar day.
type episodeKey struct {
	ShowID int
	Day    string
}

func newEpisodeKey(showID int, airDate time.Time) episodeKey {
	return episodeKey{ShowID: showID, Day: DateOnly(airDate).Format("2006-01-02")}
}

// InMemoryInventoryStore is a thread-safe InventoryStore backed by maps.
// It is used by tests and by the MCP server's offline mode; production
// traffic goes through the Postgres-backed store.
type InMemoryInventoryStore struct {
	mu           sync.RWMutex
	shows        map[int]Show
	episodes     map[episodeKey]Episode
	inventory    map[int]EpisodeInventory
	reservations []ReservationHold
	scheduled    []ScheduledSpot
	rateCards    map[int][]RateCard
}

var _ InventoryStore = (*InMemoryInventoryStore)(nil)

// NewInMemoryInventoryStore returns an empty store ready for seeding.
func NewInMemoryInventoryStore() *InMemoryInventoryStore {
	return &InMemoryInventoryStore{
		shows:     make(map[int]Show),
		episodes:  make(map[episodeKey]Episode),
		inventory: make(map[int]EpisodeInventory),
		rateCards: make(map[int][]RateCard),
	}
}

// AddShow registers or replaces a show.
func (s *InMemoryInventoryStore) AddShow(show Show) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shows[show.ID] = show
}

// AddEpisode registers an episode together with its slot ledger. A second
// episode for the same (show, day) replaces the first; the engine only ever
// considers one per day.
func (s *InMemoryInventoryStore) AddEpisode(ep Episode, inv EpisodeInventory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep.AirDate = DateOnly(ep.AirDate)
	inv.EpisodeID = ep.ID
	s.episodes[newEpisodeKey(ep.ShowID, ep.AirDate)] = ep
	s.inventory[ep.ID] = inv
}

// AddReservation registers a hold.
func (s *InMemoryInventoryStore) AddReservation(h ReservationHold) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations = append(s.reservations, h)
}

// AddScheduledSpot registers a committed spot.
func (s *InMemoryInventoryStore) AddScheduledSpot(sp ScheduledSpot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp.AirDate = DateOnly(sp.AirDate)
	s.scheduled = append(s.scheduled, sp)
}

// AddRateCard registers a rate card entry for a show.
func (s *InMemoryInventoryStore) AddRateCard(rc RateCard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rc.EffectiveDate = DateOnly(rc.EffectiveDate)
	s.rateCards[rc.ShowID] = append(s.rateCards[rc.ShowID], rc)
}

func (s *InMemoryInventoryStore) GetShow(ctx context.Context, showID int) (*Show, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	show, ok := s.shows[showID]
	if !ok {
		return nil, ErrNotFound
	}
	return &show, nil
}

func (s *InMemoryInventoryStore) GetEpisode(ctx context.Context, showID int, airDate time.Time) (*Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ep, ok := s.episodes[newEpisodeKey(showID, airDate)]
	if !ok {
		return nil, ErrNotFound
	}
	return &ep, nil
}

func (s *InMemoryInventoryStore) GetEpisodeInventory(ctx context.Context, episodeID int) (*EpisodeInventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.inventory[episodeID]
	if !ok {
		return nil, ErrNotFound
	}
	return &inv, nil
}

func (s *InMemoryInventoryStore) GetActiveReservation(ctx context.Context, episodeID int, pt PlacementType, now time.Time) (*ReservationHold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.reservations {
		h := s.reservations[i]
		if h.EpisodeID != episodeID || h.PlacementType != pt {
			continue
		}
		if h.ActiveAt(now) {
			return &h, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryInventoryStore) CountScheduledSpots(ctx context.Context, showID int, airDate time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	day := DateOnly(airDate)
	n := 0
	for _, sp := range s.scheduled {
		if sp.ShowID == showID && sp.AirDate.Equal(day) {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryInventoryStore) CountScheduledSpotsByType(ctx context.Context, showID int, airDate time.Time, pt PlacementType) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	day := DateOnly(airDate)
	n := 0
	for _, sp := range s.scheduled {
		if sp.ShowID == showID && sp.AirDate.Equal(day) && sp.PlacementType == pt {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryInventoryStore) GetRateCard(ctx context.Context, showID int, onDate time.Time) (*RateCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cards := s.rateCards[showID]
	if len(cards) == 0 {
		return nil, ErrNotFound
	}
	day := DateOnly(onDate)
	sorted := make([]RateCard, len(cards))
	copy(sorted, cards)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].EffectiveDate.After(sorted[j].EffectiveDate)
	})
	for i := range sorted {
		if !sorted[i].EffectiveDate.After(day) {
			rc := sorted[i]
			return &rc, nil
		}
	}
	return nil, ErrNotFound
}
