package models

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an entity is not found in the data store.
var ErrNotFound = errors.New("entity not found")

// InventoryStore provides the read side of the inventory/booking datastore.
// The allocation engine never writes through this interface; committing a
// plan is the booking subsystem's job.
//
// The allocator calls the resolver many times per request, so
// implementations should serve these reads from a consistent snapshot (one
// transaction or a consistent replica). Inconsistent reads between calls
// make the resolver's capacity recomputation unreliable.
type InventoryStore interface {
	// GetShow returns show metadata, or ErrNotFound.
	GetShow(ctx context.Context, showID int) (*Show, error)

	// GetEpisode resolves the episode for a show and air date, or
	// ErrNotFound when the show has no episode that day.
	GetEpisode(ctx context.Context, showID int, airDate time.Time) (*Episode, error)

	// GetEpisodeInventory returns the per-placement-type slot ledger for an
	// episode, or ErrNotFound.
	GetEpisodeInventory(ctx context.Context, episodeID int) (*EpisodeInventory, error)

	// GetActiveReservation returns a hold covering the episode+placement
	// pool that is active at now (status held/pending/confirmed, not
	// expired), or ErrNotFound when no such hold exists.
	GetActiveReservation(ctx context.Context, episodeID int, pt PlacementType, now time.Time) (*ReservationHold, error)

	// CountScheduledSpots counts committed spots for a show on one day
	// across all placement types.
	CountScheduledSpots(ctx context.Context, showID int, airDate time.Time) (int, error)

	// CountScheduledSpotsByType counts committed spots for a show on one day
	// for a single placement type.
	CountScheduledSpotsByType(ctx context.Context, showID int, airDate time.Time, pt PlacementType) (int, error)

	// GetRateCard returns the show's rate card entry with the most recent
	// effective date at or before onDate, or ErrNotFound when the show has
	// no rate card yet.
	GetRateCard(ctx context.Context, showID int, onDate time.Time) (*RateCard, error)
}
