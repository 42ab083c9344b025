package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ConflictKind classifies why a slot could not be placed. Conflicts are
// returned as data, never as errors.
type ConflictKind string

const (
	// ConflictSold means capacity for the placement type is fully booked.
	ConflictSold ConflictKind = "sold"
	// ConflictHeld means an active reservation by another party blocks the slot.
	ConflictHeld ConflictKind = "held"
	// ConflictReserved is the degenerate case of held where no holder detail
	// could be retrieved. Declared but not emitted by any current path.
	ConflictReserved ConflictKind = "reserved"
	// ConflictCompetitive is a forward-compatible category for category
	// exclusivity clashes. Declared but not emitted by any current path.
	ConflictCompetitive ConflictKind = "competitive"
	// ConflictNoInventory means no episode exists, zero slots are configured,
	// or a lookup failed unrecoverably.
	ConflictNoInventory ConflictKind = "no_inventory"
	// ConflictMaxSpotsReached means the per-show-per-day cap was exceeded.
	ConflictMaxSpotsReached ConflictKind = "max_spots_reached"
)

// FallbackStrategy governs how the allocator fills spots the primary,
// quota-balanced pass could not satisfy.
type FallbackStrategy string

const (
	// FallbackStrict records a conflict for every individually unavailable
	// candidate and performs no second pass.
	FallbackStrict FallbackStrategy = "strict"
	// FallbackRelaxed re-runs the unplaced combinations without the
	// per-type/per-show/per-week quotas.
	FallbackRelaxed FallbackStrategy = "relaxed"
	// FallbackFillAnywhere currently behaves exactly like relaxed; the
	// distinct name is reserved for broadening beyond the requested shows.
	FallbackFillAnywhere FallbackStrategy = "fill_anywhere"
)

// ErrUnknownFallbackStrategy is returned by ParseFallbackStrategy for input
// that does not map to a known strategy.
var ErrUnknownFallbackStrategy = errors.New("unknown fallback strategy")

// ParseFallbackStrategy normalizes a strategy string. Empty input defaults
// to relaxed.
func ParseFallbackStrategy(s string) (FallbackStrategy, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "":
		return FallbackRelaxed, nil
	case "strict":
		return FallbackStrict, nil
	case "relaxed":
		return FallbackRelaxed, nil
	case "fill_anywhere", "fillanywhere":
		return FallbackFillAnywhere, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFallbackStrategy, s)
}

// Conflict describes one slot that could not be placed. The allocator's
// final shortfall conflict carries a zero ShowID and Date and summarizes
// the whole remainder.
type Conflict struct {
	ShowID        int           `json:"show_id,omitempty"`
	Date          time.Time     `json:"date,omitempty"`
	PlacementType PlacementType `json:"placement_type,omitempty"`
	Kind          ConflictKind  `json:"kind"`
	Reason        string        `json:"reason"`
	HeldBy        string        `json:"held_by,omitempty"`
	HoldExpiresAt *time.Time    `json:"hold_expires_at,omitempty"`
}

// AvailabilityStatus is the resolver's answer for one (show, date,
// placement type) triple.
type AvailabilityStatus struct {
	Available      bool          `json:"available"`
	EpisodeID      int           `json:"episode_id,omitempty"`
	PlacementType  PlacementType `json:"placement_type"`
	Rate           float64       `json:"rate"`
	AvailableSlots int           `json:"available_slots"`
	TotalSlots     int           `json:"total_slots"`
	Conflict       *Conflict     `json:"conflict,omitempty"`
}

// MultiSpotAllowance answers how many additional spots may be placed on one
// show/day under the per-show-per-day policy.
type MultiSpotAllowance struct {
	Allowed    bool   `json:"allowed"`
	MaxAllowed int    `json:"max_allowed"`
	Reason     string `json:"reason,omitempty"`
}

// BulkAllocationInput is one high-level spot batch request. It is
// constructed by the caller, immutable for the duration of an allocation
// run, and discarded afterwards. The engine does not re-validate ranges;
// a malformed weekday set or inverted date range yields an empty candidate
// set.
type BulkAllocationInput struct {
	AdvertiserID int `json:"advertiser_id"`
	CampaignID   int `json:"campaign_id"`
	AgencyID     int `json:"agency_id,omitempty"`

	ShowIDs        []int           `json:"show_ids"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
	Weekdays       []time.Weekday  `json:"weekdays"`
	PlacementTypes []PlacementType `json:"placement_types"`

	SpotsRequested int `json:"spots_requested"`
	SpotsPerWeek   int `json:"spots_per_week,omitempty"`

	AllowMultiplePerShowPerDay bool `json:"allow_multiple_per_show_per_day"`
	MaxPerShowPerDay           int  `json:"max_per_show_per_day,omitempty"`

	Fallback FallbackStrategy `json:"fallback_strategy"`
}

// SpotPlacement is one concrete slot in the proposed plan.
type SpotPlacement struct {
	ShowID        int           `json:"show_id"`
	ShowName      string        `json:"show_name,omitempty"`
	EpisodeID     int           `json:"episode_id"`
	Date          time.Time     `json:"date"`
	PlacementType PlacementType `json:"placement_type"`
	Rate          float64       `json:"rate"`
}

// CountPair tracks a requested-vs-placed pair for one summary dimension.
// Requested is the soft target used during the primary pass, not a hard
// requirement of the final result.
type CountPair struct {
	Requested int `json:"requested"`
	Placed    int `json:"placed"`
}

// AllocationSummary aggregates an allocation run. Placeable + Unplaceable
// always equals SpotsRequested.
type AllocationSummary struct {
	SpotsRequested  int                         `json:"spots_requested"`
	Placeable       int                         `json:"placeable"`
	Unplaceable     int                         `json:"unplaceable"`
	ByPlacementType map[PlacementType]CountPair `json:"by_placement_type"`
	ByShow          map[int]CountPair           `json:"by_show"`
	ByWeek          map[string]CountPair        `json:"by_week"`
}

// AllocationResult is the full output of one allocation run. Callers always
// receive a complete result, never an error, even when nothing could be
// placed.
type AllocationResult struct {
	RunID      string            `json:"run_id,omitempty"`
	WouldPlace []SpotPlacement   `json:"would_place"`
	Conflicts  []Conflict        `json:"conflicts"`
	Summary    AllocationSummary `json:"summary"`
	// Incomplete is set when a caller-imposed deadline aborted the candidate
	// loop before both passes finished.
	Incomplete bool `json:"incomplete,omitempty"`
}
