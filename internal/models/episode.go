package models

import (
	"fmt"
	"time"
)

// Episode statuses as stored by the booking subsystem.
const (
	EpisodeStatusScheduled = "scheduled"
	EpisodeStatusPublished = "published"
	EpisodeStatusArchived  = "archived"
)

// Episode is the slot container for one show on one air date. At most one
// episode per (show, date) is considered for placement.
type Episode struct {
	ID      int       `json:"id"`
	ShowID  int       `json:"show_id"`
	AirDate time.Time `json:"air_date"`
	Status  string    `json:"status"`
}

// SlotCounts holds the slot counters for a single placement type pool.
// The Available field is a cache maintained by the booking subsystem and
// can drift; the resolver recomputes actual capacity from Total, Booked,
// Reserved and the scheduled spot count.
type SlotCounts struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Reserved  int `json:"reserved"`
	Booked    int `json:"booked"`
}

// Remaining returns the recomputed capacity before scheduled spots are
// subtracted, clamped at zero.
func (s SlotCounts) Remaining() int {
	r := s.Total - s.Booked - s.Reserved
	if r < 0 {
		return 0
	}
	return r
}

// EpisodeInventory is the 1:1 per-episode slot ledger, one counter triple
// per placement type.
type EpisodeInventory struct {
	EpisodeID int        `json:"episode_id"`
	PreRoll   SlotCounts `json:"pre_roll"`
	MidRoll   SlotCounts `json:"mid_roll"`
	PostRoll  SlotCounts `json:"post_roll"`
}

// Counts returns the slot counters for the given placement type.
func (ei *EpisodeInventory) Counts(pt PlacementType) (SlotCounts, error) {
	switch pt {
	case PlacementPreRoll:
		return ei.PreRoll, nil
	case PlacementMidRoll:
		return ei.MidRoll, nil
	case PlacementPostRoll:
		return ei.PostRoll, nil
	}
	return SlotCounts{}, fmt.Errorf("%w: %q", ErrUnknownPlacementType, pt)
}

// DateOnly truncates t to a UTC calendar date. All air-date comparisons and
// map keys in the engine go through this to keep time zones and clock
// readings out of equality checks.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
