package models

import "time"

// Show is a podcast program whose episodes carry sellable ad slots.
type Show struct {
	ID             int             `json:"id"`
	Name           string          `json:"name"`
	PublisherID    int             `json:"publisher_id"`
	Active         bool            `json:"active"`
	PlacementTypes []PlacementType `json:"placement_types,omitempty"`
}

// RateCard is one time-versioned rate entry for a show. The effective rate
// for a placement date is the entry with the most recent EffectiveDate at
// or before that date.
type RateCard struct {
	ID            int       `json:"id"`
	ShowID        int       `json:"show_id"`
	EffectiveDate time.Time `json:"effective_date"`
	PreRollRate   float64   `json:"pre_roll_rate"`
	MidRollRate   float64   `json:"mid_roll_rate"`
	PostRollRate  float64   `json:"post_roll_rate"`
}

// Rate returns the card's rate for the given placement type.
func (rc *RateCard) Rate(pt PlacementType) float64 {
	if rc == nil {
		return 0
	}
	switch pt {
	case PlacementPreRoll:
		return rc.PreRollRate
	case PlacementMidRoll:
		return rc.MidRollRate
	case PlacementPostRoll:
		return rc.PostRollRate
	}
	return 0
}
