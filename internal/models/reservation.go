package models

import "time"

// ReservationStatus is the lifecycle state of a hold.
type ReservationStatus string

const (
	ReservationHeld      ReservationStatus = "held"
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationExpired   ReservationStatus = "expired"
	ReservationReleased  ReservationStatus = "released"
)

// ReservationHold is the joined view of a reservation and one of its items:
// a claim on a single episode+placement-type slot pool. Only holds in an
// active status and not past their expiry block availability.
type ReservationHold struct {
	ReservationID int               `json:"reservation_id"`
	EpisodeID     int               `json:"episode_id"`
	PlacementType PlacementType     `json:"placement_type"`
	CampaignID    int               `json:"campaign_id"`
	AdvertiserID  int               `json:"advertiser_id"`
	HolderName    string            `json:"holder_name,omitempty"`
	Status        ReservationStatus `json:"status"`
	ExpiresAt     *time.Time        `json:"expires_at,omitempty"`
}

// ActiveAt reports whether the hold blocks other buyers at the given time.
func (h *ReservationHold) ActiveAt(now time.Time) bool {
	if h == nil {
		return false
	}
	switch h.Status {
	case ReservationHeld, ReservationPending, ReservationConfirmed:
	default:
		return false
	}
	if h.ExpiresAt != nil && !h.ExpiresAt.After(now) {
		return false
	}
	return true
}

// OwnedBy reports whether the hold belongs to the given campaign or
// advertiser. A requester may consume its own hold.
func (h *ReservationHold) OwnedBy(campaignID, advertiserID int) bool {
	if h == nil {
		return false
	}
	if campaignID > 0 && h.CampaignID == campaignID {
		return true
	}
	if advertiserID > 0 && h.AdvertiserID == advertiserID {
		return true
	}
	return false
}

// ScheduledSpot is an already-committed placement. Unlike a reservation it
// carries no ownership semantics in the engine: any existing spot on a
// show/day blocks further placement unless multiple-per-day is allowed.
type ScheduledSpot struct {
	ID            int           `json:"id"`
	ShowID        int           `json:"show_id"`
	EpisodeID     int           `json:"episode_id"`
	AirDate       time.Time     `json:"air_date"`
	PlacementType PlacementType `json:"placement_type"`
	CampaignID    int           `json:"campaign_id"`
}
