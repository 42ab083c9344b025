package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/adcasthq/adcast/internal/models"
)

// CheckOptions carries the requester's identity. A reservation owned by the
// requesting campaign or advertiser is not a conflict.
type CheckOptions struct {
	CampaignID   int
	AdvertiserID int
}

// Resolver answers whether a single (show, date, placement type) slot can be
// sold. It only reads from the inventory store; data-layer failures degrade
// to an unavailable result instead of propagating, so one bad lookup cannot
// abort a multi-hundred-candidate batch.
type Resolver struct {
	Store  models.InventoryStore
	Logger *zap.Logger
}

// NewResolver creates a resolver over the given inventory store.
func NewResolver(store models.InventoryStore, logger *zap.Logger) *Resolver {
	return &Resolver{Store: store, Logger: logger}
}

// CheckAvailability resolves the sellability of one slot. The returned
// error is non-nil only for an unrecognized placement type, which is a
// caller bug; every inventory condition is reported through the status.
func (r *Resolver) CheckAvailability(ctx context.Context, showID int, date time.Time, pt models.PlacementType, opts CheckOptions) (models.AvailabilityStatus, error) {
	if !pt.Valid() {
		return models.AvailabilityStatus{}, fmt.Errorf("%w: %q", models.ErrUnknownPlacementType, pt)
	}
	date = models.DateOnly(date)

	ep, err := r.Store.GetEpisode(ctx, showID, date)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return r.unavailable(showID, date, pt, models.ConflictNoInventory,
				fmt.Sprintf("no episode scheduled for show %d on %s", showID, date.Format("2006-01-02"))), nil
		}
		return r.degraded(showID, date, pt, "episode lookup", err), nil
	}

	inv, err := r.Store.GetEpisodeInventory(ctx, ep.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return r.unavailable(showID, date, pt, models.ConflictNoInventory,
				fmt.Sprintf("episode %d has no inventory configured", ep.ID)), nil
		}
		return r.degraded(showID, date, pt, "inventory lookup", err), nil
	}

	counts, err := inv.Counts(pt)
	if err != nil {
		return models.AvailabilityStatus{}, err
	}

	if counts.Total == 0 {
		st := r.unavailable(showID, date, pt, models.ConflictNoInventory,
			fmt.Sprintf("show %d has no %s slots configured", showID, pt))
		st.EpisodeID = ep.ID
		return st, nil
	}

	// The cached available counter is only a hint. When it reads exhausted,
	// diagnose why before the authoritative recomputation below.
	if counts.Available <= 0 {
		if counts.Booked >= counts.Total {
			st := r.unavailable(showID, date, pt, models.ConflictSold,
				fmt.Sprintf("all %d %s slots are booked", counts.Total, pt))
			st.EpisodeID = ep.ID
			st.TotalSlots = counts.Total
			return st, nil
		}
		if counts.Reserved >= counts.Total {
			hold, err := r.Store.GetActiveReservation(ctx, ep.ID, pt, time.Now())
			switch {
			case err == nil && hold.OwnedBy(opts.CampaignID, opts.AdvertiserID):
				// The requester may consume its own hold.
				rate := r.resolveRate(ctx, showID, date, pt)
				return models.AvailabilityStatus{
					Available:      true,
					EpisodeID:      ep.ID,
					PlacementType:  pt,
					Rate:           rate,
					AvailableSlots: 1,
					TotalSlots:     counts.Total,
				}, nil
			case err == nil:
				holder := hold.HolderName
				if holder == "" {
					holder = fmt.Sprintf("campaign %d", hold.CampaignID)
				}
				st := r.unavailable(showID, date, pt, models.ConflictHeld,
					fmt.Sprintf("%s slot is held by %s", pt, holder))
				st.EpisodeID = ep.ID
				st.TotalSlots = counts.Total
				st.Conflict.HeldBy = holder
				st.Conflict.HoldExpiresAt = hold.ExpiresAt
				return st, nil
			case !errors.Is(err, models.ErrNotFound):
				return r.degraded(showID, date, pt, "reservation lookup", err), nil
			}
			// No active hold found: the reservation counter is stale (an
			// expired hold must not block availability). Fall through to the
			// recomputation.
		}
	}

	// Authoritative capacity: the cache can drift, so recompute from the
	// raw counters plus committed spots and clamp at zero.
	scheduled, err := r.Store.CountScheduledSpotsByType(ctx, showID, date, pt)
	if err != nil {
		return r.degraded(showID, date, pt, "scheduled spot count", err), nil
	}
	actual := counts.Remaining() - scheduled
	if actual <= 0 {
		st := r.unavailable(showID, date, pt, models.ConflictSold,
			fmt.Sprintf("no remaining %s capacity for show %d on %s", pt, showID, date.Format("2006-01-02")))
		st.EpisodeID = ep.ID
		st.TotalSlots = counts.Total
		return st, nil
	}

	return models.AvailabilityStatus{
		Available:      true,
		EpisodeID:      ep.ID,
		PlacementType:  pt,
		Rate:           r.resolveRate(ctx, showID, date, pt),
		AvailableSlots: actual,
		TotalSlots:     counts.Total,
	}, nil
}

// CheckMultiSpotAllowance answers how many additional spots may be placed
// on one show/day. With allowMultiple false any committed spot blocks
// further placement; otherwise maxPerShowPerDay caps the day.
func (r *Resolver) CheckMultiSpotAllowance(ctx context.Context, showID int, date time.Time, requestedSpots int, allowMultiple bool, maxPerShowPerDay int) models.MultiSpotAllowance {
	date = models.DateOnly(date)
	existing, err := r.Store.CountScheduledSpots(ctx, showID, date)
	if err != nil {
		r.Logger.Warn("scheduled spot count failed, treating day as unavailable",
			zap.Int("show_id", showID),
			zap.String("date", date.Format("2006-01-02")),
			zap.Error(err))
		return models.MultiSpotAllowance{Allowed: false, MaxAllowed: 0, Reason: "could not confirm scheduled spots"}
	}

	if !allowMultiple {
		if existing > 0 {
			return models.MultiSpotAllowance{
				Allowed:    false,
				MaxAllowed: 0,
				Reason:     fmt.Sprintf("show %d already has a spot on %s", showID, date.Format("2006-01-02")),
			}
		}
		if requestedSpots > 1 {
			return models.MultiSpotAllowance{
				Allowed:    false,
				MaxAllowed: 1,
				Reason:     "only one spot per show per day is allowed",
			}
		}
		return models.MultiSpotAllowance{Allowed: true, MaxAllowed: 1}
	}

	if maxPerShowPerDay < 1 {
		maxPerShowPerDay = 1
	}
	headroom := maxPerShowPerDay - existing
	if headroom < 0 {
		headroom = 0
	}
	if requestedSpots > headroom {
		return models.MultiSpotAllowance{
			Allowed:    false,
			MaxAllowed: headroom,
			Reason:     fmt.Sprintf("daily cap of %d reached for show %d on %s", maxPerShowPerDay, showID, date.Format("2006-01-02")),
		}
	}
	return models.MultiSpotAllowance{Allowed: true, MaxAllowed: headroom}
}

// resolveRate reads the rate card entry effective at the placement date.
// Shows without a rate card sell at zero; the caller prices those manually.
func (r *Resolver) resolveRate(ctx context.Context, showID int, date time.Time, pt models.PlacementType) float64 {
	rc, err := r.Store.GetRateCard(ctx, showID, date)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			r.Logger.Warn("rate card lookup failed, defaulting rate to 0",
				zap.Int("show_id", showID),
				zap.Error(err))
		}
		return 0
	}
	return rc.Rate(pt)
}

func (r *Resolver) unavailable(showID int, date time.Time, pt models.PlacementType, kind models.ConflictKind, reason string) models.AvailabilityStatus {
	return models.AvailabilityStatus{
		Available:     false,
		PlacementType: pt,
		Conflict: &models.Conflict{
			ShowID:        showID,
			Date:          date,
			PlacementType: pt,
			Kind:          kind,
			Reason:        reason,
		},
	}
}

// degraded converts a data-layer failure into an unavailable result. The
// resolver cannot confirm the slot, so it refuses to sell it.
func (r *Resolver) degraded(showID int, date time.Time, pt models.PlacementType, op string, err error) models.AvailabilityStatus {
	r.Logger.Warn("availability check degraded",
		zap.Int("show_id", showID),
		zap.String("date", date.Format("2006-01-02")),
		zap.String("placement_type", string(pt)),
		zap.String("op", op),
		zap.Error(err))
	return r.unavailable(showID, date, pt, models.ConflictNoInventory,
		fmt.Sprintf("%s failed: %v", op, err))
}
