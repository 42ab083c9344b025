package allocation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/adcasthq/adcast/internal/models"
)

// Allocator turns a bulk spot request into a concrete, conflict-free
// placement plan. It consults the Resolver once per candidate and holds no
// state beyond one call, so concurrent allocation runs are safe as long as
// the underlying inventory reads are consistent.
type Allocator struct {
	Resolver *Resolver
	Logger   *zap.Logger
}

// NewAllocator creates an allocator on top of the given resolver.
func NewAllocator(resolver *Resolver, logger *zap.Logger) *Allocator {
	return &Allocator{Resolver: resolver, Logger: logger}
}

// candidate is one (show, date, placement type) combination from the
// request expansion. The index fields record the show's and type's position
// in the caller-supplied lists; they are the deterministic tie-breakers.
type candidate struct {
	ShowID  int
	Date    time.Time
	Type    models.PlacementType
	showIdx int
	typeIdx int
}

func (c candidate) key() placementKey {
	return placementKey{ShowID: c.ShowID, Day: dayString(c.Date), Type: c.Type}
}

// placementKey deduplicates placements within one run.
type placementKey struct {
	ShowID int
	Day    string
	Type   models.PlacementType
}

// showDayKey tracks per-show daily counts within one run.
type showDayKey struct {
	ShowID int
	Day    string
}

func dayString(t time.Time) string { return t.Format("2006-01-02") }

// isoWeekKey buckets a date into its Monday-start ISO week, e.g. "2025-W10".
func isoWeekKey(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

// allocationState holds every counter the passes share. It exists only for
// the duration of one AllocateBulkSpots call.
type allocationState struct {
	placed          map[placementKey]bool
	failed          map[placementKey]bool
	perDay          map[showDayKey]int
	perType         map[models.PlacementType]int
	perShow         map[int]int
	perWeek         map[string]int
	spotsPlaced     int
	spotsConflicted int
}

func newAllocationState() *allocationState {
	return &allocationState{
		placed:  make(map[placementKey]bool),
		failed:  make(map[placementKey]bool),
		perDay:  make(map[showDayKey]int),
		perType: make(map[models.PlacementType]int),
		perShow: make(map[int]int),
		perWeek: make(map[string]int),
	}
}

func (s *allocationState) record(c candidate) {
	s.placed[c.key()] = true
	s.perDay[showDayKey{ShowID: c.ShowID, Day: dayString(c.Date)}]++
	s.perType[c.Type]++
	s.perShow[c.ShowID]++
	s.perWeek[isoWeekKey(c.Date)]++
	s.spotsPlaced++
}

// quotaTargets are the soft caps that keep the primary pass balanced. The
// fallback pass ignores them.
type quotaTargets struct {
	perType int
	perShow int
	perWeek map[string]int
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

// AllocateBulkSpots expands the request into candidates and assigns spots
// under the per-type, per-show and per-week quotas, falling back per the
// requested strategy when the balanced pass cannot satisfy the count. The
// returned error is non-nil only for malformed placement types in the
// input; every inventory shortfall is reported inside the result.
func (a *Allocator) AllocateBulkSpots(ctx context.Context, input models.BulkAllocationInput, shows map[int]models.Show) (*models.AllocationResult, error) {
	for _, pt := range input.PlacementTypes {
		if !pt.Valid() {
			return nil, fmt.Errorf("%w: %q", models.ErrUnknownPlacementType, pt)
		}
	}

	start := time.Now()
	cands := generateCandidates(input)
	targets := computeTargets(input, cands)
	state := newAllocationState()
	maxPerDay := input.MaxPerShowPerDay
	if maxPerDay < 1 {
		maxPerDay = 1
	}

	result := &models.AllocationResult{
		WouldPlace: make([]models.SpotPlacement, 0, input.SpotsRequested),
		Conflicts:  make([]models.Conflict, 0),
	}

	a.primaryPass(ctx, input, cands, targets, state, maxPerDay, shows, result)

	if input.Fallback != models.FallbackStrict && state.spotsPlaced < input.SpotsRequested && !result.Incomplete {
		// relaxed and fill_anywhere both re-run the original combinations
		// without the distribution quotas. fill_anywhere is reserved for
		// broadening beyond the requested shows and currently behaves
		// identically.
		a.fallbackPass(ctx, input, cands, state, maxPerDay, shows, result)
	}

	if shortfall := input.SpotsRequested - state.spotsPlaced - state.spotsConflicted; shortfall > 0 {
		// One summary conflict for the remainder keeps the conflict list
		// from exploding when inventory is broadly insufficient.
		result.Conflicts = append(result.Conflicts, models.Conflict{
			Kind:   models.ConflictNoInventory,
			Reason: fmt.Sprintf("%d of %d requested spots could not be placed", shortfall, input.SpotsRequested),
		})
	}

	result.Summary = buildSummary(input, targets, state)

	a.Logger.Info("bulk allocation complete",
		zap.Int("advertiser_id", input.AdvertiserID),
		zap.Int("campaign_id", input.CampaignID),
		zap.Int("requested", input.SpotsRequested),
		zap.Int("placed", state.spotsPlaced),
		zap.Int("conflicts", len(result.Conflicts)),
		zap.String("strategy", string(input.Fallback)),
		zap.Int("candidates", len(cands)),
		zap.Bool("incomplete", result.Incomplete),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

// generateCandidates is the pure combinatorial expansion of the request:
// every in-range date matching the weekday filter, crossed with every show
// and placement type, sorted by (date, show position, type position). The
// ordering makes round-robin quota consumption reproducible; ties are never
// broken by map iteration order.
func generateCandidates(input models.BulkAllocationInput) []candidate {
	weekdays := make(map[time.Weekday]bool, len(input.Weekdays))
	for _, wd := range input.Weekdays {
		weekdays[wd] = true
	}

	var cands []candidate
	startDate := models.DateOnly(input.StartDate)
	endDate := models.DateOnly(input.EndDate)
	for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
		if !weekdays[d.Weekday()] {
			continue
		}
		for si, showID := range input.ShowIDs {
			for ti, pt := range input.PlacementTypes {
				cands = append(cands, candidate{
					ShowID:  showID,
					Date:    d,
					Type:    pt,
					showIdx: si,
					typeIdx: ti,
				})
			}
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if !cands[i].Date.Equal(cands[j].Date) {
			return cands[i].Date.Before(cands[j].Date)
		}
		if cands[i].showIdx != cands[j].showIdx {
			return cands[i].showIdx < cands[j].showIdx
		}
		return cands[i].typeIdx < cands[j].typeIdx
	})
	return cands
}

// computeTargets derives the even-distribution soft caps from the request.
// An explicit spotsPerWeek wins over the derived per-week share.
func computeTargets(input models.BulkAllocationInput, cands []candidate) quotaTargets {
	t := quotaTargets{
		perType: ceilDiv(input.SpotsRequested, len(input.PlacementTypes)),
		perShow: ceilDiv(input.SpotsRequested, len(input.ShowIDs)),
		perWeek: make(map[string]int),
	}

	seen := make(map[string]bool)
	var weeks []string
	for _, c := range cands {
		wk := isoWeekKey(c.Date)
		if !seen[wk] {
			seen[wk] = true
			weeks = append(weeks, wk)
		}
	}

	perWeek := input.SpotsPerWeek
	if perWeek <= 0 {
		perWeek = ceilDiv(input.SpotsRequested, len(weeks))
	}
	for _, wk := range weeks {
		t.perWeek[wk] = perWeek
	}
	return t
}

// primaryPass iterates the sorted candidates cyclically under all quota
// gates. The 2×N iteration bound guards against a full cycle making no
// progress once the skip conditions saturate.
func (a *Allocator) primaryPass(ctx context.Context, input models.BulkAllocationInput, cands []candidate, targets quotaTargets, state *allocationState, maxPerDay int, shows map[int]models.Show, result *models.AllocationResult) {
	if len(cands) == 0 {
		return
	}

	remaining := func() int {
		return input.SpotsRequested - state.spotsPlaced - state.spotsConflicted
	}

	for iter := 0; iter < 2*len(cands) && remaining() > 0; iter++ {
		if ctx.Err() != nil {
			result.Incomplete = true
			return
		}

		c := cands[iter%len(cands)]
		key := c.key()
		if state.placed[key] || state.failed[key] {
			continue
		}

		dayKey := showDayKey{ShowID: c.ShowID, Day: dayString(c.Date)}
		allowance := a.Resolver.CheckMultiSpotAllowance(ctx, c.ShowID, c.Date, state.perDay[dayKey]+1, input.AllowMultiplePerShowPerDay, maxPerDay)
		if !allowance.Allowed {
			continue
		}
		if state.perType[c.Type] >= targets.perType {
			continue
		}
		if state.perShow[c.ShowID] >= targets.perShow {
			continue
		}
		wk := isoWeekKey(c.Date)
		if state.perWeek[wk] >= targets.perWeek[wk] {
			continue
		}

		status, err := a.Resolver.CheckAvailability(ctx, c.ShowID, c.Date, c.Type, CheckOptions{
			CampaignID:   input.CampaignID,
			AdvertiserID: input.AdvertiserID,
		})
		if err != nil {
			state.failed[key] = true
			continue
		}
		if !status.Available {
			state.failed[key] = true
			if input.Fallback == models.FallbackStrict && status.Conflict != nil {
				// Strict callers want to see every individual failure; each
				// recorded conflict consumes one requested spot.
				result.Conflicts = append(result.Conflicts, *status.Conflict)
				state.spotsConflicted++
			}
			continue
		}

		result.WouldPlace = append(result.WouldPlace, placement(c, status, shows))
		state.record(c)
	}
}

// fallbackPass re-runs every not-yet-placed combination in date order with
// the distribution quotas lifted. The daily per-show policy and the
// resolver checks still apply.
func (a *Allocator) fallbackPass(ctx context.Context, input models.BulkAllocationInput, cands []candidate, state *allocationState, maxPerDay int, shows map[int]models.Show, result *models.AllocationResult) {
	rest := make([]candidate, 0, len(cands))
	for _, c := range cands {
		if !state.placed[c.key()] {
			rest = append(rest, c)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		if !rest[i].Date.Equal(rest[j].Date) {
			return rest[i].Date.Before(rest[j].Date)
		}
		if rest[i].showIdx != rest[j].showIdx {
			return rest[i].showIdx < rest[j].showIdx
		}
		return rest[i].typeIdx < rest[j].typeIdx
	})

	for _, c := range rest {
		if state.spotsPlaced >= input.SpotsRequested {
			return
		}
		if ctx.Err() != nil {
			result.Incomplete = true
			return
		}

		dayKey := showDayKey{ShowID: c.ShowID, Day: dayString(c.Date)}
		allowance := a.Resolver.CheckMultiSpotAllowance(ctx, c.ShowID, c.Date, state.perDay[dayKey]+1, input.AllowMultiplePerShowPerDay, maxPerDay)
		if !allowance.Allowed {
			continue
		}

		status, err := a.Resolver.CheckAvailability(ctx, c.ShowID, c.Date, c.Type, CheckOptions{
			CampaignID:   input.CampaignID,
			AdvertiserID: input.AdvertiserID,
		})
		if err != nil || !status.Available {
			continue
		}

		result.WouldPlace = append(result.WouldPlace, placement(c, status, shows))
		state.record(c)
	}
}

func placement(c candidate, status models.AvailabilityStatus, shows map[int]models.Show) models.SpotPlacement {
	return models.SpotPlacement{
		ShowID:        c.ShowID,
		ShowName:      shows[c.ShowID].Name,
		EpisodeID:     status.EpisodeID,
		Date:          c.Date,
		PlacementType: c.Type,
		Rate:          status.Rate,
	}
}

// buildSummary aggregates from the same counters the passes updated, not
// from the final placement list, so the summary stays consistent with the
// counters even if pass order changes.
func buildSummary(input models.BulkAllocationInput, targets quotaTargets, state *allocationState) models.AllocationSummary {
	s := models.AllocationSummary{
		SpotsRequested:  input.SpotsRequested,
		Placeable:       state.spotsPlaced,
		Unplaceable:     input.SpotsRequested - state.spotsPlaced,
		ByPlacementType: make(map[models.PlacementType]models.CountPair, len(input.PlacementTypes)),
		ByShow:          make(map[int]models.CountPair, len(input.ShowIDs)),
		ByWeek:          make(map[string]models.CountPair, len(targets.perWeek)),
	}
	for _, pt := range input.PlacementTypes {
		s.ByPlacementType[pt] = models.CountPair{Requested: targets.perType, Placed: state.perType[pt]}
	}
	for _, showID := range input.ShowIDs {
		s.ByShow[showID] = models.CountPair{Requested: targets.perShow, Placed: state.perShow[showID]}
	}
	for wk, target := range targets.perWeek {
		s.ByWeek[wk] = models.CountPair{Requested: target, Placed: state.perWeek[wk]}
	}
	return s
}
