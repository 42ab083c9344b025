package allocation

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/adcasthq/adcast/internal/models"
)

func newTestAllocator(store *models.InMemoryInventoryStore) *Allocator {
	return NewAllocator(NewResolver(store, zap.NewNop()), zap.NewNop())
}

// seedEpisodes creates one episode per show per weekday in [start, end] with
// the given pre/mid/post slot totals, all fully available.
func seedEpisodes(store *models.InMemoryInventoryStore, showIDs []int, start, end time.Time, weekdays map[time.Weekday]bool, pre, mid, post int) {
	slots := func(n int) models.SlotCounts { return models.SlotCounts{Total: n, Available: n} }
	id := 100
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if !weekdays[d.Weekday()] {
			continue
		}
		for _, showID := range showIDs {
			store.AddEpisode(
				models.Episode{ID: id, ShowID: showID, AirDate: d, Status: models.EpisodeStatusScheduled},
				models.EpisodeInventory{PreRoll: slots(pre), MidRoll: slots(mid), PostRoll: slots(post)},
			)
			id++
		}
	}
}

func testShows(ids ...int) map[int]models.Show {
	shows := make(map[int]models.Show, len(ids))
	for _, id := range ids {
		shows[id] = models.Show{ID: id, Name: "Show", PublisherID: 1, Active: true}
	}
	return shows
}

func assertConservation(t *testing.T, result *models.AllocationResult) {
	t.Helper()
	s := result.Summary
	if s.Placeable+s.Unplaceable != s.SpotsRequested {
		t.Fatalf("conservation violated: placeable %d + unplaceable %d != requested %d",
			s.Placeable, s.Unplaceable, s.SpotsRequested)
	}
	if len(result.WouldPlace) != s.Placeable {
		t.Fatalf("placement list has %d entries but summary says %d placeable",
			len(result.WouldPlace), s.Placeable)
	}
}

func TestAllocateBulkSpots_BalancedDistribution(t *testing.T) {
	store := models.NewInMemoryInventoryStore()
	weekdays := map[time.Weekday]bool{time.Monday: true, time.Wednesday: true, time.Friday: true}
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) // a Monday
	end := start.AddDate(0, 0, 27)                       // four ISO weeks
	seedEpisodes(store, []int{1, 2}, start, end, weekdays, 1, 2, 1)

	input := models.BulkAllocationInput{
		AdvertiserID:   9,
		CampaignID:     42,
		ShowIDs:        []int{1, 2},
		StartDate:      start,
		EndDate:        end,
		Weekdays:       []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		PlacementTypes: []models.PlacementType{models.PlacementPreRoll, models.PlacementMidRoll},
		SpotsRequested: 10,
		Fallback:       models.FallbackRelaxed,
	}

	result, err := newTestAllocator(store).AllocateBulkSpots(context.Background(), input, testShows(1, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertConservation(t, result)

	if result.Summary.Placeable != 10 {
		t.Fatalf("expected all 10 spots placed, got %d (conflicts %+v)", result.Summary.Placeable, result.Conflicts)
	}
	if len(result.Conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %+v", result.Conflicts)
	}

	// The quotas cap each dimension at its even share.
	perShow := map[int]int{}
	perType := map[models.PlacementType]int{}
	seenDay := map[string]bool{}
	for _, p := range result.WouldPlace {
		perShow[p.ShowID]++
		perType[p.PlacementType]++
		dayKey := fmt.Sprintf("%d/%s", p.ShowID, p.Date.Format("2006-01-02"))
		if seenDay[dayKey] {
			t.Errorf("two spots share show %d on %s without allow_multiple", p.ShowID, p.Date.Format("2006-01-02"))
		}
		seenDay[dayKey] = true
	}
	for showID, n := range perShow {
		if n > 5 {
			t.Errorf("show %d got %d spots, quota is 5", showID, n)
		}
	}
	for pt, n := range perType {
		if n > 5 {
			t.Errorf("type %s got %d spots, quota is 5", pt, n)
		}
	}
	for wk, pair := range result.Summary.ByWeek {
		if pair.Placed > 3 {
			t.Errorf("week %s exceeded its target of 3: %+v", wk, pair)
		}
	}
}

func TestAllocateBulkSpots_Deterministic(t *testing.T) {
	store := models.NewInMemoryInventoryStore()
	weekdays := map[time.Weekday]bool{time.Monday: true, time.Wednesday: true}
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 13)
	seedEpisodes(store, []int{3, 1, 2}, start, end, weekdays, 1, 1, 1)

	input := models.BulkAllocationInput{
		ShowIDs:        []int{3, 1, 2},
		StartDate:      start,
		EndDate:        end,
		Weekdays:       []time.Weekday{time.Monday, time.Wednesday},
		PlacementTypes: []models.PlacementType{models.PlacementMidRoll, models.PlacementPreRoll},
		SpotsRequested: 7,
		Fallback:       models.FallbackRelaxed,
	}

	alloc := newTestAllocator(store)
	first, err := alloc.AllocateBulkSpots(context.Background(), input, testShows(1, 2, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := alloc.AllocateBulkSpots(context.Background(), input, testShows(1, 2, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(first.WouldPlace, second.WouldPlace) {
		t.Fatalf("identical inputs produced different plans:\n%+v\nvs\n%+v", first.WouldPlace, second.WouldPlace)
	}
	if !reflect.DeepEqual(first.Summary, second.Summary) {
		t.Fatalf("identical inputs produced different summaries")
	}
}

func TestAllocateBulkSpots_StrictRecordsEachConflict(t *testing.T) {
	// Four weekday candidates but only the first two days have episodes.
	store := models.NewInMemoryInventoryStore()
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	seedEpisodes(store, []int{1}, start, start.AddDate(0, 0, 1),
		map[time.Weekday]bool{time.Monday: true, time.Tuesday: true}, 1, 0, 0)

	input := models.BulkAllocationInput{
		ShowIDs:        []int{1},
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, 3),
		Weekdays:       []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday},
		PlacementTypes: []models.PlacementType{models.PlacementPreRoll},
		SpotsRequested: 4,
		Fallback:       models.FallbackStrict,
	}

	result, err := newTestAllocator(store).AllocateBulkSpots(context.Background(), input, testShows(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertConservation(t, result)

	if result.Summary.Placeable != 2 {
		t.Fatalf("expected 2 placed, got %d", result.Summary.Placeable)
	}
	if len(result.Conflicts) != 2 {
		t.Fatalf("expected one conflict per unavailable candidate, got %+v", result.Conflicts)
	}
	for _, c := range result.Conflicts {
		if c.Kind != models.ConflictNoInventory {
			t.Errorf("expected no_inventory, got %q", c.Kind)
		}
		if c.ShowID != 1 || c.Date.IsZero() {
			t.Errorf("strict conflicts must identify the candidate, got %+v", c)
		}
	}
}

func TestAllocateBulkSpots_RelaxedSummarizesShortfall(t *testing.T) {
	store := models.NewInMemoryInventoryStore()
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	seedEpisodes(store, []int{1}, start, start.AddDate(0, 0, 1),
		map[time.Weekday]bool{time.Monday: true, time.Tuesday: true}, 1, 0, 0)

	input := models.BulkAllocationInput{
		ShowIDs:        []int{1},
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, 3),
		Weekdays:       []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday},
		PlacementTypes: []models.PlacementType{models.PlacementPreRoll},
		SpotsRequested: 4,
		Fallback:       models.FallbackRelaxed,
	}

	result, err := newTestAllocator(store).AllocateBulkSpots(context.Background(), input, testShows(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertConservation(t, result)

	if result.Summary.Placeable != 2 || result.Summary.Unplaceable != 2 {
		t.Fatalf("expected 2 placed / 2 unplaceable, got %+v", result.Summary)
	}
	if len(result.Conflicts) != 1 {
		t.Fatalf("expected a single summary conflict, got %+v", result.Conflicts)
	}
	c := result.Conflicts[0]
	if c.Kind != models.ConflictNoInventory || c.ShowID != 0 {
		t.Fatalf("expected an anonymous summary conflict, got %+v", c)
	}
	if !strings.Contains(c.Reason, "2 of 4") {
		t.Errorf("expected shortfall counts in reason, got %q", c.Reason)
	}
}

func TestAllocateBulkSpots_FallbackLiftsQuotas(t *testing.T) {
	// One spot per week fits only 2 of 4 in the primary pass; relaxed mode
	// fills the rest from the same candidates.
	store := models.NewInMemoryInventoryStore()
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 11)
	allWeekdays := map[time.Weekday]bool{
		time.Monday: true, time.Tuesday: true, time.Wednesday: true,
		time.Thursday: true, time.Friday: true,
	}
	seedEpisodes(store, []int{1}, start, end, allWeekdays, 1, 0, 0)

	input := models.BulkAllocationInput{
		ShowIDs:   []int{1},
		StartDate: start,
		EndDate:   end,
		Weekdays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
		PlacementTypes: []models.PlacementType{models.PlacementPreRoll},
		SpotsRequested: 4,
		SpotsPerWeek:   1,
		Fallback:       models.FallbackRelaxed,
	}

	result, err := newTestAllocator(store).AllocateBulkSpots(context.Background(), input, testShows(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertConservation(t, result)
	if result.Summary.Placeable != 4 {
		t.Fatalf("expected fallback to fill all 4, got %d", result.Summary.Placeable)
	}

	strict := input
	strict.Fallback = models.FallbackStrict
	result, err = newTestAllocator(store).AllocateBulkSpots(context.Background(), strict, testShows(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertConservation(t, result)
	if result.Summary.Placeable != 2 {
		t.Fatalf("strict mode must respect the weekly cap, got %d placed", result.Summary.Placeable)
	}
	for wk, pair := range result.Summary.ByWeek {
		if pair.Placed > 1 {
			t.Errorf("week %s exceeded spots_per_week=1: %+v", wk, pair)
		}
	}
}

func TestAllocateBulkSpots_FillAnywhereMatchesRelaxed(t *testing.T) {
	store := models.NewInMemoryInventoryStore()
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 11)
	weekdays := map[time.Weekday]bool{time.Monday: true, time.Thursday: true}
	seedEpisodes(store, []int{1, 2}, start, end, weekdays, 1, 1, 0)

	input := models.BulkAllocationInput{
		ShowIDs:        []int{1, 2},
		StartDate:      start,
		EndDate:        end,
		Weekdays:       []time.Weekday{time.Monday, time.Thursday},
		PlacementTypes: []models.PlacementType{models.PlacementPreRoll, models.PlacementMidRoll},
		SpotsRequested: 6,
		SpotsPerWeek:   2,
		Fallback:       models.FallbackRelaxed,
	}

	alloc := newTestAllocator(store)
	relaxed, err := alloc.AllocateBulkSpots(context.Background(), input, testShows(1, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input.Fallback = models.FallbackFillAnywhere
	anywhere, err := alloc.AllocateBulkSpots(context.Background(), input, testShows(1, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(relaxed.WouldPlace, anywhere.WouldPlace) {
		t.Fatalf("fill_anywhere must currently mirror relaxed:\n%+v\nvs\n%+v",
			relaxed.WouldPlace, anywhere.WouldPlace)
	}
}

func TestAllocateBulkSpots_EmptyCandidateSet(t *testing.T) {
	store := models.NewInMemoryInventoryStore()
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	input := models.BulkAllocationInput{
		ShowIDs:        []int{1},
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, 6),
		Weekdays:       nil, // engine treats an empty filter as matching nothing
		PlacementTypes: []models.PlacementType{models.PlacementPreRoll},
		SpotsRequested: 3,
		Fallback:       models.FallbackRelaxed,
	}

	result, err := newTestAllocator(store).AllocateBulkSpots(context.Background(), input, testShows(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertConservation(t, result)
	if result.Summary.Placeable != 0 || len(result.Conflicts) != 1 {
		t.Fatalf("expected zero placements and one summary conflict, got %+v", result)
	}
}

func TestAllocateBulkSpots_InvalidPlacementType(t *testing.T) {
	input := models.BulkAllocationInput{
		ShowIDs:        []int{1},
		PlacementTypes: []models.PlacementType{"display"},
		SpotsRequested: 1,
	}
	_, err := newTestAllocator(models.NewInMemoryInventoryStore()).AllocateBulkSpots(context.Background(), input, nil)
	if err == nil {
		t.Fatal("expected an error for an unknown placement type")
	}
}

func TestAllocateBulkSpots_CanceledContext(t *testing.T) {
	store := models.NewInMemoryInventoryStore()
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	seedEpisodes(store, []int{1}, start, start.AddDate(0, 0, 4),
		map[time.Weekday]bool{time.Monday: true, time.Tuesday: true, time.Wednesday: true, time.Thursday: true, time.Friday: true}, 1, 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	input := models.BulkAllocationInput{
		ShowIDs:        []int{1},
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, 4),
		Weekdays:       []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		PlacementTypes: []models.PlacementType{models.PlacementPreRoll},
		SpotsRequested: 3,
		Fallback:       models.FallbackRelaxed,
	}

	result, err := newTestAllocator(store).AllocateBulkSpots(ctx, input, testShows(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Incomplete {
		t.Fatal("expected the result to be marked incomplete")
	}
	assertConservation(t, result)
}

func TestAllocateBulkSpots_OwnHoldsAreConsumable(t *testing.T) {
	store := models.NewInMemoryInventoryStore()
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	store.AddShow(models.Show{ID: 1, Name: "Held Show", PublisherID: 1, Active: true})
	store.AddEpisode(
		models.Episode{ID: 100, ShowID: 1, AirDate: start},
		models.EpisodeInventory{PreRoll: models.SlotCounts{Total: 1, Available: 0, Reserved: 1}},
	)
	store.AddReservation(models.ReservationHold{
		ReservationID: 1, EpisodeID: 100, PlacementType: models.PlacementPreRoll,
		CampaignID: 42, Status: models.ReservationHeld,
	})

	input := models.BulkAllocationInput{
		CampaignID:     42,
		ShowIDs:        []int{1},
		StartDate:      start,
		EndDate:        start,
		Weekdays:       []time.Weekday{time.Monday},
		PlacementTypes: []models.PlacementType{models.PlacementPreRoll},
		SpotsRequested: 1,
		Fallback:       models.FallbackStrict,
	}

	result, err := newTestAllocator(store).AllocateBulkSpots(context.Background(), input, testShows(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Summary.Placeable != 1 {
		t.Fatalf("expected the campaign's own hold to be placeable, got %+v", result)
	}

	other := input
	other.CampaignID = 7
	result, err = newTestAllocator(store).AllocateBulkSpots(context.Background(), other, testShows(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Summary.Placeable != 0 {
		t.Fatal("expected a foreign hold to block placement")
	}
	if len(result.Conflicts) != 1 || result.Conflicts[0].Kind != models.ConflictHeld {
		t.Fatalf("expected a held conflict, got %+v", result.Conflicts)
	}
}
