package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adcasthq/adcast/internal/analytics"
	"github.com/adcasthq/adcast/internal/middleware"
	"github.com/adcasthq/adcast/internal/models"
)

// allocationRequest is the wire form of a bulk allocation request. Dates
// are calendar dates, weekdays are 0 (Sunday) through 6, placement types
// and the strategy accept the tolerant spellings.
type allocationRequest struct {
	AdvertiserID               int      `json:"advertiser_id"`
	CampaignID                 int      `json:"campaign_id"`
	AgencyID                   int      `json:"agency_id,omitempty"`
	ShowIDs                    []int    `json:"show_ids"`
	StartDate                  string   `json:"start_date"`
	EndDate                    string   `json:"end_date"`
	Weekdays                   []int    `json:"weekdays"`
	PlacementTypes             []string `json:"placement_types"`
	SpotsRequested             int      `json:"spots_requested"`
	SpotsPerWeek               int      `json:"spots_per_week,omitempty"`
	AllowMultiplePerShowPerDay bool     `json:"allow_multiple_per_show_per_day"`
	MaxPerShowPerDay           int      `json:"max_per_show_per_day,omitempty"`
	FallbackStrategy           string   `json:"fallback_strategy,omitempty"`
}

func (req *allocationRequest) toInput() (models.BulkAllocationInput, error) {
	var input models.BulkAllocationInput

	if len(req.ShowIDs) == 0 {
		return input, fmt.Errorf("show_ids is required")
	}
	if req.SpotsRequested <= 0 {
		return input, fmt.Errorf("spots_requested must be positive")
	}
	if len(req.PlacementTypes) == 0 {
		return input, fmt.Errorf("placement_types is required")
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return input, fmt.Errorf("invalid start_date: %q", req.StartDate)
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return input, fmt.Errorf("invalid end_date: %q", req.EndDate)
	}

	types, err := models.ParsePlacementTypes(req.PlacementTypes)
	if err != nil {
		return input, err
	}
	strategy, err := models.ParseFallbackStrategy(req.FallbackStrategy)
	if err != nil {
		return input, err
	}

	weekdays := make([]time.Weekday, 0, len(req.Weekdays))
	for _, wd := range req.Weekdays {
		if wd < 0 || wd > 6 {
			return input, fmt.Errorf("invalid weekday %d, must be 0-6", wd)
		}
		weekdays = append(weekdays, time.Weekday(wd))
	}
	if len(weekdays) == 0 {
		// An omitted filter means every day of the week; the engine itself
		// treats an empty set as matching nothing.
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			weekdays = append(weekdays, wd)
		}
	}

	input = models.BulkAllocationInput{
		AdvertiserID:               req.AdvertiserID,
		CampaignID:                 req.CampaignID,
		AgencyID:                   req.AgencyID,
		ShowIDs:                    req.ShowIDs,
		StartDate:                  start,
		EndDate:                    end,
		Weekdays:                   weekdays,
		PlacementTypes:             types,
		SpotsRequested:             req.SpotsRequested,
		SpotsPerWeek:               req.SpotsPerWeek,
		AllowMultiplePerShowPerDay: req.AllowMultiplePerShowPerDay,
		MaxPerShowPerDay:           req.MaxPerShowPerDay,
		Fallback:                   strategy,
	}
	return input, nil
}

// HandleAllocationPreview computes a placement plan for a bulk request.
// The plan is returned for review; committing it is the booking
// subsystem's job and re-validates availability under its own transaction.
func (s *Server) HandleAllocationPreview(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromRequest(r, s.Logger)

	var req allocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input, err := req.toInput()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	shows := make(map[int]models.Show, len(input.ShowIDs))
	for _, showID := range input.ShowIDs {
		show, err := s.Store.GetShow(r.Context(), showID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue // unknown shows surface as no_inventory conflicts
			}
			s.writeError(w, http.StatusInternalServerError, "show lookup failed")
			return
		}
		shows[showID] = *show
	}

	runID := uuid.New().String()
	start := time.Now()
	result, err := s.Allocator.AllocateBulkSpots(r.Context(), input, shows)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result.RunID = runID
	elapsed := time.Since(start)

	s.Metrics.IncrementAllocationRuns(string(input.Fallback))
	s.Metrics.RecordAllocationLatency(elapsed)
	s.Metrics.AddSpotsPlaced(result.Summary.Placeable)
	for _, c := range result.Conflicts {
		s.Metrics.IncrementConflicts(string(c.Kind))
	}

	if err := s.Analytics.RecordAllocationRun(r.Context(), runID, input, result); err != nil && !errors.Is(err, analytics.ErrUnavailable) {
		logger.Warn("record allocation run", zap.String("run_id", runID), zap.Error(err))
	}

	logger.Info("allocation preview served",
		zap.String("run_id", runID),
		zap.Int("requested", input.SpotsRequested),
		zap.Int("placed", result.Summary.Placeable),
		zap.Duration("elapsed", elapsed))

	s.writeJSON(w, http.StatusOK, result)
}
