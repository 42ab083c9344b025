package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/adcasthq/adcast/internal/allocation"
	"github.com/adcasthq/adcast/internal/analytics"
	"github.com/adcasthq/adcast/internal/middleware"
	"github.com/adcasthq/adcast/internal/models"
)

// HandleAvailability answers whether one (show, date, placement type) slot
// can be sold, optionally on behalf of a campaign or advertiser whose own
// holds count as available.
func (s *Server) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromRequest(r, s.Logger)
	q := r.URL.Query()

	showID, err := strconv.Atoi(q.Get("show_id"))
	if err != nil || showID <= 0 {
		s.writeError(w, http.StatusBadRequest, "show_id is required")
		return
	}
	date, err := time.Parse("2006-01-02", q.Get("date"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	pt, err := models.ParsePlacementType(q.Get("placement_type"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := allocation.CheckOptions{}
	if v := q.Get("campaign_id"); v != "" {
		opts.CampaignID, _ = strconv.Atoi(v)
	}
	if v := q.Get("advertiser_id"); v != "" {
		opts.AdvertiserID, _ = strconv.Atoi(v)
	}

	status, err := s.Resolver.CheckAvailability(r.Context(), showID, date, pt, opts)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome := "available"
	if !status.Available && status.Conflict != nil {
		outcome = string(status.Conflict.Kind)
	}
	s.Metrics.IncrementAvailabilityChecks(outcome)

	if err := s.Analytics.RecordAvailabilityCheck(r.Context(), showID, date, pt, status); err != nil && !errors.Is(err, analytics.ErrUnavailable) {
		logger.Warn("record availability check", zap.Error(err))
	}

	s.writeJSON(w, http.StatusOK, status)
}

// HandleMultiSpotAllowance answers how many additional spots may be placed
// on a show/day under the per-show-per-day policy.
func (s *Server) HandleMultiSpotAllowance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	showID, err := strconv.Atoi(q.Get("show_id"))
	if err != nil || showID <= 0 {
		s.writeError(w, http.StatusBadRequest, "show_id is required")
		return
	}
	date, err := time.Parse("2006-01-02", q.Get("date"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	spots := 1
	if v := q.Get("spots"); v != "" {
		if spots, err = strconv.Atoi(v); err != nil || spots <= 0 {
			s.writeError(w, http.StatusBadRequest, "spots must be a positive integer")
			return
		}
	}
	allowMultiple := q.Get("allow_multiple") == "true"
	maxPerDay := s.Config.DefaultMaxPerShowPerDay
	if v := q.Get("max_per_day"); v != "" {
		if maxPerDay, err = strconv.Atoi(v); err != nil || maxPerDay <= 0 {
			s.writeError(w, http.StatusBadRequest, "max_per_day must be a positive integer")
			return
		}
	}

	allowance := s.Resolver.CheckMultiSpotAllowance(r.Context(), showID, date, spots, allowMultiple, maxPerDay)
	s.writeJSON(w, http.StatusOK, allowance)
}
