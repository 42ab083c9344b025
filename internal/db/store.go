package db

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/adcasthq/adcast/internal/models"
)

// Store is the production InventoryStore: Postgres as the source of truth
// with a Redis read-through cache in front of the rate card lookups, which
// repeat heavily within one allocation run. Cache failures degrade to
// Postgres; a missing Redis client disables caching entirely.
type Store struct {
	PG           *Postgres
	Redis        *RedisStore
	RateCacheTTL time.Duration
	Logger       *zap.Logger
}

var _ models.InventoryStore = (*Store)(nil)

// NewStore combines Postgres with an optional Redis cache.
func NewStore(pg *Postgres, rs *RedisStore, rateCacheTTL time.Duration, logger *zap.Logger) *Store {
	return &Store{PG: pg, Redis: rs, RateCacheTTL: rateCacheTTL, Logger: logger}
}

func (s *Store) GetShow(ctx context.Context, showID int) (*models.Show, error) {
	return s.PG.GetShow(ctx, showID)
}

func (s *Store) GetEpisode(ctx context.Context, showID int, airDate time.Time) (*models.Episode, error) {
	return s.PG.GetEpisode(ctx, showID, airDate)
}

func (s *Store) GetEpisodeInventory(ctx context.Context, episodeID int) (*models.EpisodeInventory, error) {
	return s.PG.GetEpisodeInventory(ctx, episodeID)
}

func (s *Store) GetActiveReservation(ctx context.Context, episodeID int, pt models.PlacementType, now time.Time) (*models.ReservationHold, error) {
	return s.PG.GetActiveReservation(ctx, episodeID, pt, now)
}

func (s *Store) CountScheduledSpots(ctx context.Context, showID int, airDate time.Time) (int, error) {
	return s.PG.CountScheduledSpots(ctx, showID, airDate)
}

func (s *Store) CountScheduledSpotsByType(ctx context.Context, showID int, airDate time.Time, pt models.PlacementType) (int, error) {
	return s.PG.CountScheduledSpotsByType(ctx, showID, airDate, pt)
}

// GetRateCard reads through the Redis cache. Only positive results are
// cached; shows without a rate card stay on the Postgres path.
func (s *Store) GetRateCard(ctx context.Context, showID int, onDate time.Time) (*models.RateCard, error) {
	if s.Redis != nil {
		rc, err := s.Redis.GetCachedRateCard(ctx, showID, onDate)
		if err == nil {
			return rc, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			s.Logger.Warn("rate card cache read failed, falling back to postgres",
				zap.Int("show_id", showID), zap.Error(err))
		}
	}

	rc, err := s.PG.GetRateCard(ctx, showID, onDate)
	if err != nil {
		return nil, err
	}

	if s.Redis != nil {
		if err := s.Redis.SetCachedRateCard(ctx, showID, onDate, rc, s.RateCacheTTL); err != nil {
			s.Logger.Warn("rate card cache write failed",
				zap.Int("show_id", showID), zap.Error(err))
		}
	}
	return rc, nil
}
