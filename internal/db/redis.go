package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/adcasthq/adcast/internal/models"
)

// InventoryUpdateChannel carries commit notifications from the booking
// subsystem. Subscribers use them to invalidate cached rate and
// availability data.
const InventoryUpdateChannel = "inventory-updates"

// InventoryUpdate is the message published after a plan commit touches
// inventory.
type InventoryUpdate struct {
	ShowID  int    `json:"show_id"`
	Date    string `json:"date"`
	Entity  string `json:"entity"`
	Action  string `json:"action"`
	SpotIDs []int  `json:"spot_ids,omitempty"`
}

// RedisStore wraps a redis client used for rate-card caching and inventory
// update notifications.
type RedisStore struct {
	Client *redis.Client
}

// InitRedis initializes a Redis client and returns a RedisStore.
func InitRedis(addr string) (*RedisStore, error) {
	rs := &RedisStore{Client: redis.NewClient(&redis.Options{Addr: addr})}

	if err := redisotel.InstrumentTracing(rs.Client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := rs.Client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return rs, nil
}

func rateCardKey(showID int, onDate time.Time) string {
	return fmt.Sprintf("ratecard:%d:%s", showID, models.DateOnly(onDate).Format("2006-01-02"))
}

// GetCachedRateCard returns the cached rate card for (show, date), or
// models.ErrNotFound on a cache miss.
func (r *RedisStore) GetCachedRateCard(ctx context.Context, showID int, onDate time.Time) (*models.RateCard, error) {
	raw, err := r.Client.Get(ctx, rateCardKey(showID, onDate)).Bytes()
	if err == redis.Nil {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("rate card cache get: %w", err)
	}
	var rc models.RateCard
	if err := json.Unmarshal(raw, &rc); err != nil {
		return nil, fmt.Errorf("rate card cache decode: %w", err)
	}
	return &rc, nil
}

// SetCachedRateCard caches a rate card for (show, date) with the given TTL.
func (r *RedisStore) SetCachedRateCard(ctx context.Context, showID int, onDate time.Time, rc *models.RateCard, ttl time.Duration) error {
	raw, err := json.Marshal(rc)
	if err != nil {
		return fmt.Errorf("rate card cache encode: %w", err)
	}
	if err := r.Client.Set(ctx, rateCardKey(showID, onDate), raw, ttl).Err(); err != nil {
		return fmt.Errorf("rate card cache set: %w", err)
	}
	return nil
}

// PublishInventoryUpdate notifies subscribers that inventory changed.
func (r *RedisStore) PublishInventoryUpdate(ctx context.Context, update InventoryUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal inventory update: %w", err)
	}
	if err := r.Client.Publish(ctx, InventoryUpdateChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish inventory update: %w", err)
	}
	return nil
}
