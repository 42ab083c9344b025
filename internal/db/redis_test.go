package db

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adcasthq/adcast/internal/models"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, &RedisStore{Client: client}
}

func TestRateCardCacheRoundTrip(t *testing.T) {
	mr, rs := newTestRedis(t)
	ctx := context.Background()
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	_, err := rs.GetCachedRateCard(ctx, 1, date)
	assert.ErrorIs(t, err, models.ErrNotFound)

	rc := &models.RateCard{ID: 7, ShowID: 1, EffectiveDate: date.AddDate(0, -1, 0), PreRollRate: 250, MidRollRate: 400}
	require.NoError(t, rs.SetCachedRateCard(ctx, 1, date, rc, time.Minute))

	got, err := rs.GetCachedRateCard(ctx, 1, date)
	require.NoError(t, err)
	assert.Equal(t, rc.ID, got.ID)
	assert.Equal(t, rc.PreRollRate, got.PreRollRate)

	// Entries expire with their TTL.
	mr.FastForward(2 * time.Minute)
	_, err = rs.GetCachedRateCard(ctx, 1, date)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRateCardCacheKeyIsDateScoped(t *testing.T) {
	_, rs := newTestRedis(t)
	ctx := context.Background()
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	rc := &models.RateCard{ID: 7, ShowID: 1, EffectiveDate: date.AddDate(0, -1, 0)}
	require.NoError(t, rs.SetCachedRateCard(ctx, 1, date, rc, time.Minute))

	// A different lookup date is a different key, so versioned cards never
	// shadow each other.
	_, err := rs.GetCachedRateCard(ctx, 1, date.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, models.ErrNotFound)

	// Time-of-day is normalized away.
	got, err := rs.GetCachedRateCard(ctx, 1, date.Add(15*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, rc.ID, got.ID)
}

func TestPublishInventoryUpdate(t *testing.T) {
	_, rs := newTestRedis(t)
	ctx := context.Background()

	sub := rs.Client.Subscribe(ctx, InventoryUpdateChannel)
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	update := InventoryUpdate{ShowID: 1, Date: "2026-03-02", Entity: "scheduled_spot", Action: "created", SpotIDs: []int{10, 11}}
	require.NoError(t, rs.PublishInventoryUpdate(ctx, update))

	msg, err := sub.ReceiveTimeout(ctx, time.Second)
	require.NoError(t, err)
	m, ok := msg.(*redis.Message)
	require.True(t, ok, "expected a pubsub message, got %T", msg)

	var got InventoryUpdate
	require.NoError(t, json.Unmarshal([]byte(m.Payload), &got))
	assert.Equal(t, update, got)
}
