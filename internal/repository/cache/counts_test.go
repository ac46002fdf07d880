package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mamadbah2/fruitstock/internal/domain/models"
)

func newTestCache(t *testing.T) (*CountsCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCountsCache(client, time.Minute, zap.NewNop()), mr
}

func TestCountsCache_MissThenHit(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)

	_, ok, err := cache.GetCounts(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	want := models.Counts{Fruits: 3, Categories: 2, Batches: 4, Sales: 9, Spoilages: 1}
	require.NoError(t, cache.SetCounts(ctx, want))

	got, ok, err := cache.GetCounts(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

func TestCountsCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	require.NoError(t, cache.SetCounts(ctx, models.Counts{Fruits: 1}))
	require.True(t, mr.Exists(countsKey))

	require.NoError(t, cache.Invalidate(ctx))
	assert.False(t, mr.Exists(countsKey))

	require.NoError(t, cache.Invalidate(ctx))
}

func TestCountsCache_Expires(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	require.NoError(t, cache.SetCounts(ctx, models.Counts{Sales: 5}))
	mr.FastForward(2 * time.Minute)

	_, ok, err := cache.GetCounts(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCountsCache_CorruptValue(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	require.NoError(t, mr.Set(countsKey, "not json"))
	_, _, err := cache.GetCounts(ctx)
	assert.Error(t, err)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	addr := mr.Addr()

	client, err := Connect(context.Background(), addr, "", 0)
	require.NoError(t, err)
	require.NoError(t, client.Close())

	mr.Close()
	_, err = Connect(context.Background(), addr, "", 0)
	assert.Error(t, err)
}
