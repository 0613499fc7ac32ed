package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestIdempotencyCache_SetAndGet(t *testing.T) {
	mr, client := setupRedis(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	err := cache.Set(ctx, "REF-1", []byte(`{"id":"abc"}`), 24*time.Hour)
	require.NoError(t, err)

	val, err := cache.Get(ctx, "REF-1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"id":"abc"}`), val)

	// Stored under the ledger reference prefix.
	assert.True(t, mr.Exists("ledger:ref:REF-1"))
}

func TestIdempotencyCache_GetMissing(t *testing.T) {
	_, client := setupRedis(t)
	cache := NewIdempotencyCache(client)

	val, err := cache.Get(context.Background(), "REF-missing")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestIdempotencyCache_TTLExpires(t *testing.T) {
	mr, client := setupRedis(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	err := cache.Set(ctx, "REF-2", []byte("payload"), time.Minute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	val, err := cache.Get(ctx, "REF-2")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestIdempotencyCache_GetAfterRedisDown(t *testing.T) {
	mr, client := setupRedis(t)
	cache := NewIdempotencyCache(client)
	mr.Close()

	_, err := cache.Get(context.Background(), "REF-3")
	assert.Error(t, err)
}
