package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsidian-neural/loop-service/internal/core/cache"
	rediscache "github.com/obsidian-neural/loop-service/internal/infrastructure/cache/redis"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, cache.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := rediscache.NewCache(rediscache.Config{
		Host:       mr.Host(),
		Port:       mr.Port(),
		DefaultTTL: time.Minute,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return mr, client
}

func TestNewCache_Success(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := rediscache.NewCache(rediscache.Config{
		Host: mr.Host(),
		Port: mr.Port(),
	})

	assert.NoError(t, err)
	assert.NotNil(t, client)

	client.Close()
}

func TestNewCache_ConnectionFailure(t *testing.T) {
	_, err := rediscache.NewCache(rediscache.Config{
		Host: "localhost",
		Port: "1",
	})

	assert.Error(t, err)
}

func TestCache_SetAndGet(t *testing.T) {
	_, client := setupMiniredis(t)
	ctx := context.Background()

	err := client.Set(ctx, "vision:abc", []byte("cached description"), time.Minute)
	assert.NoError(t, err)

	result, err := client.Get(ctx, "vision:abc")
	assert.NoError(t, err)
	assert.Equal(t, []byte("cached description"), result)
}

func TestCache_GetNotFound(t *testing.T) {
	_, client := setupMiniredis(t)

	result, err := client.Get(context.Background(), "missing-key")

	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestCache_Delete(t *testing.T) {
	_, client := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "key", []byte("value"), time.Minute))

	deleted, err := client.Delete(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = client.Delete(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, deleted)
}

func TestCache_SetRespectsTTL(t *testing.T) {
	mr, client := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "expiring", []byte("value"), time.Second))

	mr.FastForward(2 * time.Second)

	result, err := client.Get(ctx, "expiring")
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestCache_ZeroTTLUsesDefault(t *testing.T) {
	mr, client := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "defaulted", []byte("value"), 0))

	assert.Greater(t, mr.TTL("defaulted"), time.Duration(0))
}

func TestCache_Ping(t *testing.T) {
	mr, client := setupMiniredis(t)

	assert.NoError(t, client.Ping(context.Background()))

	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}
