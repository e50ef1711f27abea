package vision_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsidian-neural/loop-service/internal/core/cache"
	rediscache "github.com/obsidian-neural/loop-service/internal/infrastructure/cache/redis"
	"github.com/obsidian-neural/loop-service/internal/services/vision"
)

// countingDescriber wraps canned output and counts collaborator calls.
type countingDescriber struct {
	calls int
	err   error
}

func (d *countingDescriber) Describe(ctx context.Context, imagePath string, bpm float64, key string, temperature float64) (*vision.SonicDescription, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return vision.ParseDescription(validDescription)
}

func setupCache(t *testing.T) (*miniredis.Miniredis, cache.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := rediscache.NewCache(rediscache.Config{
		Host: mr.Host(),
		Port: mr.Port(),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return mr, client
}

func TestCachedDescriber_SecondCallHitsCache(t *testing.T) {
	_, cacheClient := setupCache(t)
	inner := &countingDescriber{}
	describer := vision.NewCachedDescriber(inner, cacheClient, time.Hour)
	imagePath := writeTestImage(t)
	ctx := context.Background()

	first, err := describer.Describe(ctx, imagePath, 128, "A Minor", 0.7)
	require.NoError(t, err)

	second, err := describer.Describe(ctx, imagePath, 128, "A Minor", 0.7)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls, "second identical request must be served from cache")
	assert.Equal(t, first.Parameters.SampleDetails.MusicgenPrompt, second.Parameters.SampleDetails.MusicgenPrompt)
}

func TestCachedDescriber_DifferentMusicalContextMisses(t *testing.T) {
	_, cacheClient := setupCache(t)
	inner := &countingDescriber{}
	describer := vision.NewCachedDescriber(inner, cacheClient, time.Hour)
	imagePath := writeTestImage(t)
	ctx := context.Background()

	_, err := describer.Describe(ctx, imagePath, 128, "A Minor", 0.7)
	require.NoError(t, err)
	_, err = describer.Describe(ctx, imagePath, 90, "A Minor", 0.7)
	require.NoError(t, err)
	_, err = describer.Describe(ctx, imagePath, 128, "C Major", 0.7)
	require.NoError(t, err)

	assert.Equal(t, 3, inner.calls, "tempo and key are part of the cache identity")
}

func TestCachedDescriber_CollaboratorErrorIsNotCached(t *testing.T) {
	_, cacheClient := setupCache(t)
	inner := &countingDescriber{err: fmt.Errorf("model not loaded")}
	describer := vision.NewCachedDescriber(inner, cacheClient, time.Hour)
	imagePath := writeTestImage(t)
	ctx := context.Background()

	_, err := describer.Describe(ctx, imagePath, 128, "A Minor", 0.7)
	require.Error(t, err)

	inner.err = nil
	description, err := describer.Describe(ctx, imagePath, 128, "A Minor", 0.7)
	require.NoError(t, err)
	assert.NotNil(t, description)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedDescriber_CorruptEntryFallsThrough(t *testing.T) {
	mr, cacheClient := setupCache(t)
	inner := &countingDescriber{}
	describer := vision.NewCachedDescriber(inner, cacheClient, time.Hour)
	imagePath := writeTestImage(t)
	ctx := context.Background()

	_, err := describer.Describe(ctx, imagePath, 128, "A Minor", 0.7)
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)

	// Corrupt every stored entry; the wrapper must fall through to the
	// collaborator instead of failing the request.
	for _, key := range mr.Keys() {
		require.NoError(t, mr.Set(key, "not json"))
	}

	description, err := describer.Describe(ctx, imagePath, 128, "A Minor", 0.7)
	require.NoError(t, err)
	assert.NotNil(t, description)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedDescriber_CacheOutageDegradesGracefully(t *testing.T) {
	mr, cacheClient := setupCache(t)
	inner := &countingDescriber{}
	describer := vision.NewCachedDescriber(inner, cacheClient, time.Hour)
	imagePath := writeTestImage(t)

	mr.Close()

	description, err := describer.Describe(context.Background(), imagePath, 128, "A Minor", 0.7)

	require.NoError(t, err, "a cache outage must never fail the request")
	assert.NotNil(t, description)
	assert.Equal(t, 1, inner.calls)
}
