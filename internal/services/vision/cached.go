package vision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obsidian-neural/loop-service/internal/core/cache"
)

// CachedDescriber wraps a Describer with a cache keyed by the image content
// and musical context. Image analysis is the most expensive collaborator
// call, and identical drawings resubmitted with the same tempo and key are
// common during a session.
type CachedDescriber struct {
	inner Describer
	cache cache.Client
	ttl   time.Duration
}

// NewCachedDescriber creates a caching wrapper around a Describer.
func NewCachedDescriber(inner Describer, cacheClient cache.Client, ttl time.Duration) *CachedDescriber {
	return &CachedDescriber{
		inner: inner,
		cache: cacheClient,
		ttl:   ttl,
	}
}

// Describe returns a cached description when one exists, otherwise calls
// the wrapped collaborator and stores its result. Cache failures are logged
// and never fail the request.
func (c *CachedDescriber) Describe(ctx context.Context, imagePath string, bpm float64, key string, temperature float64) (*SonicDescription, error) {
	cacheKey, err := c.buildCacheKey(imagePath, bpm, key)
	if err != nil {
		// Unreadable image will fail the same way downstream.
		return c.inner.Describe(ctx, imagePath, bpm, key, temperature)
	}

	if cached, err := c.cache.Get(ctx, cacheKey); err != nil {
		log.Warn().Err(err).Msg("vision cache lookup failed")
	} else if cached != nil {
		var description SonicDescription
		if err := json.Unmarshal(cached, &description); err == nil {
			return &description, nil
		}
		// Corrupted entry, drop it and analyze fresh.
		_, _ = c.cache.Delete(ctx, cacheKey)
	}

	description, err := c.inner.Describe(ctx, imagePath, bpm, key, temperature)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(description); err == nil {
		if err := c.cache.Set(ctx, cacheKey, data, c.ttl); err != nil {
			log.Warn().Err(err).Msg("vision cache store failed")
		}
	}

	return description, nil
}

func (c *CachedDescriber) buildCacheKey(imagePath string, bpm float64, key string) (string, error) {
	imageBytes, err := os.ReadFile(imagePath)
	if err != nil {
		return "", err
	}

	hash := sha256.New()
	hash.Write(imageBytes)
	fmt.Fprintf(hash, "|%.0f|%s", bpm, key)

	return "vision:" + hex.EncodeToString(hash.Sum(nil)), nil
}
