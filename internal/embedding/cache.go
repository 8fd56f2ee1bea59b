package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachedEngine memoizes another engine's vectors. Repeated embeddings of
// the same text inside a pipeline run (claim vs. snippet comparisons) are
// the hot path, so entries keep a long TTL.
type CachedEngine struct {
	inner Engine
	cache *gocache.Cache
}

// NewCachedEngine wraps an engine with a memoization cache
func NewCachedEngine(inner Engine, ttl time.Duration) *CachedEngine {
	if ttl == 0 {
		ttl = time.Hour
	}
	return &CachedEngine{
		inner: inner,
		cache: gocache.New(ttl, 10*time.Minute),
	}
}

// Embed returns the cached vector or delegates to the inner engine
func (e *CachedEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	key := embedKey(text)
	if v, found := e.cache.Get(key); found {
		return v.([]float32), nil
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	e.cache.Set(key, vec, gocache.DefaultExpiration)
	return vec, nil
}

func embedKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
