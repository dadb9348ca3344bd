package social

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Relationship lookups are the most expensive reads in the invite pipeline,
// so results are cached briefly. Staleness here only delays a graph change
// taking effect on invites; it never affects stored membership state.

// CacheConfig contains configuration for relationship caching
type CacheConfig struct {
	TTL time.Duration
}

// DefaultCacheConfig returns sensible defaults
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 2 * time.Minute}
}

// CachedGraph is a read-through Redis cache over any Graph.
type CachedGraph struct {
	inner  Graph
	client *goredis.Client
	config CacheConfig
}

func NewCachedGraph(inner Graph, client *goredis.Client, config CacheConfig) *CachedGraph {
	if config.TTL <= 0 {
		config = DefaultCacheConfig()
	}
	return &CachedGraph{inner: inner, client: client, config: config}
}

func (g *CachedGraph) IsMutualFollow(ctx context.Context, a, b uuid.UUID) (bool, error) {
	return g.lookup(ctx, "mutual", a, b, g.inner.IsMutualFollow)
}

func (g *CachedGraph) IsBlocking(ctx context.Context, a, b uuid.UUID) (bool, error) {
	return g.lookup(ctx, "block", a, b, g.inner.IsBlocking)
}

func (g *CachedGraph) IsRestricting(ctx context.Context, a, b uuid.UUID) (bool, error) {
	return g.lookup(ctx, "restrict", a, b, g.inner.IsRestricting)
}

type predicate func(ctx context.Context, a, b uuid.UUID) (bool, error)

func (g *CachedGraph) lookup(ctx context.Context, kind string, a, b uuid.UUID, fn predicate) (bool, error) {
	key := cacheKey(kind, a, b)
	if val, err := g.client.Get(ctx, key).Result(); err == nil {
		return val == "1", nil
	}

	result, err := fn(ctx, a, b)
	if err != nil {
		return false, err
	}

	val := "0"
	if result {
		val = "1"
	}
	// cache write is best effort
	_ = g.client.Set(ctx, key, val, g.config.TTL).Err()
	return result, nil
}

// cacheKey orders the pair so both directions of a symmetric predicate hit
// the same entry.
func cacheKey(kind string, a, b uuid.UUID) string {
	lo, hi := a.String(), b.String()
	if hi < lo {
		lo, hi = hi, lo
	}
	return "social:" + kind + ":" + lo + ":" + hi
}
