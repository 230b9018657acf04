package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for keyed caching with per-entry TTL.
// Implementations are bounded in size and evict least-recently-used entries
// once full.
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
