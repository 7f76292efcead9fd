// Package wbscache fronts the WBS (work-breakdown-structure) repository
// with a two-tier positive/negative cache, so classification and outbox
// delivery never hit the database more than once per code between
// invalidations.
package wbscache

import (
	"context"
	"strings"
	"time"

	"github.com/pulsearc/agent-core/infrastructure/cache"
	apperrors "github.com/pulsearc/agent-core/infrastructure/errors"
	"github.com/pulsearc/agent-core/infrastructure/runtime"
	"github.com/pulsearc/agent-core/internal/domain"
)

const (
	defaultTTL      = 5 * time.Minute
	defaultCapacity = 1000
)

// Repository is the storage-layer dependency this cache fronts. A nil,
// nil return means "no such WBS element"; a non-nil error means the
// lookup itself failed (transient or otherwise) and must not be cached.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*domain.WbsElement, error)
}

// Cache is the two-tier (positive + negative) WBS lookup cache. Positive
// hits cache the resolved element; negative hits cache the fact that a
// code does not exist, so repeatedly asking about a typo'd or retired
// code does not repeatedly round-trip to the database. Errors from the
// repository (network, database) are never cached in either tier.
type Cache struct {
	positive *cache.Cache[string, domain.WbsElement]
	negative *cache.Cache[string, struct{}]
}

// New creates a Cache, reading SAP_CACHE_TTL_SECONDS and
// SAP_CACHE_MAX_CAPACITY from the environment to override the 5-minute /
// 1000-entry defaults.
func New() *Cache {
	ttl := defaultTTL
	if secs, ok := runtime.ParseEnvInt("SAP_CACHE_TTL_SECONDS"); ok && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	capacity := defaultCapacity
	if cap_, ok := runtime.ParseEnvInt("SAP_CACHE_MAX_CAPACITY"); ok && cap_ > 0 {
		capacity = cap_
	}

	cfg := cache.Config{Policy: cache.PolicyLRU, MaxEntries: capacity, DefaultTTL: ttl}
	return &Cache{
		positive: cache.New[string, domain.WbsElement](cfg),
		negative: cache.New[string, struct{}](cfg),
	}
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GetOrFetch resolves code against the cache, falling through to repo on a
// miss. It returns (element, nil) on a hit, (nil, nil) on a confirmed
// miss, and (nil, err) if the repository call itself failed — that last
// case is never cached, so the next call retries the repository.
func (c *Cache) GetOrFetch(ctx context.Context, code string, repo Repository) (*domain.WbsElement, error) {
	key := normalize(code)
	if key == "" {
		return nil, apperrors.InvalidInput("code", "wbs code must not be empty")
	}

	if _, miss := c.negative.Get(key); miss {
		return nil, nil
	}
	if elem, hit := c.positive.Get(key); hit {
		return &elem, nil
	}

	elem, err := repo.FindByCode(ctx, key)
	if err != nil {
		return nil, err
	}
	if elem == nil {
		c.negative.Set(key, struct{}{}, 0)
		return nil, nil
	}
	c.positive.Set(key, *elem, 0)
	return elem, nil
}

// Invalidate removes code from both tiers, forcing the next GetOrFetch to
// consult the repository.
func (c *Cache) Invalidate(code string) {
	key := normalize(code)
	c.positive.Delete(key)
	c.negative.Delete(key)
}

// Clear empties both tiers.
func (c *Cache) Clear() {
	c.positive.Clear()
	c.negative.Clear()
}
