// Package catalog serves session lookups through an explicit cache layer.
// Invalidation is injected by callers (admin updates, reconciliation) rather
// than held in process-global state.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	redisadapter "github.com/fitprep/practice-session-bookings/internal/adapters/redis"
	"github.com/fitprep/practice-session-bookings/internal/domain"
	"github.com/fitprep/practice-session-bookings/internal/observability"
	"github.com/fitprep/practice-session-bookings/internal/retry"
)

// Source is the authoritative session store behind the cache.
type Source interface {
	GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error)
}

type CachedCatalog struct {
	cache  *redisadapter.Cache
	source Source
	ttl    time.Duration
	logger observability.Logger
}

func NewCachedCatalog(cache *redisadapter.Cache, source Source, ttl time.Duration, logger observability.Logger) *CachedCatalog {
	return &CachedCatalog{cache: cache, source: source, ttl: ttl, logger: logger}
}

// Get returns the session from cache when present, falling through to the
// source. Cache failures degrade to a source read, never to an error.
func (c *CachedCatalog) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	cached, _, err := c.cache.GetSession(ctx, id)
	if err != nil {
		c.logger.Warn("catalog cache read failed", err)
	}
	if cached != nil {
		return cached, nil
	}
	return c.fetch(ctx, id)
}

func (c *CachedCatalog) Invalidate(ctx context.Context, id uuid.UUID) error {
	return c.cache.InvalidateSession(ctx, id)
}

// RefreshIfStale returns the cached session unless its age exceeds maxAge,
// in which case it refetches from the source.
func (c *CachedCatalog) RefreshIfStale(ctx context.Context, id uuid.UUID, maxAge time.Duration) (*domain.Session, error) {
	cached, age, err := c.cache.GetSession(ctx, id)
	if err != nil {
		c.logger.Warn("catalog cache read failed", err)
	}
	if cached != nil && age <= maxAge {
		return cached, nil
	}
	return c.fetch(ctx, id)
}

func (c *CachedCatalog) fetch(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	session, err := c.source.GetSession(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		// Transient source failure; the read is idempotent, retry it.
		session, err = retry.Do(ctx, 3, 100*time.Millisecond, func(ctx context.Context) (*domain.Session, error) {
			return c.source.GetSession(ctx, id)
		})
	}
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetSession(ctx, *session, c.ttl); err != nil {
		c.logger.Warn("catalog cache write failed", err)
	}
	return session, nil
}
