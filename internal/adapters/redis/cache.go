package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fitprep/practice-session-bookings/internal/domain"
)

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

type cachedSession struct {
	Session  domain.Session `json:"session"`
	CachedAt time.Time      `json:"cached_at"`
}

// GetSession returns the cached session, its age, and whether it was found.
func (c *Cache) GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, time.Duration, error) {
	val, err := c.client.Get(ctx, "session:"+id.String()).Bytes()
	if err == redis.Nil {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	var entry cachedSession
	if err := json.Unmarshal(val, &entry); err != nil {
		return nil, 0, err
	}
	return &entry.Session, time.Since(entry.CachedAt), nil
}

func (c *Cache) SetSession(ctx context.Context, session domain.Session, ttl time.Duration) error {
	data, err := json.Marshal(cachedSession{Session: session, CachedAt: time.Now()})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "session:"+session.ID.String(), data, ttl).Err()
}

func (c *Cache) InvalidateSession(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, "session:"+id.String()).Err()
}
