package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Idempotency stores serialized handler responses keyed by the caller's
// Idempotency-Key. The payload shape belongs to the idempotency package;
// this adapter only moves bytes.
type Idempotency struct {
	client *redis.Client
}

func NewIdempotency(client *redis.Client) *Idempotency {
	return &Idempotency{client: client}
}

// Get returns the stored payload, or nil when the key is unknown.
func (i *Idempotency) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := i.client.Get(ctx, "idemp:"+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return i.client.Set(ctx, "idemp:"+key, data, ttl).Err()
}
