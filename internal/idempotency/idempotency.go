package idempotency

import (
	"context"
	"encoding/json"
	"time"

	redisadapter "github.com/fitprep/practice-session-bookings/internal/adapters/redis"
)

// Idempotency replays a stored response for a repeated Idempotency-Key so
// double-submitted bookings don't reach the workflow twice.
type Idempotency struct {
	redis *redisadapter.Idempotency
	ttl   time.Duration
}

func NewIdempotency(redis *redisadapter.Idempotency, ttl time.Duration) *Idempotency {
	return &Idempotency{redis: redis, ttl: ttl}
}

// Response is the replayable part of a handler response. Result is empty
// for bodyless statuses like 204.
type Response struct {
	Status int    `json:"status"`
	Result []byte `json:"result,omitempty"`
}

func (i *Idempotency) Get(ctx context.Context, key string) (*Response, error) {
	data, err := i.redis.Get(ctx, key)
	if err != nil || data == nil {
		return nil, err
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return i.redis.Set(ctx, key, data, i.ttl)
}
