package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces all keys written by RedisBackend.
const redisKeyPrefix = "ticketd:idem:"

func redisRecordKey(activity, key string) string {
	return redisKeyPrefix + activity + ":" + key
}

// RedisBackend stores JSON-encoded records in Redis. Records may expire
// after TTL; a zero TTL keeps them forever.
type RedisBackend struct {
	client goredis.Cmdable
	ttl    time.Duration
}

var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend wraps an existing client. The caller owns the client
// lifecycle.
func NewRedisBackend(client goredis.Cmdable, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, ttl: ttl}
}

// Ping verifies the connection is alive.
func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Get implements Backend.
func (r *RedisBackend) Get(ctx context.Context, activity, key string) (*Record, error) {
	data, err := r.client.Get(ctx, redisRecordKey(activity, key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return &rec, nil
}

// PutIfAbsent implements Backend with SETNX.
func (r *RedisBackend) PutIfAbsent(ctx context.Context, rec *Record) (*Record, bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, false, fmt.Errorf("encoding record: %w", err)
	}

	ok, err := r.client.SetNX(ctx, redisRecordKey(rec.Activity, rec.Key), data, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("writing record: %w", err)
	}
	if ok {
		return rec, true, nil
	}

	stored, err := r.Get(ctx, rec.Activity, rec.Key)
	if err != nil {
		return nil, false, fmt.Errorf("reading conflicting record: %w", err)
	}
	return stored, false, nil
}

// Close is a no-op; the caller owns the client.
func (r *RedisBackend) Close() error { return nil }
