package lockout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix        = "wallet_lockout:"
	fieldFailures    = "failures"
	fieldLastFailure = "last_failure_at" // Unix nano
)

// RedisStore shares counters across instances. Each record is a hash whose
// expiry is pushed out on every failure.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	vals, err := s.client.HGetAll(ctx, keyPrefix+key).Result()
	if err != nil {
		return nil, fmt.Errorf("get lockout record: %w", err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return parseRecord(vals)
}

// RecordFailure increments and stamps the record in one MULTI block.
func (s *RedisStore) RecordFailure(ctx context.Context, key string, at time.Time, ttl time.Duration) (*Record, error) {
	k := keyPrefix + key
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, k, fieldFailures, 1)
		pipe.HSet(ctx, k, fieldLastFailure, at.UnixNano())
		pipe.PExpire(ctx, k, ttl)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record lockout failure: %w", err)
	}
	return &Record{Failures: int(incr.Val()), LastFailureAt: at}, nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("clear lockout record: %w", err)
	}
	return nil
}

func parseRecord(vals map[string]string) (*Record, error) {
	failures, err := strconv.Atoi(vals[fieldFailures])
	if err != nil {
		return nil, fmt.Errorf("parse lockout failures: %w", err)
	}
	nanos, err := strconv.ParseInt(vals[fieldLastFailure], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lockout timestamp: %w", err)
	}
	return &Record{Failures: failures, LastFailureAt: time.Unix(0, nanos).UTC()}, nil
}
