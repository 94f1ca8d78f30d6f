package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/clinic-sync/internal/repository"
	"github.com/jwalitptl/clinic-sync/pkg/metrics"
)

const backend = "redis"

type kvStore struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewKVStore stores every key in Redis. ttl of 0 keeps keys forever; m may be nil.
func NewKVStore(client *redis.Client, ttl time.Duration, m *metrics.Metrics) repository.KVStore {
	return &kvStore{client: client, ttl: ttl, metrics: m}
}

func (s *kvStore) observe(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.StoreOperations.WithLabelValues(backend, op, status).Inc()
	s.metrics.StoreLatency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

func (s *kvStore) Get(ctx context.Context, key string) (value []byte, ok bool, err error) {
	defer func(start time.Time) { s.observe("get", start, err) }(time.Now())

	value, err = s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *kvStore) Set(ctx context.Context, key string, value []byte) (err error) {
	defer func(start time.Time) { s.observe("set", start, err) }(time.Now())

	if err = s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *kvStore) Remove(ctx context.Context, keys ...string) (err error) {
	if len(keys) == 0 {
		return nil
	}
	defer func(start time.Time) { s.observe("remove", start, err) }(time.Now())

	if err = s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to remove keys: %w", err)
	}
	return nil
}

func (s *kvStore) List(ctx context.Context, prefix string) (out map[string][]byte, err error) {
	defer func(start time.Time) { s.observe("list", start, err) }(time.Now())

	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err = iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s*: %w", prefix, err)
	}

	out = make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %d keys: %w", len(keys), err)
	}
	for i, v := range values {
		// a key may expire between SCAN and MGET
		if str, ok := v.(string); ok {
			out[keys[i]] = []byte(str)
		}
	}
	return out, nil
}

func (s *kvStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
