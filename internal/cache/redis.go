package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Stale records stay readable this long past their expires_at so rate-limit
// fallbacks have something to serve.
const staleRetention = 30 * 24 * time.Hour

// RedisStore keeps the latest record per nip/source pair in Redis. The Redis
// key TTL is deliberately longer than the record's expires_at: logical
// expiry is judged by the reader, physical eviction only bounds storage.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedis constructs a Redis-backed cache store.
func NewRedis(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, record Record) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal cache record: %w", err)
	}
	retention := time.Until(record.ExpiresAt) + staleRetention
	if err := s.client.Set(ctx, recordKey(record.NIP, record.Source), value, retention).Err(); err != nil {
		return fmt.Errorf("save cache record: %w", err)
	}
	return nil
}

func (s *RedisStore) Latest(ctx context.Context, nip, source string) (Record, error) {
	value, err := s.client.Get(ctx, recordKey(nip, source)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("load cache record: %w", err)
	}
	var record Record
	if err := json.Unmarshal(value, &record); err != nil {
		return Record{}, fmt.Errorf("unmarshal cache record: %w", err)
	}
	return record, nil
}

func recordKey(nip, source string) string {
	return fmt.Sprintf("companyhub:cache:%s:%s", source, nip)
}
