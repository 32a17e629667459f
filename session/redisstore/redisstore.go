// Package redisstore keeps the persisted session in a redis hash, so several
// processes on a host (or a fleet of workers) can share one sign-in.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// New wraps an existing client. A ttl of zero keeps the hash until it is cleared.
func New(client *redis.Client, key string, ttl time.Duration) *Store {
	return &Store{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

// Connect parses a redis:// or rediss:// URL and verifies the server answers PING.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("[redisstore.Connect] parse url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("[redisstore.Connect] ping: %w", err)
	}
	return client, nil
}

func (s *Store) Load(ctx context.Context) (map[string]string, error) {
	values, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("[redisstore.Load] hgetall %s: %w", s.key, err)
	}
	return values, nil
}

// Save replaces the hash in a single MULTI/EXEC block.
func (s *Store) Save(ctx context.Context, values map[string]string) error {
	fields := make(map[string]interface{}, len(values))
	for k, v := range values {
		fields[k] = v
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(fields) == 0 {
			return nil
		}
		pipe.HSet(ctx, s.key, fields)
		if s.ttl > 0 {
			pipe.Expire(ctx, s.key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("[redisstore.Save] %s: %w", s.key, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("[redisstore.Clear] del %s: %w", s.key, err)
	}
	return nil
}
