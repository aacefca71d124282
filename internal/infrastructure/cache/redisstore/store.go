// Package redisstore shares classification results between service
// instances through Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
)

const keyPrefix = "filing:"

// Store implements ports.ClassificationCache.
type Store struct {
	client *redis.Client
}

// NewClient parses url and verifies the connection.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// New wraps client. The client lifecycle is managed by the caller.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Get(ctx context.Context, key string) (domain.ClassificationResult, bool, error) {
	raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ClassificationResult{}, false, nil
	}
	if err != nil {
		return domain.ClassificationResult{}, false, fmt.Errorf("redis get: %w", err)
	}
	var out domain.ClassificationResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.ClassificationResult{}, false, fmt.Errorf("decode cached classification: %w", err)
	}
	return out, true, nil
}

// Set stores value with the given ttl; zero keeps it until evicted.
func (s *Store) Set(ctx context.Context, key string, value domain.ClassificationResult, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode classification: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
