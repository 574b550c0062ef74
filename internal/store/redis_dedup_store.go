package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisDedupStore implements DedupStore on Redis. Keys are claimed with
// SET NX so concurrent agents sharing the store cannot double-alert.
type RedisDedupStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisDedupStore creates a new Redis dedup store
func NewRedisDedupStore(host string, port int, password string, db int, logger *zap.Logger) (*RedisDedupStore, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisDedupStore{
		client: client,
		logger: logger,
	}, nil
}

// MarkOnce claims the key for ttl if it is not already claimed
func (s *RedisDedupStore) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.buildKey(key), 1, ttl).Result()
}

// buildKey namespaces dedup keys in the shared Redis database
func (s *RedisDedupStore) buildKey(key string) string {
	return "alert_dedup:" + key
}

// Ping checks the Redis connection
func (s *RedisDedupStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisDedupStore) Close() error {
	return s.client.Close()
}
