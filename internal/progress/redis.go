package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "task:progress:"

// RedisOptions configures a RedisStore connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// TTL bounds how long a record survives after its last write. Zero keeps records forever.
	TTL time.Duration
}

// RedisStore keeps progress records in redis so several daemons can share them.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// ConnectRedis dials redis and verifies the connection with a ping.
func ConnectRedis(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client, ttl: opts.TTL}, nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Write overwrites the record for taskID.
func (s *RedisStore) Write(ctx context.Context, taskID string, value float64, status Status) error {
	payload, err := json.Marshal(Record{
		TaskID:    taskID,
		Progress:  value,
		Status:    status,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+taskID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	return nil
}

// Read returns the last record for taskID or a not-found record.
func (s *RedisStore) Read(ctx context.Context, taskID string) (Record, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+taskID).Bytes()
	if errors.Is(err, redis.Nil) {
		return NotFound(taskID), nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("read progress: %w", err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("decode progress: %w", err)
	}
	return record, nil
}

// Delete removes the record for taskID.
func (s *RedisStore) Delete(ctx context.Context, taskID string) error {
	return s.client.Del(ctx, redisKeyPrefix+taskID).Err()
}

// Close releases the redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
