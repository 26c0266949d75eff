package uistate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "ui:"

// RedisBackend keeps sessions in Redis as JSON with a sliding TTL.
type RedisBackend struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBackend connects to redisURL and verifies the connection.
func NewRedisBackend(redisURL string, ttl time.Duration) (*RedisBackend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("uistate: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("uistate: connect to redis: %w", err)
	}
	return NewRedisBackendWithClient(client, ttl), nil
}

// NewRedisBackendWithClient wraps an existing client.
func NewRedisBackendWithClient(client *redis.Client, ttl time.Duration) *RedisBackend {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisBackend{client: client, ttl: ttl}
}

func (r *RedisBackend) key(id string) string {
	return redisPrefix + id
}

// Load reads session id and refreshes its TTL.
func (r *RedisBackend) Load(ctx context.Context, id string) (State, bool, error) {
	raw, err := r.client.GetEx(ctx, r.key(id), r.ttl).Result()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("get %s: %w", r.key(id), err)
	}
	var st State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return State{}, false, fmt.Errorf("decode %s: %w", r.key(id), err)
	}
	return st, true, nil
}

func (r *RedisBackend) Save(ctx context.Context, id string, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(id), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", r.key(id), err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("del %s: %w", r.key(id), err)
	}
	return nil
}

// Ping checks that Redis is reachable.
func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
