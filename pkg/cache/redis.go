package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(opts RedisOptions) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{client: rdb, ttl: opts.TTL}, nil
}

func streakKey(userID string) string {
	return "muscleai:streak:" + userID
}

func (r *Redis) Get(ctx context.Context, userID string) (Entry, bool, error) {
	raw, err := r.client.Get(ctx, streakKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get streak: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, fmt.Errorf("decode cached streak: %w", err)
	}
	return e, true, nil
}

func (r *Redis) Set(ctx context.Context, userID string, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode streak: %w", err)
	}
	if err := r.client.Set(ctx, streakKey(userID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set streak: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, userID string) error {
	return r.client.Del(ctx, streakKey(userID)).Err()
}

func (r *Redis) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
