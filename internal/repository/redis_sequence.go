package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisSequence struct {
	client  *redis.Client
	prefix  string
	padding int
}

func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewRedisSequence(client *redis.Client, prefix string, padding int) *RedisSequence {
	return &RedisSequence{client: client, prefix: prefix, padding: padding}
}

func (s *RedisSequence) Next(ctx context.Context, code string) (string, error) {
	number, err := s.client.Incr(ctx, "sequence:"+code).Result()
	if err != nil {
		return "", fmt.Errorf("next %s: %w", code, err)
	}
	return formatSequence(s.prefix, s.padding, number), nil
}
