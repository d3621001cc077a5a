package services

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const geoKey = "users:geo"

// NewRedisClient connects to Redis and pings it. An empty addr disables
// caching and the geo index; callers then get a nil client.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		log.Info().Msg("REDIS_ADDR not set, profile cache and geo index disabled")
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info().Str("addr", addr).Msg("Connected to Redis")
	return client, nil
}

func profileKey(userID string) string {
	return "user:" + userID
}
