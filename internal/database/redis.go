package database

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"aura-bot/internal/config"
)

const redisPingTimeout = 5 * time.Second

// ConnectRedis opens the client used for locks, webhook dedupe, admin
// sessions and rate limiting, and fails fast when the server is unreachable.
func ConnectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  redisPingTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", rdb.Options().Addr, err)
	}

	slog.Info("Connected to Redis", "addr", rdb.Options().Addr, "db", cfg.RedisDB)
	return rdb, nil
}
