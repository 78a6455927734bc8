package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	redisPingAttempts = 5
	redisPingTimeout  = 2 * time.Second
)

// NewRedis opens the client used for job queues, the closing gate and ledger
// events. Startup waits for redis a few seconds since it usually comes up
// alongside the service.
func NewRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	// BRPOP workers and SSE subscribers each hold a connection
	if opts.PoolSize < 20 {
		opts.PoolSize = 20
	}
	rdb := redis.NewClient(opts)

	var pingErr error
	for attempt := 1; attempt <= redisPingAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		pingErr = rdb.Ping(ctx).Err()
		cancel()
		if pingErr == nil {
			log.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("redis connected")
			return rdb, nil
		}
		log.Warn().Err(pingErr).Int("attempt", attempt).Msg("redis not reachable yet")
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	_ = rdb.Close()
	return nil, pingErr
}
