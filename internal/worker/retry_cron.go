package worker

// retry_cron.go
// Failed jobs wait in a sorted set scored by their due time. A ticker moves
// due jobs back onto their queue, so a failing SMTP server or bucket is not
// retried in a tight loop by the workers themselves.

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	retrySetKey       = "jobs:retry"
	retryTickInterval = 15 * time.Second
	retryBatchSize    = 50
	retryBaseDelay    = 30 * time.Second
	retryMaxDelay     = 30 * time.Minute
)

type retryEntry struct {
	Queue string `json:"queue"`
	Job   Job    `json:"job"`
}

// retryBackoff is exponential from 30s, capped at 30 minutes.
func retryBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := retryBaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= retryMaxDelay {
			return retryMaxDelay
		}
	}
	return d
}

// ScheduleRetry parks job until now+delay.
func ScheduleRetry(ctx context.Context, rdb *redis.Client, queue string, job Job, delay time.Duration) error {
	data, err := json.Marshal(retryEntry{Queue: queue, Job: job})
	if err != nil {
		return err
	}
	due := time.Now().Add(delay).Unix()
	return rdb.ZAdd(ctx, retrySetKey, redis.Z{Score: float64(due), Member: data}).Err()
}

// StartRetryCron launches the promoter goroutine. It stops with ctx.
func StartRetryCron(ctx context.Context, rdb *redis.Client) {
	go func() {
		ticker := time.NewTicker(retryTickInterval)
		defer ticker.Stop()

		log.Info().Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				if n, err := promoteDue(ctx, rdb, time.Now()); err != nil {
					log.Error().Err(err).Msg("retry_cron: promote failed")
				} else if n > 0 {
					log.Info().Int("count", n).Msg("retry_cron: jobs re-queued")
				}
			}
		}
	}()
}

// promoteDue re-queues every job due at now. ZREM decides ownership so two
// server instances never push the same job twice.
func promoteDue(ctx context.Context, rdb *redis.Client, now time.Time) (int, error) {
	members, err := rdb.ZRangeByScore(ctx, retrySetKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: retryBatchSize,
	}).Result()
	if err != nil {
		return 0, err
	}

	d := NewDispatcher(rdb)
	promoted := 0
	for _, m := range members {
		removed, err := rdb.ZRem(ctx, retrySetKey, m).Result()
		if err != nil {
			return promoted, err
		}
		if removed == 0 {
			continue
		}
		var entry retryEntry
		if err := json.Unmarshal([]byte(m), &entry); err != nil {
			log.Error().Err(err).Msg("retry_cron: dropping unreadable entry")
			continue
		}
		if err := d.push(ctx, entry.Queue, entry.Job); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}
