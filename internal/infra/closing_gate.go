package infra

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ── Closing gate ──────────────────────────────────────────────────────────────
// Coordinates concurrent closing attempts on the same register across
// processes. Two keys per register:
//   - closing:counting:<key>  set while an operator is counting cash (step 1-2),
//     expires on its own so an abandoned count never blocks the register
//   - closing:exec:<key>      redislock held while executeClosing writes

const (
	countingPrefix = "closing:counting:"
	execPrefix     = "closing:exec:"
)

// ErrLockNotObtained is returned by Acquire when another session holds the
// execution lock for the register.
var ErrLockNotObtained = errors.New("closing lock not obtained")

// RedisClosingGate implements the gate on top of go-redis + bsm/redislock.
type RedisClosingGate struct {
	rdb         *redis.Client
	locker      *redislock.Client
	lockTTL     time.Duration
	countingTTL time.Duration
}

func NewRedisClosingGate(rdb *redis.Client, lockTTL, countingTTL time.Duration) *RedisClosingGate {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	if countingTTL <= 0 {
		countingTTL = 15 * time.Minute
	}
	return &RedisClosingGate{
		rdb:         rdb,
		locker:      redislock.New(rdb),
		lockTTL:     lockTTL,
		countingTTL: countingTTL,
	}
}

// BeginCounting marks the register as CLOSING_IN_PROGRESS. Idempotent.
func (g *RedisClosingGate) BeginCounting(ctx context.Context, key string) error {
	return g.rdb.Set(ctx, countingPrefix+key, time.Now().UTC().Format(time.RFC3339), g.countingTTL).Err()
}

// CancelCounting clears the counting marker.
func (g *RedisClosingGate) CancelCounting(ctx context.Context, key string) error {
	return g.rdb.Del(ctx, countingPrefix+key).Err()
}

// Acquire takes the execution lock. It does not wait: a second session trying
// to close the same register at the same moment gets ErrLockNotObtained.
func (g *RedisClosingGate) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	lock, err := g.locker.Obtain(ctx, execPrefix+key, g.lockTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	}
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

// InProgress reports whether a count or an execution is underway.
func (g *RedisClosingGate) InProgress(ctx context.Context, key string) (bool, error) {
	n, err := g.rdb.Exists(ctx, countingPrefix+key, execPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
