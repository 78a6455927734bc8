//go:build integration

package infra_test

import (
	"context"
	"testing"
	"time"

	"cashledger/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	rdC, err := tcRedis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	url, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestClosingGate(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()
	gate := infra.NewRedisClosingGate(rdb, 5*time.Second, time.Minute)
	const key = "t1:reg-1"

	busy, err := gate.InProgress(ctx, key)
	require.NoError(t, err)
	assert.False(t, busy)

	require.NoError(t, gate.BeginCounting(ctx, key))
	busy, _ = gate.InProgress(ctx, key)
	assert.True(t, busy)
	require.NoError(t, gate.CancelCounting(ctx, key))
	busy, _ = gate.InProgress(ctx, key)
	assert.False(t, busy)

	release, err := gate.Acquire(ctx, key)
	require.NoError(t, err)

	_, err = gate.Acquire(ctx, key)
	assert.ErrorIs(t, err, infra.ErrLockNotObtained)

	other, err := gate.Acquire(ctx, "t1:reg-2")
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	again, err := gate.Acquire(ctx, key)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestNotifier_DeliversRegisterEvents(t *testing.T) {
	rdb := setupRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	n := infra.NewNotifier(rdb)
	events, closeSub := n.Subscribe(ctx, "t1", "reg-1")
	defer closeSub()

	// the subscription is live once redis acknowledges it
	require.Eventually(t, func() bool {
		res, err := rdb.PubSubNumSub(ctx, infra.LedgerChannel("t1", "reg-1")).Result()
		return err == nil && res[infra.LedgerChannel("t1", "reg-1")] == 1
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, n.Publish(ctx, infra.LedgerEvent{Type: infra.EventMovementCreated, TenantID: "t1", RegisterID: "reg-2"}))
	require.NoError(t, n.Publish(ctx, infra.LedgerEvent{Type: infra.EventClosingCreated, TenantID: "t1", RegisterID: "reg-1", ClosingID: "2024-03-15_reg-1"}))

	select {
	case ev := <-events:
		assert.Equal(t, infra.EventClosingCreated, ev.Type)
		assert.Equal(t, "2024-03-15_reg-1", ev.ClosingID)
	case <-ctx.Done():
		t.Fatal("no event received")
	}
}
