package service_test

import (
	"context"
	"testing"

	"cashledger/internal/infra"
	"cashledger/internal/model"
	"cashledger/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep_ClosesForgottenDay(t *testing.T) {
	h := newHarness()
	h.store.addSale(register, "100", "100", "", h.daysAgo(3, 11))
	h.store.addMovement(register, model.MovementSale, "100", h.daysAgo(3, 11))

	n, err := h.sweeper.Sweep(context.Background(), h.rc, "Ana")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	c, ok := h.store.closings["2024-03-12_reg-1"]
	require.True(t, ok)
	assert.True(t, c.AutoClosed)
	assert.Equal(t, model.SystemActor, c.ClosedBy)
	assert.True(t, c.CashReal.Equal(c.CashExpected))
	assert.True(t, c.Difference.IsZero())
	assert.True(t, c.TotalSales.Equal(dec("100")))
	assert.Equal(t, 1, c.LockedTransactions)
	assert.Contains(t, h.publisher.types(), infra.EventSweepCompleted)
}

func TestSweep_OldestFirstWithBalanceAsOfEachDay(t *testing.T) {
	h := newHarness()
	h.store.addMovement(register, model.MovementSale, "50", h.daysAgo(1, 9))
	h.store.addMovement(register, model.MovementSale, "100", h.daysAgo(3, 9))
	h.store.addMovement(register, model.MovementExpense, "30", h.daysAgo(2, 9))

	n, err := h.sweeper.Sweep(context.Background(), h.rc, "Ana")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.True(t, h.store.closings["2024-03-12_reg-1"].CashExpected.Equal(dec("100")))
	assert.True(t, h.store.closings["2024-03-13_reg-1"].CashExpected.Equal(dec("70")))
	assert.True(t, h.store.closings["2024-03-14_reg-1"].CashExpected.Equal(dec("120")))
	assert.Equal(t, []string{"2024-03-12_reg-1", "2024-03-13_reg-1", "2024-03-14_reg-1"}, h.reports.ids)
}

func TestSweep_IsIdempotentAndSkipsToday(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.store.addSale(register, "10", "10", "", h.daysAgo(2, 10))
	h.store.addSale(register, "10", "10", "", h.now)

	n, err := h.sweeper.Sweep(ctx, h.rc, "Ana")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = h.sweeper.Sweep(ctx, h.rc, "Ana")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Len(t, h.store.closings, 1)
	require.NoError(t, h.lock.EnsureOpen(ctx, h.rc))
}

func TestSweep_NoActivityIsNoop(t *testing.T) {
	h := newHarness()
	n, err := h.sweeper.Sweep(context.Background(), h.rc, "Ana")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, h.publisher.types())
}

func TestSweep_SkipsDaysAlreadyClosed(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.store.addSale(register, "10", "10", "", h.daysAgo(2, 10))
	h.store.addSale(register, "10", "10", "", h.daysAgo(1, 10))
	_, err := h.closings.AutoClose(ctx, h.rc, h.daysAgo(2, 0))
	require.NoError(t, err)

	pending, err := h.sweeper.PendingDays(ctx, h.rc)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "2024-03-14", pending[0].Format(model.BusinessDayLayout))
}

func TestSweep_StopsOnFailure(t *testing.T) {
	h := newHarness()
	h.store.addSale(register, "10", "10", "", h.daysAgo(2, 10))
	h.store.addSale(register, "10", "10", "", h.daysAgo(1, 10))
	release, err := h.gate.Acquire(context.Background(), h.rc.Key())
	require.NoError(t, err)
	defer func() { _ = release(context.Background()) }()

	n, err := h.sweeper.Sweep(context.Background(), h.rc, "Ana")
	assert.ErrorIs(t, err, service.ErrClosingInProgress)
	assert.Equal(t, 0, n)
	assert.Empty(t, h.store.closings)
}
