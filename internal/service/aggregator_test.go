package service_test

import (
	"testing"
	"time"

	"cashledger/internal/model"
	"cashledger/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func mov(typ model.MovementType, amount string, at time.Time) model.CashMovement {
	return model.CashMovement{ID: uuid.New(), Type: typ, Amount: dec(amount), Date: at}
}

func TestComputeBalance_AllTimeAndToday(t *testing.T) {
	start := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	yesterday := start.Add(-5 * time.Hour)
	today := start.Add(9 * time.Hour)

	movs := []model.CashMovement{
		mov(model.MovementSale, "300", yesterday),
		mov(model.MovementDeposit, "200", yesterday),
		mov(model.MovementSale, "150", today),
		mov(model.MovementPurchase, "40", today),
		mov(model.MovementWithdrawal, "10", today),
		mov(model.MovementExpense, "25", today),
		mov(model.MovementBankDeposit, "100", today),
	}

	all := service.ComputeBalance(movs, service.ScopeAllTime, start)
	assert.True(t, all.CashIn.Equal(dec("650")), all.CashIn.String())
	assert.True(t, all.CashOut.Equal(dec("75")), all.CashOut.String())
	assert.True(t, all.BankOut.Equal(dec("100")), all.BankOut.String())
	assert.True(t, all.NetPhysical.Equal(dec("475")), all.NetPhysical.String())

	day := service.ComputeBalance(movs, service.ScopeToday, start)
	assert.True(t, day.CashIn.Equal(dec("150")))
	assert.True(t, day.NetPhysical.Equal(dec("-25")), day.NetPhysical.String())
}

func TestComputeBalance_Empty(t *testing.T) {
	b := service.ComputeBalance(nil, service.ScopeAllTime, time.Now())
	assert.True(t, b.NetPhysical.IsZero())
	assert.True(t, b.CashIn.IsZero())
}

func TestComputeSales_ExcludesLockedOtherRegistersAndPurchases(t *testing.T) {
	day := model.Window{
		From: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC),
	}
	at := day.From.Add(10 * time.Hour)
	txs := []model.Transaction{
		{Type: model.TransactionSale, SellerID: "r1", Date: at, TotalAmount: dec("100"), AmountPaid: dec("100")},
		{Type: model.TransactionSale, SellerID: "r1", Date: at, TotalAmount: dec("80"), AmountPaid: dec("30"), PaymentMethod: model.PaymentMobileMoney},
		{Type: model.TransactionSale, SellerID: "r1", Date: at, TotalAmount: dec("20"), AmountPaid: dec("20"), PaymentMethod: model.PaymentCard},
		// excluded
		{Type: model.TransactionSale, SellerID: "r1", Date: at, TotalAmount: dec("999"), AmountPaid: dec("999"), IsLocked: true},
		{Type: model.TransactionSale, SellerID: "r2", Date: at, TotalAmount: dec("999"), AmountPaid: dec("999")},
		{Type: model.TransactionPurchase, SellerID: "r1", Date: at, TotalAmount: dec("999"), AmountPaid: dec("999")},
		{Type: model.TransactionSale, SellerID: "r1", Date: day.From.Add(-time.Minute), TotalAmount: dec("999"), AmountPaid: dec("999")},
	}

	s := service.ComputeSales(txs, "r1", day)
	assert.Equal(t, 3, s.Count)
	assert.True(t, s.TotalSales.Equal(dec("200")), s.TotalSales.String())
	assert.True(t, s.Cash.Equal(dec("100")), "unset method falls into CASH")
	assert.True(t, s.MobileMoney.Equal(dec("30")))
	assert.True(t, s.Card.Equal(dec("20")))
	assert.True(t, s.ByMethod[model.PaymentCash].Equal(dec("100")))
}

func TestComputeOutflows(t *testing.T) {
	day := model.Window{
		From: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC),
	}
	at := day.From.Add(time.Hour)
	movs := []model.CashMovement{
		mov(model.MovementPurchase, "10", at),
		mov(model.MovementPurchase, "5", at),
		mov(model.MovementWithdrawal, "7", at),
		mov(model.MovementExpense, "3", at),
		mov(model.MovementBankDeposit, "50", at),
		mov(model.MovementDeposit, "20", at),
		mov(model.MovementPurchase, "1000", day.To),
	}
	o := service.ComputeOutflows(movs, day)
	assert.True(t, o.Purchases.Equal(dec("15")))
	assert.True(t, o.Withdrawals.Equal(dec("7")))
	assert.True(t, o.Expenses.Equal(dec("3")))
	assert.True(t, o.BankDeposits.Equal(dec("50")))
	assert.True(t, o.Deposits.Equal(dec("20")))
}

func TestClassifyVariance(t *testing.T) {
	assert.Equal(t, service.VarianceBalanced, service.ClassifyVariance(dec("0")))
	assert.Equal(t, service.VarianceBalanced, service.ClassifyVariance(dec("0.005")))
	assert.Equal(t, service.VarianceShort, service.ClassifyVariance(dec("-20")))
	assert.Equal(t, service.VarianceOver, service.ClassifyVariance(dec("3.5")))
}

func TestVarianceSeverity(t *testing.T) {
	assert.Equal(t, "normal", service.VarianceSeverity(dec("-1"), dec("500")))
	assert.Equal(t, "warning", service.VarianceSeverity(dec("-20"), dec("500")))
	assert.Equal(t, "critical", service.VarianceSeverity(dec("-100"), dec("500")))
	assert.Equal(t, "critical", service.VarianceSeverity(dec("10"), dec("0")))
	assert.Equal(t, "normal", service.VarianceSeverity(dec("0"), dec("0")))
}

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "9h 30m", service.FormatRemaining(9*time.Hour+30*time.Minute))
	assert.Equal(t, "0h 01m", service.FormatRemaining(20*time.Second))
	assert.Equal(t, "0h 00m", service.FormatRemaining(-time.Minute))
}
