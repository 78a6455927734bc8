package service

import (
	"time"

	"cashledger/internal/model"

	"github.com/shopspring/decimal"
)

// Scope selects the movements a balance covers.
type Scope string

const (
	ScopeAllTime Scope = "all-time"
	ScopeToday   Scope = "today"
)

// Balance is the physical-cash position of a register.
//
//	cashIn      = SALE + DEPOSIT
//	cashOut     = PURCHASE + WITHDRAWAL + EXPENSE
//	bankOut     = BANK_DEPOSIT
//	netPhysical = cashIn - cashOut - bankOut
type Balance struct {
	CashIn      decimal.Decimal
	CashOut     decimal.Decimal
	BankOut     decimal.Decimal
	NetPhysical decimal.Decimal
}

// SalesBreakdown totals the unlocked SALE transactions of a window.
type SalesBreakdown struct {
	TotalSales  decimal.Decimal
	Cash        decimal.Decimal
	MobileMoney decimal.Decimal
	Card        decimal.Decimal
	ByMethod    map[model.PaymentMethod]decimal.Decimal
	Count       int
}

// Outflows are the per-type cash totals of a window.
type Outflows struct {
	Purchases    decimal.Decimal
	Withdrawals  decimal.Decimal
	Expenses     decimal.Decimal
	BankDeposits decimal.Decimal
	Deposits     decimal.Decimal
}

// ComputeBalance folds movements into a Balance. With ScopeToday only
// movements at or after startOfDay count.
func ComputeBalance(movs []model.CashMovement, scope Scope, startOfDay time.Time) Balance {
	w := model.Window{}
	if scope == ScopeToday {
		w.From = startOfDay
	}
	return BalanceIn(movs, w)
}

// BalanceIn folds the movements falling inside w.
func BalanceIn(movs []model.CashMovement, w model.Window) Balance {
	b := Balance{CashIn: decimal.Zero, CashOut: decimal.Zero, BankOut: decimal.Zero}
	for _, m := range movs {
		if !w.Contains(m.Date) {
			continue
		}
		switch m.Type {
		case model.MovementSale, model.MovementDeposit:
			b.CashIn = b.CashIn.Add(m.Amount)
		case model.MovementPurchase, model.MovementWithdrawal, model.MovementExpense:
			b.CashOut = b.CashOut.Add(m.Amount)
		case model.MovementBankDeposit:
			b.BankOut = b.BankOut.Add(m.Amount)
		}
	}
	b.NetPhysical = b.CashIn.Sub(b.CashOut).Sub(b.BankOut)
	return b
}

// ComputeSales totals SALE transactions of registerID dated inside w that are
// not yet locked by a closing. Locked transactions belong to a closing
// already and must never be counted twice.
func ComputeSales(txs []model.Transaction, registerID string, w model.Window) SalesBreakdown {
	s := SalesBreakdown{
		TotalSales:  decimal.Zero,
		Cash:        decimal.Zero,
		MobileMoney: decimal.Zero,
		Card:        decimal.Zero,
		ByMethod:    map[model.PaymentMethod]decimal.Decimal{},
	}
	for _, t := range txs {
		if t.Type != model.TransactionSale || t.IsLocked || t.SellerID != registerID || !w.Contains(t.Date) {
			continue
		}
		s.Count++
		s.TotalSales = s.TotalSales.Add(t.TotalAmount)
		method := model.NormalizeMethod(t.PaymentMethod)
		s.ByMethod[method] = s.ByMethod[method].Add(t.AmountPaid)
		switch method {
		case model.PaymentCash:
			s.Cash = s.Cash.Add(t.AmountPaid)
		case model.PaymentMobileMoney:
			s.MobileMoney = s.MobileMoney.Add(t.AmountPaid)
		case model.PaymentCard:
			s.Card = s.Card.Add(t.AmountPaid)
		}
	}
	return s
}

// ComputeOutflows totals movements of w by type.
func ComputeOutflows(movs []model.CashMovement, w model.Window) Outflows {
	o := Outflows{
		Purchases:    decimal.Zero,
		Withdrawals:  decimal.Zero,
		Expenses:     decimal.Zero,
		BankDeposits: decimal.Zero,
		Deposits:     decimal.Zero,
	}
	for _, m := range movs {
		if !w.Contains(m.Date) {
			continue
		}
		switch m.Type {
		case model.MovementPurchase:
			o.Purchases = o.Purchases.Add(m.Amount)
		case model.MovementWithdrawal:
			o.Withdrawals = o.Withdrawals.Add(m.Amount)
		case model.MovementExpense:
			o.Expenses = o.Expenses.Add(m.Amount)
		case model.MovementBankDeposit:
			o.BankDeposits = o.BankDeposits.Add(m.Amount)
		case model.MovementDeposit:
			o.Deposits = o.Deposits.Add(m.Amount)
		}
	}
	return o
}
