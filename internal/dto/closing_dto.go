package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// CashCountRequest carries the operator's physical count. CashReal is a
// pointer so a missing value can be told apart from zero.
type CashCountRequest struct {
	CashReal *decimal.Decimal `json:"cash_real"`
	Comment  *string          `json:"comment" validate:"omitempty,max=500"`
}

type ExecuteClosingRequest struct {
	CashReal  *decimal.Decimal `json:"cash_real"`
	Comment   *string          `json:"comment"   validate:"omitempty,max=500"`
	Confirmed bool             `json:"confirmed"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SalesBreakdownResponse struct {
	TotalSales  decimal.Decimal            `json:"total_sales"`
	Cash        decimal.Decimal            `json:"cash"`
	MobileMoney decimal.Decimal            `json:"mobile_money"`
	Card        decimal.Decimal            `json:"card"`
	ByMethod    map[string]decimal.Decimal `json:"by_method"`
	Count       int                        `json:"count"`
}

type OutflowsResponse struct {
	Purchases    decimal.Decimal `json:"purchases"`
	Withdrawals  decimal.Decimal `json:"withdrawals"`
	Expenses     decimal.Decimal `json:"expenses"`
	BankDeposits decimal.Decimal `json:"bank_deposits"`
	Deposits     decimal.Decimal `json:"deposits"`
}

type BalanceResponse struct {
	CashIn      decimal.Decimal `json:"cash_in"`
	CashOut     decimal.Decimal `json:"cash_out"`
	BankOut     decimal.Decimal `json:"bank_out"`
	NetPhysical decimal.Decimal `json:"net_physical"`
}

// ClosingPreviewResponse is what the operator sees while counting.
type ClosingPreviewResponse struct {
	ClosingID    string                 `json:"closing_id"`
	BusinessDay  string                 `json:"business_day"`
	CashExpected decimal.Decimal        `json:"cash_expected"`
	Today        BalanceResponse        `json:"today"`
	Sales        SalesBreakdownResponse `json:"sales"`
	Outflows     OutflowsResponse       `json:"outflows"`
}

type ClosingReviewResponse struct {
	ClosingPreviewResponse
	CashReal       decimal.Decimal `json:"cash_real"`
	Difference     decimal.Decimal `json:"difference"`
	Classification string          `json:"classification"` // balanced | short | over
	Severity       string          `json:"severity"`       // normal | warning | critical
	Comment        *string         `json:"comment,omitempty"`
}

type ClosingResponse struct {
	ID                 string          `json:"id"`
	RegisterID         string          `json:"register_id"`
	BusinessDay        string          `json:"business_day"`
	Date               string          `json:"date"`
	ClosedBy           string          `json:"closed_by"`
	TotalSales         decimal.Decimal `json:"total_sales"`
	AmountCash         decimal.Decimal `json:"amount_cash"`
	AmountMobileMoney  decimal.Decimal `json:"amount_mobile_money"`
	AmountCard         decimal.Decimal `json:"amount_card"`
	CashExpected       decimal.Decimal `json:"cash_expected"`
	CashReal           decimal.Decimal `json:"cash_real"`
	Difference         decimal.Decimal `json:"difference"`
	Classification     string          `json:"classification"`
	Status             string          `json:"status"`
	AutoClosed         bool            `json:"auto_closed"`
	Comment            *string         `json:"comment,omitempty"`
	LockedTransactions int             `json:"locked_transactions"`
}

type ClosingListResponse struct {
	Data  []ClosingResponse `json:"data"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

type ClosingStateResponse struct {
	State     string  `json:"state"` // OPEN | CLOSING_IN_PROGRESS | CLOSED
	ClosingID *string `json:"closing_id,omitempty"`
}

type SweepResponse struct {
	DaysClosed int `json:"days_closed"`
}
