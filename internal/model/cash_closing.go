package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// ClosingStatusClosed is the only status a closing ever has.
	ClosingStatusClosed = "closed"
	// SystemActor is recorded as ClosedBy on automatic closings.
	SystemActor = "system"
	// BusinessDayLayout formats the day part of a closing id.
	BusinessDayLayout = "2006-01-02"
)

// ClosingID builds the deterministic "<YYYY-MM-DD>_<registerId>" key. day must
// already be expressed in the register's location.
func ClosingID(day time.Time, registerID string) string {
	return day.Format(BusinessDayLayout) + "_" + registerID
}

// CashClosing is the immutable ledger snapshot of one register-day. Its ID is
// the natural idempotency key: at most one closing per register per day.
type CashClosing struct {
	ID                string          `gorm:"type:varchar(140);primaryKey"`
	TenantID          string          `gorm:"type:varchar(64);not null;index:idx_closings_scope,priority:1"`
	RegisterID        string          `gorm:"type:varchar(64);not null;index:idx_closings_scope,priority:2"`
	BusinessDay       string          `gorm:"type:char(10);not null;index:idx_closings_scope,priority:3"`
	Date              time.Time       `gorm:"not null"`
	ClosedBy          string          `gorm:"not null"`
	TotalSales        decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	AmountCash        decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	AmountMobileMoney decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	AmountCard        decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	CashExpected      decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	CashReal          decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Difference        decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Status            string          `gorm:"type:varchar(10);not null;default:'closed'"`
	AutoClosed        bool            `gorm:"not null;default:false"`
	Comment           *string
	// LockedTransactions counts the invoices flagged by this closing
	LockedTransactions int `gorm:"not null;default:0"`
	CreatedAt          time.Time
}

func (CashClosing) TableName() string { return "cash_closings" }
