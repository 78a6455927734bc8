package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType classifies a cash movement.
type MovementType string

const (
	MovementSale        MovementType = "SALE"
	MovementPurchase    MovementType = "PURCHASE"
	MovementDeposit     MovementType = "DEPOSIT"
	MovementWithdrawal  MovementType = "WITHDRAWAL"
	MovementExpense     MovementType = "EXPENSE"
	MovementBankDeposit MovementType = "BANK_DEPOSIT"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementSale, MovementPurchase, MovementDeposit,
		MovementWithdrawal, MovementExpense, MovementBankDeposit:
		return true
	}
	return false
}

// CashMovement is an immutable event in the register ledger.
// Movements are never modified; a settlement or a correction creates a new one.
// The only deletion path is removing an expense together with its movement.
type CashMovement struct {
	ID          uuid.UUID       `gorm:"type:char(36);primaryKey"`
	TenantID    string          `gorm:"type:varchar(64);not null;index:idx_movements_scope,priority:1"`
	RegisterID  string          `gorm:"type:varchar(64);not null;index:idx_movements_scope,priority:2"`
	Date        time.Time       `gorm:"not null;index:idx_movements_scope,priority:3"`
	Type        MovementType    `gorm:"type:varchar(20);not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Description string          `gorm:"not null"`
	PerformedBy ActingAs        `gorm:"embedded;embeddedPrefix:performed_by_"`
	// ReferenceID links to the originating Transaction or Expense
	ReferenceID *uuid.UUID `gorm:"type:char(36);index"`
	CreatedAt   time.Time
}

func (CashMovement) TableName() string { return "cash_movements" }
