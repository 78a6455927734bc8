package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Expense is an operating cost paid from the till. It owns exactly one
// EXPENSE movement; deleting the expense removes that movement too.
type Expense struct {
	ID          uuid.UUID       `gorm:"type:char(36);primaryKey"`
	TenantID    string          `gorm:"type:varchar(64);not null;index"`
	RegisterID  string          `gorm:"type:varchar(64);not null;index"`
	MovementID  uuid.UUID       `gorm:"type:char(36);not null"`
	Category    string          `gorm:"type:varchar(60);not null"`
	Description string          `gorm:"not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Date        time.Time       `gorm:"not null"`
	PerformedBy ActingAs        `gorm:"embedded;embeddedPrefix:performed_by_"`
	CreatedAt   time.Time
}

func (Expense) TableName() string { return "expenses" }
