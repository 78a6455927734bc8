package model

import "time"

// Operator is a login account.
// Role: "cashier" | "supervisor" | "admin"
type Operator struct {
	ID           string `gorm:"type:varchar(64);primaryKey"`
	TenantID     string `gorm:"type:varchar(64);not null;index"`
	Username     string `gorm:"uniqueIndex;not null"`
	Name         string `gorm:"not null"`
	Email        *string
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"type:varchar(20);not null"`
	// RegisterID is the operator's home register
	RegisterID string `gorm:"type:varchar(64);not null"`
	Active     bool   `gorm:"not null;default:true"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Operator) TableName() string { return "operators" }
