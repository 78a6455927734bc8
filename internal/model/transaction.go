package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType is the invoice kind.
type TransactionType string

const (
	TransactionSale     TransactionType = "SALE"
	TransactionPurchase TransactionType = "PURCHASE"
)

// PaymentStatus is derived from AmountPaid vs TotalAmount; never set directly.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "UNPAID"
	PaymentPartial PaymentStatus = "PARTIAL"
	PaymentPaid    PaymentStatus = "PAID"
)

// PaymentMethod buckets collected amounts on a closing.
type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "CASH"
	PaymentMobileMoney PaymentMethod = "MOBILE_MONEY"
	PaymentCard        PaymentMethod = "CARD"
)

// PaymentEpsilon is the tolerance under which an invoice counts as fully paid.
var PaymentEpsilon = decimal.NewFromFloat(0.01)

// DerivePaymentStatus: PAID iff paid >= total - ε, PARTIAL iff 0 < paid < total - ε.
func DerivePaymentStatus(amountPaid, totalAmount decimal.Decimal) PaymentStatus {
	threshold := totalAmount.Sub(PaymentEpsilon)
	switch {
	case amountPaid.GreaterThanOrEqual(threshold):
		return PaymentPaid
	case amountPaid.IsPositive():
		return PaymentPartial
	default:
		return PaymentUnpaid
	}
}

// NormalizeMethod maps an unset method to the CASH bucket.
func NormalizeMethod(m PaymentMethod) PaymentMethod {
	if m == "" {
		return PaymentCash
	}
	return m
}

// Transaction is a sale or purchase invoice. AmountPaid is the cash actually
// collected so far and is independent of TotalAmount.
// Once IsLocked is true the payment fields are frozen; nothing unlocks it.
type Transaction struct {
	ID            uuid.UUID       `gorm:"type:char(36);primaryKey"`
	TenantID      string          `gorm:"type:varchar(64);not null;index:idx_transactions_scope,priority:1"`
	Type          TransactionType `gorm:"type:varchar(20);not null"`
	Date          time.Time       `gorm:"not null;index:idx_transactions_scope,priority:3"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	AmountPaid    decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	PaymentStatus PaymentStatus   `gorm:"type:varchar(10);not null"`
	PaymentMethod PaymentMethod   `gorm:"type:varchar(20)"`
	IsLocked      bool            `gorm:"not null;default:false"`
	// SellerID is the register identity
	SellerID  string   `gorm:"type:varchar(64);not null;index:idx_transactions_scope,priority:2"`
	Seller    ActingAs `gorm:"embedded;embeddedPrefix:seller_"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Items []TransactionItem `gorm:"foreignKey:TransactionID"`
}

func (Transaction) TableName() string { return "transactions" }

// RefreshPaymentStatus re-derives PaymentStatus from the current amounts.
func (t *Transaction) RefreshPaymentStatus() {
	t.PaymentStatus = DerivePaymentStatus(t.AmountPaid, t.TotalAmount)
}

// Outstanding is what is still owed on the invoice (never negative).
func (t Transaction) Outstanding() decimal.Decimal {
	rest := t.TotalAmount.Sub(t.AmountPaid)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// TransactionItem is one ordered invoice line.
type TransactionItem struct {
	ID            uuid.UUID       `gorm:"type:char(36);primaryKey"`
	TransactionID uuid.UUID       `gorm:"type:char(36);index;not null"`
	Position      int             `gorm:"not null"`
	ProductID     string          `gorm:"type:varchar(64);not null"`
	Name          string          `gorm:"not null"`
	Quantity      decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(14,2);not null"`
}

func (TransactionItem) TableName() string { return "transaction_items" }

// Subtotal is quantity × unit price.
func (i TransactionItem) Subtotal() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice)
}
