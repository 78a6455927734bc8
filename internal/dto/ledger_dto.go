package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type TransactionItemRequest struct {
	ProductID string          `json:"product_id" validate:"omitempty,max=64"`
	Name      string          `json:"name"       validate:"required,min=1,max=200"`
	Quantity  decimal.Decimal `json:"quantity"   validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"min=0"`
}

// RecordTransactionRequest is shared by sales and purchases.
type RecordTransactionRequest struct {
	Items         []TransactionItemRequest `json:"items"          validate:"required,min=1,dive"`
	AmountPaid    decimal.Decimal          `json:"amount_paid"    validate:"min=0"`
	PaymentMethod string                   `json:"payment_method" validate:"omitempty,oneof=CASH MOBILE_MONEY CARD"`
}

type ManualMovementRequest struct {
	Type        string          `json:"type"        validate:"required,oneof=DEPOSIT WITHDRAWAL BANK_DEPOSIT"`
	Amount      decimal.Decimal `json:"amount"      validate:"required,gt=0"`
	Description string          `json:"description" validate:"required,min=3,max=255"`
}

type RecordExpenseRequest struct {
	Category    string          `json:"category"    validate:"required,min=2,max=60"`
	Description string          `json:"description" validate:"required,min=3,max=255"`
	Amount      decimal.Decimal `json:"amount"      validate:"required,gt=0"`
}

type SettlementRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ActingAsResponse struct {
	OperatorID     string  `json:"operator_id"`
	OperatorName   string  `json:"operator_name"`
	OnBehalfOfID   *string `json:"on_behalf_of_id,omitempty"`
	OnBehalfOfName *string `json:"on_behalf_of_name,omitempty"`
	Display        string  `json:"display"`
}

type MovementResponse struct {
	ID          string           `json:"id"`
	Date        string           `json:"date"`
	Type        string           `json:"type"`
	Amount      decimal.Decimal  `json:"amount"`
	Description string           `json:"description"`
	PerformedBy ActingAsResponse `json:"performed_by"`
	ReferenceID *string          `json:"reference_id,omitempty"`
}

type TransactionItemResponse struct {
	ProductID string          `json:"product_id,omitempty"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type TransactionResponse struct {
	ID            string                    `json:"id"`
	Type          string                    `json:"type"`
	Date          string                    `json:"date"`
	TotalAmount   decimal.Decimal           `json:"total_amount"`
	AmountPaid    decimal.Decimal           `json:"amount_paid"`
	Outstanding   decimal.Decimal           `json:"outstanding"`
	PaymentStatus string                    `json:"payment_status"`
	PaymentMethod string                    `json:"payment_method"`
	IsLocked      bool                      `json:"is_locked"`
	Seller        ActingAsResponse          `json:"seller"`
	Items         []TransactionItemResponse `json:"items,omitempty"`
}

type ExpenseResponse struct {
	ID          string           `json:"id"`
	MovementID  string           `json:"movement_id"`
	Category    string           `json:"category"`
	Description string           `json:"description"`
	Amount      decimal.Decimal  `json:"amount"`
	Date        string           `json:"date"`
	PerformedBy ActingAsResponse `json:"performed_by"`
}
