package repository

import (
	"context"

	"cashledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionFilter narrows a transaction listing.
type TransactionFilter struct {
	TenantID     string
	SellerID     string
	Window       model.Window
	Type         model.TransactionType // empty = all
	UnlockedOnly bool
}

type TransactionRepository interface {
	CreateTx(tx *gorm.DB, t *model.Transaction) error
	FindByID(ctx context.Context, tenantID string, id uuid.UUID) (*model.Transaction, error)
	List(ctx context.Context, f TransactionFilter) ([]model.Transaction, error)
	// ApplyPaymentTx updates the payment fields only while the row is unlocked.
	// Returns ErrLocked when the transaction was locked in the meantime.
	ApplyPaymentTx(tx *gorm.DB, id uuid.UUID, prevPaid, amountPaid decimal.Decimal, status model.PaymentStatus) error
	CountUnlocked(ctx context.Context, tenantID, sellerID string, w model.Window) (int64, error)
	DB() *gorm.DB
}

type transactionRepo struct{ db *gorm.DB }

func NewTransactionRepository(db *gorm.DB) TransactionRepository { return &transactionRepo{db: db} }

func (r *transactionRepo) DB() *gorm.DB { return r.db }

func (r *transactionRepo) CreateTx(tx *gorm.DB, t *model.Transaction) error {
	return translate(tx.Create(t).Error)
}

func (r *transactionRepo) FindByID(ctx context.Context, tenantID string, id uuid.UUID) (*model.Transaction, error) {
	var t model.Transaction
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("tenant_id = ?", tenantID).
		First(&t, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *transactionRepo) List(ctx context.Context, f TransactionFilter) ([]model.Transaction, error) {
	var txs []model.Transaction
	q := r.db.WithContext(ctx).Where("tenant_id = ? AND seller_id = ?", f.TenantID, f.SellerID)
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.UnlockedOnly {
		q = q.Where("is_locked = ?", false)
	}
	err := inWindow(q, "date", f.Window).Order("date ASC").Find(&txs).Error
	return txs, translate(err)
}

func (r *transactionRepo) ApplyPaymentTx(tx *gorm.DB, id uuid.UUID, prevPaid, amountPaid decimal.Decimal, status model.PaymentStatus) error {
	res := tx.Model(&model.Transaction{}).
		Where("id = ? AND is_locked = ? AND amount_paid = ?", id, false, prevPaid).
		Updates(map[string]interface{}{
			"amount_paid":    amountPaid,
			"payment_status": status,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var cur model.Transaction
	if err := tx.Select("is_locked").Where("id = ?", id).First(&cur).Error; err != nil {
		return translate(err)
	}
	if cur.IsLocked {
		return ErrLocked
	}
	return ErrStale
}

func (r *transactionRepo) CountUnlocked(ctx context.Context, tenantID, sellerID string, w model.Window) (int64, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("tenant_id = ? AND seller_id = ? AND is_locked = ?", tenantID, sellerID, false)
	err := inWindow(q, "date", w).Count(&n).Error
	return n, translate(err)
}
