package repository

import (
	"context"

	"cashledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ExpenseRepository interface {
	CreateTx(tx *gorm.DB, e *model.Expense) error
	FindByID(ctx context.Context, tenantID string, id uuid.UUID) (*model.Expense, error)
	DeleteTx(tx *gorm.DB, id uuid.UUID) error
}

type expenseRepo struct{ db *gorm.DB }

func NewExpenseRepository(db *gorm.DB) ExpenseRepository { return &expenseRepo{db: db} }

func (r *expenseRepo) CreateTx(tx *gorm.DB, e *model.Expense) error {
	return translate(tx.Create(e).Error)
}

func (r *expenseRepo) FindByID(ctx context.Context, tenantID string, id uuid.UUID) (*model.Expense, error) {
	var e model.Expense
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&e, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (r *expenseRepo) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	res := tx.Delete(&model.Expense{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
