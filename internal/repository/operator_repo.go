package repository

import (
	"context"

	"cashledger/internal/model"

	"gorm.io/gorm"
)

type OperatorRepository interface {
	Create(ctx context.Context, o *model.Operator) error
	FindByUsername(ctx context.Context, username string) (*model.Operator, error)
	FindByID(ctx context.Context, id string) (*model.Operator, error)
}

type operatorRepo struct{ db *gorm.DB }

func NewOperatorRepository(db *gorm.DB) OperatorRepository { return &operatorRepo{db: db} }

func (r *operatorRepo) Create(ctx context.Context, o *model.Operator) error {
	return translate(r.db.WithContext(ctx).Create(o).Error)
}

func (r *operatorRepo) FindByUsername(ctx context.Context, username string) (*model.Operator, error) {
	var o model.Operator
	err := r.db.WithContext(ctx).Where("username = ? AND active = ?", username, true).First(&o).Error
	if err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *operatorRepo) FindByID(ctx context.Context, id string) (*model.Operator, error) {
	var o model.Operator
	err := r.db.WithContext(ctx).First(&o, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &o, nil
}
