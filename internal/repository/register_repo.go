package repository

import (
	"context"

	"cashledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RegisterRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*model.Register, error)
	Upsert(ctx context.Context, reg *model.Register) error
}

type registerRepo struct{ db *gorm.DB }

func NewRegisterRepository(db *gorm.DB) RegisterRepository { return &registerRepo{db: db} }

func (r *registerRepo) FindByID(ctx context.Context, tenantID, id string) (*model.Register, error) {
	var reg model.Register
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&reg, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &reg, nil
}

func (r *registerRepo) Upsert(ctx context.Context, reg *model.Register) error {
	return translate(r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "time_zone", "active", "updated_at"}),
	}).Create(reg).Error)
}
