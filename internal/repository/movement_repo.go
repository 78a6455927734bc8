package repository

import (
	"context"

	"cashledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MovementRepository persists CashMovements. There is deliberately no Update:
// movements are immutable.
type MovementRepository interface {
	Create(ctx context.Context, m *model.CashMovement) error
	CreateTx(tx *gorm.DB, m *model.CashMovement) error
	DeleteTx(tx *gorm.DB, id uuid.UUID) error
	List(ctx context.Context, tenantID, registerID string, w model.Window) ([]model.CashMovement, error)
	DB() *gorm.DB
}

type movementRepo struct{ db *gorm.DB }

func NewMovementRepository(db *gorm.DB) MovementRepository { return &movementRepo{db: db} }

func (r *movementRepo) DB() *gorm.DB { return r.db }

func (r *movementRepo) Create(ctx context.Context, m *model.CashMovement) error {
	return translate(r.db.WithContext(ctx).Create(m).Error)
}

func (r *movementRepo) CreateTx(tx *gorm.DB, m *model.CashMovement) error {
	return translate(tx.Create(m).Error)
}

func (r *movementRepo) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	res := tx.Delete(&model.CashMovement{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *movementRepo) List(ctx context.Context, tenantID, registerID string, w model.Window) ([]model.CashMovement, error) {
	var movs []model.CashMovement
	q := r.db.WithContext(ctx).Where("tenant_id = ? AND register_id = ?", tenantID, registerID)
	err := inWindow(q, "date", w).Order("date ASC").Find(&movs).Error
	return movs, translate(err)
}
