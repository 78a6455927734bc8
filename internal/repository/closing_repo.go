package repository

import (
	"context"
	"time"

	"cashledger/internal/model"

	"gorm.io/gorm"
)

// ClosingRepository persists CashClosings. Closings are written once by Commit
// and never updated or deleted.
type ClosingRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*model.CashClosing, error)
	Exists(ctx context.Context, tenantID, id string) (bool, error)
	ListByRegister(ctx context.Context, tenantID, registerID string, page, limit int) ([]model.CashClosing, int64, error)
	// BusinessDays returns the set of YYYY-MM-DD days already closed for a register.
	BusinessDays(ctx context.Context, tenantID, registerID string) (map[string]bool, error)
	ListSince(ctx context.Context, since time.Time) ([]model.CashClosing, error)
	// Commit inserts the closing and flags every unlocked transaction of the
	// register inside w as locked, in one database transaction. A closing that
	// already exists under the same id yields ErrDuplicate and nothing is written.
	Commit(ctx context.Context, c *model.CashClosing, w model.Window) error
	// LockWindow flags stragglers for an existing closing (repair path).
	LockWindow(ctx context.Context, tenantID, registerID string, w model.Window) (int64, error)
}

type closingRepo struct{ db *gorm.DB }

func NewClosingRepository(db *gorm.DB) ClosingRepository { return &closingRepo{db: db} }

func (r *closingRepo) FindByID(ctx context.Context, tenantID, id string) (*model.CashClosing, error) {
	var c model.CashClosing
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&c, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *closingRepo) Exists(ctx context.Context, tenantID, id string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.CashClosing{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Count(&n).Error
	return n > 0, translate(err)
}

func (r *closingRepo) ListByRegister(ctx context.Context, tenantID, registerID string, page, limit int) ([]model.CashClosing, int64, error) {
	var closings []model.CashClosing
	var total int64
	q := r.db.WithContext(ctx).Model(&model.CashClosing{}).
		Where("tenant_id = ? AND register_id = ?", tenantID, registerID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}
	err := q.Order("business_day DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&closings).Error
	return closings, total, translate(err)
}

func (r *closingRepo) BusinessDays(ctx context.Context, tenantID, registerID string) (map[string]bool, error) {
	var days []string
	err := r.db.WithContext(ctx).Model(&model.CashClosing{}).
		Where("tenant_id = ? AND register_id = ?", tenantID, registerID).
		Pluck("business_day", &days).Error
	if err != nil {
		return nil, translate(err)
	}
	set := make(map[string]bool, len(days))
	for _, d := range days {
		set[d] = true
	}
	return set, nil
}

func (r *closingRepo) ListSince(ctx context.Context, since time.Time) ([]model.CashClosing, error) {
	var closings []model.CashClosing
	err := r.db.WithContext(ctx).Where("created_at >= ?", since).Order("created_at ASC").Find(&closings).Error
	return closings, translate(err)
}

func (r *closingRepo) Commit(ctx context.Context, c *model.CashClosing, w model.Window) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockWindowTx(tx, c.TenantID, c.RegisterID, w)
		if err != nil {
			return err
		}
		c.LockedTransactions = int(locked)
		return translate(tx.Create(c).Error)
	})
}

func (r *closingRepo) LockWindow(ctx context.Context, tenantID, registerID string, w model.Window) (int64, error) {
	return lockWindowTx(r.db.WithContext(ctx), tenantID, registerID, w)
}

// lockWindowTx only ever sets is_locked to true.
func lockWindowTx(tx *gorm.DB, tenantID, registerID string, w model.Window) (int64, error) {
	q := tx.Model(&model.Transaction{}).
		Where("tenant_id = ? AND seller_id = ? AND is_locked = ?", tenantID, registerID, false)
	res := inWindow(q, "date", w).Update("is_locked", true)
	return res.RowsAffected, translate(res.Error)
}
