package repository

import (
	"errors"

	"cashledger/internal/model"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a lookup by id matches nothing.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert hits an existing primary/unique key.
	ErrDuplicate = errors.New("duplicate key")
	// ErrLocked is returned when a conditional write targets a locked transaction.
	ErrLocked = errors.New("transaction is locked")
	// ErrStale is returned when a conditional write finds the row changed
	// since it was read.
	ErrStale = errors.New("row changed since it was read")
)

// translate maps gorm errors onto the repository sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

// inWindow restricts column to the half-open window w.
func inWindow(q *gorm.DB, column string, w model.Window) *gorm.DB {
	if !w.From.IsZero() {
		q = q.Where(column+" >= ?", w.From)
	}
	if !w.To.IsZero() {
		q = q.Where(column+" < ?", w.To)
	}
	return q
}
