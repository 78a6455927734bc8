package service

import (
	"context"
	"time"

	"cashledger/internal/model"
	"cashledger/internal/repository"
)

// LockStatus answers "is this register closed for the day, and until when".
type LockStatus struct {
	Locked    bool
	ClosingID string
	ReopenAt  *time.Time
	Remaining time.Duration
}

// LockService is the register lock oracle. Pure read against persisted closings;
// cash-affecting operations call EnsureOpen before doing anything.
type LockService interface {
	Status(ctx context.Context, rc RegisterContext) (*LockStatus, error)
	EnsureOpen(ctx context.Context, rc RegisterContext) error
}

type lockService struct {
	closings repository.ClosingRepository
}

func NewLockService(closings repository.ClosingRepository) LockService {
	return &lockService{closings: closings}
}

func (s *lockService) Status(ctx context.Context, rc RegisterContext) (*LockStatus, error) {
	now := rc.Now()
	id := model.ClosingID(now, rc.RegisterID)
	exists, err := s.closings.Exists(ctx, rc.TenantID, id)
	if err != nil {
		return nil, &PersistenceError{Op: "check register lock", Err: err}
	}
	if !exists {
		return &LockStatus{}, nil
	}
	// closings are daily: the register always reopens at the next local midnight
	reopen := rc.DayWindow(now).To
	return &LockStatus{
		Locked:    true,
		ClosingID: id,
		ReopenAt:  &reopen,
		Remaining: reopen.Sub(now),
	}, nil
}

func (s *lockService) EnsureOpen(ctx context.Context, rc RegisterContext) error {
	st, err := s.Status(ctx, rc)
	if err != nil {
		return err
	}
	if st.Locked {
		return &RegisterLockedError{ClosingID: st.ClosingID, ReopenAt: *st.ReopenAt, Remaining: st.Remaining}
	}
	return nil
}
