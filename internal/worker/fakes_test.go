package worker

import (
	"context"
	"sync"
	"time"

	"cashledger/internal/infra"
	"cashledger/internal/model"
	"cashledger/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type stubClosings struct {
	closings []model.CashClosing
	locked   []model.Window
}

func (r *stubClosings) FindByID(_ context.Context, tenantID, id string) (*model.CashClosing, error) {
	for i := range r.closings {
		if r.closings[i].ID == id && r.closings[i].TenantID == tenantID {
			return &r.closings[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubClosings) Exists(ctx context.Context, tenantID, id string) (bool, error) {
	_, err := r.FindByID(ctx, tenantID, id)
	return err == nil, nil
}

func (r *stubClosings) ListByRegister(context.Context, string, string, int, int) ([]model.CashClosing, int64, error) {
	return r.closings, int64(len(r.closings)), nil
}

func (r *stubClosings) BusinessDays(context.Context, string, string) (map[string]bool, error) {
	return map[string]bool{}, nil
}

func (r *stubClosings) ListSince(context.Context, time.Time) ([]model.CashClosing, error) {
	return r.closings, nil
}

func (r *stubClosings) Commit(context.Context, *model.CashClosing, model.Window) error { return nil }

func (r *stubClosings) LockWindow(_ context.Context, _, _ string, w model.Window) (int64, error) {
	r.locked = append(r.locked, w)
	return 2, nil
}

type stubRegisters struct{ reg *model.Register }

func (r stubRegisters) FindByID(context.Context, string, string) (*model.Register, error) {
	if r.reg == nil {
		return nil, repository.ErrNotFound
	}
	return r.reg, nil
}

func (r stubRegisters) Upsert(context.Context, *model.Register) error { return nil }

type stubMovements struct{ movs []model.CashMovement }

func (r stubMovements) Create(context.Context, *model.CashMovement) error { return nil }
func (r stubMovements) CreateTx(*gorm.DB, *model.CashMovement) error      { return nil }
func (r stubMovements) DeleteTx(*gorm.DB, uuid.UUID) error                { return nil }
func (r stubMovements) DB() *gorm.DB                                      { return nil }

func (r stubMovements) List(_ context.Context, _, _ string, w model.Window) ([]model.CashMovement, error) {
	var out []model.CashMovement
	for _, m := range r.movs {
		if w.Contains(m.Date) {
			out = append(out, m)
		}
	}
	return out, nil
}

type recordingMail struct {
	mu   sync.Mutex
	jobs []EmailJobPayload
}

func (m *recordingMail) EnqueueEmail(_ context.Context, p EmailJobPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, p)
	return nil
}

type fakeMailer struct {
	configured bool
	err        error
	sent       []infra.Attachment
	to         []string
}

func (m *fakeMailer) Configured() bool { return m.configured }

func (m *fakeMailer) Send(_ context.Context, to []string, _, _ string, attachments ...infra.Attachment) error {
	if m.err != nil {
		return m.err
	}
	m.to = to
	m.sent = append(m.sent, attachments...)
	return nil
}
