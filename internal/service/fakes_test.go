package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"cashledger/internal/infra"
	"cashledger/internal/model"
	"cashledger/internal/repository"
	"cashledger/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── In-memory ledger store ───────────────────────────────────────────────────
// One store backs every repository interface so closings, transactions and
// movements see each other the way the database tables do.

type memStore struct {
	mu           sync.Mutex
	movements    []model.CashMovement
	transactions map[uuid.UUID]*model.Transaction
	closings     map[string]*model.CashClosing
	expenses     map[uuid.UUID]*model.Expense
	registers    map[string]*model.Register
	commitErr    error
}

func newMemStore() *memStore {
	return &memStore{
		transactions: map[uuid.UUID]*model.Transaction{},
		closings:     map[string]*model.CashClosing{},
		expenses:     map[uuid.UUID]*model.Expense{},
		registers:    map[string]*model.Register{},
	}
}

func (s *memStore) addMovement(registerID string, typ model.MovementType, amount string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movements = append(s.movements, model.CashMovement{
		ID: uuid.New(), TenantID: tenant, RegisterID: registerID, Date: at, Type: typ,
		Amount: decimal.RequireFromString(amount), Description: string(typ),
	})
}

func (s *memStore) addSale(registerID string, total, paid string, method model.PaymentMethod, at time.Time) *model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &model.Transaction{
		ID: uuid.New(), TenantID: tenant, Type: model.TransactionSale, Date: at,
		TotalAmount: decimal.RequireFromString(total), AmountPaid: decimal.RequireFromString(paid),
		PaymentMethod: method, SellerID: registerID,
	}
	t.RefreshPaymentStatus()
	s.transactions[t.ID] = t
	return t
}

// movement repo

type memMovements struct{ s *memStore }

func (r memMovements) Create(_ context.Context, m *model.CashMovement) error {
	return r.CreateTx(nil, m)
}

func (r memMovements) CreateTx(_ *gorm.DB, m *model.CashMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m.CreatedAt = time.Now()
	r.s.movements = append(r.s.movements, *m)
	return nil
}

func (r memMovements) DeleteTx(_ *gorm.DB, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, m := range r.s.movements {
		if m.ID == id {
			r.s.movements = append(r.s.movements[:i], r.s.movements[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r memMovements) List(_ context.Context, tenantID, registerID string, w model.Window) ([]model.CashMovement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.CashMovement
	for _, m := range r.s.movements {
		if m.TenantID == tenantID && m.RegisterID == registerID && w.Contains(m.Date) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r memMovements) DB() *gorm.DB { return nil }

// transaction repo

type memTransactions struct{ s *memStore }

func (r memTransactions) CreateTx(_ *gorm.DB, t *model.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *t
	r.s.transactions[t.ID] = &cp
	return nil
}

func (r memTransactions) FindByID(_ context.Context, tenantID string, id uuid.UUID) (*model.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[id]
	if !ok || t.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r memTransactions) List(_ context.Context, f repository.TransactionFilter) ([]model.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Transaction
	for _, t := range r.s.transactions {
		if t.TenantID != f.TenantID || t.SellerID != f.SellerID || !f.Window.Contains(t.Date) {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if f.UnlockedOnly && t.IsLocked {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r memTransactions) ApplyPaymentTx(_ *gorm.DB, id uuid.UUID, prev, paid decimal.Decimal, status model.PaymentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[id]
	if !ok || t.IsLocked {
		return repository.ErrLocked
	}
	if !t.AmountPaid.Equal(prev) {
		return repository.ErrStale
	}
	t.AmountPaid = paid
	t.PaymentStatus = status
	return nil
}

func (r memTransactions) CountUnlocked(_ context.Context, tenantID, sellerID string, w model.Window) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, t := range r.s.transactions {
		if t.TenantID == tenantID && t.SellerID == sellerID && !t.IsLocked && w.Contains(t.Date) {
			n++
		}
	}
	return n, nil
}

func (r memTransactions) DB() *gorm.DB { return nil }

// closing repo

type memClosings struct{ s *memStore }

func (r memClosings) FindByID(_ context.Context, tenantID, id string) (*model.CashClosing, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.closings[id]
	if !ok || c.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r memClosings) Exists(_ context.Context, tenantID, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.closings[id]
	return ok && c.TenantID == tenantID, nil
}

func (r memClosings) ListByRegister(_ context.Context, tenantID, registerID string, page, limit int) ([]model.CashClosing, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []model.CashClosing
	for _, c := range r.s.closings {
		if c.TenantID == tenantID && c.RegisterID == registerID {
			all = append(all, *c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].BusinessDay > all[j].BusinessDay })
	total := int64(len(all))
	from := (page - 1) * limit
	if from >= len(all) {
		return nil, total, nil
	}
	to := from + limit
	if to > len(all) {
		to = len(all)
	}
	return all[from:to], total, nil
}

func (r memClosings) BusinessDays(_ context.Context, tenantID, registerID string) (map[string]bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	days := map[string]bool{}
	for _, c := range r.s.closings {
		if c.TenantID == tenantID && c.RegisterID == registerID {
			days[c.BusinessDay] = true
		}
	}
	return days, nil
}

func (r memClosings) ListSince(_ context.Context, since time.Time) ([]model.CashClosing, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.CashClosing
	for _, c := range r.s.closings {
		if !c.CreatedAt.Before(since) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r memClosings) Commit(_ context.Context, c *model.CashClosing, w model.Window) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.commitErr != nil {
		return r.s.commitErr
	}
	if _, ok := r.s.closings[c.ID]; ok {
		return repository.ErrDuplicate
	}
	locked := 0
	for _, t := range r.s.transactions {
		if t.TenantID == c.TenantID && t.SellerID == c.RegisterID && !t.IsLocked && w.Contains(t.Date) {
			t.IsLocked = true
			locked++
		}
	}
	c.LockedTransactions = locked
	c.CreatedAt = time.Now()
	cp := *c
	r.s.closings[c.ID] = &cp
	return nil
}

func (r memClosings) LockWindow(_ context.Context, tenantID, registerID string, w model.Window) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, t := range r.s.transactions {
		if t.TenantID == tenantID && t.SellerID == registerID && !t.IsLocked && w.Contains(t.Date) {
			t.IsLocked = true
			n++
		}
	}
	return n, nil
}

// expense repo

type memExpenses struct{ s *memStore }

func (r memExpenses) CreateTx(_ *gorm.DB, e *model.Expense) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *e
	r.s.expenses[e.ID] = &cp
	return nil
}

func (r memExpenses) FindByID(_ context.Context, tenantID string, id uuid.UUID) (*model.Expense, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.expenses[id]
	if !ok || e.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r memExpenses) DeleteTx(_ *gorm.DB, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.expenses[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.expenses, id)
	return nil
}

// register repo

type memRegisters struct{ s *memStore }

func (r memRegisters) FindByID(_ context.Context, tenantID, id string) (*model.Register, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	reg, ok := r.s.registers[id]
	if !ok || reg.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	cp := *reg
	return &cp, nil
}

func (r memRegisters) Upsert(_ context.Context, reg *model.Register) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *reg
	r.s.registers[reg.ID] = &cp
	return nil
}

// ── Collaborator fakes ───────────────────────────────────────────────────────

type fakeGate struct {
	mu       sync.Mutex
	counting map[string]bool
	held     map[string]bool
}

func newFakeGate() *fakeGate {
	return &fakeGate{counting: map[string]bool{}, held: map[string]bool{}}
}

func (g *fakeGate) BeginCounting(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counting[key] = true
	return nil
}

func (g *fakeGate) CancelCounting(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.counting, key)
	return nil
}

func (g *fakeGate) InProgress(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counting[key] || g.held[key], nil
}

func (g *fakeGate) Acquire(_ context.Context, key string) (func(context.Context) error, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held[key] {
		return nil, infra.ErrLockNotObtained
	}
	g.held[key] = true
	return func(context.Context) error {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.held, key)
		return nil
	}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []infra.LedgerEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev infra.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type recordingEnqueuer struct {
	mu  sync.Mutex
	ids []string
}

func (e *recordingEnqueuer) EnqueueClosingReport(_ context.Context, _ string, closingID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ids = append(e.ids, closingID)
	return nil
}

// ── Harness ──────────────────────────────────────────────────────────────────

const (
	tenant   = "tenant-1"
	register = "reg-1"
)

type harness struct {
	store     *memStore
	gate      *fakeGate
	publisher *recordingPublisher
	reports   *recordingEnqueuer
	now       time.Time
	rc        service.RegisterContext

	lock     service.LockService
	agg      service.AggregatorService
	closings service.ClosingService
	sweeper  service.SweeperService
	ledger   service.LedgerService
}

// newHarness pins the clock at 2024-03-15 14:30 UTC.
func newHarness() *harness {
	h := &harness{
		store:     newMemStore(),
		gate:      newFakeGate(),
		publisher: &recordingPublisher{},
		reports:   &recordingEnqueuer{},
		now:       time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC),
	}
	h.rc = service.RegisterContext{
		TenantID:   tenant,
		RegisterID: register,
		Location:   time.UTC,
		Clock:      func() time.Time { return h.now },
	}
	movs := memMovements{h.store}
	txs := memTransactions{h.store}
	cls := memClosings{h.store}

	h.lock = service.NewLockService(cls)
	h.agg = service.NewAggregatorService(movs, txs, h.lock)
	h.closings = service.NewClosingService(cls, h.agg, h.lock, h.gate, h.publisher, h.reports,
		service.NewContextFactory(memRegisters{h.store}, time.UTC, h.rc.Clock), time.Second)
	h.sweeper = service.NewSweeperService(movs, txs, cls, h.closings, h.publisher)
	h.ledger = service.NewLedgerService(movs, txs, memExpenses{h.store}, cls, h.lock, h.publisher)
	return h
}

func (h *harness) daysAgo(n int, hour int) time.Time {
	d := h.now.AddDate(0, 0, -n)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}
