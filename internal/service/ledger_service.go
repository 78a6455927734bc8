package service

import (
	"context"
	"errors"
	"time"

	"cashledger/internal/dto"
	"cashledger/internal/infra"
	"cashledger/internal/model"
	"cashledger/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerService records the cash-affecting operations of a register. Every
// operation asks the lock oracle first and is refused on a closed register.
type LedgerService interface {
	RecordSale(ctx context.Context, rc RegisterContext, actor model.ActingAs, req dto.RecordTransactionRequest) (*dto.TransactionResponse, error)
	RecordPurchase(ctx context.Context, rc RegisterContext, actor model.ActingAs, req dto.RecordTransactionRequest) (*dto.TransactionResponse, error)
	RecordMovement(ctx context.Context, rc RegisterContext, actor model.ActingAs, req dto.ManualMovementRequest) (*dto.MovementResponse, error)
	RecordExpense(ctx context.Context, rc RegisterContext, actor model.ActingAs, req dto.RecordExpenseRequest) (*dto.ExpenseResponse, error)
	DeleteExpense(ctx context.Context, rc RegisterContext, id uuid.UUID) error
	Settle(ctx context.Context, rc RegisterContext, actor model.ActingAs, txID uuid.UUID, req dto.SettlementRequest) (*dto.TransactionResponse, error)
}

type ledgerService struct {
	movements    repository.MovementRepository
	transactions repository.TransactionRepository
	expenses     repository.ExpenseRepository
	closings     repository.ClosingRepository
	lock         LockService
	publisher    EventPublisher
}

func NewLedgerService(
	movements repository.MovementRepository,
	transactions repository.TransactionRepository,
	expenses repository.ExpenseRepository,
	closings repository.ClosingRepository,
	lock LockService,
	publisher EventPublisher,
) LedgerService {
	return &ledgerService{
		movements:    movements,
		transactions: transactions,
		expenses:     expenses,
		closings:     closings,
		lock:         lock,
		publisher:    publisher,
	}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// ── RecordSale / RecordPurchase ───────────────────────────────────────────────
// One database transaction: the invoice with its items, plus the movement for
// the amount collected now (if any). Amounts paid beyond the total are change
// handed back and never enter the ledger.

func (s *ledgerService) RecordSale(ctx context.Context, rc RegisterContext, actor model.ActingAs, req dto.RecordTransactionRequest) (*dto.TransactionResponse, error) {
	return s.recordTransaction(ctx, rc, actor, model.TransactionSale, req)
}

func (s *ledgerService) RecordPurchase(ctx context.Context, rc RegisterContext, actor model.ActingAs, req dto.RecordTransactionRequest) (*dto.TransactionResponse, error) {
	return s.recordTransaction(ctx, rc, actor, model.TransactionPurchase, req)
}

func (s *ledgerService) recordTransaction(ctx context.Context, rc RegisterContext, actor model.ActingAs, typ model.TransactionType, req dto.RecordTransactionRequest) (*dto.TransactionResponse, error) {
	if err := s.lock.EnsureOpen(ctx, rc); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, &InvalidInputError{Field: "items", Reason: "at least one item is required"}
	}
	if req.AmountPaid.IsNegative() {
		return nil, &InvalidInputError{Field: "amount_paid", Reason: "cannot be negative"}
	}

	now := rc.Now()
	t := model.Transaction{
		ID:            uuid.New(),
		TenantID:      rc.TenantID,
		Type:          typ,
		Date:          now,
		PaymentMethod: model.NormalizeMethod(model.PaymentMethod(req.PaymentMethod)),
		SellerID:      rc.RegisterID,
		Seller:        actor,
	}
	total := decimal.Zero
	for i, it := range req.Items {
		if !it.Quantity.IsPositive() || it.UnitPrice.IsNegative() {
			return nil, &InvalidInputError{Field: "items", Reason: "quantity must be positive and price non-negative"}
		}
		item := model.TransactionItem{
			ID:            uuid.New(),
			TransactionID: t.ID,
			Position:      i,
			ProductID:     it.ProductID,
			Name:          it.Name,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
		}
		total = total.Add(item.Subtotal())
		t.Items = append(t.Items, item)
	}
	t.TotalAmount = total.Round(2)
	t.AmountPaid = decimal.Min(req.AmountPaid, t.TotalAmount).Round(2)
	t.RefreshPaymentStatus()

	movType := model.MovementSale
	label := "Sale "
	if typ == model.TransactionPurchase {
		movType = model.MovementPurchase
		label = "Purchase "
	}

	txErr := runTx(ctx, s.transactions.DB(), func(tx *gorm.DB) error {
		if err := s.transactions.CreateTx(tx, &t); err != nil {
			return err
		}
		if !t.AmountPaid.IsPositive() {
			return nil
		}
		ref := t.ID
		return s.movements.CreateTx(tx, &model.CashMovement{
			ID:          uuid.New(),
			TenantID:    rc.TenantID,
			RegisterID:  rc.RegisterID,
			Date:        now,
			Type:        movType,
			Amount:      t.AmountPaid,
			Description: label + shortID(t.ID),
			PerformedBy: actor,
			ReferenceID: &ref,
		})
	})
	if txErr != nil {
		return nil, &PersistenceError{Op: "record " + string(typ), Err: txErr}
	}

	log.Info().Str("register_id", rc.RegisterID).Str("transaction_id", t.ID.String()).
		Str("type", string(typ)).Str("total", t.TotalAmount.StringFixed(2)).Msg("transaction recorded")
	publish(ctx, s.publisher, infra.LedgerEvent{
		Type: infra.EventTransaction, TenantID: rc.TenantID, RegisterID: rc.RegisterID, ObjectID: t.ID.String(),
	})
	resp := transactionToResponse(&t, rc.loc())
	return &resp, nil
}

// ── Manual movements ──────────────────────────────────────────────────────────

func (s *ledgerService) RecordMovement(ctx context.Context, rc RegisterContext, actor model.ActingAs, req dto.ManualMovementRequest) (*dto.MovementResponse, error) {
	if err := s.lock.EnsureOpen(ctx, rc); err != nil {
		return nil, err
	}
	typ := model.MovementType(req.Type)
	switch typ {
	case model.MovementDeposit, model.MovementWithdrawal, model.MovementBankDeposit:
	default:
		return nil, &InvalidInputError{Field: "type", Reason: "must be DEPOSIT, WITHDRAWAL or BANK_DEPOSIT"}
	}
	if !req.Amount.IsPositive() {
		return nil, &InvalidInputError{Field: "amount", Reason: "must be positive"}
	}

	m := model.CashMovement{
		ID:          uuid.New(),
		TenantID:    rc.TenantID,
		RegisterID:  rc.RegisterID,
		Date:        rc.Now(),
		Type:        typ,
		Amount:      req.Amount.Round(2),
		Description: req.Description,
		PerformedBy: actor,
	}
	if err := s.movements.Create(ctx, &m); err != nil {
		return nil, &PersistenceError{Op: "record movement", Err: err}
	}
	publish(ctx, s.publisher, infra.LedgerEvent{
		Type: infra.EventMovementCreated, TenantID: rc.TenantID, RegisterID: rc.RegisterID, ObjectID: m.ID.String(),
	})
	resp := movementToResponse(&m, rc.loc())
	return &resp, nil
}

// ── Expenses ──────────────────────────────────────────────────────────────────

func (s *ledgerService) RecordExpense(ctx context.Context, rc RegisterContext, actor model.ActingAs, req dto.RecordExpenseRequest) (*dto.ExpenseResponse, error) {
	if err := s.lock.EnsureOpen(ctx, rc); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, &InvalidInputError{Field: "amount", Reason: "must be positive"}
	}

	now := rc.Now()
	amount := req.Amount.Round(2)
	e := model.Expense{
		ID:          uuid.New(),
		TenantID:    rc.TenantID,
		RegisterID:  rc.RegisterID,
		MovementID:  uuid.New(),
		Category:    req.Category,
		Description: req.Description,
		Amount:      amount,
		Date:        now,
		PerformedBy: actor,
	}
	err := runTx(ctx, s.movements.DB(), func(tx *gorm.DB) error {
		ref := e.ID
		if err := s.movements.CreateTx(tx, &model.CashMovement{
			ID:          e.MovementID,
			TenantID:    rc.TenantID,
			RegisterID:  rc.RegisterID,
			Date:        now,
			Type:        model.MovementExpense,
			Amount:      amount,
			Description: req.Category + ": " + req.Description,
			PerformedBy: actor,
			ReferenceID: &ref,
		}); err != nil {
			return err
		}
		return s.expenses.CreateTx(tx, &e)
	})
	if err != nil {
		return nil, &PersistenceError{Op: "record expense", Err: err}
	}
	publish(ctx, s.publisher, infra.LedgerEvent{
		Type: infra.EventMovementCreated, TenantID: rc.TenantID, RegisterID: rc.RegisterID, ObjectID: e.MovementID.String(),
	})
	return &dto.ExpenseResponse{
		ID:          e.ID.String(),
		MovementID:  e.MovementID.String(),
		Category:    e.Category,
		Description: e.Description,
		Amount:      e.Amount,
		Date:        e.Date.In(rc.loc()).Format(time.RFC3339),
		PerformedBy: actingAsToResponse(e.PerformedBy),
	}, nil
}

// DeleteExpense removes an expense and its movement. Expenses of a closed
// day are part of that closing and stay.
func (s *ledgerService) DeleteExpense(ctx context.Context, rc RegisterContext, id uuid.UUID) error {
	if err := s.lock.EnsureOpen(ctx, rc); err != nil {
		return err
	}
	e, err := s.expenses.FindByID(ctx, rc.TenantID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return &PersistenceError{Op: "load expense", Err: err}
	}
	if e.RegisterID != rc.RegisterID {
		return ErrNotFound
	}
	closed, err := s.closings.Exists(ctx, rc.TenantID, model.ClosingID(rc.StartOfDay(e.Date), rc.RegisterID))
	if err != nil {
		return &PersistenceError{Op: "check closing", Err: err}
	}
	if closed {
		return ErrDayClosed
	}

	err = runTx(ctx, s.movements.DB(), func(tx *gorm.DB) error {
		if err := s.expenses.DeleteTx(tx, e.ID); err != nil {
			return err
		}
		return s.movements.DeleteTx(tx, e.MovementID)
	})
	if err != nil {
		return &PersistenceError{Op: "delete expense", Err: err}
	}
	publish(ctx, s.publisher, infra.LedgerEvent{
		Type: infra.EventMovementCreated, TenantID: rc.TenantID, RegisterID: rc.RegisterID, ObjectID: e.MovementID.String(),
	})
	return nil
}

// ── Settle ────────────────────────────────────────────────────────────────────
// Collects (sale) or pays (purchase) part of an outstanding invoice. The
// invoice update is conditional on is_locked = false, so a closing committed
// in between wins and the settlement is refused.

func (s *ledgerService) Settle(ctx context.Context, rc RegisterContext, actor model.ActingAs, txID uuid.UUID, req dto.SettlementRequest) (*dto.TransactionResponse, error) {
	if err := s.lock.EnsureOpen(ctx, rc); err != nil {
		return nil, err
	}
	t, err := s.transactions.FindByID(ctx, rc.TenantID, txID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load transaction", Err: err}
	}
	if t.SellerID != rc.RegisterID {
		return nil, ErrNotFound
	}
	if t.IsLocked {
		return nil, ErrTransactionLocked
	}
	if !req.Amount.IsPositive() {
		return nil, &InvalidInputError{Field: "amount", Reason: "must be positive"}
	}
	outstanding := t.Outstanding()
	if !outstanding.IsPositive() || t.PaymentStatus == model.PaymentPaid {
		return nil, ErrAlreadySettled
	}
	amount := decimal.Min(req.Amount, outstanding).Round(2)

	prevPaid := t.AmountPaid
	t.AmountPaid = t.AmountPaid.Add(amount)
	t.RefreshPaymentStatus()

	movType := model.MovementSale
	if t.Type == model.TransactionPurchase {
		movType = model.MovementPurchase
	}
	now := rc.Now()
	err = runTx(ctx, s.transactions.DB(), func(tx *gorm.DB) error {
		if err := s.transactions.ApplyPaymentTx(tx, t.ID, prevPaid, t.AmountPaid, t.PaymentStatus); err != nil {
			return err
		}
		ref := t.ID
		return s.movements.CreateTx(tx, &model.CashMovement{
			ID:          uuid.New(),
			TenantID:    rc.TenantID,
			RegisterID:  rc.RegisterID,
			Date:        now,
			Type:        movType,
			Amount:      amount,
			Description: "Settlement " + shortID(t.ID),
			PerformedBy: actor,
			ReferenceID: &ref,
		})
	})
	if errors.Is(err, repository.ErrLocked) {
		return nil, ErrTransactionLocked
	}
	if errors.Is(err, repository.ErrStale) {
		return nil, ErrSettlementConflict
	}
	if err != nil {
		return nil, &PersistenceError{Op: "settle transaction", Err: err}
	}

	publish(ctx, s.publisher, infra.LedgerEvent{
		Type: infra.EventTransaction, TenantID: rc.TenantID, RegisterID: rc.RegisterID, ObjectID: t.ID.String(),
	})
	resp := transactionToResponse(t, rc.loc())
	return &resp, nil
}

func shortID(id uuid.UUID) string { return id.String()[:8] }
