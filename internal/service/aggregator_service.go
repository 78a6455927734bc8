package service

import (
	"context"
	"time"

	"cashledger/internal/dto"
	"cashledger/internal/model"
	"cashledger/internal/repository"

	"github.com/shopspring/decimal"
)

// Snapshot is everything a closing needs for one business day.
type Snapshot struct {
	Day      model.Window
	Balance  Balance // all-time, as of the end of Day
	Today    Balance // movements inside Day only
	Sales    SalesBreakdown
	Outflows Outflows
	Activity int
}

// CashExpected is the physical cash the drawer should hold.
func (s Snapshot) CashExpected() decimal.Decimal { return s.Balance.NetPhysical }

type AggregatorService interface {
	Movements(ctx context.Context, rc RegisterContext, scope Scope) ([]dto.MovementResponse, error)
	Transactions(ctx context.Context, rc RegisterContext, scope Scope) ([]dto.TransactionResponse, error)
	Summary(ctx context.Context, rc RegisterContext) (*dto.SessionSummaryResponse, error)
	Snapshot(ctx context.Context, rc RegisterContext, day model.Window) (*Snapshot, error)
}

type aggregatorService struct {
	movements    repository.MovementRepository
	transactions repository.TransactionRepository
	lock         LockService
}

func NewAggregatorService(movements repository.MovementRepository, transactions repository.TransactionRepository, lock LockService) AggregatorService {
	return &aggregatorService{movements: movements, transactions: transactions, lock: lock}
}

func (s *aggregatorService) window(rc RegisterContext, scope Scope) model.Window {
	if scope == ScopeToday {
		return rc.Today()
	}
	return model.Window{}
}

func (s *aggregatorService) Movements(ctx context.Context, rc RegisterContext, scope Scope) ([]dto.MovementResponse, error) {
	movs, err := s.movements.List(ctx, rc.TenantID, rc.RegisterID, s.window(rc, scope))
	if err != nil {
		return nil, &PersistenceError{Op: "list movements", Err: err}
	}
	out := make([]dto.MovementResponse, len(movs))
	for i := range movs {
		out[i] = movementToResponse(&movs[i], rc.loc())
	}
	return out, nil
}

func (s *aggregatorService) Transactions(ctx context.Context, rc RegisterContext, scope Scope) ([]dto.TransactionResponse, error) {
	txs, err := s.transactions.List(ctx, repository.TransactionFilter{
		TenantID: rc.TenantID,
		SellerID: rc.RegisterID,
		Window:   s.window(rc, scope),
	})
	if err != nil {
		return nil, &PersistenceError{Op: "list transactions", Err: err}
	}
	out := make([]dto.TransactionResponse, len(txs))
	for i := range txs {
		out[i] = transactionToResponse(&txs[i], rc.loc())
	}
	return out, nil
}

// Snapshot reads the ledger for day. The balance is taken as of the end of
// day so closing a past day never picks up later movements.
func (s *aggregatorService) Snapshot(ctx context.Context, rc RegisterContext, day model.Window) (*Snapshot, error) {
	movs, err := s.movements.List(ctx, rc.TenantID, rc.RegisterID, model.Window{To: day.To})
	if err != nil {
		return nil, err
	}
	txs, err := s.transactions.List(ctx, repository.TransactionFilter{
		TenantID:     rc.TenantID,
		SellerID:     rc.RegisterID,
		Window:       day,
		Type:         model.TransactionSale,
		UnlockedOnly: true,
	})
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Day:      day,
		Balance:  BalanceIn(movs, model.Window{To: day.To}),
		Today:    BalanceIn(movs, day),
		Sales:    ComputeSales(txs, rc.RegisterID, day),
		Outflows: ComputeOutflows(movs, day),
	}
	for _, m := range movs {
		if day.Contains(m.Date) {
			snap.Activity++
		}
	}
	snap.Activity += snap.Sales.Count
	return snap, nil
}

func (s *aggregatorService) Summary(ctx context.Context, rc RegisterContext) (*dto.SessionSummaryResponse, error) {
	now := rc.Now()
	status, err := s.lock.Status(ctx, rc)
	if err != nil {
		return nil, err
	}
	movs, err := s.movements.List(ctx, rc.TenantID, rc.RegisterID, model.Window{})
	if err != nil {
		return nil, &PersistenceError{Op: "list movements", Err: err}
	}
	today := rc.DayWindow(now)
	txs, err := s.transactions.List(ctx, repository.TransactionFilter{
		TenantID:     rc.TenantID,
		SellerID:     rc.RegisterID,
		Window:       today,
		Type:         model.TransactionSale,
		UnlockedOnly: true,
	})
	if err != nil {
		return nil, &PersistenceError{Op: "list transactions", Err: err}
	}

	return &dto.SessionSummaryResponse{
		RegisterID:  rc.RegisterID,
		BusinessDay: today.From.Format(model.BusinessDayLayout),
		Lock:        lockToResponse(status, rc.loc()),
		AllTime:     balanceToResponse(ComputeBalance(movs, ScopeAllTime, today.From)),
		Today:       balanceToResponse(ComputeBalance(movs, ScopeToday, today.From)),
		Sales:       salesToResponse(ComputeSales(txs, rc.RegisterID, today)),
		Outflows:    outflowsToResponse(ComputeOutflows(movs, today)),
	}, nil
}

// ─── Mappers ─────────────────────────────────────────────────────────────────

func actingAsToResponse(a model.ActingAs) dto.ActingAsResponse {
	return dto.ActingAsResponse{
		OperatorID:     a.OperatorID,
		OperatorName:   a.OperatorName,
		OnBehalfOfID:   a.OnBehalfOfID,
		OnBehalfOfName: a.OnBehalfOfName,
		Display:        a.DisplayName(),
	}
}

func movementToResponse(m *model.CashMovement, loc *time.Location) dto.MovementResponse {
	resp := dto.MovementResponse{
		ID:          m.ID.String(),
		Date:        m.Date.In(loc).Format(time.RFC3339),
		Type:        string(m.Type),
		Amount:      m.Amount,
		Description: m.Description,
		PerformedBy: actingAsToResponse(m.PerformedBy),
	}
	if m.ReferenceID != nil {
		ref := m.ReferenceID.String()
		resp.ReferenceID = &ref
	}
	return resp
}

func transactionToResponse(t *model.Transaction, loc *time.Location) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		ID:            t.ID.String(),
		Type:          string(t.Type),
		Date:          t.Date.In(loc).Format(time.RFC3339),
		TotalAmount:   t.TotalAmount,
		AmountPaid:    t.AmountPaid,
		Outstanding:   t.Outstanding(),
		PaymentStatus: string(t.PaymentStatus),
		PaymentMethod: string(model.NormalizeMethod(t.PaymentMethod)),
		IsLocked:      t.IsLocked,
		Seller:        actingAsToResponse(t.Seller),
	}
	for _, it := range t.Items {
		resp.Items = append(resp.Items, dto.TransactionItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal(),
		})
	}
	return resp
}

func balanceToResponse(b Balance) dto.BalanceResponse {
	return dto.BalanceResponse{CashIn: b.CashIn, CashOut: b.CashOut, BankOut: b.BankOut, NetPhysical: b.NetPhysical}
}

func salesToResponse(s SalesBreakdown) dto.SalesBreakdownResponse {
	byMethod := make(map[string]decimal.Decimal, len(s.ByMethod))
	for k, v := range s.ByMethod {
		byMethod[string(k)] = v
	}
	return dto.SalesBreakdownResponse{
		TotalSales:  s.TotalSales,
		Cash:        s.Cash,
		MobileMoney: s.MobileMoney,
		Card:        s.Card,
		ByMethod:    byMethod,
		Count:       s.Count,
	}
}

func outflowsToResponse(o Outflows) dto.OutflowsResponse {
	return dto.OutflowsResponse{
		Purchases:    o.Purchases,
		Withdrawals:  o.Withdrawals,
		Expenses:     o.Expenses,
		BankDeposits: o.BankDeposits,
		Deposits:     o.Deposits,
	}
}

func lockToResponse(st *LockStatus, loc *time.Location) dto.LockStatusResponse {
	resp := dto.LockStatusResponse{Locked: st.Locked}
	if !st.Locked {
		return resp
	}
	id := st.ClosingID
	resp.ClosingID = &id
	if st.ReopenAt != nil {
		at := st.ReopenAt.In(loc).Format(time.RFC3339)
		resp.ReopenAt = &at
	}
	resp.RemainingSeconds = int64(st.Remaining / time.Second)
	resp.Remaining = FormatRemaining(st.Remaining)
	return resp
}

// LockStatusResponse exposes the lock mapper to handlers.
func LockStatusResponse(st *LockStatus, rc RegisterContext) dto.LockStatusResponse {
	return lockToResponse(st, rc.loc())
}
