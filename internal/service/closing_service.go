package service

import (
	"context"
	"errors"
	"time"

	"cashledger/internal/dto"
	"cashledger/internal/infra"
	"cashledger/internal/model"
	"cashledger/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// RegisterState is the closing state machine as seen by a caller:
// OPEN -> CLOSING_IN_PROGRESS -> CLOSED, then OPEN again at the next midnight.
type RegisterState string

const (
	StateOpen              RegisterState = "OPEN"
	StateClosingInProgress RegisterState = "CLOSING_IN_PROGRESS"
	StateClosed            RegisterState = "CLOSED"
)

// Variance classification of a counted closing.
const (
	VarianceBalanced = "balanced"
	VarianceShort    = "short"
	VarianceOver     = "over"
)

type ClosingService interface {
	State(ctx context.Context, rc RegisterContext) (RegisterState, *LockStatus, error)
	Prepare(ctx context.Context, rc RegisterContext) (*dto.ClosingPreviewResponse, error)
	Review(ctx context.Context, rc RegisterContext, req dto.CashCountRequest) (*dto.ClosingReviewResponse, error)
	Cancel(ctx context.Context, rc RegisterContext) error
	Execute(ctx context.Context, rc RegisterContext, actor model.ActingAs, req dto.ExecuteClosingRequest) (*dto.ClosingResponse, error)
	AutoClose(ctx context.Context, rc RegisterContext, day time.Time) (*model.CashClosing, error)
	List(ctx context.Context, rc RegisterContext, page, limit int) (*dto.ClosingListResponse, error)
	Get(ctx context.Context, tenantID, id string) (*dto.ClosingResponse, error)
}

type closingService struct {
	closings   repository.ClosingRepository
	aggregator AggregatorService
	lock       LockService
	gate       ClosingGate
	publisher  EventPublisher
	reports    ReportEnqueuer
	registers  RegisterResolver
	timeout    time.Duration
}

// NewClosingService wires the closing engine. publisher and reports may be
// nil; registers renders closings looked up by id in their register's zone;
// timeout bounds Execute and AutoClose (0 = no bound).
func NewClosingService(
	closings repository.ClosingRepository,
	aggregator AggregatorService,
	lock LockService,
	gate ClosingGate,
	publisher EventPublisher,
	reports ReportEnqueuer,
	registers RegisterResolver,
	timeout time.Duration,
) ClosingService {
	return &closingService{
		closings:   closings,
		aggregator: aggregator,
		lock:       lock,
		gate:       gate,
		publisher:  publisher,
		reports:    reports,
		registers:  registers,
		timeout:    timeout,
	}
}

// ── State ────────────────────────────────────────────────────────────────────

func (s *closingService) State(ctx context.Context, rc RegisterContext) (RegisterState, *LockStatus, error) {
	st, err := s.lock.Status(ctx, rc)
	if err != nil {
		return "", nil, err
	}
	if st.Locked {
		return StateClosed, st, nil
	}
	busy, err := s.gate.InProgress(ctx, rc.Key())
	if err != nil {
		// the marker is advisory; an unreachable gate reads as open
		log.Warn().Err(err).Str("register_id", rc.RegisterID).Msg("closing gate unavailable")
		return StateOpen, st, nil
	}
	if busy {
		return StateClosingInProgress, st, nil
	}
	return StateOpen, st, nil
}

// ── Prepare / Review / Cancel ────────────────────────────────────────────────

func (s *closingService) Prepare(ctx context.Context, rc RegisterContext) (*dto.ClosingPreviewResponse, error) {
	now := rc.Now()
	day := rc.DayWindow(now)
	if err := s.ensureNotClosed(ctx, rc, now, day); err != nil {
		return nil, err
	}
	snap, err := s.aggregator.Snapshot(ctx, rc, day)
	if err != nil {
		return nil, &PersistenceError{Op: "read ledger", Err: err}
	}
	if err := s.gate.BeginCounting(ctx, rc.Key()); err != nil {
		log.Warn().Err(err).Str("register_id", rc.RegisterID).Msg("counting marker not set")
	}
	preview := previewFromSnapshot(snap, rc.RegisterID)
	return &preview, nil
}

func (s *closingService) Review(ctx context.Context, rc RegisterContext, req dto.CashCountRequest) (*dto.ClosingReviewResponse, error) {
	cashReal, err := ValidateCount(req.CashReal)
	if err != nil {
		return nil, err
	}
	now := rc.Now()
	day := rc.DayWindow(now)
	if err := s.ensureNotClosed(ctx, rc, now, day); err != nil {
		return nil, err
	}
	snap, err := s.aggregator.Snapshot(ctx, rc, day)
	if err != nil {
		return nil, &PersistenceError{Op: "read ledger", Err: err}
	}
	expected := snap.CashExpected()
	diff := cashReal.Sub(expected)
	return &dto.ClosingReviewResponse{
		ClosingPreviewResponse: previewFromSnapshot(snap, rc.RegisterID),
		CashReal:               cashReal,
		Difference:             diff,
		Classification:         ClassifyVariance(diff),
		Severity:               VarianceSeverity(diff, expected),
		Comment:                req.Comment,
	}, nil
}

func (s *closingService) Cancel(ctx context.Context, rc RegisterContext) error {
	return s.gate.CancelCounting(ctx, rc.Key())
}

// ── Execute ──────────────────────────────────────────────────────────────────
// Manual closing of the current business day:
//   1. validate the count and the explicit confirmation (nothing written yet)
//   2. take the per-register execution lock
//   3. re-check the closing id under the lock
//   4. commit closing + transaction locks in one database transaction
//   5. notify and schedule the report, best effort

type closingDraft struct {
	cashReal *decimal.Decimal
	comment  *string
	closedBy string
	auto     bool
}

func (s *closingService) Execute(ctx context.Context, rc RegisterContext, actor model.ActingAs, req dto.ExecuteClosingRequest) (*dto.ClosingResponse, error) {
	cashReal, err := ValidateCount(req.CashReal)
	if err != nil {
		return nil, err
	}
	if !req.Confirmed {
		return nil, ErrConfirmationRequired
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	release, err := s.acquire(ctx, rc)
	if err != nil {
		return nil, err
	}
	defer release()

	now := rc.Now()
	closing, err := s.commit(ctx, rc, now, rc.DayWindow(now), closingDraft{
		cashReal: &cashReal,
		comment:  req.Comment,
		closedBy: actor.DisplayName(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.gate.CancelCounting(ctx, rc.Key()); err != nil {
		log.Warn().Err(err).Str("register_id", rc.RegisterID).Msg("counting marker not cleared")
	}
	resp := ClosingToResponse(closing, rc.loc())
	return &resp, nil
}

// AutoClose closes a past business day without a human count:
// cashReal = cashExpected, closedBy = system.
func (s *closingService) AutoClose(ctx context.Context, rc RegisterContext, day time.Time) (*model.CashClosing, error) {
	now := rc.Now()
	w := rc.DayWindow(day)
	if w.To.After(now) {
		return nil, ErrOpenDay
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	release, err := s.acquire(ctx, rc)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.commit(ctx, rc, now, w, closingDraft{closedBy: model.SystemActor, auto: true})
}

func (s *closingService) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *closingService) acquire(ctx context.Context, rc RegisterContext) (func(), error) {
	unlock, err := s.gate.Acquire(ctx, rc.Key())
	if errors.Is(err, infra.ErrLockNotObtained) {
		return nil, ErrClosingInProgress
	}
	if err != nil {
		return nil, &PersistenceError{Op: "acquire closing lock", Err: err}
	}
	return func() {
		// released on a fresh context: the request one may already be done
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Str("register_id", rc.RegisterID).Msg("closing lock release failed")
		}
	}, nil
}

func (s *closingService) commit(ctx context.Context, rc RegisterContext, now time.Time, day model.Window, d closingDraft) (*model.CashClosing, error) {
	id := model.ClosingID(day.From, rc.RegisterID)
	exists, err := s.closings.Exists(ctx, rc.TenantID, id)
	if err != nil {
		return nil, &PersistenceError{Op: "check closing", Err: err}
	}
	if exists {
		return nil, alreadyClosed(id, now, day)
	}

	snap, err := s.aggregator.Snapshot(ctx, rc, day)
	if err != nil {
		return nil, &PersistenceError{Op: "read ledger", Err: err}
	}
	expected := snap.CashExpected()
	cashReal := expected
	if d.cashReal != nil {
		cashReal = *d.cashReal
	}

	closedAt := now
	if d.auto {
		// a past day is stamped with its last instant, not with the sweep time
		closedAt = day.To.Add(-time.Second)
	}
	closing := &model.CashClosing{
		ID:                id,
		TenantID:          rc.TenantID,
		RegisterID:        rc.RegisterID,
		BusinessDay:       day.From.Format(model.BusinessDayLayout),
		Date:              closedAt,
		ClosedBy:          d.closedBy,
		TotalSales:        snap.Sales.TotalSales,
		AmountCash:        snap.Sales.Cash,
		AmountMobileMoney: snap.Sales.MobileMoney,
		AmountCard:        snap.Sales.Card,
		CashExpected:      expected,
		CashReal:          cashReal,
		Difference:        cashReal.Sub(expected),
		Status:            model.ClosingStatusClosed,
		AutoClosed:        d.auto,
		Comment:           d.comment,
	}

	if err := s.closings.Commit(ctx, closing, day); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, alreadyClosed(id, now, day)
		}
		return nil, &PersistenceError{Op: "commit closing", Err: err}
	}

	log.Info().
		Str("tenant_id", rc.TenantID).
		Str("register_id", rc.RegisterID).
		Str("closing_id", id).
		Bool("auto", d.auto).
		Str("difference", closing.Difference.StringFixed(2)).
		Int("locked_transactions", closing.LockedTransactions).
		Msg("register closed")

	publish(ctx, s.publisher, infra.LedgerEvent{
		Type:       infra.EventClosingCreated,
		TenantID:   rc.TenantID,
		RegisterID: rc.RegisterID,
		ClosingID:  id,
	})
	if s.reports != nil {
		if err := s.reports.EnqueueClosingReport(ctx, rc.TenantID, id); err != nil {
			log.Warn().Err(err).Str("closing_id", id).Msg("closing report not enqueued")
		}
	}
	return closing, nil
}

func (s *closingService) ensureNotClosed(ctx context.Context, rc RegisterContext, now time.Time, day model.Window) error {
	id := model.ClosingID(day.From, rc.RegisterID)
	exists, err := s.closings.Exists(ctx, rc.TenantID, id)
	if err != nil {
		return &PersistenceError{Op: "check closing", Err: err}
	}
	if exists {
		return alreadyClosed(id, now, day)
	}
	return nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *closingService) List(ctx context.Context, rc RegisterContext, page, limit int) (*dto.ClosingListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	closings, total, err := s.closings.ListByRegister(ctx, rc.TenantID, rc.RegisterID, page, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "list closings", Err: err}
	}
	out := &dto.ClosingListResponse{Data: make([]dto.ClosingResponse, len(closings)), Total: total, Page: page, Limit: limit}
	for i := range closings {
		out.Data[i] = ClosingToResponse(&closings[i], rc.loc())
	}
	return out, nil
}

func (s *closingService) Get(ctx context.Context, tenantID, id string) (*dto.ClosingResponse, error) {
	c, err := s.closings.FindByID(ctx, tenantID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load closing", Err: err}
	}
	rc, err := s.registers.Resolve(ctx, tenantID, c.RegisterID)
	if err != nil {
		return nil, err
	}
	resp := ClosingToResponse(c, rc.loc())
	return &resp, nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

// ValidateCount checks the counted cash before anything is written.
func ValidateCount(v *decimal.Decimal) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, &InvalidCountError{Reason: "counted cash is required"}
	}
	if v.IsNegative() {
		return decimal.Zero, &InvalidCountError{Reason: "counted cash cannot be negative"}
	}
	return *v, nil
}

func alreadyClosed(id string, now time.Time, day model.Window) *AlreadyClosedError {
	remaining := day.To.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return &AlreadyClosedError{ClosingID: id, ReopenAt: day.To, Remaining: remaining}
}

var varianceEpsilon = model.PaymentEpsilon

// ClassifyVariance labels difference = cashReal - cashExpected.
func ClassifyVariance(diff decimal.Decimal) string {
	switch {
	case diff.Abs().LessThan(varianceEpsilon):
		return VarianceBalanced
	case diff.IsNegative():
		return VarianceShort
	default:
		return VarianceOver
	}
}

// VarianceSeverity grades the difference as a share of the expected cash:
// normal up to 1%, warning up to 5%, critical above. Informational only.
func VarianceSeverity(diff, expected decimal.Decimal) string {
	if diff.Abs().LessThan(varianceEpsilon) {
		return "normal"
	}
	if expected.IsZero() {
		return "critical"
	}
	pct := diff.Div(expected).Mul(decimal.NewFromInt(100)).Abs()
	switch {
	case pct.LessThanOrEqual(decimal.NewFromInt(1)):
		return "normal"
	case pct.LessThanOrEqual(decimal.NewFromInt(5)):
		return "warning"
	default:
		return "critical"
	}
}

func previewFromSnapshot(snap *Snapshot, registerID string) dto.ClosingPreviewResponse {
	return dto.ClosingPreviewResponse{
		ClosingID:    model.ClosingID(snap.Day.From, registerID),
		BusinessDay:  snap.Day.From.Format(model.BusinessDayLayout),
		CashExpected: snap.CashExpected(),
		Today:        balanceToResponse(snap.Today),
		Sales:        salesToResponse(snap.Sales),
		Outflows:     outflowsToResponse(snap.Outflows),
	}
}

// ClosingToResponse maps a stored closing for the API and the report worker.
func ClosingToResponse(c *model.CashClosing, loc *time.Location) dto.ClosingResponse {
	return dto.ClosingResponse{
		ID:                 c.ID,
		RegisterID:         c.RegisterID,
		BusinessDay:        c.BusinessDay,
		Date:               c.Date.In(loc).Format(time.RFC3339),
		ClosedBy:           c.ClosedBy,
		TotalSales:         c.TotalSales,
		AmountCash:         c.AmountCash,
		AmountMobileMoney:  c.AmountMobileMoney,
		AmountCard:         c.AmountCard,
		CashExpected:       c.CashExpected,
		CashReal:           c.CashReal,
		Difference:         c.Difference,
		Classification:     ClassifyVariance(c.Difference),
		Status:             c.Status,
		AutoClosed:         c.AutoClosed,
		Comment:            c.Comment,
		LockedTransactions: c.LockedTransactions,
	}
}
