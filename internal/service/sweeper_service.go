package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"cashledger/internal/infra"
	"cashledger/internal/model"
	"cashledger/internal/repository"

	"github.com/rs/zerolog/log"
)

// SweeperService closes forgotten days: every past business day with
// activity and no closing gets an automatic closing, oldest first.
type SweeperService interface {
	// PendingDays lists the unclosed past days with activity, oldest first.
	PendingDays(ctx context.Context, rc RegisterContext) ([]time.Time, error)
	// Sweep returns how many days it closed. Days closed concurrently by
	// someone else are skipped; any other failure stops the sweep so no
	// later day is closed before an earlier one.
	Sweep(ctx context.Context, rc RegisterContext, triggeredBy string) (int, error)
}

type sweeperService struct {
	movements    repository.MovementRepository
	transactions repository.TransactionRepository
	closings     repository.ClosingRepository
	closer       ClosingService
	publisher    EventPublisher
}

func NewSweeperService(
	movements repository.MovementRepository,
	transactions repository.TransactionRepository,
	closings repository.ClosingRepository,
	closer ClosingService,
	publisher EventPublisher,
) SweeperService {
	return &sweeperService{
		movements:    movements,
		transactions: transactions,
		closings:     closings,
		closer:       closer,
		publisher:    publisher,
	}
}

func (s *sweeperService) PendingDays(ctx context.Context, rc RegisterContext) ([]time.Time, error) {
	past := model.Window{To: rc.Today().From}

	movs, err := s.movements.List(ctx, rc.TenantID, rc.RegisterID, past)
	if err != nil {
		return nil, &PersistenceError{Op: "list movements", Err: err}
	}
	txs, err := s.transactions.List(ctx, repository.TransactionFilter{
		TenantID: rc.TenantID,
		SellerID: rc.RegisterID,
		Window:   past,
	})
	if err != nil {
		return nil, &PersistenceError{Op: "list transactions", Err: err}
	}
	closed, err := s.closings.BusinessDays(ctx, rc.TenantID, rc.RegisterID)
	if err != nil {
		return nil, &PersistenceError{Op: "list closed days", Err: err}
	}

	days := map[string]time.Time{}
	add := func(t time.Time) {
		start := rc.StartOfDay(t)
		key := start.Format(model.BusinessDayLayout)
		if closed[key] {
			return
		}
		days[key] = start
	}
	for _, m := range movs {
		add(m.Date)
	}
	for _, t := range txs {
		add(t.Date)
	}

	pending := make([]time.Time, 0, len(days))
	for _, d := range days {
		pending = append(pending, d)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Before(pending[j]) })
	return pending, nil
}

func (s *sweeperService) Sweep(ctx context.Context, rc RegisterContext, triggeredBy string) (int, error) {
	pending, err := s.PendingDays(ctx, rc)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	closed := 0
	for _, day := range pending {
		_, err := s.closer.AutoClose(ctx, rc, day)
		var already *AlreadyClosedError
		switch {
		case errors.As(err, &already):
			continue
		case err != nil:
			log.Error().Err(err).
				Str("tenant_id", rc.TenantID).
				Str("register_id", rc.RegisterID).
				Str("day", day.Format(model.BusinessDayLayout)).
				Msg("sweep stopped")
			s.done(ctx, rc, closed, triggeredBy)
			return closed, err
		}
		closed++
	}
	s.done(ctx, rc, closed, triggeredBy)
	return closed, nil
}

func (s *sweeperService) done(ctx context.Context, rc RegisterContext, closed int, triggeredBy string) {
	if closed == 0 {
		return
	}
	log.Info().
		Str("tenant_id", rc.TenantID).
		Str("register_id", rc.RegisterID).
		Str("triggered_by", triggeredBy).
		Int("days_closed", closed).
		Msg("forgotten days closed")
	publish(ctx, s.publisher, infra.LedgerEvent{
		Type:       infra.EventSweepCompleted,
		TenantID:   rc.TenantID,
		RegisterID: rc.RegisterID,
		DaysClosed: closed,
	})
}
