package worker

// closing_report_worker.go
// Renders the PDF report of a committed closing, stores it and, when a
// recipient is configured, queues the mail. Runs after the closing commit and
// never affects it: a failure here only delays the report.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cashledger/internal/infra"
	"cashledger/internal/model"
	"cashledger/internal/repository"
	"cashledger/internal/service"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// EmailEnqueuer is satisfied by *Dispatcher.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload EmailJobPayload) error
}

type ClosingReportWorker struct {
	closings  repository.ClosingRepository
	registers repository.RegisterRepository
	movements repository.MovementRepository
	store     infra.ReportStore
	cb        *infra.CircuitBreaker
	mail      EmailEnqueuer
	recipient []string
	fallback  *time.Location
}

type ClosingReportConfig struct {
	Closings  repository.ClosingRepository
	Registers repository.RegisterRepository
	Movements repository.MovementRepository
	Store     infra.ReportStore
	CB        *infra.CircuitBreaker
	Mail      EmailEnqueuer // nil disables mailing
	Recipient []string
	Location  *time.Location
}

func NewClosingReportWorker(cfg ClosingReportConfig) *ClosingReportWorker {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &ClosingReportWorker{
		closings:  cfg.Closings,
		registers: cfg.Registers,
		movements: cfg.Movements,
		store:     cfg.Store,
		cb:        cfg.CB,
		mail:      cfg.Mail,
		recipient: cfg.Recipient,
		fallback:  loc,
	}
}

func (w *ClosingReportWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload ClosingReportPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("%w: closing report payload: %v", ErrPermanent, err)
	}

	c, err := w.closings.FindByID(ctx, payload.TenantID, payload.ClosingID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: closing %s not found", ErrPermanent, payload.ClosingID)
	}
	if err != nil {
		return fmt.Errorf("closing_report: load closing: %w", err)
	}

	report := infra.ClosingReport{Closing: c, Location: w.fallback}
	if reg, err := w.registers.FindByID(ctx, c.TenantID, c.RegisterID); err == nil {
		report.RegisterName = reg.Name
		report.Location = reg.Location(w.fallback)
	}
	if outflows, err := w.outflows(ctx, c, report.Location); err == nil {
		report.Outflows = outflows
	} else {
		log.Warn().Err(err).Str("closing_id", c.ID).Msg("closing_report: outflows unavailable")
	}

	pdf, err := infra.GenerateClosingPDF(report)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}

	name := infra.ReportFileName(c.ID)
	var location string
	err = w.cb.Execute(ctx, func(ctx context.Context) error {
		var serr error
		location, serr = w.store.Save(ctx, name, pdf)
		return serr
	})
	if err != nil {
		return fmt.Errorf("closing_report: store: %w", err)
	}
	log.Info().Str("closing_id", c.ID).Str("location", location).Msg("closing_report: stored")

	if w.mail == nil || len(w.recipient) == 0 {
		return nil
	}
	return w.mail.EnqueueEmail(ctx, EmailJobPayload{
		To:         w.recipient,
		Subject:    fmt.Sprintf("Cash closing %s (%s)", c.BusinessDay, c.RegisterID),
		Body:       reportBody(c),
		ReportName: name,
	})
}

func (w *ClosingReportWorker) outflows(ctx context.Context, c *model.CashClosing, loc *time.Location) (map[string]decimal.Decimal, error) {
	day, err := time.ParseInLocation(model.BusinessDayLayout, c.BusinessDay, loc)
	if err != nil {
		return nil, err
	}
	rc := service.RegisterContext{TenantID: c.TenantID, RegisterID: c.RegisterID, Location: loc}
	window := rc.DayWindow(day)
	movs, err := w.movements.List(ctx, c.TenantID, c.RegisterID, window)
	if err != nil {
		return nil, err
	}
	o := service.ComputeOutflows(movs, window)
	return map[string]decimal.Decimal{
		"Purchases":     o.Purchases,
		"Withdrawals":   o.Withdrawals,
		"Expenses":      o.Expenses,
		"Bank deposits": o.BankDeposits,
		"Deposits":      o.Deposits,
	}, nil
}

func reportBody(c *model.CashClosing) string {
	kind := "closed by " + c.ClosedBy
	if c.AutoClosed {
		kind = "closed automatically"
	}
	return fmt.Sprintf(
		"Register %s was %s for %s.\n\nTotal sales: %s\nExpected cash: %s\nCounted cash: %s\nDifference: %s (%s)\n",
		c.RegisterID, kind, c.BusinessDay,
		c.TotalSales.StringFixed(2), c.CashExpected.StringFixed(2), c.CashReal.StringFixed(2),
		c.Difference.StringFixed(2), service.ClassifyVariance(c.Difference),
	)
}
