package service

import (
	"context"
	"time"

	"cashledger/internal/infra"

	"github.com/rs/zerolog/log"
)

// ClosingGate serializes closings per register across processes and tracks
// the "counting in progress" marker. infra.RedisClosingGate implements it.
type ClosingGate interface {
	BeginCounting(ctx context.Context, key string) error
	CancelCounting(ctx context.Context, key string) error
	InProgress(ctx context.Context, key string) (bool, error)
	// Acquire returns infra.ErrLockNotObtained when another session holds it.
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// EventPublisher pushes ledger change notifications to live listeners.
type EventPublisher interface {
	Publish(ctx context.Context, ev infra.LedgerEvent) error
}

// ReportEnqueuer schedules the asynchronous closing report.
type ReportEnqueuer interface {
	EnqueueClosingReport(ctx context.Context, tenantID, closingID string) error
}

// RegisterResolver builds the context of a register known only by id.
// ContextFactory implements it.
type RegisterResolver interface {
	Resolve(ctx context.Context, tenantID, registerID string) (RegisterContext, error)
}

// publish is fire-and-forget: a lost notification never fails the write that
// produced it.
func publish(ctx context.Context, pub EventPublisher, ev infra.LedgerEvent) {
	if pub == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if err := pub.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("event", ev.Type).Str("register_id", ev.RegisterID).Msg("ledger event not published")
	}
}
