package worker

// lock_repair_cron.go
// A sale that passed the lock check just before a closing committed lands in
// the closed day unlocked. This cron re-applies the transaction lock for every
// recent closing so such stragglers cannot be settled or counted again.
// lockWindow only ever sets is_locked = true, so reruns are harmless.

import (
	"context"
	"time"

	"cashledger/internal/model"
	"cashledger/internal/repository"
	"cashledger/internal/service"

	"github.com/rs/zerolog/log"
)

const lockRepairLookback = 48 * time.Hour

type LockRepairConfig struct {
	Closings repository.ClosingRepository
	Contexts *service.ContextFactory
	Interval time.Duration
}

// StartLockRepairCron launches the repair goroutine. It stops with ctx.
func StartLockRepairCron(ctx context.Context, cfg LockRepairConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		log.Info().Dur("interval", cfg.Interval).Msg("lock_repair: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("lock_repair: shutting down")
				return
			case <-ticker.C:
				repairLocks(ctx, cfg, time.Now())
			}
		}
	}()
}

// repairLocks returns the number of transactions it locked.
func repairLocks(ctx context.Context, cfg LockRepairConfig, now time.Time) int64 {
	closings, err := cfg.Closings.ListSince(ctx, now.Add(-lockRepairLookback))
	if err != nil {
		log.Error().Err(err).Msg("lock_repair: failed to list closings")
		return 0
	}

	var total int64
	for _, c := range closings {
		rc, err := cfg.Contexts.Resolve(ctx, c.TenantID, c.RegisterID)
		if err != nil {
			log.Warn().Err(err).Str("closing_id", c.ID).Msg("lock_repair: register unresolved")
			continue
		}
		day, err := time.ParseInLocation(model.BusinessDayLayout, c.BusinessDay, rc.Location)
		if err != nil {
			log.Warn().Err(err).Str("closing_id", c.ID).Msg("lock_repair: bad business day")
			continue
		}
		n, err := cfg.Closings.LockWindow(ctx, c.TenantID, c.RegisterID, rc.DayWindow(day))
		if err != nil {
			log.Error().Err(err).Str("closing_id", c.ID).Msg("lock_repair: lock failed")
			continue
		}
		if n > 0 {
			log.Warn().Str("closing_id", c.ID).Int64("locked", n).Msg("lock_repair: late transactions locked")
			total += n
		}
	}
	return total
}
