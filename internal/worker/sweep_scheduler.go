package worker

import (
	"context"
	"sync"
	"time"

	"cashledger/internal/service"

	"github.com/rs/zerolog/log"
)

// SweepScheduler runs the forgotten-day sweep shortly after a login, off the
// request path. At most one sweep per register is pending at a time.
type SweepScheduler struct {
	ctx     context.Context
	sweeper service.SweeperService
	delay   time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// NewSweepScheduler binds scheduled sweeps to ctx: cancelling it drops the
// ones that have not started.
func NewSweepScheduler(ctx context.Context, sweeper service.SweeperService, delay time.Duration) *SweepScheduler {
	return &SweepScheduler{ctx: ctx, sweeper: sweeper, delay: delay, pending: map[string]*time.Timer{}}
}

// Schedule queues a sweep of rc. Returns false when one is already pending.
func (s *SweepScheduler) Schedule(rc service.RegisterContext, triggeredBy string) bool {
	key := rc.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[key]; ok {
		return false
	}
	s.wg.Add(1)
	s.pending[key] = time.AfterFunc(s.delay, func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.pending, key)
			s.mu.Unlock()
		}()
		if s.ctx.Err() != nil {
			return
		}
		n, err := s.sweeper.Sweep(s.ctx, rc, triggeredBy)
		if err != nil {
			log.Error().Err(err).Str("register_id", rc.RegisterID).Int("days_closed", n).Msg("scheduled sweep failed")
		}
	})
	return true
}

// Stop cancels sweeps that have not started and waits for running ones.
func (s *SweepScheduler) Stop() {
	s.mu.Lock()
	for key, t := range s.pending {
		if t.Stop() {
			delete(s.pending, key)
			s.wg.Done()
		}
	}
	s.mu.Unlock()
	s.wg.Wait()
}
