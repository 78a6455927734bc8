package service

import (
	"context"
	"errors"
	"time"

	"cashledger/internal/model"
	"cashledger/internal/repository"

	"github.com/rs/zerolog/log"
)

// RegisterContext carries the tenant, register and clock every ledger
// operation runs against. It is built per request; nothing is read from
// package-level state.
type RegisterContext struct {
	TenantID   string
	RegisterID string
	Location   *time.Location
	Clock      func() time.Time
}

func (rc RegisterContext) loc() *time.Location {
	if rc.Location == nil {
		return time.Local
	}
	return rc.Location
}

// Now is the current instant in the register's zone.
func (rc RegisterContext) Now() time.Time {
	if rc.Clock == nil {
		return time.Now().In(rc.loc())
	}
	return rc.Clock().In(rc.loc())
}

// StartOfDay is local midnight of the day containing t.
func (rc RegisterContext) StartOfDay(t time.Time) time.Time {
	t = t.In(rc.loc())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, rc.loc())
}

// DayWindow is [midnight, next midnight) of the local day containing t.
func (rc RegisterContext) DayWindow(t time.Time) model.Window {
	start := rc.StartOfDay(t)
	return model.Window{From: start, To: time.Date(start.Year(), start.Month(), start.Day()+1, 0, 0, 0, 0, rc.loc())}
}

// Today is the window of the current local day.
func (rc RegisterContext) Today() model.Window {
	return rc.DayWindow(rc.Now())
}

// Key identifies the register across tenants (redis keys, logs).
func (rc RegisterContext) Key() string {
	return rc.TenantID + ":" + rc.RegisterID
}

// ContextFactory resolves a RegisterContext from the persisted register and
// its configured time zone.
type ContextFactory struct {
	registers repository.RegisterRepository
	fallback  *time.Location
	clock     func() time.Time
}

func NewContextFactory(registers repository.RegisterRepository, fallback *time.Location, clock func() time.Time) *ContextFactory {
	if fallback == nil {
		fallback = time.Local
	}
	if clock == nil {
		clock = time.Now
	}
	return &ContextFactory{registers: registers, fallback: fallback, clock: clock}
}

// Resolve builds the context for a register. Registers without a stored
// record (registerId = user id deployments) use the default zone.
func (f *ContextFactory) Resolve(ctx context.Context, tenantID, registerID string) (RegisterContext, error) {
	rc := RegisterContext{TenantID: tenantID, RegisterID: registerID, Location: f.fallback, Clock: f.clock}
	reg, err := f.registers.FindByID(ctx, tenantID, registerID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return rc, nil
	case err != nil:
		return rc, &PersistenceError{Op: "load register", Err: err}
	}
	rc.Location = reg.Location(f.fallback)
	if reg.TimeZone != "" && rc.Location == f.fallback {
		log.Warn().Str("register_id", registerID).Str("tz", reg.TimeZone).Msg("unknown register time zone, using default")
	}
	return rc, nil
}
