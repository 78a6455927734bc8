package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound: the register, transaction or closing does not exist. Callers
	// on the sweep and aggregation paths treat it as a no-op.
	ErrNotFound = errors.New("not found")
	// ErrClosingInProgress: another session is executing a closing for the same register.
	ErrClosingInProgress = errors.New("another closing for this register is in progress")
	// ErrConfirmationRequired: executeClosing was called without the explicit second confirmation.
	ErrConfirmationRequired = errors.New("closing must be explicitly confirmed: it cannot be undone")
	// ErrTransactionLocked: the invoice belongs to a closed day.
	ErrTransactionLocked = errors.New("transaction belongs to a closed day and can no longer be changed")
	// ErrDayClosed: the record belongs to a day that already has a closing.
	ErrDayClosed = errors.New("the day of this record is already closed")
	// ErrAlreadySettled: nothing is outstanding on the invoice.
	ErrAlreadySettled = errors.New("transaction is already fully paid")
	// ErrSettlementConflict: another settlement changed the invoice first.
	ErrSettlementConflict = errors.New("transaction was settled concurrently; reload and retry")
	// ErrOpenDay: automatic closing only applies to days that are over.
	ErrOpenDay = errors.New("cannot auto-close a business day that has not ended")
)

// AlreadyClosedError is returned when a closing already exists for the
// register-day. ReopenAt is the next midnight after that day.
type AlreadyClosedError struct {
	ClosingID string
	ReopenAt  time.Time
	Remaining time.Duration
}

func (e *AlreadyClosedError) Error() string {
	return fmt.Sprintf("register already closed (%s); it reopens at %s (in %s)",
		e.ClosingID, e.ReopenAt.Format("2006-01-02 15:04"), FormatRemaining(e.Remaining))
}

// RegisterLockedError refuses a cash-affecting operation on a closed register.
type RegisterLockedError struct {
	ClosingID string
	ReopenAt  time.Time
	Remaining time.Duration
}

func (e *RegisterLockedError) Error() string {
	return fmt.Sprintf("register is closed for the day; it reopens automatically at %s (in %s)",
		e.ReopenAt.Format("2006-01-02 15:04"), FormatRemaining(e.Remaining))
}

// InvalidCountError rejects a missing or negative counted-cash value before
// anything is written.
type InvalidCountError struct {
	Reason string
}

func (e *InvalidCountError) Error() string {
	return "invalid cash count: " + e.Reason
}

// InvalidInputError covers malformed ledger operations (amounts, types, items).
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError wraps a store failure. The operation it names did not happen.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// FormatRemaining renders a lock duration as "3h 05m"; sub-minute values
// round up so a locked register never shows "0m".
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	mins := int((d + time.Minute - 1) / time.Minute)
	return fmt.Sprintf("%dh %02dm", mins/60, mins%60)
}
