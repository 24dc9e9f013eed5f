package lifecycle

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// Sentinel errors returned by the lifecycle service. Callers match them with
// errors.Is; the wrapped message carries the human-readable detail (which
// order, which variant, how much stock was missing).
var (
	// ErrInvalidInput flags a malformed request: empty customer name,
	// non-positive quantity, unknown status name, unknown delivery type.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound flags a missing order, order line or product variant.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition flags a target status outside the allowed set
	// for the order's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInsufficientStock flags a stock gate failure: at least one variant
	// cannot cover the quantity the order requires.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrOrderLocked flags an edit attempt on an order that left Pending.
	ErrOrderLocked = errors.New("order is locked")

	// ErrLockTimeout flags a database write lock that could not be acquired
	// within busy_timeout. The transaction had no effect and the caller may
	// retry the same request.
	ErrLockTimeout = errors.New("lock wait timeout")
)

// IsRetryable reports whether err describes a transient condition where
// retrying the exact same request can succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}

// mapDBError translates driver-level lock contention into ErrLockTimeout.
// SQLITE_BUSY is returned when busy_timeout expires on a file database;
// SQLITE_LOCKED when a shared-cache connection hits a table lock.
func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		if serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked {
			return fmt.Errorf("%w: %v", ErrLockTimeout, err)
		}
	}
	return err
}
