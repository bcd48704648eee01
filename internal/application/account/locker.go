package account

import (
	"context"

	"github.com/google/uuid"
)

// Unlock releases a customer lock. It is safe to call after the lock expired.
type Unlock func(ctx context.Context) error

// CustomerLocker serialises allocation runs per customer. Two runs over the
// same customer's acts must never interleave; the version check on save is
// the backstop when a lock expires early.
//
// Lock blocks until the lock is held or ctx is done. Contention that outlives
// ctx is reported as ConcurrentModification.
type CustomerLocker interface {
	Lock(ctx context.Context, customerID uuid.UUID) (Unlock, error)
}
