package cache

import (
	"context"
	"sync"

	"github.com/google/uuid"

	appaccount "github.com/vetpms/backend/internal/application/account"
)

// InMemoryCustomerLocker implements CustomerLocker with one semaphore per
// customer. It only serialises allocation within this process.
type InMemoryCustomerLocker struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*lockSlot
	opts  lockerOptions
}

type lockSlot struct {
	sem     chan struct{}
	waiters int
}

// NewInMemoryCustomerLocker creates a new in-memory locker. Only WithLockWait
// applies to it.
func NewInMemoryCustomerLocker(opts ...LockerOption) *InMemoryCustomerLocker {
	o := defaultLockerOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &InMemoryCustomerLocker{slots: make(map[uuid.UUID]*lockSlot), opts: o}
}

// Lock blocks until the customer is free or the wait runs out
func (l *InMemoryCustomerLocker) Lock(ctx context.Context, customerID uuid.UUID) (appaccount.Unlock, error) {
	l.mu.Lock()
	slot, ok := l.slots[customerID]
	if !ok {
		slot = &lockSlot{sem: make(chan struct{}, 1)}
		l.slots[customerID] = slot
	}
	slot.waiters++
	l.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, l.opts.wait)
	defer cancel()

	select {
	case slot.sem <- struct{}{}:
	case <-ctx.Done():
		l.leave(customerID, slot)
		return nil, busyError(customerID, ctx.Err())
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-slot.sem
			l.leave(customerID, slot)
		})
		return nil
	}, nil
}

// leave drops the slot once nobody holds or waits for it
func (l *InMemoryCustomerLocker) leave(customerID uuid.UUID, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.waiters--
	if slot.waiters == 0 {
		delete(l.slots, customerID)
	}
}

// Held returns the number of customers currently locked or waited on
func (l *InMemoryCustomerLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

var _ appaccount.CustomerLocker = (*InMemoryCustomerLocker)(nil)
