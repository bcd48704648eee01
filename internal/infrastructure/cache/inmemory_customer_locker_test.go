package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetpms/backend/internal/domain/shared"
)

func TestInMemoryCustomerLocker_MutualExclusion(t *testing.T) {
	locker := NewInMemoryCustomerLocker(WithLockWait(5 * time.Second))
	customer := uuid.New()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), customer)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			assert.NoError(t, unlock(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, locker.Held())
}

func TestInMemoryCustomerLocker_Busy(t *testing.T) {
	locker := NewInMemoryCustomerLocker(WithLockWait(20 * time.Millisecond))
	customer := uuid.New()

	unlock, err := locker.Lock(context.Background(), customer)
	require.NoError(t, err)

	_, err = locker.Lock(context.Background(), customer)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrConcurrentModification))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(context.Background()))
	require.NoError(t, unlock(context.Background()))

	again, err := locker.Lock(context.Background(), customer)
	require.NoError(t, err)
	require.NoError(t, again(context.Background()))
	assert.Equal(t, 0, locker.Held())
}

func TestInMemoryCustomerLocker_IndependentCustomers(t *testing.T) {
	locker := NewInMemoryCustomerLocker(WithLockWait(20 * time.Millisecond))

	first, err := locker.Lock(context.Background(), uuid.New())
	require.NoError(t, err)
	second, err := locker.Lock(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 2, locker.Held())

	require.NoError(t, first(context.Background()))
	require.NoError(t, second(context.Background()))
	assert.Equal(t, 0, locker.Held())
}

func TestInMemoryCustomerLocker_CancelledContext(t *testing.T) {
	locker := NewInMemoryCustomerLocker()
	customer := uuid.New()

	unlock, err := locker.Lock(context.Background(), customer)
	require.NoError(t, err)
	defer unlock(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locker.Lock(ctx, customer)
	assert.True(t, errors.Is(err, shared.ErrConcurrentModification))
	assert.ErrorIs(t, err, context.Canceled)
}
