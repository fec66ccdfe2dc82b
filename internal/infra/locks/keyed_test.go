package locks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rently/internal/app/policies"
)

func TestAcquireAndRelease(t *testing.T) {
	locker := NewKeyedLocker()
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "ad-1", 50*time.Millisecond)
	require.NoError(t, err)

	// same ad is busy until released
	_, err = locker.Acquire(ctx, "ad-1", 20*time.Millisecond)
	assert.ErrorIs(t, err, policies.ErrLockBusy)

	// other ads are independent
	otherRelease, err := locker.Acquire(ctx, "ad-2", 20*time.Millisecond)
	require.NoError(t, err)
	otherRelease()

	release()
	release() // double release is harmless

	again, err := locker.Acquire(ctx, "ad-1", 20*time.Millisecond)
	require.NoError(t, err)
	again()
}

func TestAcquireWaitsForHolder(t *testing.T) {
	locker := NewKeyedLocker()
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "ad-1", 10*time.Millisecond)
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		release()
	}()

	gotIt, err := locker.Acquire(ctx, "ad-1", 500*time.Millisecond)
	require.NoError(t, err)
	gotIt()
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	locker := NewKeyedLocker()
	release, err := locker.Acquire(context.Background(), "ad-1", time.Millisecond)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locker.Acquire(ctx, "ad-1", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
