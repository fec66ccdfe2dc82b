package locks

import (
	"context"
	"sync"
	"time"

	"rently/internal/app/policies"
	"rently/internal/domain/ad"
)

// KeyedLocker serializes booking confirmations per ad inside a single
// process. Each ad gets a channel-based mutex; Acquire waits up to the given
// bound before reporting the lock busy.
type KeyedLocker struct {
	mu    sync.Mutex
	slots map[ad.AdID]chan struct{}
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{slots: make(map[ad.AdID]chan struct{})}
}

func (l *KeyedLocker) Acquire(ctx context.Context, adID ad.AdID, wait time.Duration) (policies.ReleaseFunc, error) {
	slot := l.slot(adID)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case slot <- struct{}{}:
		var once sync.Once
		release := func() {
			once.Do(func() { <-slot })
		}
		return release, nil
	case <-timer.C:
		return nil, policies.ErrLockBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *KeyedLocker) slot(adID ad.AdID) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[adID]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[adID] = slot
	}
	return slot
}

var _ policies.AdLocker = (*KeyedLocker)(nil)
