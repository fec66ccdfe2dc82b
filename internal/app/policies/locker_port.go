package policies

import (
	"context"
	"errors"
	"time"

	"rently/internal/domain/ad"
)

// ErrLockBusy is returned when the per-ad lock could not be acquired within
// the wait budget. Callers translate it into a retryable contention error.
var ErrLockBusy = errors.New("policies: ad lock busy")

type ReleaseFunc func()

// AdLocker serializes confirmations per ad. Two pending bookings with
// overlapping ranges may race to confirm; the lock makes the
// check-then-promote step indivisible so exactly one wins.
type AdLocker interface {
	Acquire(ctx context.Context, adID ad.AdID, wait time.Duration) (ReleaseFunc, error)
}
