package policies

import "time"

// HoldPolicy gathers the explicitly opt-in behaviors around pending holds.
// Neither is implied by the core state machine; both default to off.
type HoldPolicy struct {
	// AutoRejectOverlapping rejects competing PENDING holds on the same ad
	// once one of them is confirmed.
	AutoRejectOverlapping bool

	// PendingTTL expires PENDING holds never acted upon. Zero disables the
	// sweeper entirely.
	PendingTTL time.Duration
}
