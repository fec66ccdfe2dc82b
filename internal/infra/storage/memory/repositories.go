package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	domainad "rently/internal/domain/ad"
	domainavailability "rently/internal/domain/availability"
	domainbooking "rently/internal/domain/booking"
	"rently/internal/domain/shared/daterange"
)

// ErrVersionConflict signals a concurrent save of the same booking.
var ErrVersionConflict = errors.New("memory: booking version conflict")

// AdRepository keeps ads in memory.
type AdRepository struct {
	mu    sync.RWMutex
	items map[domainad.AdID]domainad.Ad
}

func NewAdRepository() *AdRepository {
	return &AdRepository{items: make(map[domainad.AdID]domainad.Ad)}
}

func (r *AdRepository) ByID(ctx context.Context, id domainad.AdID) (*domainad.Ad, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entity, ok := r.items[id]
	if !ok {
		return nil, domainad.ErrNotFound
	}
	out := entity
	return &out, nil
}

func (r *AdRepository) Save(ctx context.Context, entity *domainad.Ad) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[entity.ID] = *entity
	return nil
}

// BookingRepository stores booking snapshots and keeps a per-ad bucket so the
// availability index never scans the whole store. Saves use the aggregate's
// version as a compare-and-swap guard.
type BookingRepository struct {
	mu    sync.RWMutex
	items map[domainbooking.BookingID]domainbooking.Booking
	byAd  map[domainad.AdID][]domainbooking.BookingID
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{
		items: make(map[domainbooking.BookingID]domainbooking.Booking),
		byAd:  make(map[domainad.AdID][]domainbooking.BookingID),
	}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entity, ok := r.items[id]
	if !ok {
		return nil, domainbooking.ErrNotFound
	}
	return snapshot(entity), nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.items[b.ID]
	if ok && existing.Version != b.Version {
		return ErrVersionConflict
	}
	b.Version++
	stored := *b
	stored.ClearEvents()
	r.items[b.ID] = stored
	if !ok {
		r.byAd[b.AdID] = append(r.byAd[b.AdID], b.ID)
	}
	return nil
}

func (r *BookingRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domainbooking.Booking, error) {
	id := strings.TrimSpace(tenantID)
	if id == "" {
		return nil, errors.New("memory: tenant id required")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := make([]*domainbooking.Booking, 0)
	for _, entity := range r.items {
		if entity.TenantID == id {
			matches = append(matches, snapshot(entity))
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches, nil
}

func (r *BookingRepository) ListByAd(ctx context.Context, adID domainad.AdID) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byAd[adID]
	matches := make([]*domainbooking.Booking, 0, len(ids))
	for _, id := range ids {
		if entity, ok := r.items[id]; ok {
			matches = append(matches, snapshot(entity))
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Range.From.Before(matches[j].Range.From)
	})
	return matches, nil
}

func (r *BookingRepository) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := make([]*domainbooking.Booking, 0)
	for _, entity := range r.items {
		if entity.State == domainbooking.StatePending && entity.CreatedAt.Before(cutoff) {
			matches = append(matches, snapshot(entity))
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
	return matches, nil
}

// HasConflict implements the availability index over the per-ad bucket.
func (r *BookingRepository) HasConflict(ctx context.Context, adID domainad.AdID, dr daterange.DateRange, states []domainbooking.State, excluding domainbooking.BookingID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.byAd[adID] {
		if id == excluding {
			continue
		}
		entity, ok := r.items[id]
		if !ok || !stateIn(entity.State, states) {
			continue
		}
		if entity.Range.Overlaps(dr) {
			return true, nil
		}
	}
	return false, nil
}

func (r *BookingRepository) Busy(ctx context.Context, adID domainad.AdID, states []domainbooking.State) ([]domainavailability.Interval, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	intervals := make([]domainavailability.Interval, 0)
	for _, id := range r.byAd[adID] {
		entity, ok := r.items[id]
		if !ok || !stateIn(entity.State, states) {
			continue
		}
		intervals = append(intervals, domainavailability.Interval{
			AdID:      adID,
			BookingID: entity.ID,
			Range:     entity.Range,
			State:     entity.State,
		})
	}
	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].Range.From.Before(intervals[j].Range.From)
	})
	return intervals, nil
}

func snapshot(entity domainbooking.Booking) *domainbooking.Booking {
	out := entity
	if entity.LastQuote != nil {
		quote := *entity.LastQuote
		out.LastQuote = &quote
	}
	return &out
}

func stateIn(state domainbooking.State, allowed []domainbooking.State) bool {
	for _, candidate := range allowed {
		if state == candidate {
			return true
		}
	}
	return false
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
var _ domainavailability.Index = (*BookingRepository)(nil)
var _ domainad.Repository = (*AdRepository)(nil)
