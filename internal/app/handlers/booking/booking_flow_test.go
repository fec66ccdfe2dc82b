package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rently/internal/app/dto"
	"rently/internal/app/policies"
	"rently/internal/app/uow"
	domainad "rently/internal/domain/ad"
	domainbooking "rently/internal/domain/booking"
	"rently/internal/domain/shared/money"
	"rently/internal/infra/locks"
	"rently/internal/infra/storage/memory"
)

var testNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type fixture struct {
	ads      *memory.AdRepository
	bookings *memory.BookingRepository
	factory  memory.Factory
	locker   *locks.KeyedLocker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ads := memory.NewAdRepository()
	bookings := memory.NewBookingRepository()
	return &fixture{
		ads:      ads,
		bookings: bookings,
		factory: memory.Factory{
			AdsRepo:      ads,
			BookingRepo:  bookings,
			Availability: bookings,
		},
		locker: locks.NewKeyedLocker(),
	}
}

func (f *fixture) seedAd(t *testing.T, id, owner string, active bool) {
	t.Helper()
	entity, err := domainad.New(domainad.CreateParams{
		ID:          domainad.AdID(id),
		OwnerID:     owner,
		Title:       "Loft with a view",
		PricePerDay: money.Must(10_000, "RUB"),
		IsActive:    active,
		Now:         testNow,
	})
	require.NoError(t, err)
	require.NoError(t, f.ads.Save(context.Background(), entity))
}

func (f *fixture) createHandler() *CreateBookingHandler {
	return &CreateBookingHandler{UoWFactory: f.factory, Clock: fixedClock}
}

func (f *fixture) confirmHandler() *ConfirmBookingHandler {
	return &ConfirmBookingHandler{UoWFactory: f.factory, Locker: f.locker, Clock: fixedClock}
}

func (f *fixture) create(t *testing.T, id, adID, tenant string, fromDays, toDays int) *dto.BookingView {
	t.Helper()
	view, err := f.createHandler().Handle(context.Background(), CreateBookingCommand{
		CommandID: id,
		AdID:      adID,
		TenantID:  tenant,
		DateFrom:  testNow.AddDate(0, 0, fromDays),
		DateTo:    testNow.AddDate(0, 0, toDays),
	})
	require.NoError(t, err)
	return view
}

func TestCreateBookingPlacesPendingHold(t *testing.T) {
	f := newFixture(t)
	f.seedAd(t, "ad-1", "owner-1", true)

	view := f.create(t, "bk-1", "ad-1", "tenant-1", 5, 8)

	assert.Equal(t, string(domainbooking.StatePending), view.Status)
	assert.Equal(t, int64(30_000), view.TotalCost.Amount)
	assert.Equal(t, 3, view.Nights)
	assert.Equal(t, "owner-1", view.OwnerID)
}

func TestCreateBookingGuards(t *testing.T) {
	f := newFixture(t)
	f.seedAd(t, "ad-1", "owner-1", true)
	f.seedAd(t, "ad-off", "owner-1", false)
	handler := f.createHandler()
	ctx := context.Background()

	_, err := handler.Handle(ctx, CreateBookingCommand{
		CommandID: "bk", AdID: "missing", TenantID: "tenant-1",
		DateFrom: testNow.AddDate(0, 0, 5), DateTo: testNow.AddDate(0, 0, 8),
	})
	assert.ErrorIs(t, err, domainad.ErrNotFound)

	_, err = handler.Handle(ctx, CreateBookingCommand{
		CommandID: "bk", AdID: "ad-off", TenantID: "tenant-1",
		DateFrom: testNow.AddDate(0, 0, 5), DateTo: testNow.AddDate(0, 0, 8),
	})
	assert.ErrorIs(t, err, domainbooking.ErrAdInactive)

	_, err = handler.Handle(ctx, CreateBookingCommand{
		CommandID: "bk", AdID: "ad-1", TenantID: "owner-1",
		DateFrom: testNow.AddDate(0, 0, 5), DateTo: testNow.AddDate(0, 0, 8),
	})
	assert.ErrorIs(t, err, domainbooking.ErrOwnAd)
}

func TestOverlappingHoldsMayCoexist(t *testing.T) {
	f := newFixture(t)
	f.seedAd(t, "ad-1", "owner-1", true)

	f.create(t, "bk-1", "ad-1", "tenant-1", 5, 10)
	f.create(t, "bk-2", "ad-1", "tenant-2", 7, 12)

	first, err := f.bookings.ByID(context.Background(), "bk-1")
	require.NoError(t, err)
	second, err := f.bookings.ByID(context.Background(), "bk-2")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatePending, first.State)
	assert.Equal(t, domainbooking.StatePending, second.State)
}

func TestConfirmPromotesAndBlocksOverlap(t *testing.T) {
	f := newFixture(t)
	f.seedAd(t, "ad-1", "owner-1", true)
	ctx := context.Background()
	confirm := f.confirmHandler()

	f.create(t, "bk-1", "ad-1", "tenant-1", 5, 10)
	f.create(t, "bk-2", "ad-1", "tenant-2", 7, 12)
	f.create(t, "bk-3", "ad-1", "tenant-3", 10, 14)

	view, err := confirm.Handle(ctx, ConfirmBookingCommand{BookingID: "bk-1", CallerID: "owner-1"})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StateConfirmed), view.Status)

	// overlapping hold can no longer be confirmed
	_, err = confirm.Handle(ctx, ConfirmBookingCommand{BookingID: "bk-2", CallerID: "owner-1"})
	assert.ErrorIs(t, err, domainbooking.ErrDatesConflict)

	// back-to-back stay is fine: checkout day equals the next check-in
	view, err = confirm.Handle(ctx, ConfirmBookingCommand{BookingID: "bk-3", CallerID: "owner-1"})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StateConfirmed), view.Status)
}

func TestConfirmAuthorization(t *testing.T) {
	f := newFixture(t)
	f.seedAd(t, "ad-1", "owner-1", true)
	ctx := context.Background()
	confirm := f.confirmHandler()

	f.create(t, "bk-1", "ad-1", "tenant-1", 5, 8)

	_, err := confirm.Handle(ctx, ConfirmBookingCommand{BookingID: "bk-1", CallerID: "tenant-1"})
	assert.ErrorIs(t, err, domainbooking.ErrForbidden)

	_, err = confirm.Handle(ctx, ConfirmBookingCommand{BookingID: "bk-1", CallerID: "stranger"})
	assert.ErrorIs(t, err, domainbooking.ErrForbidden)

	_, err = confirm.Handle(ctx, ConfirmBookingCommand{BookingID: "missing", CallerID: "owner-1"})
	assert.ErrorIs(t, err, domainbooking.ErrNotFound)
}

func TestConfirmIsNotRepeatable(t *testing.T) {
	f := newFixture(t)
	f.seedAd(t, "ad-1", "owner-1", true)
	ctx := context.Background()
	confirm := f.confirmHandler()

	f.create(t, "bk-1", "ad-1", "tenant-1", 5, 8)
	_, err := confirm.Handle(ctx, ConfirmBookingCommand{BookingID: "bk-1", CallerID: "owner-1"})
	require.NoError(t, err)

	_, err = confirm.Handle(ctx, ConfirmBookingCommand{BookingID: "bk-1", CallerID: "owner-1"})
	assert.ErrorIs(t, err, domainbooking.ErrInvalidState)
}

func TestConcurrentConfirmsElectOneWinner(t *testing.T) {
	f := newFixture(t)
	f.seedAd(t, "ad-1", "owner-1", true)
	confirm := f.confirmHandler()

	f.create(t, "bk-1", "ad-1", "tenant-1", 5, 10)
	f.create(t, "bk-2", "ad-1", "tenant-2", 7, 12)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"bk-1", "bk-2"} {
		wg.Add(1)
		go func(slot int, bookingID string) {
			defer wg.Done()
			_, errs[slot] = confirm.Handle(context.Background(), ConfirmBookingCommand{
				BookingID: bookingID,
				CallerID:  "owner-1",
			})
		}(i, id)
	}
	wg.Wait()

	var confirmed, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			confirmed++
		case assert.ErrorIs(t, err, domainbooking.ErrDatesConflict):
			conflicted++
		}
	}
	assert.Equal(t, 1, confirmed, "exactly one confirmation must win")
	assert.Equal(t, 1, conflicted)
}

type callSequence struct {
	mu     sync.Mutex
	events []string
}

func (s *callSequence) add(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *callSequence) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

type sequencedFactory struct {
	inner uow.UoWFactory
	seq   *callSequence
}

func (f sequencedFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	unit, err := f.inner.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	if !opts.ReadOnly {
		f.seq.add("begin")
	}
	return sequencedUnit{UnitOfWork: unit, seq: f.seq, readOnly: opts.ReadOnly}, nil
}

type sequencedUnit struct {
	uow.UnitOfWork
	seq      *callSequence
	readOnly bool
}

func (u sequencedUnit) Commit(ctx context.Context) error {
	if !u.readOnly {
		u.seq.add("commit")
	}
	return u.UnitOfWork.Commit(ctx)
}

type sequencedLocker struct {
	inner policies.AdLocker
	seq   *callSequence
}

func (l sequencedLocker) Acquire(ctx context.Context, adID domainad.AdID, wait time.Duration) (policies.ReleaseFunc, error) {
	release, err := l.inner.Acquire(ctx, adID, wait)
	if err != nil {
		return nil, err
	}
	l.seq.add("acquire")
	return func() {
		l.seq.add("release")
		release()
	}, nil
}

// The writable transaction must live entirely inside the per-ad lock: if the
// commit happened after release, a competing confirm could read a snapshot
// taken before this one became visible and both could land confirmed.
func TestConfirmHoldsLockAcrossCommit(t *testing.T) {
	f := newFixture(t)
	f.seedAd(t, "ad-1", "owner-1", true)
	f.create(t, "bk-1", "ad-1", "tenant-1", 5, 8)

	seq := &callSequence{}
	confirm := &ConfirmBookingHandler{
		UoWFactory: sequencedFactory{inner: f.factory, seq: seq},
		Locker:     sequencedLocker{inner: f.locker, seq: seq},
		Clock:      fixedClock,
	}

	view, err := confirm.Handle(context.Background(), ConfirmBookingCommand{BookingID: "bk-1", CallerID: "owner-1"})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StateConfirmed), view.Status)
	assert.Equal(t, []string{"acquire", "begin", "commit", "release"}, seq.snapshot())
}

func TestCancelFreesDatesForCompetingHold(t *testing.T) {
	f := newFixture(t)
	f.seedAd(t, "ad-1", "owner-1", true)
	ctx := context.Background()
	confirm := f.confirmHandler()
	cancel := &CancelBookingHandler{UoWFactory: f.factory, Policy: domainbooking.DefaultPolicy(), Clock: fixedClock}

	f.create(t, "bk-1", "ad-1", "tenant-1", 5, 10)
	f.create(t, "bk-2", "ad-1", "tenant-2", 7, 12)

	_, err := confirm.Handle(ctx, ConfirmBookingCommand{BookingID: "bk-1", CallerID: "owner-1"})
	require.NoError(t, err)
	_, err = confirm.Handle(ctx, ConfirmBookingCommand{BookingID: "bk-2", CallerID: "owner-1"})
	require.ErrorIs(t, err, domainbooking.ErrDatesConflict)

	// the tenant walks away; the dates open up again
	_, err = cancel.Handle(ctx, CancelBookingCommand{BookingID: "bk-1", CallerID: "tenant-1"})
	require.NoError(t, err)

	view, err := confirm.Handle(ctx, ConfirmBookingCommand{BookingID: "bk-2", CallerID: "owner-1"})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StateConfirmed), view.Status)
}

func TestAutoRejectCompetingHolds(t *testing.T) {
	f := newFixture(t)
	f.seedAd(t, "ad-1", "owner-1", true)
	ctx := context.Background()
	confirm := f.confirmHandler()
	confirm.Hold = policies.HoldPolicy{AutoRejectOverlapping: true}

	f.create(t, "bk-1", "ad-1", "tenant-1", 5, 10)
	f.create(t, "bk-overlap", "ad-1", "tenant-2", 7, 12)
	f.create(t, "bk-clear", "ad-1", "tenant-3", 20, 25)

	_, err := confirm.Handle(ctx, ConfirmBookingCommand{BookingID: "bk-1", CallerID: "owner-1"})
	require.NoError(t, err)

	overlap, err := f.bookings.ByID(ctx, "bk-overlap")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StateRejected, overlap.State)
	assert.Equal(t, "overlaps a confirmed booking", overlap.Reason)

	untouched, err := f.bookings.ByID(ctx, "bk-clear")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatePending, untouched.State)
}

func TestRejectBooking(t *testing.T) {
	f := newFixture(t)
	f.seedAd(t, "ad-1", "owner-1", true)
	ctx := context.Background()
	reject := &RejectBookingHandler{UoWFactory: f.factory, Clock: fixedClock}

	f.create(t, "bk-1", "ad-1", "tenant-1", 5, 8)

	_, err := reject.Handle(ctx, RejectBookingCommand{BookingID: "bk-1", CallerID: "tenant-1"})
	assert.ErrorIs(t, err, domainbooking.ErrForbidden)

	view, err := reject.Handle(ctx, RejectBookingCommand{BookingID: "bk-1", CallerID: "owner-1"})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StateRejected), view.Status)
	assert.Equal(t, "owner declined", view.Reason)

	_, err = reject.Handle(ctx, RejectBookingCommand{BookingID: "bk-1", CallerID: "owner-1"})
	assert.ErrorIs(t, err, domainbooking.ErrInvalidState)
}

func TestCancelBookingRecordsQuote(t *testing.T) {
	f := newFixture(t)
	f.seedAd(t, "ad-1", "owner-1", true)
	ctx := context.Background()
	cancel := &CancelBookingHandler{UoWFactory: f.factory, Policy: domainbooking.DefaultPolicy(), Clock: fixedClock}

	f.create(t, "bk-1", "ad-1", "tenant-1", 2, 5) // 30000 total, 2 days notice

	_, err := cancel.Handle(ctx, CancelBookingCommand{BookingID: "bk-1", CallerID: "owner-1"})
	assert.ErrorIs(t, err, domainbooking.ErrForbidden)

	view, err := cancel.Handle(ctx, CancelBookingCommand{BookingID: "bk-1", CallerID: "tenant-1"})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StateCancelled), view.Status)
	require.NotNil(t, view.LastQuote)
	assert.Equal(t, 30, view.LastQuote.FeePercent)
	assert.Equal(t, int64(9_000), view.LastQuote.FeeAmount.Amount)

	_, err = cancel.Handle(ctx, CancelBookingCommand{BookingID: "bk-1", CallerID: "tenant-1"})
	assert.ErrorIs(t, err, domainbooking.ErrInvalidState)
}

func TestCancelRejectsStartedStay(t *testing.T) {
	f := newFixture(t)
	f.seedAd(t, "ad-1", "owner-1", true)
	ctx := context.Background()

	f.create(t, "bk-1", "ad-1", "tenant-1", 1, 5)

	cancel := &CancelBookingHandler{
		UoWFactory: f.factory,
		Policy:     domainbooking.DefaultPolicy(),
		Clock:      func() time.Time { return testNow.AddDate(0, 0, 2) }, // one day into the stay
	}
	_, err := cancel.Handle(ctx, CancelBookingCommand{BookingID: "bk-1", CallerID: "tenant-1"})
	assert.ErrorIs(t, err, domainbooking.ErrAlreadyStarted)
}

func TestQuoteCancellationIsReadOnly(t *testing.T) {
	f := newFixture(t)
	f.seedAd(t, "ad-1", "owner-1", true)
	ctx := context.Background()
	quote := &QuoteCancellationHandler{UoWFactory: f.factory, Policy: domainbooking.DefaultPolicy(), Clock: fixedClock}

	f.create(t, "bk-1", "ad-1", "tenant-1", 1, 4)

	view, err := quote.Handle(ctx, QuoteCancellationQuery{BookingID: "bk-1", CallerID: "tenant-1"})
	require.NoError(t, err)
	assert.Equal(t, 30, view.FeePercent)
	assert.Equal(t, int64(9_000), view.FeeAmount.Amount)

	// the owner may look too, a stranger may not
	_, err = quote.Handle(ctx, QuoteCancellationQuery{BookingID: "bk-1", CallerID: "owner-1"})
	assert.NoError(t, err)
	_, err = quote.Handle(ctx, QuoteCancellationQuery{BookingID: "bk-1", CallerID: "stranger"})
	assert.ErrorIs(t, err, domainbooking.ErrForbidden)

	// quoting twice changes nothing
	again, err := quote.Handle(ctx, QuoteCancellationQuery{BookingID: "bk-1", CallerID: "tenant-1"})
	require.NoError(t, err)
	assert.Equal(t, view, again)

	stored, err := f.bookings.ByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatePending, stored.State)
	assert.Nil(t, stored.LastQuote)
}

func TestListBookings(t *testing.T) {
	f := newFixture(t)
	f.seedAd(t, "ad-1", "owner-1", true)
	f.seedAd(t, "ad-2", "owner-2", true)
	ctx := context.Background()

	f.create(t, "bk-1", "ad-1", "tenant-1", 5, 8)
	f.create(t, "bk-2", "ad-2", "tenant-1", 9, 12)
	f.create(t, "bk-3", "ad-1", "tenant-2", 20, 22)

	tenantList := &ListTenantBookingsHandler{UoWFactory: f.factory}
	mine, err := tenantList.Handle(ctx, ListTenantBookingsQuery{CallerID: "tenant-1"})
	require.NoError(t, err)
	assert.Len(t, mine.Items, 2)

	adList := &ListAdBookingsHandler{UoWFactory: f.factory}
	forAd, err := adList.Handle(ctx, ListAdBookingsQuery{AdID: "ad-1", CallerID: "owner-1"})
	require.NoError(t, err)
	assert.Len(t, forAd.Items, 2)

	_, err = adList.Handle(ctx, ListAdBookingsQuery{AdID: "ad-1", CallerID: "tenant-1"})
	assert.ErrorIs(t, err, domainbooking.ErrForbidden)

	filtered, err := adList.Handle(ctx, ListAdBookingsQuery{AdID: "ad-1", CallerID: "owner-1", Status: "pending"})
	require.NoError(t, err)
	assert.Len(t, filtered.Items, 2)
}

func TestExpirePendingHolds(t *testing.T) {
	f := newFixture(t)
	f.seedAd(t, "ad-1", "owner-1", true)
	ctx := context.Background()

	f.create(t, "bk-stale", "ad-1", "tenant-1", 5, 8)

	expire := &ExpirePendingHandler{
		UoWFactory: f.factory,
		Clock:      func() time.Time { return testNow.Add(3 * time.Hour) },
	}
	result, err := expire.Handle(ctx, ExpirePendingCommand{TTL: 2 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Expired)

	stale, err := f.bookings.ByID(ctx, "bk-stale")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StateRejected, stale.State)
	assert.Equal(t, "hold expired", stale.Reason)

	// nothing left to expire
	result, err = expire.Handle(ctx, ExpirePendingCommand{TTL: 2 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Expired)
}
