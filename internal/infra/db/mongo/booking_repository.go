package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainad "rently/internal/domain/ad"
	domainavailability "rently/internal/domain/availability"
	domainbooking "rently/internal/domain/booking"
	domainrange "rently/internal/domain/shared/daterange"
	"rently/internal/domain/shared/money"
)

var ErrConcurrentUpdate = errors.New("mongo: concurrent update detected")

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection("agg_booking")}
}

// EnsureIndexes creates the overlap index used by conflict queries.
func (r *BookingRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "ad_id", Value: 1},
				{Key: "state", Value: 1},
				{Key: "range.from", Value: 1},
				{Key: "range.to", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	})
	return err
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domainbooking.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.list(ctx, bson.M{"tenant_id": tenantID}, opts)
}

func (r *BookingRepository) ListByAd(ctx context.Context, adID domainad.AdID) ([]*domainbooking.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "range.from", Value: 1}})
	return r.list(ctx, bson.M{"ad_id": string(adID)}, opts)
}

func (r *BookingRepository) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]*domainbooking.Booking, error) {
	filter := bson.M{
		"state":      string(domainbooking.StatePending),
		"created_at": bson.M{"$lt": cutoff.UnixMilli()},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return r.list(ctx, filter, opts)
}

// HasConflict runs the half-open overlap predicate as a covered query on the
// (ad_id, state, range) index: existing.from < to AND from < existing.to.
func (r *BookingRepository) HasConflict(ctx context.Context, adID domainad.AdID, dr domainrange.DateRange, states []domainbooking.State, excluding domainbooking.BookingID) (bool, error) {
	filter := bson.M{
		"ad_id":      string(adID),
		"state":      bson.M{"$in": stateStrings(states)},
		"range.from": bson.M{"$lt": dr.To.UnixMilli()},
		"range.to":   bson.M{"$gt": dr.From.UnixMilli()},
	}
	if excluding != "" {
		filter["_id"] = bson.M{"$ne": string(excluding)}
	}
	count, err := r.col.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *BookingRepository) Busy(ctx context.Context, adID domainad.AdID, states []domainbooking.State) ([]domainavailability.Interval, error) {
	filter := bson.M{
		"ad_id": string(adID),
		"state": bson.M{"$in": stateStrings(states)},
	}
	opts := options.Find().SetSort(bson.D{{Key: "range.from", Value: 1}})
	items, err := r.list(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	intervals := make([]domainavailability.Interval, 0, len(items))
	for _, b := range items {
		intervals = append(intervals, domainavailability.Interval{
			AdID:      b.AdID,
			BookingID: b.ID,
			Range:     b.Range,
			State:     b.State,
		})
	}
	return intervals, nil
}

func (r *BookingRepository) list(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domainbooking.Booking, error) {
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var items []*domainbooking.Booking
	for cursor.Next(ctx) {
		var doc bookingDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		items = append(items, doc.toAggregate())
	}
	return items, cursor.Err()
}

func stateStrings(states []domainbooking.State) []string {
	out := make([]string, 0, len(states))
	for _, s := range states {
		out = append(out, string(s))
	}
	return out
}

type bookingDocument struct {
	ID        string         `bson:"_id"`
	AdID      string         `bson:"ad_id"`
	TenantID  string         `bson:"tenant_id"`
	Range     rangeDocument  `bson:"range"`
	State     string         `bson:"state"`
	TotalCost moneyDocument  `bson:"total_cost"`
	LastQuote *quoteDocument `bson:"last_quote,omitempty"`
	Reason    string         `bson:"reason,omitempty"`
	CreatedAt int64          `bson:"created_at"`
	UpdatedAt int64          `bson:"updated_at"`
	Version   int64          `bson:"version"`
}

type rangeDocument struct {
	From int64 `bson:"from"`
	To   int64 `bson:"to"`
}

type moneyDocument struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

type quoteDocument struct {
	DaysUntilCheckIn int           `bson:"days_until_checkin"`
	FeePercent       int           `bson:"fee_percent"`
	FeeAmount        moneyDocument `bson:"fee_amount"`
	TotalCost        moneyDocument `bson:"total_cost"`
	Message          string        `bson:"message"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	doc := bookingDocument{
		ID:        string(b.ID),
		AdID:      string(b.AdID),
		TenantID:  b.TenantID,
		Range:     rangeDocument{From: b.Range.From.UnixMilli(), To: b.Range.To.UnixMilli()},
		State:     string(b.State),
		TotalCost: moneyDocument{Amount: b.TotalCost.Amount, Currency: b.TotalCost.Currency},
		Reason:    b.Reason,
		CreatedAt: b.CreatedAt.UnixMilli(),
		UpdatedAt: b.UpdatedAt.UnixMilli(),
		Version:   b.Version,
	}
	if b.LastQuote != nil {
		doc.LastQuote = &quoteDocument{
			DaysUntilCheckIn: b.LastQuote.DaysUntilCheckIn,
			FeePercent:       b.LastQuote.FeePercent,
			FeeAmount:        moneyDocument{Amount: b.LastQuote.FeeAmount.Amount, Currency: b.LastQuote.FeeAmount.Currency},
			TotalCost:        moneyDocument{Amount: b.LastQuote.TotalCost.Amount, Currency: b.LastQuote.TotalCost.Currency},
			Message:          b.LastQuote.Message,
		}
	}
	return doc
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	agg := &domainbooking.Booking{
		ID:        domainbooking.BookingID(d.ID),
		AdID:      domainad.AdID(d.AdID),
		TenantID:  d.TenantID,
		Range:     domainrange.DateRange{From: timestampToTime(d.Range.From), To: timestampToTime(d.Range.To)},
		State:     domainbooking.State(d.State),
		TotalCost: money.Money{Amount: d.TotalCost.Amount, Currency: d.TotalCost.Currency},
		Reason:    d.Reason,
		CreatedAt: timestampToTime(d.CreatedAt),
		UpdatedAt: timestampToTime(d.UpdatedAt),
		Version:   d.Version,
	}
	if d.LastQuote != nil {
		agg.LastQuote = &domainbooking.Quote{
			DaysUntilCheckIn: d.LastQuote.DaysUntilCheckIn,
			FeePercent:       d.LastQuote.FeePercent,
			FeeAmount:        money.Money{Amount: d.LastQuote.FeeAmount.Amount, Currency: d.LastQuote.FeeAmount.Currency},
			TotalCost:        money.Money{Amount: d.LastQuote.TotalCost.Amount, Currency: d.LastQuote.TotalCost.Currency},
			Message:          d.LastQuote.Message,
		}
	}
	return agg
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
var _ domainavailability.Index = (*BookingRepository)(nil)
