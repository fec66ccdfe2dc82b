package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainad "rently/internal/domain/ad"
	"rently/internal/domain/shared/money"
)

type AdRepository struct {
	col *mongo.Collection
}

func NewAdRepository(db *mongo.Database) *AdRepository {
	return &AdRepository{col: db.Collection("agg_ad")}
}

func (r *AdRepository) ByID(ctx context.Context, id domainad.AdID) (*domainad.Ad, error) {
	var doc adDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainad.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *AdRepository) Save(ctx context.Context, entity *domainad.Ad) error {
	doc := newAdDocument(entity)
	opts := options.Replace().SetUpsert(true)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	return err
}

type adDocument struct {
	ID          string        `bson:"_id"`
	OwnerID     string        `bson:"owner_id"`
	Title       string        `bson:"title"`
	Location    string        `bson:"location"`
	PricePerDay moneyDocument `bson:"price_per_day"`
	Rooms       int           `bson:"rooms"`
	HousingType string        `bson:"housing_type"`
	IsActive    bool          `bson:"is_active"`
	CreatedAt   int64         `bson:"created_at"`
	UpdatedAt   int64         `bson:"updated_at"`
}

func newAdDocument(entity *domainad.Ad) adDocument {
	return adDocument{
		ID:          string(entity.ID),
		OwnerID:     entity.OwnerID,
		Title:       entity.Title,
		Location:    entity.Location,
		PricePerDay: moneyDocument{Amount: entity.PricePerDay.Amount, Currency: entity.PricePerDay.Currency},
		Rooms:       entity.Rooms,
		HousingType: entity.HousingType,
		IsActive:    entity.IsActive,
		CreatedAt:   entity.CreatedAt.UnixMilli(),
		UpdatedAt:   entity.UpdatedAt.UnixMilli(),
	}
}

func (d adDocument) toAggregate() *domainad.Ad {
	return &domainad.Ad{
		ID:          domainad.AdID(d.ID),
		OwnerID:     d.OwnerID,
		Title:       d.Title,
		Location:    d.Location,
		PricePerDay: money.Money{Amount: d.PricePerDay.Amount, Currency: d.PricePerDay.Currency},
		Rooms:       d.Rooms,
		HousingType: d.HousingType,
		IsActive:    d.IsActive,
		CreatedAt:   time.UnixMilli(d.CreatedAt).UTC(),
		UpdatedAt:   time.UnixMilli(d.UpdatedAt).UTC(),
	}
}

var _ domainad.Repository = (*AdRepository)(nil)
