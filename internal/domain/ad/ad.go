package ad

import (
	"context"
	"errors"
	"strings"
	"time"

	"rently/internal/domain/shared/money"
)

var (
	ErrNotFound      = errors.New("ad: not found")
	ErrTitleRequired = errors.New("ad: title is required")
	ErrOwnerRequired = errors.New("ad: owner is required")
	ErrInvalidPrice  = errors.New("ad: price per day must be positive")
)

type AdID string

// Ad is the listing the booking engine books against. Listing CRUD lives
// outside this service; the engine only reads id, owner, price and the
// active flag.
type Ad struct {
	ID          AdID
	OwnerID     string
	Title       string
	Location    string
	PricePerDay money.Money
	Rooms       int
	HousingType string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Repository interface {
	ByID(ctx context.Context, id AdID) (*Ad, error)
	Save(ctx context.Context, a *Ad) error
}

type CreateParams struct {
	ID          AdID
	OwnerID     string
	Title       string
	Location    string
	PricePerDay money.Money
	Rooms       int
	HousingType string
	IsActive    bool
	Now         time.Time
}

func New(params CreateParams) (*Ad, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("ad: id required")
	}
	if strings.TrimSpace(params.OwnerID) == "" {
		return nil, ErrOwnerRequired
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, ErrTitleRequired
	}
	if params.PricePerDay.Amount <= 0 {
		return nil, ErrInvalidPrice
	}
	now := params.Now.UTC()
	return &Ad{
		ID:          params.ID,
		OwnerID:     params.OwnerID,
		Title:       params.Title,
		Location:    params.Location,
		PricePerDay: params.PricePerDay,
		Rooms:       params.Rooms,
		HousingType: params.HousingType,
		IsActive:    params.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
