package middleware_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rently/internal/app/commands"
	"rently/internal/app/middleware"
)

var errItemInactive = errors.New("item is inactive")

type placeOrderCommand struct {
	Key_ string
}

func (c placeOrderCommand) Key() string            { return "order.place" }
func (c placeOrderCommand) IdempotencyKey() string { return c.Key_ }
func (c placeOrderCommand) ResultPrototype() any   { return &orderResult{} }

type orderResult struct {
	Value string `json:"value"`
}

type mapStore struct {
	recs map[string]middleware.IdempotencyRecord
}

func newMapStore() *mapStore {
	return &mapStore{recs: make(map[string]middleware.IdempotencyRecord)}
}

func (s *mapStore) Get(_ context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	rec, ok := s.recs[key]
	return rec, ok, nil
}

func (s *mapStore) Save(_ context.Context, rec middleware.IdempotencyRecord) error {
	s.recs[rec.Key] = rec
	return nil
}

func TestIdempotencyRetryAfterFailureKeepsSentinel(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()

	calls := 0
	base := commands.NewInMemoryBus()
	commands.RegisterHandler(base, placeOrderCommand{}.Key(),
		commands.HandlerFunc[placeOrderCommand, *orderResult](func(ctx context.Context, cmd placeOrderCommand) (*orderResult, error) {
			calls++
			if calls == 1 {
				return nil, fmt.Errorf("place order: %w", errItemInactive)
			}
			return &orderResult{Value: "placed"}, nil
		}))
	bus := middleware.ChainCommands(base, middleware.Idempotency(store, nil))

	cmd := placeOrderCommand{Key_: "key-1"}

	// the failure surfaces with its sentinel intact and is not cached
	_, err := commands.Dispatch[placeOrderCommand, *orderResult](ctx, bus, cmd)
	require.ErrorIs(t, err, errItemInactive)
	assert.Empty(t, store.recs)

	// a retry with the same key re-executes the command
	res, err := commands.Dispatch[placeOrderCommand, *orderResult](ctx, bus, cmd)
	require.NoError(t, err)
	assert.Equal(t, "placed", res.Value)
	assert.Equal(t, 2, calls)

	// the success is cached: replay returns the stored result without a call
	replay, err := commands.Dispatch[placeOrderCommand, *orderResult](ctx, bus, cmd)
	require.NoError(t, err)
	assert.Equal(t, "placed", replay.Value)
	assert.Equal(t, 2, calls)
}

func TestIdempotencySkipsCommandsWithoutKey(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()

	calls := 0
	base := commands.NewInMemoryBus()
	commands.RegisterHandler(base, placeOrderCommand{}.Key(),
		commands.HandlerFunc[placeOrderCommand, *orderResult](func(ctx context.Context, cmd placeOrderCommand) (*orderResult, error) {
			calls++
			return &orderResult{Value: "placed"}, nil
		}))
	bus := middleware.ChainCommands(base, middleware.Idempotency(store, nil))

	for i := 0; i < 2; i++ {
		_, err := commands.Dispatch[placeOrderCommand, *orderResult](ctx, bus, placeOrderCommand{})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.recs)
}
