// Package venuetest provides a testify mock of the venue contract for use
// in engine tests.
package venuetest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"traderelay/internal/venue"
)

// Mock implements venue.Venue via testify expectations.
type Mock struct {
	mock.Mock
}

var _ venue.Venue = (*Mock)(nil)

func (m *Mock) Tick(ctx context.Context, symbol string) (venue.Tick, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(venue.Tick), args.Error(1)
}

func (m *Mock) SymbolSpec(ctx context.Context, symbol string) (venue.SymbolSpec, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(venue.SymbolSpec), args.Error(1)
}

func (m *Mock) PlaceOrder(ctx context.Context, spec venue.OrderSpec) (venue.OrderResult, error) {
	args := m.Called(ctx, spec)
	return args.Get(0).(venue.OrderResult), args.Error(1)
}

func (m *Mock) ModifyPosition(ctx context.Context, ticket int64, stop, target float64) error {
	return m.Called(ctx, ticket, stop, target).Error(0)
}

func (m *Mock) ModifyPending(ctx context.Context, ticket int64, entry, stop, target float64) error {
	return m.Called(ctx, ticket, entry, stop, target).Error(0)
}

func (m *Mock) ClosePosition(ctx context.Context, ticket int64, volume float64) (venue.OrderResult, error) {
	args := m.Called(ctx, ticket, volume)
	return args.Get(0).(venue.OrderResult), args.Error(1)
}

func (m *Mock) CancelPending(ctx context.Context, ticket int64) error {
	return m.Called(ctx, ticket).Error(0)
}

func (m *Mock) Position(ctx context.Context, ticket int64) (*venue.Position, error) {
	args := m.Called(ctx, ticket)
	if p, ok := args.Get(0).(*venue.Position); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Mock) PendingOrder(ctx context.Context, ticket int64) (*venue.PendingOrder, error) {
	args := m.Called(ctx, ticket)
	if o, ok := args.Get(0).(*venue.PendingOrder); ok {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Mock) OpenPositions(ctx context.Context) ([]venue.Position, error) {
	args := m.Called(ctx)
	if ps, ok := args.Get(0).([]venue.Position); ok {
		return ps, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Mock) ClosedDeal(ctx context.Context, ticket int64) (*venue.Deal, error) {
	args := m.Called(ctx, ticket)
	if d, ok := args.Get(0).(*venue.Deal); ok {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}
