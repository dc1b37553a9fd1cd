// Package venue abstracts the execution venue. The engine only ever talks to
// the Venue interface; adapters live in subpackages.
package venue

import (
	"context"
	"time"

	"traderelay/internal/types"
)

// Tick is a single top-of-book quote.
type Tick struct {
	Symbol string
	Bid    float64
	Ask    float64
	Time   time.Time
}

// Spread returns the quoted spread in price units.
func (t Tick) Spread() float64 { return t.Ask - t.Bid }

// SymbolSpec describes the tradable contract for one symbol. Digits and
// PipSize drive all price rounding; VolumeStep and VolumeMin bound every
// volume the engine sends to the venue.
type SymbolSpec struct {
	Symbol     string  `yaml:"symbol" json:"symbol"`
	Digits     int     `yaml:"digits" json:"digits"`
	Point      float64 `yaml:"point" json:"point"`
	PipSize    float64 `yaml:"pip_size" json:"pip_size"`
	VolumeStep float64 `yaml:"volume_step" json:"volume_step"`
	VolumeMin  float64 `yaml:"volume_min" json:"volume_min"`
	VolumeMax  float64 `yaml:"volume_max" json:"volume_max"`
}

// OrderSpec is everything needed to place one order.
type OrderSpec struct {
	Symbol      string
	Side        types.Side
	Kind        types.OrderKind
	PendingKind types.PendingKind
	Volume      float64
	Price       float64 // ignored for market orders
	StopLoss    float64
	TakeProfit  float64
	Comment     string
}

// OrderResult reports the venue's acceptance of an order.
type OrderResult struct {
	Ticket      int64
	FilledPrice float64
	Volume      float64
}

// Position is a live position as the venue sees it.
type Position struct {
	Ticket     int64
	Symbol     string
	Side       types.Side
	Volume     float64
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	Profit     float64
}

// PendingOrder is a resting order as the venue sees it.
type PendingOrder struct {
	Ticket     int64
	Symbol     string
	Side       types.Side
	Kind       types.PendingKind
	Volume     float64
	Price      float64
	StopLoss   float64
	TakeProfit float64
}

// Deal is a finished fill from the venue's history, used to settle closed
// trades.
type Deal struct {
	Ticket     int64
	Symbol     string
	Volume     float64
	Price      float64
	Profit     float64
	ClosedAt   time.Time
}

// Venue is the execution contract. Every call takes a context and returns a
// typed error; transient failures carry Retryable so callers can decide
// whether to retry.
type Venue interface {
	// Tick returns the current top-of-book quote for symbol.
	Tick(ctx context.Context, symbol string) (Tick, error)

	// SymbolSpec returns the contract specification for symbol.
	SymbolSpec(ctx context.Context, symbol string) (SymbolSpec, error)

	// PlaceOrder submits a market or pending order per spec.Kind.
	PlaceOrder(ctx context.Context, spec OrderSpec) (OrderResult, error)

	// ModifyPosition replaces the stop and target on a live position.
	// Zero leaves the respective level unchanged on venues that support
	// it and clears it otherwise; callers pass the full desired state.
	ModifyPosition(ctx context.Context, ticket int64, stop, target float64) error

	// ModifyPending replaces entry, stop and target on a resting order.
	ModifyPending(ctx context.Context, ticket int64, entry, stop, target float64) error

	// ClosePosition closes volume of a live position at market. Volume
	// equal to the position's remaining volume closes it fully.
	ClosePosition(ctx context.Context, ticket int64, volume float64) (OrderResult, error)

	// CancelPending removes a resting order.
	CancelPending(ctx context.Context, ticket int64) error

	// Position returns the live position for ticket, or a not-found
	// error when the venue no longer has it.
	Position(ctx context.Context, ticket int64) (*Position, error)

	// PendingOrder returns the resting order for ticket, or a not-found
	// error when the venue no longer has it.
	PendingOrder(ctx context.Context, ticket int64) (*PendingOrder, error)

	// OpenPositions lists all live positions on the account.
	OpenPositions(ctx context.Context) ([]Position, error)

	// ClosedDeal returns the closing deal for a position ticket once the
	// venue has settled it.
	ClosedDeal(ctx context.Context, ticket int64) (*Deal, error)
}
