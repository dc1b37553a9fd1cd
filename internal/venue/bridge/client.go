// Package bridge implements the venue contract against the execution
// bridge's HTTP API. The bridge fronts the broker terminal; every call here
// is one round trip, guarded by a circuit breaker so a dead terminal fails
// fast instead of stacking timeouts.
package bridge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"traderelay/internal/pkg/circuit"
	"traderelay/internal/types"
	"traderelay/internal/venue"
)

// Config points at the bridge.
type Config struct {
	BaseURL     string        `mapstructure:"base_url"`
	AuthToken   string        `mapstructure:"auth_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxFailures int           `mapstructure:"max_failures"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
}

// Client talks to the bridge.
type Client struct {
	cfg     Config
	client  *http.Client
	breaker *circuit.Breaker
}

// New builds a bridge client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		breaker: circuit.New(cfg.MaxFailures, cfg.Cooldown),
	}
}

var _ venue.Venue = (*Client)(nil)

func (c *Client) Tick(ctx context.Context, symbol string) (venue.Tick, error) {
	body, err := c.get(ctx, "/tick", url.Values{"symbol": {symbol}})
	if err != nil {
		return venue.Tick{}, err
	}
	return venue.Tick{
		Symbol: symbol,
		Bid:    gjson.GetBytes(body, "bid").Float(),
		Ask:    gjson.GetBytes(body, "ask").Float(),
		Time:   time.UnixMilli(gjson.GetBytes(body, "time_ms").Int()),
	}, nil
}

func (c *Client) SymbolSpec(ctx context.Context, symbol string) (venue.SymbolSpec, error) {
	body, err := c.get(ctx, "/symbol", url.Values{"symbol": {symbol}})
	if err != nil {
		return venue.SymbolSpec{}, err
	}
	return venue.SymbolSpec{
		Symbol:     symbol,
		Digits:     int(gjson.GetBytes(body, "digits").Int()),
		Point:      gjson.GetBytes(body, "point").Float(),
		PipSize:    gjson.GetBytes(body, "pip_size").Float(),
		VolumeStep: gjson.GetBytes(body, "volume_step").Float(),
		VolumeMin:  gjson.GetBytes(body, "volume_min").Float(),
		VolumeMax:  gjson.GetBytes(body, "volume_max").Float(),
	}, nil
}

func (c *Client) PlaceOrder(ctx context.Context, spec venue.OrderSpec) (venue.OrderResult, error) {
	body, err := c.post(ctx, "/order", map[string]any{
		"symbol":       spec.Symbol,
		"side":         spec.Side,
		"kind":         spec.Kind,
		"pending_kind": spec.PendingKind,
		"volume":       spec.Volume,
		"price":        spec.Price,
		"stop_loss":    spec.StopLoss,
		"take_profit":  spec.TakeProfit,
		"comment":      spec.Comment,
	})
	if err != nil {
		return venue.OrderResult{}, err
	}
	return orderResult(body), nil
}

func (c *Client) ModifyPosition(ctx context.Context, ticket int64, stop, target float64) error {
	_, err := c.post(ctx, "/position/modify", map[string]any{
		"ticket":      ticket,
		"stop_loss":   stop,
		"take_profit": target,
	})
	return err
}

func (c *Client) ModifyPending(ctx context.Context, ticket int64, entry, stop, target float64) error {
	_, err := c.post(ctx, "/pending/modify", map[string]any{
		"ticket":      ticket,
		"price":       entry,
		"stop_loss":   stop,
		"take_profit": target,
	})
	return err
}

func (c *Client) ClosePosition(ctx context.Context, ticket int64, volume float64) (venue.OrderResult, error) {
	body, err := c.post(ctx, "/position/close", map[string]any{
		"ticket": ticket,
		"volume": volume,
	})
	if err != nil {
		return venue.OrderResult{}, err
	}
	return orderResult(body), nil
}

func (c *Client) CancelPending(ctx context.Context, ticket int64) error {
	_, err := c.post(ctx, "/pending/cancel", map[string]any{"ticket": ticket})
	return err
}

func (c *Client) Position(ctx context.Context, ticket int64) (*venue.Position, error) {
	body, err := c.get(ctx, "/position", url.Values{"ticket": {fmt.Sprint(ticket)}})
	if err != nil {
		return nil, err
	}
	p := parsePosition(gjson.ParseBytes(body))
	return &p, nil
}

func (c *Client) PendingOrder(ctx context.Context, ticket int64) (*venue.PendingOrder, error) {
	body, err := c.get(ctx, "/pending", url.Values{"ticket": {fmt.Sprint(ticket)}})
	if err != nil {
		return nil, err
	}
	return &venue.PendingOrder{
		Ticket:     gjson.GetBytes(body, "ticket").Int(),
		Symbol:     gjson.GetBytes(body, "symbol").String(),
		Side:       types.Side(gjson.GetBytes(body, "side").String()),
		Kind:       types.PendingKind(gjson.GetBytes(body, "kind").String()),
		Volume:     gjson.GetBytes(body, "volume").Float(),
		Price:      gjson.GetBytes(body, "price").Float(),
		StopLoss:   gjson.GetBytes(body, "stop_loss").Float(),
		TakeProfit: gjson.GetBytes(body, "take_profit").Float(),
	}, nil
}

func (c *Client) OpenPositions(ctx context.Context) ([]venue.Position, error) {
	body, err := c.get(ctx, "/positions", nil)
	if err != nil {
		return nil, err
	}
	var out []venue.Position
	gjson.GetBytes(body, "positions").ForEach(func(_, item gjson.Result) bool {
		out = append(out, parsePosition(item))
		return true
	})
	return out, nil
}

func (c *Client) ClosedDeal(ctx context.Context, ticket int64) (*venue.Deal, error) {
	body, err := c.get(ctx, "/deal", url.Values{"ticket": {fmt.Sprint(ticket)}})
	if err != nil {
		return nil, err
	}
	return &venue.Deal{
		Ticket:   gjson.GetBytes(body, "ticket").Int(),
		Symbol:   gjson.GetBytes(body, "symbol").String(),
		Volume:   gjson.GetBytes(body, "volume").Float(),
		Price:    gjson.GetBytes(body, "price").Float(),
		Profit:   gjson.GetBytes(body, "profit").Float(),
		ClosedAt: time.UnixMilli(gjson.GetBytes(body, "closed_at_ms").Int()),
	}, nil
}

func parsePosition(item gjson.Result) venue.Position {
	return venue.Position{
		Ticket:     item.Get("ticket").Int(),
		Symbol:     item.Get("symbol").String(),
		Side:       types.Side(item.Get("side").String()),
		Volume:     item.Get("volume").Float(),
		EntryPrice: item.Get("entry_price").Float(),
		StopLoss:   item.Get("stop_loss").Float(),
		TakeProfit: item.Get("take_profit").Float(),
		Profit:     item.Get("profit").Float(),
	}
}

func orderResult(body []byte) venue.OrderResult {
	return venue.OrderResult{
		Ticket:      gjson.GetBytes(body, "ticket").Int(),
		FilledPrice: gjson.GetBytes(body, "filled_price").Float(),
		Volume:      gjson.GetBytes(body, "volume").Float(),
	}
}
