// Package binance adapts the venue contract onto Binance USD-M futures.
// Binance has no broker-style tickets, so the adapter keys everything by the
// entry order ID and remembers per-ticket metadata: the symbol, the side,
// and the IDs of the protective stop and take-profit orders it maintains.
package binance

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"

	"traderelay/internal/types"
	"traderelay/internal/venue"
)

// Config holds API credentials.
type Config struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	Testnet   bool   `mapstructure:"testnet"`
}

type orderMeta struct {
	symbol      string
	side        types.Side
	pending     bool
	liveOrderID int64 // current entry order ID; differs from ticket after an entry modify
	stopOrderID int64
	tpOrderID   int64
}

// Adapter implements the venue contract on Binance futures.
type Adapter struct {
	client *futures.Client

	mu    sync.Mutex
	metas map[int64]*orderMeta
	specs map[string]venue.SymbolSpec
}

// New builds an adapter.
func New(cfg Config) *Adapter {
	futures.UseTestnet = cfg.Testnet
	return &Adapter{
		client: binance.NewFuturesClient(cfg.APIKey, cfg.APISecret),
		metas:  make(map[int64]*orderMeta),
		specs:  make(map[string]venue.SymbolSpec),
	}
}

var _ venue.Venue = (*Adapter)(nil)

func (a *Adapter) Tick(ctx context.Context, symbol string) (venue.Tick, error) {
	books, err := a.client.NewListBookTickersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return venue.Tick{}, mapErr(err)
	}
	if len(books) == 0 {
		return venue.Tick{}, venue.NewError(venue.CodeNotFound, "no book for %s", symbol)
	}
	bid, _ := strconv.ParseFloat(books[0].BidPrice, 64)
	ask, _ := strconv.ParseFloat(books[0].AskPrice, 64)
	return venue.Tick{Symbol: symbol, Bid: bid, Ask: ask}, nil
}

func (a *Adapter) SymbolSpec(ctx context.Context, symbol string) (venue.SymbolSpec, error) {
	a.mu.Lock()
	if spec, ok := a.specs[symbol]; ok {
		a.mu.Unlock()
		return spec, nil
	}
	a.mu.Unlock()

	info, err := a.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return venue.SymbolSpec{}, mapErr(err)
	}
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		spec := venue.SymbolSpec{Symbol: symbol, Digits: s.PricePrecision}
		if pf := s.PriceFilter(); pf != nil {
			spec.Point, _ = strconv.ParseFloat(pf.TickSize, 64)
			spec.PipSize = spec.Point * 10
		}
		if lf := s.LotSizeFilter(); lf != nil {
			spec.VolumeStep, _ = strconv.ParseFloat(lf.StepSize, 64)
			spec.VolumeMin, _ = strconv.ParseFloat(lf.MinQuantity, 64)
			spec.VolumeMax, _ = strconv.ParseFloat(lf.MaxQuantity, 64)
		}
		a.mu.Lock()
		a.specs[symbol] = spec
		a.mu.Unlock()
		return spec, nil
	}
	return venue.SymbolSpec{}, venue.NewError(venue.CodeNotFound, "symbol %s not listed", symbol)
}

func (a *Adapter) PlaceOrder(ctx context.Context, spec venue.OrderSpec) (venue.OrderResult, error) {
	sspec, err := a.SymbolSpec(ctx, spec.Symbol)
	if err != nil {
		return venue.OrderResult{}, err
	}
	qty := formatQty(spec.Volume, sspec)

	svc := a.client.NewCreateOrderService().
		Symbol(spec.Symbol).
		Side(orderSide(spec.Side)).
		Quantity(qty)
	switch {
	case spec.Kind == types.OrderMarket:
		svc = svc.Type(futures.OrderTypeMarket)
	case spec.PendingKind == types.PendingStop:
		svc = svc.Type(futures.OrderTypeStopMarket).
			StopPrice(formatPrice(spec.Price, sspec))
	default:
		svc = svc.Type(futures.OrderTypeLimit).
			TimeInForce(futures.TimeInForceTypeGTC).
			Price(formatPrice(spec.Price, sspec))
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return venue.OrderResult{}, mapErr(err)
	}

	meta := &orderMeta{
		symbol:      spec.Symbol,
		side:        spec.Side,
		pending:     spec.Kind == types.OrderPending,
		liveOrderID: res.OrderID,
	}
	a.mu.Lock()
	a.metas[res.OrderID] = meta
	a.mu.Unlock()

	if err := a.placeProtection(ctx, meta, sspec, spec.StopLoss, spec.TakeProfit); err != nil {
		return venue.OrderResult{}, err
	}

	avg, _ := strconv.ParseFloat(res.AvgPrice, 64)
	filled, _ := strconv.ParseFloat(res.ExecutedQuantity, 64)
	if filled <= 0 {
		filled = spec.Volume
	}
	return venue.OrderResult{Ticket: res.OrderID, FilledPrice: avg, Volume: filled}, nil
}

func (a *Adapter) ClosePosition(ctx context.Context, ticket int64, volume float64) (venue.OrderResult, error) {
	meta, err := a.meta(ticket)
	if err != nil {
		return venue.OrderResult{}, err
	}
	sspec, err := a.SymbolSpec(ctx, meta.symbol)
	if err != nil {
		return venue.OrderResult{}, err
	}
	res, err := a.client.NewCreateOrderService().
		Symbol(meta.symbol).
		Side(orderSide(meta.side.Opposite())).
		Type(futures.OrderTypeMarket).
		Quantity(formatQty(volume, sspec)).
		ReduceOnly(true).
		Do(ctx)
	if err != nil {
		return venue.OrderResult{}, mapErr(err)
	}
	avg, _ := strconv.ParseFloat(res.AvgPrice, 64)
	filled, _ := strconv.ParseFloat(res.ExecutedQuantity, 64)
	return venue.OrderResult{Ticket: res.OrderID, FilledPrice: avg, Volume: filled}, nil
}

func (a *Adapter) CancelPending(ctx context.Context, ticket int64) error {
	meta, err := a.meta(ticket)
	if err != nil {
		return err
	}
	_, cerr := a.client.NewCancelOrderService().
		Symbol(meta.symbol).
		OrderID(meta.liveOrderID).
		Do(ctx)
	if cerr != nil {
		return mapErr(cerr)
	}
	a.cancelProtection(ctx, meta)
	return nil
}

func (a *Adapter) meta(ticket int64) (*orderMeta, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	meta, ok := a.metas[ticket]
	if !ok {
		return nil, venue.NewError(venue.CodeNotFound, "unknown ticket %d", ticket)
	}
	return meta, nil
}

func orderSide(s types.Side) futures.SideType {
	if s == types.SideBuy {
		return futures.SideTypeBuy
	}
	return futures.SideTypeSell
}

func formatQty(v float64, spec venue.SymbolSpec) string {
	prec := decimalsOf(spec.VolumeStep)
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func formatPrice(p float64, spec venue.SymbolSpec) string {
	return strconv.FormatFloat(p, 'f', spec.Digits, 64)
}

func millisToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func decimalsOf(step float64) int {
	prec := 0
	for step > 0 && step < 1 && prec < 8 {
		step *= 10
		prec++
	}
	return prec
}

// mapErr folds Binance API errors into the venue taxonomy.
func mapErr(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case -2013, -2011: // unknown order / cancel rejected
			return venue.NewError(venue.CodeNotFound, "%s", apiErr.Message)
		case -1021, -1001, -1008: // timestamp drift, internal error, overloaded
			return venue.NewTransient(venue.CodeUnavailable, "%s", apiErr.Message)
		case -4164, -1013: // notional / lot size
			return venue.NewError(venue.CodeInvalidVolume, "%s", apiErr.Message)
		default:
			return venue.NewError(venue.CodeRejected, "code %d: %s", apiErr.Code, apiErr.Message)
		}
	}
	return venue.NewTransient(venue.CodeUnavailable, "%v", err)
}
