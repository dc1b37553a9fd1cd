package binance

import (
	"context"
	"strconv"

	"github.com/adshao/go-binance/v2/futures"

	"traderelay/internal/logger"
	"traderelay/internal/types"
	"traderelay/internal/venue"
)

// placeProtection maintains the stop and take-profit as separate
// close-position orders, the way Binance futures expects them.
func (a *Adapter) placeProtection(ctx context.Context, meta *orderMeta, spec venue.SymbolSpec, stop, target float64) error {
	exitSide := orderSide(meta.side.Opposite())
	if stop > 0 {
		res, err := a.client.NewCreateOrderService().
			Symbol(meta.symbol).
			Side(exitSide).
			Type(futures.OrderTypeStopMarket).
			StopPrice(formatPrice(stop, spec)).
			ClosePosition(true).
			Do(ctx)
		if err != nil {
			return mapErr(err)
		}
		a.mu.Lock()
		meta.stopOrderID = res.OrderID
		a.mu.Unlock()
	}
	if target > 0 {
		res, err := a.client.NewCreateOrderService().
			Symbol(meta.symbol).
			Side(exitSide).
			Type(futures.OrderTypeTakeProfitMarket).
			StopPrice(formatPrice(target, spec)).
			ClosePosition(true).
			Do(ctx)
		if err != nil {
			return mapErr(err)
		}
		a.mu.Lock()
		meta.tpOrderID = res.OrderID
		a.mu.Unlock()
	}
	return nil
}

// cancelProtection removes whatever protective orders the ticket still has.
// Already-gone orders are fine; the venue may have triggered them.
func (a *Adapter) cancelProtection(ctx context.Context, meta *orderMeta) {
	a.mu.Lock()
	stopID, tpID := meta.stopOrderID, meta.tpOrderID
	meta.stopOrderID, meta.tpOrderID = 0, 0
	a.mu.Unlock()
	for _, id := range []int64{stopID, tpID} {
		if id == 0 {
			continue
		}
		if _, err := a.client.NewCancelOrderService().Symbol(meta.symbol).OrderID(id).Do(ctx); err != nil {
			if !venue.IsNotFound(mapErr(err)) {
				logger.Warnf("binance: cancel protection order %d: %v", id, err)
			}
		}
	}
}

// ModifyPosition replaces both protective orders with fresh ones.
func (a *Adapter) ModifyPosition(ctx context.Context, ticket int64, stop, target float64) error {
	meta, err := a.meta(ticket)
	if err != nil {
		return err
	}
	spec, err := a.SymbolSpec(ctx, meta.symbol)
	if err != nil {
		return err
	}
	a.cancelProtection(ctx, meta)
	return a.placeProtection(ctx, meta, spec, stop, target)
}

// ModifyPending cancels and re-creates the entry order at the new price.
// The adapter keeps the original ticket pointing at the replacement.
func (a *Adapter) ModifyPending(ctx context.Context, ticket int64, entry, stop, target float64) error {
	meta, err := a.meta(ticket)
	if err != nil {
		return err
	}
	spec, err := a.SymbolSpec(ctx, meta.symbol)
	if err != nil {
		return err
	}
	old, err := a.client.NewGetOrderService().
		Symbol(meta.symbol).
		OrderID(meta.liveOrderID).
		Do(ctx)
	if err != nil {
		return mapErr(err)
	}
	if _, err := a.client.NewCancelOrderService().Symbol(meta.symbol).OrderID(meta.liveOrderID).Do(ctx); err != nil {
		return mapErr(err)
	}

	svc := a.client.NewCreateOrderService().
		Symbol(meta.symbol).
		Side(orderSide(meta.side)).
		Quantity(old.OrigQuantity)
	if old.Type == futures.OrderTypeStopMarket {
		svc = svc.Type(futures.OrderTypeStopMarket).StopPrice(formatPrice(entry, spec))
	} else {
		svc = svc.Type(futures.OrderTypeLimit).
			TimeInForce(futures.TimeInForceTypeGTC).
			Price(formatPrice(entry, spec))
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return mapErr(err)
	}
	a.mu.Lock()
	meta.liveOrderID = res.OrderID
	a.mu.Unlock()

	a.cancelProtection(ctx, meta)
	return a.placeProtection(ctx, meta, spec, stop, target)
}

func (a *Adapter) Position(ctx context.Context, ticket int64) (*venue.Position, error) {
	meta, err := a.meta(ticket)
	if err != nil {
		return nil, err
	}
	risks, err := a.client.NewGetPositionRiskService().Symbol(meta.symbol).Do(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	for _, r := range risks {
		amt, _ := strconv.ParseFloat(r.PositionAmt, 64)
		if amt == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(r.EntryPrice, 64)
		pnl, _ := strconv.ParseFloat(r.UnRealizedProfit, 64)
		side := types.SideBuy
		if amt < 0 {
			side, amt = types.SideSell, -amt
		}
		if side != meta.side {
			continue
		}
		return &venue.Position{
			Ticket:     ticket,
			Symbol:     meta.symbol,
			Side:       side,
			Volume:     amt,
			EntryPrice: entry,
			Profit:     pnl,
		}, nil
	}
	return nil, venue.NewError(venue.CodeNotFound, "no open position for ticket %d", ticket)
}

func (a *Adapter) PendingOrder(ctx context.Context, ticket int64) (*venue.PendingOrder, error) {
	meta, err := a.meta(ticket)
	if err != nil {
		return nil, err
	}
	o, err := a.client.NewGetOrderService().
		Symbol(meta.symbol).
		OrderID(meta.liveOrderID).
		Do(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	switch o.Status {
	case futures.OrderStatusTypeNew, futures.OrderStatusTypePartiallyFilled:
	default:
		return nil, venue.NewError(venue.CodeNotFound, "order %d is %s", ticket, o.Status)
	}
	vol, _ := strconv.ParseFloat(o.OrigQuantity, 64)
	price, _ := strconv.ParseFloat(o.Price, 64)
	if price == 0 {
		price, _ = strconv.ParseFloat(o.StopPrice, 64)
	}
	kind := types.PendingLimit
	if o.Type == futures.OrderTypeStopMarket {
		kind = types.PendingStop
	}
	return &venue.PendingOrder{
		Ticket: ticket,
		Symbol: meta.symbol,
		Side:   meta.side,
		Kind:   kind,
		Volume: vol,
		Price:  price,
	}, nil
}

func (a *Adapter) OpenPositions(ctx context.Context) ([]venue.Position, error) {
	risks, err := a.client.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	var out []venue.Position
	for _, r := range risks {
		amt, _ := strconv.ParseFloat(r.PositionAmt, 64)
		if amt == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(r.EntryPrice, 64)
		pnl, _ := strconv.ParseFloat(r.UnRealizedProfit, 64)
		side := types.SideBuy
		if amt < 0 {
			side, amt = types.SideSell, -amt
		}
		out = append(out, venue.Position{
			Symbol:     r.Symbol,
			Side:       side,
			Volume:     amt,
			EntryPrice: entry,
			Profit:     pnl,
		})
	}
	return out, nil
}

// ClosedDeal sums the realized result of the most recent exit fills for the
// ticket's symbol.
func (a *Adapter) ClosedDeal(ctx context.Context, ticket int64) (*venue.Deal, error) {
	meta, err := a.meta(ticket)
	if err != nil {
		return nil, err
	}
	trades, err := a.client.NewListAccountTradeService().
		Symbol(meta.symbol).
		Limit(20).
		Do(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	if len(trades) == 0 {
		return nil, venue.NewError(venue.CodeNotFound, "no fills for %s", meta.symbol)
	}
	deal := &venue.Deal{Ticket: ticket, Symbol: meta.symbol}
	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		pnl, _ := strconv.ParseFloat(t.RealizedPnl, 64)
		if pnl == 0 {
			break
		}
		vol, _ := strconv.ParseFloat(t.Quantity, 64)
		price, _ := strconv.ParseFloat(t.Price, 64)
		deal.Profit += pnl
		deal.Volume += vol
		deal.Price = price
		deal.ClosedAt = millisToTime(t.Time)
	}
	if deal.Volume == 0 {
		return nil, venue.NewError(venue.CodeNotFound, "no closing fills for %s yet", meta.symbol)
	}
	return deal, nil
}
