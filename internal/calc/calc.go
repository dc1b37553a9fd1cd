// Package calc holds the numeric core: pip conversions, price rounding and
// volume normalization. All rounding goes through decimal arithmetic so that
// repeated operations stay on the symbol's grid.
package calc

import (
	"fmt"

	"github.com/shopspring/decimal"

	"traderelay/internal/types"
	"traderelay/internal/venue"
)

// ErrInvalidInput marks calculator inputs that cannot describe a real order.
type ErrInvalidInput struct {
	Field  string
	Reason string
}

func (e *ErrInvalidInput) Error() string {
	return fmt.Sprintf("calc: invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ErrInvalidInput{Field: field, Reason: reason}
}

// Calculator performs all numeric work for one symbol.
type Calculator struct {
	spec venue.SymbolSpec
}

// New returns a calculator bound to the symbol's contract specification.
func New(spec venue.SymbolSpec) (*Calculator, error) {
	if spec.PipSize <= 0 {
		return nil, invalid("pip_size", "must be positive")
	}
	if spec.VolumeStep <= 0 {
		return nil, invalid("volume_step", "must be positive")
	}
	if spec.Digits < 0 {
		return nil, invalid("digits", "must not be negative")
	}
	return &Calculator{spec: spec}, nil
}

// Spec returns the bound contract specification.
func (c *Calculator) Spec() venue.SymbolSpec { return c.spec }

// RoundPrice snaps a price to the symbol's digit grid.
func (c *Calculator) RoundPrice(price float64) float64 {
	f, _ := decimal.NewFromFloat(price).Round(int32(c.spec.Digits)).Float64()
	return f
}

// PipsToPrice converts a pip distance to price units.
func (c *Calculator) PipsToPrice(pips float64) float64 {
	f, _ := decimal.NewFromFloat(pips).
		Mul(decimal.NewFromFloat(c.spec.PipSize)).
		Float64()
	return f
}

// PriceToPips converts a price distance to pips.
func (c *Calculator) PriceToPips(dist float64) float64 {
	f, _ := decimal.NewFromFloat(dist).
		Div(decimal.NewFromFloat(c.spec.PipSize)).
		Float64()
	return f
}

// StopFromPips returns the stop price a given pip distance away from entry,
// on the losing side for the given direction.
func (c *Calculator) StopFromPips(side types.Side, entry, pips float64) (float64, error) {
	if entry <= 0 {
		return 0, invalid("entry", "must be positive")
	}
	if pips <= 0 {
		return 0, invalid("pips", "must be positive")
	}
	dist := c.PipsToPrice(pips)
	if side == types.SideBuy {
		return c.RoundPrice(entry - dist), nil
	}
	return c.RoundPrice(entry + dist), nil
}

// TargetFromPips returns the target price a given pip distance away from
// entry, on the winning side for the given direction.
func (c *Calculator) TargetFromPips(side types.Side, entry, pips float64) (float64, error) {
	if entry <= 0 {
		return 0, invalid("entry", "must be positive")
	}
	if pips <= 0 {
		return 0, invalid("pips", "must be positive")
	}
	dist := c.PipsToPrice(pips)
	if side == types.SideBuy {
		return c.RoundPrice(entry + dist), nil
	}
	return c.RoundPrice(entry - dist), nil
}

// TrailingStopFor returns the stop that keeps the given pip distance behind
// the current price.
func (c *Calculator) TrailingStopFor(side types.Side, current, pips float64) float64 {
	dist := c.PipsToPrice(pips)
	if side == types.SideBuy {
		return c.RoundPrice(current - dist)
	}
	return c.RoundPrice(current + dist)
}

// TightensStop reports whether next improves on cur in the profit direction
// for the side. A zero cur means no stop yet, which any stop improves. Half
// a point of slack absorbs float noise around the grid.
func (c *Calculator) TightensStop(side types.Side, next, cur float64) bool {
	if next <= 0 {
		return false
	}
	if cur <= 0 {
		return true
	}
	eps := c.spec.Point / 2
	if eps <= 0 {
		eps = 1e-9
	}
	if side == types.SideBuy {
		return next > cur+eps
	}
	return next < cur-eps
}

// ValidateStops rejects stop and target placement on the wrong side of entry.
func (c *Calculator) ValidateStops(side types.Side, entry, stop float64, targets []float64) error {
	if stop > 0 {
		if side == types.SideBuy && stop >= entry {
			return invalid("stop_loss", "must be below entry for buy")
		}
		if side == types.SideSell && stop <= entry {
			return invalid("stop_loss", "must be above entry for sell")
		}
	}
	for i, tp := range targets {
		if tp <= 0 {
			return invalid("take_profit", fmt.Sprintf("target %d must be positive", i+1))
		}
		if side == types.SideBuy && tp <= entry {
			return invalid("take_profit", fmt.Sprintf("target %d must be above entry for buy", i+1))
		}
		if side == types.SideSell && tp >= entry {
			return invalid("take_profit", fmt.Sprintf("target %d must be below entry for sell", i+1))
		}
	}
	return nil
}

// NormalizeVolume floors a volume onto the symbol's step grid and clamps it
// into [VolumeMin, VolumeMax].
func (c *Calculator) NormalizeVolume(vol float64) (float64, error) {
	if vol <= 0 {
		return 0, invalid("volume", "must be positive")
	}
	step := decimal.NewFromFloat(c.spec.VolumeStep)
	d := decimal.NewFromFloat(vol).Div(step).Floor().Mul(step)
	min := decimal.NewFromFloat(c.spec.VolumeMin)
	if d.LessThan(min) {
		d = min
	}
	if c.spec.VolumeMax > 0 {
		max := decimal.NewFromFloat(c.spec.VolumeMax)
		if d.GreaterThan(max) {
			d = max
		}
	}
	f, _ := d.Float64()
	return f, nil
}

// PartialVolume returns the close volume for a percentage of the original
// volume, floored to the step grid. The caller is responsible for clamping
// to the remaining volume.
func (c *Calculator) PartialVolume(original, percent float64) (float64, error) {
	if percent <= 0 || percent > 100 {
		return 0, invalid("percent", "must be in (0, 100]")
	}
	raw, _ := decimal.NewFromFloat(original).
		Mul(decimal.NewFromFloat(percent)).
		Div(decimal.NewFromInt(100)).
		Float64()
	return c.NormalizeVolume(raw)
}

// SplitVolume divides total into n legs on the step grid. Every leg gets the
// floored even share and the first leg absorbs the remainder, so the legs
// always sum back to the normalized total.
func (c *Calculator) SplitVolume(total float64, n int) ([]float64, error) {
	if n < 1 {
		return nil, invalid("legs", "must be at least 1")
	}
	norm, err := c.NormalizeVolume(total)
	if err != nil {
		return nil, err
	}
	step := decimal.NewFromFloat(c.spec.VolumeStep)
	totalD := decimal.NewFromFloat(norm)
	base := totalD.Div(decimal.NewFromInt(int64(n))).Div(step).Floor().Mul(step)
	min := decimal.NewFromFloat(c.spec.VolumeMin)
	if base.LessThan(min) {
		return nil, invalid("volume", fmt.Sprintf("total %v too small to split into %d legs", norm, n))
	}
	legs := make([]float64, n)
	rest := totalD
	for i := 1; i < n; i++ {
		legs[i], _ = base.Float64()
		rest = rest.Sub(base)
	}
	legs[0], _ = rest.Float64()
	return legs, nil
}

// EntryLadder spreads n entry prices evenly across [low, high], rounded to
// the symbol grid. A single leg lands on the midpoint.
func (c *Calculator) EntryLadder(low, high float64, n int) ([]float64, error) {
	if low <= 0 || high <= low {
		return nil, invalid("range", "high must exceed low")
	}
	if n < 1 {
		return nil, invalid("legs", "must be at least 1")
	}
	if n == 1 {
		return []float64{c.RoundPrice((low + high) / 2)}, nil
	}
	stepD := decimal.NewFromFloat(high - low).Div(decimal.NewFromInt(int64(n - 1)))
	out := make([]float64, n)
	lowD := decimal.NewFromFloat(low)
	for i := 0; i < n; i++ {
		p, _ := lowD.Add(stepD.Mul(decimal.NewFromInt(int64(i)))).Float64()
		out[i] = c.RoundPrice(p)
	}
	return out, nil
}

// AdjustEntryForSpread compensates a pending entry for the quoted spread plus
// a configured pip offset. Buy orders fill at ask, so the trigger moves up;
// sell orders fill at bid, so it moves down.
func (c *Calculator) AdjustEntryForSpread(side types.Side, entry float64, tick venue.Tick, offsetPips float64) float64 {
	adj := tick.Spread() + c.PipsToPrice(offsetPips)
	if side == types.SideBuy {
		return c.RoundPrice(entry + adj)
	}
	return c.RoundPrice(entry - adj)
}
