package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traderelay/internal/calc"
	"traderelay/internal/tpassign"
	"traderelay/internal/types"
	"traderelay/internal/venue"
)

func testCalc(t *testing.T) *calc.Calculator {
	t.Helper()
	c, err := calc.New(venue.SymbolSpec{
		Symbol: "XAUUSD", Digits: 2, Point: 0.01, PipSize: 0.1,
		VolumeStep: 0.01, VolumeMin: 0.01, VolumeMax: 10,
	})
	require.NoError(t, err)
	return c
}

func noAssign(t *testing.T) *tpassign.Policy {
	t.Helper()
	p, err := tpassign.New(tpassign.ModeNone, nil)
	require.NoError(t, err)
	return p
}

func testTick() venue.Tick {
	return venue.Tick{Symbol: "XAUUSD", Bid: 1979.80, Ask: 1980.00}
}

func TestSelectUnknownStrategy(t *testing.T) {
	_, err := Select(Config{Strategy: "nope"}, noAssign(t))
	require.Error(t, err)
}

func TestSinglePendingAdjustsForSpread(t *testing.T) {
	s, err := Select(Config{Strategy: "single", BaseVolume: 0.02, PendingOffsetPips: 1}, noAssign(t))
	require.NoError(t, err)

	sig := types.Signal{
		Symbol: "XAUUSD", Side: types.SideBuy, Kind: types.OrderPending,
		Price: 1975.00, StopLoss: 1970.00, TakeProfits: []float64{1985},
	}
	plan, err := s.Plan(sig, types.PendingLimit, testTick(), testCalc(t))
	require.NoError(t, err)
	require.Len(t, plan.Orders, 1)

	o := plan.Orders[0]
	assert.Equal(t, types.OrderPending, o.Kind)
	assert.Equal(t, types.PendingLimit, o.PendingKind)
	// Spread 0.20 plus 1 pip offset.
	assert.Equal(t, 1975.30, o.Price)
	assert.Equal(t, 0.02, o.Volume)
	// ModeNone leaves the venue-side take-profit empty; the whole ladder
	// goes to supervised staged closing.
	assert.Zero(t, o.TakeProfit)
	assert.Equal(t, []float64{1985}, plan.Ladder)
}

func TestSingleMarketKeepsKind(t *testing.T) {
	s, err := Select(Config{Strategy: "single", BaseVolume: 0.02}, noAssign(t))
	require.NoError(t, err)

	sig := types.Signal{Symbol: "XAUUSD", Side: types.SideSell, Kind: types.OrderMarket, StopLoss: 1990}
	plan, err := s.Plan(sig, types.PendingNone, testTick(), testCalc(t))
	require.NoError(t, err)
	require.Len(t, plan.Orders, 1)
	assert.Equal(t, types.OrderMarket, plan.Orders[0].Kind)
	assert.Zero(t, plan.Orders[0].Price)
}

func TestSingleRejectsInvertedStops(t *testing.T) {
	s, err := Select(Config{Strategy: "single", BaseVolume: 0.02}, noAssign(t))
	require.NoError(t, err)

	sig := types.Signal{
		Symbol: "XAUUSD", Side: types.SideBuy, Kind: types.OrderPending,
		Price: 1975.00, StopLoss: 1978.00,
	}
	_, err = s.Plan(sig, types.PendingLimit, testTick(), testCalc(t))
	require.Error(t, err)
}

func TestDistributedLimitsLaddersAndSums(t *testing.T) {
	policy, err := tpassign.New(tpassign.ModeFirstTPFirstTrade, nil)
	require.NoError(t, err)
	s, err := Select(Config{Strategy: "distributed_limits", Legs: 3, BaseVolume: 0.10}, policy)
	require.NoError(t, err)

	sig := types.Signal{
		Symbol: "XAUUSD", Side: types.SideBuy, Kind: types.OrderPending,
		RangeLow: 1970, RangeHigh: 1990,
		StopLoss: 1960, TakeProfits: []float64{1995, 2000},
	}
	plan, err := s.Plan(sig, types.PendingLimit, testTick(), testCalc(t))
	require.NoError(t, err)
	require.Len(t, plan.Orders, 3)

	var sum float64
	for _, o := range plan.Orders {
		sum += o.Volume
		assert.Equal(t, types.OrderPending, o.Kind)
	}
	assert.InDelta(t, 0.10, sum, 1e-9)
	// The remainder lands on the first leg.
	assert.Equal(t, 0.04, plan.Orders[0].Volume)

	// Spread-adjusted legs: 1970.20 rests below the ask as a limit, the
	// 1980.20 and 1990.20 legs sit above it and become stops.
	assert.Equal(t, 1970.20, plan.Orders[0].Price)
	assert.Equal(t, types.PendingLimit, plan.Orders[0].PendingKind)
	assert.Equal(t, types.PendingStop, plan.Orders[1].PendingKind)
	assert.Equal(t, types.PendingStop, plan.Orders[2].PendingKind)

	// first_tp_first_trade: leg 1 carries the first target, the others run
	// bare and the unassigned 2000 is dropped.
	assert.Equal(t, 1995.0, plan.Orders[0].TakeProfit)
	assert.Zero(t, plan.Orders[1].TakeProfit)
	assert.Zero(t, plan.Orders[2].TakeProfit)
	assert.Empty(t, plan.Ladder)
}

func TestDistributedLimitsNeedsRange(t *testing.T) {
	s, err := Select(Config{Strategy: "distributed_limits", Legs: 2, BaseVolume: 0.04}, noAssign(t))
	require.NoError(t, err)

	sig := types.Signal{Symbol: "XAUUSD", Side: types.SideBuy, Kind: types.OrderPending, Price: 1975}
	_, err = s.Plan(sig, types.PendingLimit, testTick(), testCalc(t))
	require.Error(t, err)
}

func TestMultiMarketStopSplitsVolume(t *testing.T) {
	policy, err := tpassign.New(tpassign.ModeCustomMapping, []int{0, tpassign.NoTP, 1})
	require.NoError(t, err)
	s, err := Select(Config{Strategy: "multi_market_stop", Legs: 3, BaseVolume: 0.07}, policy)
	require.NoError(t, err)

	sig := types.Signal{
		Symbol: "XAUUSD", Side: types.SideSell, Kind: types.OrderMarket,
		StopLoss: 1990, TakeProfits: []float64{1970, 1960},
	}
	plan, err := s.Plan(sig, types.PendingNone, testTick(), testCalc(t))
	require.NoError(t, err)
	require.Len(t, plan.Orders, 3)

	assert.Equal(t, 0.03, plan.Orders[0].Volume)
	assert.Equal(t, 0.02, plan.Orders[1].Volume)
	assert.Equal(t, 0.02, plan.Orders[2].Volume)
	for _, o := range plan.Orders {
		assert.Equal(t, types.OrderMarket, o.Kind)
		assert.Equal(t, 1990.0, o.StopLoss)
	}
	assert.Equal(t, 1970.0, plan.Orders[0].TakeProfit)
	assert.Zero(t, plan.Orders[1].TakeProfit)
	assert.Equal(t, 1960.0, plan.Orders[2].TakeProfit)
	assert.Empty(t, plan.Ladder)
}

func TestMultiMarketSequentialKeepsLadder(t *testing.T) {
	s, err := Select(Config{Strategy: "multi_market_stop", Legs: 2, BaseVolume: 0.04}, noAssign(t))
	require.NoError(t, err)

	sig := types.Signal{
		Symbol: "XAUUSD", Side: types.SideSell, Kind: types.OrderMarket,
		StopLoss: 1990, TakeProfits: []float64{1970, 1960},
	}
	plan, err := s.Plan(sig, types.PendingNone, testTick(), testCalc(t))
	require.NoError(t, err)
	for _, o := range plan.Orders {
		assert.Zero(t, o.TakeProfit)
	}
	assert.Equal(t, []float64{1970, 1960}, plan.Ladder)
}

func TestPickEntryModes(t *testing.T) {
	cal := testCalc(t)
	sig := types.Signal{RangeLow: 1970, RangeHigh: 1976}
	tk := testTick() // mid 1979.90

	assert.Equal(t, 1973.0, pickEntry(EntryMidpoint, sig, tk, cal))
	assert.Equal(t, 1976.0, pickEntry(EntryClosest, sig, tk, cal))
	assert.Equal(t, 1970.0, pickEntry(EntryFarthest, sig, tk, cal))

	single := types.Signal{Price: 1975}
	assert.Equal(t, 1975.0, pickEntry(EntryMidpoint, single, tk, cal))
}
