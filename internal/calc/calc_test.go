package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traderelay/internal/types"
	"traderelay/internal/venue"
)

func goldSpec() venue.SymbolSpec {
	return venue.SymbolSpec{
		Symbol:     "XAUUSD",
		Digits:     2,
		Point:      0.01,
		PipSize:    0.1,
		VolumeStep: 0.01,
		VolumeMin:  0.01,
		VolumeMax:  10,
	}
}

func newCalc(t *testing.T) *Calculator {
	t.Helper()
	c, err := New(goldSpec())
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadSpec(t *testing.T) {
	spec := goldSpec()
	spec.PipSize = 0
	_, err := New(spec)
	require.Error(t, err)

	spec = goldSpec()
	spec.VolumeStep = 0
	_, err = New(spec)
	require.Error(t, err)
}

func TestRoundPrice(t *testing.T) {
	c := newCalc(t)
	assert.Equal(t, 1975.46, c.RoundPrice(1975.456))
	assert.Equal(t, 1975.45, c.RoundPrice(1975.454))
}

func TestStopFromPips(t *testing.T) {
	c := newCalc(t)

	stop, err := c.StopFromPips(types.SideBuy, 1980.00, 300)
	require.NoError(t, err)
	assert.Equal(t, 1950.00, stop)

	stop, err = c.StopFromPips(types.SideSell, 1980.00, 300)
	require.NoError(t, err)
	assert.Equal(t, 2010.00, stop)

	_, err = c.StopFromPips(types.SideBuy, 1980.00, 0)
	require.Error(t, err)
}

func TestTargetFromPips(t *testing.T) {
	c := newCalc(t)

	tp, err := c.TargetFromPips(types.SideBuy, 1980.00, 50)
	require.NoError(t, err)
	assert.Equal(t, 1985.00, tp)

	tp, err = c.TargetFromPips(types.SideSell, 1980.00, 50)
	require.NoError(t, err)
	assert.Equal(t, 1975.00, tp)
}

func TestValidateStops(t *testing.T) {
	c := newCalc(t)

	require.NoError(t, c.ValidateStops(types.SideBuy, 1980, 1975, []float64{1985, 1990}))
	assert.Error(t, c.ValidateStops(types.SideBuy, 1980, 1981, nil))
	assert.Error(t, c.ValidateStops(types.SideBuy, 1980, 1975, []float64{1979}))
	assert.Error(t, c.ValidateStops(types.SideSell, 1980, 1979, nil))
	assert.Error(t, c.ValidateStops(types.SideSell, 1980, 1985, []float64{1981}))
}

func TestNormalizeVolume(t *testing.T) {
	c := newCalc(t)

	v, err := c.NormalizeVolume(0.025)
	require.NoError(t, err)
	assert.Equal(t, 0.02, v)

	// Below the minimum clamps up.
	v, err = c.NormalizeVolume(0.004)
	require.NoError(t, err)
	assert.Equal(t, 0.01, v)

	// Above the maximum clamps down.
	v, err = c.NormalizeVolume(25)
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)

	_, err = c.NormalizeVolume(0)
	require.Error(t, err)
}

func TestPartialVolumeHalfOfTwoHundredths(t *testing.T) {
	c := newCalc(t)
	v, err := c.PartialVolume(0.02, 50)
	require.NoError(t, err)
	assert.Equal(t, 0.01, v)
}

func TestPartialVolumeFloorsToStep(t *testing.T) {
	c := newCalc(t)
	v, err := c.PartialVolume(0.05, 50)
	require.NoError(t, err)
	assert.Equal(t, 0.02, v)

	_, err = c.PartialVolume(0.02, 0)
	require.Error(t, err)
	_, err = c.PartialVolume(0.02, 101)
	require.Error(t, err)
}

func TestSplitVolumeSumsBack(t *testing.T) {
	c := newCalc(t)

	legs, err := c.SplitVolume(0.10, 3)
	require.NoError(t, err)
	require.Len(t, legs, 3)
	assert.Equal(t, []float64{0.04, 0.03, 0.03}, legs)

	var sum float64
	for _, l := range legs {
		sum += l
	}
	assert.InDelta(t, 0.10, sum, 1e-9)
}

func TestSplitVolumeTooSmall(t *testing.T) {
	c := newCalc(t)
	_, err := c.SplitVolume(0.02, 5)
	require.Error(t, err)
}

func TestEntryLadder(t *testing.T) {
	c := newCalc(t)

	one, err := c.EntryLadder(1970, 1980, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{1975.00}, one)

	three, err := c.EntryLadder(1970, 1980, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{1970.00, 1975.00, 1980.00}, three)

	_, err = c.EntryLadder(1980, 1970, 2)
	require.Error(t, err)
}

func TestAdjustEntryForSpread(t *testing.T) {
	c := newCalc(t)
	tick := venue.Tick{Bid: 1979.80, Ask: 1980.00}

	// Buy triggers at ask, so the entry moves up by the spread plus offset.
	assert.Equal(t, 1975.30, c.AdjustEntryForSpread(types.SideBuy, 1975.00, tick, 1))
	// Sell moves down.
	assert.Equal(t, 1984.70, c.AdjustEntryForSpread(types.SideSell, 1985.00, tick, 1))
}

func TestTightensStop(t *testing.T) {
	c := newCalc(t)

	// Any stop improves on no stop; zero candidates never do.
	assert.True(t, c.TightensStop(types.SideBuy, 1980.00, 0))
	assert.False(t, c.TightensStop(types.SideBuy, 0, 1980.00))

	// Buys tighten upward only.
	assert.True(t, c.TightensStop(types.SideBuy, 1985.00, 1980.00))
	assert.False(t, c.TightensStop(types.SideBuy, 1975.00, 1980.00))
	assert.False(t, c.TightensStop(types.SideBuy, 1980.00, 1980.00))

	// Sells tighten downward only.
	assert.True(t, c.TightensStop(types.SideSell, 1975.00, 1980.00))
	assert.False(t, c.TightensStop(types.SideSell, 1985.00, 1980.00))
}
