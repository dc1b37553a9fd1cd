package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"traderelay/internal/calc"
	"traderelay/internal/dispatch"
	"traderelay/internal/registry"
	"traderelay/internal/types"
	"traderelay/internal/venue"
	"traderelay/internal/venue/venuetest"
)

type fakeCalcs struct{ c *calc.Calculator }

func (f fakeCalcs) Calculator(context.Context, string) (*calc.Calculator, error) {
	return f.c, nil
}

type fakeJournal struct{ recorded []*types.Trade }

func (f *fakeJournal) RecordClosed(_ context.Context, t *types.Trade) error {
	f.recorded = append(f.recorded, t)
	return nil
}

type fakeNotifier struct{ sent []string }

func (f *fakeNotifier) Send(_ context.Context, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

func testCalc(t *testing.T) *calc.Calculator {
	t.Helper()
	c, err := calc.New(venue.SymbolSpec{
		Symbol: "XAUUSD", Digits: 2, Point: 0.01, PipSize: 0.1,
		VolumeStep: 0.01, VolumeMin: 0.01, VolumeMax: 10,
	})
	require.NoError(t, err)
	return c
}

func testConfig() Config {
	return Config{
		Interval:            time.Second,
		MaxConcurrent:       4,
		PartialClosePercent: 50,
		AwaitingGrace:       30 * time.Second,
		AutoStop:            AutoStopConfig{Enabled: true, Pips: 300},
		BreakEven:           BreakEvenConfig{Enabled: true, ActivationPips: 200},
		Trailing:            TrailingConfig{Enabled: true, ActivationPips: 300, DistancePips: 150},
	}
}

func newSupervisor(t *testing.T, cfg Config, vm *venuetest.Mock, reg *registry.Registry) (*Supervisor, *fakeJournal, *fakeNotifier) {
	t.Helper()
	j := &fakeJournal{}
	n := &fakeNotifier{}
	s := New(cfg, vm, reg, fakeCalcs{c: testCalc(t)}, n, j, venue.RetryPolicy{Attempts: 1})
	return s, j, n
}

func openTrade(ticket int64) *types.Trade {
	return &types.Trade{
		Ticket:          ticket,
		OriginMessageID: 100,
		Symbol:          "XAUUSD",
		Side:            types.SideBuy,
		Kind:            types.OrderMarket,
		Status:          types.StatusOpen,
		EntryPrice:      1980.00,
		OpenedVolume:    0.02,
		RemainingVolume: 0.02,
		StopLoss:        1975.00,
		Targets:         []float64{1985.00, 1990.00},
	}
}

func position(t *types.Trade) *venue.Position {
	return &venue.Position{
		Ticket: t.Ticket, Symbol: t.Symbol, Side: t.Side,
		Volume: t.RemainingVolume, EntryPrice: t.EntryPrice, StopLoss: t.StopLoss,
	}
}

func quiet(tick venue.Tick, vm *venuetest.Mock) {
	vm.On("Tick", mock.Anything, "XAUUSD").Return(tick, nil)
}

func TestAutoStopAppliedOnce(t *testing.T) {
	cfg := testConfig()
	cfg.BreakEven.Enabled = false
	cfg.Trailing.Enabled = false

	vm := new(venuetest.Mock)
	reg := registry.New()
	s, _, n := newSupervisor(t, cfg, vm, reg)

	tr := openTrade(1)
	tr.StopLoss = 0
	tr.AutoStopPending = true
	tr.Targets = nil
	reg.Add(tr)

	vm.On("Position", mock.Anything, int64(1)).Return(position(tr), nil)
	quiet(venue.Tick{Symbol: "XAUUSD", Bid: 1980.50, Ask: 1980.70}, vm)
	vm.On("ModifyPosition", mock.Anything, int64(1), 1950.00, 0.0).Return(nil).Once()

	require.NoError(t, s.evaluate(context.Background(), 1))
	got, err := reg.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 1950.00, got.StopLoss)
	assert.False(t, got.AutoStopPending)
	assert.NotEmpty(t, n.sent)

	// Second pass does not touch the venue again.
	require.NoError(t, s.evaluate(context.Background(), 1))
	vm.AssertExpectations(t)
}

func TestAutoStopWaitsOutGraceWindow(t *testing.T) {
	cfg := testConfig()
	cfg.BreakEven.Enabled = false
	cfg.Trailing.Enabled = false

	vm := new(venuetest.Mock)
	reg := registry.New()
	s, _, _ := newSupervisor(t, cfg, vm, reg)

	tr := openTrade(1)
	tr.StopLoss = 0
	tr.AutoStopPending = true
	tr.Targets = nil
	tr.OpenedAt = time.Now() // inside the grace window
	reg.Add(tr)

	vm.On("Position", mock.Anything, int64(1)).Return(position(tr), nil)
	quiet(venue.Tick{Symbol: "XAUUSD", Bid: 1980.50, Ask: 1980.70}, vm)

	require.NoError(t, s.evaluate(context.Background(), 1))
	got, _ := reg.Get(1)
	assert.True(t, got.AutoStopPending)
	assert.Zero(t, got.StopLoss)
	vm.AssertNotCalled(t, "ModifyPosition", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAutoStopRetriesNextCycleAfterVenueError(t *testing.T) {
	cfg := testConfig()
	cfg.BreakEven.Enabled = false
	cfg.Trailing.Enabled = false

	vm := new(venuetest.Mock)
	reg := registry.New()
	s, _, _ := newSupervisor(t, cfg, vm, reg)

	tr := openTrade(1)
	tr.StopLoss = 0
	tr.AutoStopPending = true
	tr.Targets = nil
	reg.Add(tr)

	vm.On("Position", mock.Anything, int64(1)).Return(position(tr), nil)
	quiet(venue.Tick{Symbol: "XAUUSD", Bid: 1980.50, Ask: 1980.70}, vm)
	vm.On("ModifyPosition", mock.Anything, int64(1), 1950.00, 0.0).
		Return(venue.NewError(venue.CodeRejected, "busy")).Once()
	vm.On("ModifyPosition", mock.Anything, int64(1), 1950.00, 0.0).Return(nil).Once()

	require.Error(t, s.evaluate(context.Background(), 1))
	got, _ := reg.Get(1)
	assert.True(t, got.AutoStopPending)

	require.NoError(t, s.evaluate(context.Background(), 1))
	got, _ = reg.Get(1)
	assert.False(t, got.AutoStopPending)
	vm.AssertExpectations(t)
}

func TestBreakEvenIdempotent(t *testing.T) {
	cfg := testConfig()
	cfg.Trailing.Enabled = false

	vm := new(venuetest.Mock)
	reg := registry.New()
	s, _, _ := newSupervisor(t, cfg, vm, reg)

	tr := openTrade(1)
	tr.Targets = nil // ladder exercised separately
	reg.Add(tr)

	vm.On("Position", mock.Anything, int64(1)).Return(position(tr), nil)
	// 205 pips in profit, past the 200 pip activation. The stop lands at
	// entry plus the 0.20 spread so the close at bid cannot lose.
	quiet(venue.Tick{Symbol: "XAUUSD", Bid: 2000.50, Ask: 2000.70}, vm)
	vm.On("ModifyPosition", mock.Anything, int64(1), 1980.20, 0.0).Return(nil).Once()

	require.NoError(t, s.evaluate(context.Background(), 1))
	got, _ := reg.Get(1)
	assert.Equal(t, 1980.20, got.StopLoss)
	assert.True(t, got.BreakEvenApplied)

	require.NoError(t, s.evaluate(context.Background(), 1))
	vm.AssertExpectations(t)
}

func TestBreakEvenNeverLoosensStop(t *testing.T) {
	cfg := testConfig()
	cfg.Trailing.Enabled = false

	vm := new(venuetest.Mock)
	reg := registry.New()
	s, _, _ := newSupervisor(t, cfg, vm, reg)

	tr := openTrade(1)
	tr.StopLoss = 1990.00 // already past break even
	tr.Targets = nil
	reg.Add(tr)

	vm.On("Position", mock.Anything, int64(1)).Return(position(tr), nil)
	quiet(venue.Tick{Symbol: "XAUUSD", Bid: 2000.50, Ask: 2000.70}, vm)

	require.NoError(t, s.evaluate(context.Background(), 1))
	got, _ := reg.Get(1)
	assert.Equal(t, 1990.00, got.StopLoss)
	assert.True(t, got.BreakEvenApplied)
	vm.AssertNotCalled(t, "ModifyPosition", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTrailingOnlyTightens(t *testing.T) {
	cfg := testConfig()
	cfg.BreakEven.Enabled = false

	vm := new(venuetest.Mock)
	reg := registry.New()
	s, _, _ := newSupervisor(t, cfg, vm, reg)

	tr := openTrade(1)
	tr.Targets = nil
	reg.Add(tr)

	vm.On("Position", mock.Anything, int64(1)).Return(position(tr), nil)

	// 310 pips up: trailing activates, stop ratchets to bid - 15.00.
	tick1 := venue.Tick{Symbol: "XAUUSD", Bid: 2011.00, Ask: 2011.20}
	vm.On("Tick", mock.Anything, "XAUUSD").Return(tick1, nil).Once()
	vm.On("ModifyPosition", mock.Anything, int64(1), 1996.00, 0.0).Return(nil).Once()
	require.NoError(t, s.evaluate(context.Background(), 1))
	got, _ := reg.Get(1)
	assert.Equal(t, 1996.00, got.StopLoss)
	assert.True(t, got.TrailingActive)

	// Pullback: the candidate stop is worse, so nothing moves.
	tick2 := venue.Tick{Symbol: "XAUUSD", Bid: 2005.00, Ask: 2005.20}
	vm.On("Tick", mock.Anything, "XAUUSD").Return(tick2, nil).Once()
	require.NoError(t, s.evaluate(context.Background(), 1))
	got, _ = reg.Get(1)
	assert.Equal(t, 1996.00, got.StopLoss)

	// New high tightens again.
	tick3 := venue.Tick{Symbol: "XAUUSD", Bid: 2020.00, Ask: 2020.20}
	vm.On("Tick", mock.Anything, "XAUUSD").Return(tick3, nil).Once()
	vm.On("ModifyPosition", mock.Anything, int64(1), 2005.00, 0.0).Return(nil).Once()
	require.NoError(t, s.evaluate(context.Background(), 1))
	got, _ = reg.Get(1)
	assert.Equal(t, 2005.00, got.StopLoss)

	vm.AssertExpectations(t)
}

func TestTargetHitClosesHalfOfOpenedVolume(t *testing.T) {
	cfg := testConfig()
	cfg.AutoStop.Enabled = false
	cfg.BreakEven.Enabled = false
	cfg.Trailing.Enabled = false

	vm := new(venuetest.Mock)
	reg := registry.New()
	s, _, n := newSupervisor(t, cfg, vm, reg)

	tr := openTrade(1)
	reg.Add(tr)

	vm.On("Position", mock.Anything, int64(1)).Return(position(tr), nil)
	quiet(venue.Tick{Symbol: "XAUUSD", Bid: 1985.10, Ask: 1985.30}, vm)
	vm.On("ClosePosition", mock.Anything, int64(1), 0.01).
		Return(venue.OrderResult{Ticket: 50, FilledPrice: 1985.10, Volume: 0.01}, nil).Once()

	require.NoError(t, s.evaluate(context.Background(), 1))

	got, err := reg.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.NextTargetIdx)
	assert.InDelta(t, 0.01, got.RemainingVolume, 1e-9)
	assert.Equal(t, types.StatusOpen, got.Status)
	assert.False(t, got.AwaitingUntil.IsZero())
	assert.NotEmpty(t, n.sent)
	vm.AssertExpectations(t)
}

func TestAwaitingPausesLadder(t *testing.T) {
	cfg := testConfig()
	cfg.AutoStop.Enabled = false
	cfg.BreakEven.Enabled = false
	cfg.Trailing.Enabled = false

	vm := new(venuetest.Mock)
	reg := registry.New()
	s, _, _ := newSupervisor(t, cfg, vm, reg)

	tr := openTrade(1)
	tr.NextTargetIdx = 1
	tr.RemainingVolume = 0.01
	tr.AwaitingUntil = time.Now().Add(time.Minute)
	reg.Add(tr)

	// The venue still reports the pre-close volume; the ladder must wait.
	pos := position(tr)
	pos.Volume = 0.02
	vm.On("Position", mock.Anything, int64(1)).Return(pos, nil)
	quiet(venue.Tick{Symbol: "XAUUSD", Bid: 1990.10, Ask: 1990.30}, vm)

	require.NoError(t, s.evaluate(context.Background(), 1))
	got, _ := reg.Get(1)
	assert.Equal(t, 1, got.NextTargetIdx)
	vm.AssertNotCalled(t, "ClosePosition", mock.Anything, mock.Anything, mock.Anything)
}

func TestFinalTargetClosesRemainingAndJournals(t *testing.T) {
	cfg := testConfig()
	cfg.AutoStop.Enabled = false
	cfg.BreakEven.Enabled = false
	cfg.Trailing.Enabled = false

	vm := new(venuetest.Mock)
	reg := registry.New()
	s, j, _ := newSupervisor(t, cfg, vm, reg)

	tr := openTrade(1)
	tr.NextTargetIdx = 1
	tr.RemainingVolume = 0.01
	reg.Add(tr)

	vm.On("Position", mock.Anything, int64(1)).Return(position(tr), nil)
	quiet(venue.Tick{Symbol: "XAUUSD", Bid: 1990.10, Ask: 1990.30}, vm)
	vm.On("ClosePosition", mock.Anything, int64(1), 0.01).
		Return(venue.OrderResult{Ticket: 51, FilledPrice: 1990.10, Volume: 0.01}, nil).Once()
	vm.On("ClosedDeal", mock.Anything, int64(1)).
		Return(&venue.Deal{Ticket: 1, Symbol: "XAUUSD", Volume: 0.01, Price: 1990.10, Profit: 10.1, ClosedAt: time.Now()}, nil)

	require.NoError(t, s.evaluate(context.Background(), 1))

	_, err := reg.Get(1)
	assert.ErrorIs(t, err, registry.ErrNotFound)
	require.Len(t, j.recorded, 1)
	assert.Equal(t, types.StatusClosed, j.recorded[0].Status)
	assert.Zero(t, j.recorded[0].RemainingVolume)
	vm.AssertExpectations(t)
}

func TestPendingFillPromotesTrade(t *testing.T) {
	vm := new(venuetest.Mock)
	reg := registry.New()
	s, _, _ := newSupervisor(t, testConfig(), vm, reg)

	tr := openTrade(1)
	tr.Status = types.StatusPending
	tr.Kind = types.OrderPending
	tr.PendingKind = types.PendingLimit
	reg.Add(tr)

	vm.On("PendingOrder", mock.Anything, int64(1)).
		Return(nil, venue.NewError(venue.CodeNotFound, "gone")).Once()
	vm.On("Position", mock.Anything, int64(1)).
		Return(&venue.Position{Ticket: 1, Symbol: "XAUUSD", Side: types.SideBuy, Volume: 0.02, EntryPrice: 1974.80}, nil).Once()

	require.NoError(t, s.evaluate(context.Background(), 1))
	got, err := reg.Get(1)
	require.NoError(t, err)
	assert.Equal(t, types.StatusOpen, got.Status)
	assert.Equal(t, 1974.80, got.EntryPrice)
	vm.AssertExpectations(t)
}

func TestPendingGoneMarksCancelled(t *testing.T) {
	vm := new(venuetest.Mock)
	reg := registry.New()
	s, j, _ := newSupervisor(t, testConfig(), vm, reg)

	tr := openTrade(1)
	tr.Status = types.StatusPending
	tr.Kind = types.OrderPending
	reg.Add(tr)

	vm.On("PendingOrder", mock.Anything, int64(1)).
		Return(nil, venue.NewError(venue.CodeNotFound, "gone")).Once()
	vm.On("Position", mock.Anything, int64(1)).
		Return(nil, venue.NewError(venue.CodeNotFound, "no position")).Once()

	require.NoError(t, s.evaluate(context.Background(), 1))
	_, err := reg.Get(1)
	assert.ErrorIs(t, err, registry.ErrNotFound)
	require.Len(t, j.recorded, 1)
	assert.Equal(t, types.StatusCancelled, j.recorded[0].Status)
}

// A close command on a ticket under supervision must wait for the whole
// evaluation, venue calls included, before it can touch the trade.
func TestCloseWaitsForSupervisionOnSameTicket(t *testing.T) {
	cfg := testConfig()
	cfg.BreakEven.Enabled = false
	cfg.Trailing.Enabled = false

	vm := new(venuetest.Mock)
	reg := registry.New()
	s, _, _ := newSupervisor(t, cfg, vm, reg)

	tr := openTrade(1)
	tr.StopLoss = 0
	tr.AutoStopPending = true
	tr.Targets = nil
	reg.Add(tr)

	entered := make(chan struct{})
	release := make(chan struct{})
	vm.On("Position", mock.Anything, int64(1)).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(position(tr), nil).Once()
	quiet(venue.Tick{Symbol: "XAUUSD", Bid: 1980.50, Ask: 1980.70}, vm)
	vm.On("ModifyPosition", mock.Anything, int64(1), 1950.00, 0.0).Return(nil).Once()
	vm.On("ClosePosition", mock.Anything, int64(1), 0.02).
		Return(venue.OrderResult{Ticket: 60, FilledPrice: 1980.50, Volume: 0.02}, nil).Once()
	vm.On("ClosedDeal", mock.Anything, int64(1)).
		Return(&venue.Deal{Ticket: 1, Symbol: "XAUUSD", Volume: 0.02, Price: 1980.50, Profit: 1, ClosedAt: time.Now()}, nil)

	evalDone := make(chan error, 1)
	go func() { evalDone <- s.evaluate(context.Background(), 1) }()
	<-entered

	d := dispatch.New(
		dispatch.Config{AllowClose: true, DefaultClosePercent: 50, AwaitingGrace: 30 * time.Second},
		reg, vm, fakeCalcs{c: testCalc(t)}, venue.RetryPolicy{Attempts: 1}, nil, nil)
	closeDone := make(chan error, 1)
	go func() {
		closeDone <- d.Dispatch(context.Background(), types.UpdateRequest{Ticket: 1, Kind: types.UpdateCloseFull})
	}()

	select {
	case <-closeDone:
		t.Fatal("close applied while supervision still held the trade")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-evalDone)
	require.NoError(t, <-closeDone)

	// The stop move landed first, then the close took the trade to settled.
	_, err := reg.Get(1)
	assert.ErrorIs(t, err, registry.ErrNotFound)
	vm.AssertExpectations(t)
}

func TestExternalCloseSettlesFromDeal(t *testing.T) {
	vm := new(venuetest.Mock)
	reg := registry.New()
	s, j, n := newSupervisor(t, testConfig(), vm, reg)

	tr := openTrade(1)
	reg.Add(tr)

	vm.On("Position", mock.Anything, int64(1)).
		Return(nil, venue.NewError(venue.CodeNotFound, "no position")).Once()
	vm.On("ClosedDeal", mock.Anything, int64(1)).
		Return(&venue.Deal{Ticket: 1, Symbol: "XAUUSD", Volume: 0.02, Price: 1975.00, Profit: -10, ClosedAt: time.Now()}, nil)

	require.NoError(t, s.evaluate(context.Background(), 1))
	_, err := reg.Get(1)
	assert.ErrorIs(t, err, registry.ErrNotFound)
	require.Len(t, j.recorded, 1)
	assert.Equal(t, -10.0, j.recorded[0].Profit)
	assert.NotEmpty(t, n.sent)
}
