package types

import "time"

// TradeStatus is the lifecycle state of a tracked trade.
type TradeStatus string

const (
	StatusPending   TradeStatus = "pending"   // resting order placed, not yet filled
	StatusOpen      TradeStatus = "open"      // position live on the venue
	StatusClosed    TradeStatus = "closed"    // fully exited
	StatusCancelled TradeStatus = "cancelled" // resting order removed before fill
)

// Final reports whether no further transitions are possible.
func (s TradeStatus) Final() bool {
	return s == StatusClosed || s == StatusCancelled
}

// Trade is the registry's record of one venue order or position. All fields
// except Ticket, OriginMessageID, Symbol and Side may change over the trade's
// life; once Status is final the record is immutable.
type Trade struct {
	Ticket          int64       `json:"ticket"`
	OriginMessageID int64       `json:"origin_message_id"`
	Symbol          string      `json:"symbol"`
	Side            Side        `json:"side"`
	Kind            OrderKind   `json:"kind"`
	PendingKind     PendingKind `json:"pending_kind,omitempty"`
	Status          TradeStatus `json:"status"`

	EntryPrice      float64 `json:"entry_price"`
	OpenedVolume    float64 `json:"opened_volume"`    // volume at open, never changes
	RemainingVolume float64 `json:"remaining_volume"` // decreases on partial closes
	StopLoss        float64 `json:"stop_loss,omitempty"`
	TakeProfit      float64 `json:"take_profit,omitempty"` // the venue-side TP, if any

	Targets       []float64 `json:"targets,omitempty"` // supervisor-managed target ladder
	NextTargetIdx int       `json:"next_target_idx"`   // index into Targets, only advances

	AutoStopPending  bool `json:"auto_stop_pending"`  // signal had no stop, apply one after fill
	BreakEvenApplied bool `json:"break_even_applied"` // stop moved to entry, never reverts
	TrailingActive   bool `json:"trailing_active"`

	// AwaitingUntil marks a trade whose partial close was accepted by the
	// venue but whose remaining volume has not yet been confirmed. Zero
	// when not awaiting.
	AwaitingUntil time.Time `json:"awaiting_until,omitempty"`

	OpenedAt time.Time `json:"opened_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ClosePrice float64   `json:"close_price,omitempty"`
	Profit     float64   `json:"profit,omitempty"`
	ClosedAt   time.Time `json:"closed_at,omitempty"`
}

// NextTarget returns the next unhit target and true, or 0 and false when the
// ladder is exhausted or absent.
func (t *Trade) NextTarget() (float64, bool) {
	if t.NextTargetIdx < 0 || t.NextTargetIdx >= len(t.Targets) {
		return 0, false
	}
	return t.Targets[t.NextTargetIdx], true
}

// LastTargetPending reports whether exactly one target remains.
func (t *Trade) LastTargetPending() bool {
	return len(t.Targets) > 0 && t.NextTargetIdx == len(t.Targets)-1
}

// Awaiting reports whether the trade is in the awaiting-completion sub-state
// at the given instant.
func (t *Trade) Awaiting(now time.Time) bool {
	return !t.AwaitingUntil.IsZero() && now.Before(t.AwaitingUntil)
}

// Clone returns a deep copy safe to hand outside the registry lock.
func (t *Trade) Clone() *Trade {
	cp := *t
	if t.Targets != nil {
		cp.Targets = make([]float64, len(t.Targets))
		copy(cp.Targets, t.Targets)
	}
	return &cp
}

// Summary is the compact view of a trade exposed to the admin surface and
// the analyzer context.
type Summary struct {
	Ticket          int64       `json:"ticket"`
	Symbol          string      `json:"symbol"`
	Side            Side        `json:"side"`
	Status          TradeStatus `json:"status"`
	EntryPrice      float64     `json:"entry_price"`
	RemainingVolume float64     `json:"remaining_volume"`
	StopLoss        float64     `json:"stop_loss,omitempty"`
	NextTarget      float64     `json:"next_target,omitempty"`
}

// Summarize builds the compact view.
func (t *Trade) Summarize() Summary {
	next, _ := t.NextTarget()
	return Summary{
		Ticket:          t.Ticket,
		Symbol:          t.Symbol,
		Side:            t.Side,
		Status:          t.Status,
		EntryPrice:      t.EntryPrice,
		RemainingVolume: t.RemainingVolume,
		StopLoss:        t.StopLoss,
		NextTarget:      next,
	}
}
