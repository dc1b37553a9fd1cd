package types

// Side is the direction of a trade instruction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the closing direction for the side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderKind distinguishes immediate execution from resting orders.
type OrderKind string

const (
	OrderMarket  OrderKind = "market"
	OrderPending OrderKind = "pending"
)

// PendingKind is the resting-order subtype resolved by the decision engine
// from the signal price relative to the current market.
type PendingKind string

const (
	PendingNone  PendingKind = ""
	PendingLimit PendingKind = "limit"
	PendingStop  PendingKind = "stop"
)

// Signal is one structured trade instruction derived from a single inbound
// message. It is immutable once produced by the analyzer.
type Signal struct {
	MessageID   int64     `json:"message_id"`
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	Kind        OrderKind `json:"kind"`
	Price       float64   `json:"price,omitempty"`      // entry price for pending orders, 0 for market
	RangeLow    float64   `json:"range_low,omitempty"`  // set when the message gave an entry zone
	RangeHigh   float64   `json:"range_high,omitempty"` // set when the message gave an entry zone
	StopLoss    float64   `json:"stop_loss,omitempty"`  // 0 means no stop supplied
	TakeProfits []float64 `json:"take_profits,omitempty"`
	Sentiment   float64   `json:"sentiment"` // [-1, 1]
}

// HasRange reports whether the signal supplied an entry zone rather than a
// single price.
func (s Signal) HasRange() bool {
	return s.RangeLow > 0 && s.RangeHigh > 0 && s.RangeHigh > s.RangeLow
}

// HasStop reports whether the signal supplied a stop-loss price.
func (s Signal) HasStop() bool { return s.StopLoss > 0 }

// UpdateKind classifies an UpdateRequest.
type UpdateKind string

const (
	UpdateModifyStopTargets UpdateKind = "modify_sltp"
	UpdateMoveStop          UpdateKind = "move_sl"
	UpdateSetBreakEven      UpdateKind = "set_be"
	UpdateCloseFull         UpdateKind = "close_full"
	UpdateClosePartial      UpdateKind = "close_partial"
	UpdateCancelPending     UpdateKind = "cancel_pending"
	UpdateModifyEntry       UpdateKind = "modify_entry"
	UpdateUnknown           UpdateKind = "unknown"
)

// UpdateRequest is an immutable instruction targeting an existing trade.
// Either Ticket or OriginMessageID identifies the target; zero means unset.
type UpdateRequest struct {
	MessageID       int64      `json:"message_id"`
	Ticket          int64      `json:"ticket,omitempty"`
	OriginMessageID int64      `json:"origin_message_id,omitempty"`
	Kind            UpdateKind `json:"kind"`
	StopLoss        float64    `json:"stop_loss,omitempty"`
	TakeProfits     []float64  `json:"take_profits,omitempty"`
	EntryPrice      float64    `json:"entry_price,omitempty"`
	CloseVolume     float64    `json:"close_volume,omitempty"`
	ClosePercent    float64    `json:"close_percent,omitempty"`
}
