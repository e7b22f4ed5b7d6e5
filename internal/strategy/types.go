package strategy

import (
	"time"

	"standx-maker-bot/internal/venue"

	"github.com/shopspring/decimal"
)

type SideState string

type Event string

const (
	StateAbsent  SideState = "ABSENT"
	StateResting SideState = "RESTING"
	StateDrifted SideState = "DRIFTED"
)

const (
	EventPlaced    Event = "PLACED"
	EventInBand    Event = "IN_BAND"
	EventOutOfBand Event = "OUT_OF_BAND"
	EventCancelled Event = "CANCELLED"
	EventGone      Event = "GONE"
)

type ActionKind string

const (
	ActionKeep   ActionKind = "keep"
	ActionCancel ActionKind = "cancel"
	ActionPlace  ActionKind = "place"
	ActionSkip   ActionKind = "skip"
)

const (
	ReasonInBand           = "within band"
	ReasonTooClose         = "too close"
	ReasonTooFar           = "too far"
	ReasonDuplicate        = "duplicate"
	ReasonNoQuote          = "no quote"
	ReasonInsufficientSize = "insufficient size"
	ReasonInvalidPrice     = "invalid price"
)

// Quote is the single resting order tracked for one side.
type Quote struct {
	OrderID  string
	Side     venue.Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
	OpenedAt time.Time
}

func (q Quote) Notional() decimal.Decimal {
	return q.Price.Mul(q.Quantity)
}

// Band is the [MinBps, MaxBps] interval a resting quote may drift within.
type Band struct {
	TargetBps decimal.Decimal
	MinBps    decimal.Decimal
	MaxBps    decimal.Decimal
}

func (b Band) Contains(bps decimal.Decimal) bool {
	return bps.GreaterThanOrEqual(b.MinBps) && bps.LessThanOrEqual(b.MaxBps)
}

// Params fixes everything a cycle needs to price and size one side.
type Params struct {
	Band          Band
	Tick          decimal.Decimal
	Increment     decimal.Decimal
	AllocationPct decimal.Decimal
	Leverage      int
}

type Evaluation struct {
	Side        venue.Side
	Action      ActionKind
	Reason      string
	DistanceBps decimal.Decimal
	Existing    *Quote
	Price       decimal.Decimal
	Quantity    decimal.Decimal
}
