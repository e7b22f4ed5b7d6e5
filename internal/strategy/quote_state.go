package strategy

import (
	"time"

	"standx-maker-bot/internal/venue"

	"github.com/shopspring/decimal"
)

// QuoteState is the bookkeeping for one (symbol, side) pair. Uptime is
// kept for reporting only and never feeds a control decision.
type QuoteState struct {
	side    venue.Side
	quote   *Quote
	machine *SideMachine
}

func NewQuoteState(side venue.Side) *QuoteState {
	return &QuoteState{side: side, machine: NewSideMachine()}
}

func (s *QuoteState) Side() venue.Side {
	return s.side
}

func (s *QuoteState) State() SideState {
	return s.machine.State
}

func (s *QuoteState) Current() (Quote, bool) {
	if s.quote == nil {
		return Quote{}, false
	}
	return *s.quote, true
}

// Observe reconciles tracking with the order the venue reports for this
// side, or nil when none rests. It reports whether anything changed.
func (s *QuoteState) Observe(order *venue.Order, now time.Time) bool {
	if order == nil {
		if s.quote == nil {
			return false
		}
		s.quote = nil
		s.machine.Apply(EventGone)
		return true
	}
	if s.quote != nil && s.quote.OrderID == order.ID {
		if s.quote.Price.Equal(order.Price) && s.quote.Quantity.Equal(order.Quantity) {
			return false
		}
		s.quote.Price = order.Price
		s.quote.Quantity = order.Quantity
		return true
	}
	s.quote = &Quote{
		OrderID:  order.ID,
		Side:     s.side,
		Price:    order.Price,
		Quantity: order.Quantity,
		OpenedAt: now,
	}
	return true
}

// Placed records an order the engine itself just got accepted.
func (s *QuoteState) Placed(orderID string, price, quantity decimal.Decimal, now time.Time) {
	s.quote = &Quote{
		OrderID:  orderID,
		Side:     s.side,
		Price:    price,
		Quantity: quantity,
		OpenedAt: now,
	}
	s.machine.Apply(EventPlaced)
}

// Assessed feeds a band verdict into the side state machine.
func (s *QuoteState) Assessed(eval Evaluation) SideState {
	switch eval.Action {
	case ActionKeep:
		return s.machine.Apply(EventInBand)
	case ActionCancel:
		return s.machine.Apply(EventOutOfBand)
	}
	return s.machine.State
}

// Clear is called once a cancel or fill of the tracked quote is confirmed.
func (s *QuoteState) Clear() {
	s.quote = nil
	s.machine.Apply(EventCancelled)
}

func (s *QuoteState) Uptime(now time.Time) time.Duration {
	if s.quote == nil || s.quote.OpenedAt.IsZero() {
		return 0
	}
	if now.Before(s.quote.OpenedAt) {
		return 0
	}
	return now.Sub(s.quote.OpenedAt)
}

// Restore seeds tracking from a persisted quote so uptime survives a
// restart. The next Observe confirms or clears it.
func (s *QuoteState) Restore(q Quote) {
	if q.OrderID == "" {
		return
	}
	q.Side = s.side
	s.quote = &q
	s.machine.Apply(EventPlaced)
}
