package strategy

import (
	"standx-maker-bot/internal/venue"

	"github.com/shopspring/decimal"
)

// Assess applies the band test to a resting quote. The three outcomes are
// exhaustive: keep inside [MinBps, MaxBps], cancel below or above it.
func Assess(q Quote, mark decimal.Decimal, band Band) Evaluation {
	bps := DistanceBps(q.Price, mark, q.Side)
	eval := Evaluation{
		Side:        q.Side,
		DistanceBps: bps,
		Existing:    &q,
		Price:       q.Price,
		Quantity:    q.Quantity,
	}
	switch {
	case bps.LessThan(band.MinBps):
		eval.Action = ActionCancel
		eval.Reason = ReasonTooClose
	case bps.GreaterThan(band.MaxBps):
		eval.Action = ActionCancel
		eval.Reason = ReasonTooFar
	default:
		eval.Action = ActionKeep
		eval.Reason = ReasonInBand
	}
	return eval
}

// Plan prices and sizes a new quote for a side that has none.
func Plan(side venue.Side, mark, capital decimal.Decimal, p Params) Evaluation {
	price := QuotePrice(mark, p.Band.TargetBps, side, p.Tick)
	eval := Evaluation{
		Side:        side,
		Price:       price,
		DistanceBps: DistanceBps(price, mark, side),
	}
	if price.Sign() <= 0 {
		eval.Action = ActionSkip
		eval.Reason = ReasonInvalidPrice
		return eval
	}
	qty, ok := Quantity(capital, p.AllocationPct, mark, p.Leverage, p.Increment)
	eval.Quantity = qty
	if !ok {
		eval.Action = ActionSkip
		eval.Reason = ReasonInsufficientSize
		return eval
	}
	eval.Action = ActionPlace
	eval.Reason = ReasonNoQuote
	return eval
}

// SplitSide picks the order that represents side among the live orders and
// returns any other live orders on that side as duplicates. The order
// already tracked under trackedID wins; otherwise the earliest listed does.
func SplitSide(orders []venue.Order, side venue.Side, trackedID string) (*venue.Order, []venue.Order) {
	var primary *venue.Order
	var extras []venue.Order
	for i := range orders {
		if orders[i].Side != side || !orders[i].Status.Live() {
			continue
		}
		if trackedID != "" && orders[i].ID == trackedID {
			if primary != nil {
				extras = append(extras, *primary)
			}
			order := orders[i]
			primary = &order
			continue
		}
		if primary == nil {
			order := orders[i]
			primary = &order
			continue
		}
		extras = append(extras, orders[i])
	}
	return primary, extras
}
