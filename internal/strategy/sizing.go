package strategy

import (
	"fmt"

	"standx-maker-bot/internal/venue"

	"github.com/shopspring/decimal"
)

type SizingPolicy string

const (
	SizingTotalEquity      SizingPolicy = "total_equity"
	SizingAvailableBalance SizingPolicy = "available_balance"
)

func ParseSizingPolicy(raw string) (SizingPolicy, error) {
	switch SizingPolicy(raw) {
	case SizingTotalEquity, SizingAvailableBalance:
		return SizingPolicy(raw), nil
	case "":
		return SizingTotalEquity, nil
	}
	return "", fmt.Errorf("unknown sizing policy %q", raw)
}

// CapitalBase picks the balance figure a cycle sizes against. Equity does
// not move when one side's order is cancelled, so both sides stay equal.
func CapitalBase(policy SizingPolicy, bal venue.Balance) decimal.Decimal {
	if policy == SizingAvailableBalance {
		return bal.Available
	}
	return bal.Equity
}

// PerSideAllocation splits the configured allocation evenly across the
// quoted sides so they never jointly exceed it.
func PerSideAllocation(allocationPct decimal.Decimal, sides int) decimal.Decimal {
	if sides <= 1 {
		return allocationPct
	}
	return allocationPct.Div(decimal.NewFromInt(int64(sides)))
}

// Quantity sizes one order and truncates it to whole increments. ok is
// false when nothing of at least one increment can be placed.
func Quantity(capital, allocationPct, mark decimal.Decimal, leverage int, increment decimal.Decimal) (decimal.Decimal, bool) {
	if capital.Sign() <= 0 || allocationPct.Sign() <= 0 || mark.Sign() <= 0 || leverage <= 0 || increment.Sign() <= 0 {
		return decimal.Zero, false
	}
	notional := capital.Mul(allocationPct).Div(percent).Mul(decimal.NewFromInt(int64(leverage)))
	units, _ := notional.QuoRem(mark.Mul(increment), 0)
	qty := units.Mul(increment)
	if qty.LessThan(increment) {
		return qty, false
	}
	return qty, true
}

// TargetNotional is the notional budget for one side before truncation.
func TargetNotional(capital, allocationPct decimal.Decimal, leverage int) decimal.Decimal {
	return capital.Mul(allocationPct).Div(percent).Mul(decimal.NewFromInt(int64(leverage)))
}
