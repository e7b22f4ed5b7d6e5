package strategy

import (
	"standx-maker-bot/internal/venue"

	"github.com/shopspring/decimal"
)

var (
	bpsScale   = decimal.NewFromInt(10000)
	percent    = decimal.NewFromInt(100)
	decimalOne = decimal.NewFromInt(1)
)

// QuotePrice places a quote targetBps away from mark and snaps it to tick
// away from the mark, so the resulting distance is never below target.
// A buy is always strictly below mark and a sell never below it.
func QuotePrice(mark, targetBps decimal.Decimal, side venue.Side, tick decimal.Decimal) decimal.Decimal {
	factor := bpsScale.Add(targetBps)
	if side == venue.SideBuy {
		factor = bpsScale.Sub(targetBps)
	}
	scaled := mark.Mul(factor)
	if tick.Sign() <= 0 {
		return scaled.Div(bpsScale)
	}
	units, rem := scaled.QuoRem(tick.Mul(bpsScale), 0)
	if side == venue.SideBuy {
		if rem.Sign() < 0 {
			units = units.Sub(decimalOne)
		}
		price := units.Mul(tick)
		if price.GreaterThanOrEqual(mark) {
			price = price.Sub(tick)
		}
		return price
	}
	if rem.Sign() > 0 {
		units = units.Add(decimalOne)
	}
	return units.Mul(tick)
}

// DistanceBps is how far price sits from mark on the passive side. Larger
// always means further away regardless of side.
func DistanceBps(price, mark decimal.Decimal, side venue.Side) decimal.Decimal {
	if mark.Sign() <= 0 {
		return decimal.Zero
	}
	diff := mark.Sub(price)
	if side == venue.SideSell {
		diff = price.Sub(mark)
	}
	return diff.Mul(bpsScale).Div(mark)
}
