package strategy

import "github.com/shopspring/decimal"

type Tier struct {
	MaxBps     decimal.Decimal
	Multiplier decimal.Decimal
	Label      string
}

var PointsTiers = []Tier{
	{MaxBps: decimal.NewFromInt(10), Multiplier: decimal.NewFromInt(1), Label: "100%"},
	{MaxBps: decimal.NewFromInt(30), Multiplier: decimal.RequireFromString("0.5"), Label: "50%"},
	{MaxBps: decimal.NewFromInt(100), Multiplier: decimal.RequireFromString("0.1"), Label: "10%"},
}

func tierFor(bps decimal.Decimal) (Tier, bool) {
	if bps.Sign() <= 0 {
		return Tier{}, false
	}
	for _, tier := range PointsTiers {
		if bps.LessThanOrEqual(tier.MaxBps) {
			return tier, true
		}
	}
	return Tier{}, false
}

// PointsMultiplier is the share of full maker points a quote earns at bps
// from the mark. Quotes at or through the mark earn nothing.
func PointsMultiplier(bps decimal.Decimal) decimal.Decimal {
	tier, ok := tierFor(bps)
	if !ok {
		return decimal.Zero
	}
	return tier.Multiplier
}

func TierLabel(bps decimal.Decimal) string {
	tier, ok := tierFor(bps)
	if !ok {
		return "0%"
	}
	return tier.Label
}
