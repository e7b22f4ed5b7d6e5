package alerts

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

func FlattenMessage(symbol string, size decimal.Decimal) string {
	return fmt.Sprintf("stray position on %s (size %s) flattened, quotes cleared", symbol, size.String())
}

func FlattenFailedMessage(symbol string, err error) string {
	return fmt.Sprintf("failed to flatten position on %s: %v", symbol, err)
}

func StartMessage(symbol string, dryRun bool) string {
	if dryRun {
		return fmt.Sprintf("maker started on %s (dry run)", symbol)
	}
	return fmt.Sprintf("maker started on %s", symbol)
}

func ShutdownMessage(symbol string, points decimal.Decimal, uptime time.Duration) string {
	return fmt.Sprintf("maker stopped on %s after %s, session points %s", symbol, uptime.Truncate(time.Second), points.StringFixed(4))
}
