package app

import (
	"context"
	"fmt"
	"time"

	"standx-maker-bot/internal/alerts"
	"standx-maker-bot/internal/strategy"
	"standx-maker-bot/internal/venue"

	"go.uber.org/zap"
)

// Guard keeps the account flat. A maker quote that fills leaves a
// position behind; the guard closes it before any new quote goes out.
type Guard struct {
	symbol string
	ex     venue.Exchange
	settle time.Duration
	states []*strategy.QuoteState
	alerts alerts.Notifier
	log    *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// Enforce returns a nil report when the position is flat. An error means
// exposure is unknown or still open and the cycle must not quote.
func (g *Guard) Enforce(ctx context.Context) (*GuardReport, error) {
	callCtx := context.WithoutCancel(ctx)
	pos, err := g.ex.Position(callCtx, g.symbol)
	if err != nil {
		return nil, fmt.Errorf("read position: %w", err)
	}
	if pos.Flat() {
		return nil, nil
	}
	report := &GuardReport{Size: pos.Size}
	g.log.Warn("stray position, flattening", zap.String("symbol", g.symbol), zap.String("size", pos.Size.String()))
	if err := g.ex.CancelAllOrders(callCtx, g.symbol); err != nil {
		g.log.Warn("cancel all before flatten failed", zap.String("symbol", g.symbol), zap.Error(err))
	}
	if err := g.ex.ClosePosition(callCtx, g.symbol); err != nil {
		report.Err = err
		g.notify(callCtx, alerts.FlattenFailedMessage(g.symbol, err))
		return report, fmt.Errorf("close position: %w", err)
	}
	report.Flattened = true
	for _, qs := range g.states {
		qs.Clear()
	}
	g.notify(callCtx, alerts.FlattenMessage(g.symbol, pos.Size))
	if err := g.sleep(ctx, g.settle); err != nil {
		return report, err
	}
	return report, nil
}

func (g *Guard) notify(ctx context.Context, message string) {
	if g.alerts == nil {
		return
	}
	g.alerts.Notify(ctx, message)
}
