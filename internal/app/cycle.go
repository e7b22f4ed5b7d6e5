package app

import (
	"context"
	"fmt"
	"time"

	"standx-maker-bot/internal/alerts"
	"standx-maker-bot/internal/strategy"
	"standx-maker-bot/internal/venue"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Maker runs the per-cycle quoting decisions for one symbol. It is driven
// by a single goroutine and holds no locks.
type Maker struct {
	symbol string
	sides  []venue.Side
	ex     venue.Exchange
	policy strategy.SizingPolicy
	params strategy.Params
	settle time.Duration
	guard  *Guard
	states map[venue.Side]*strategy.QuoteState
	log    *zap.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

type MakerConfig struct {
	Symbol      string
	Sides       []venue.Side
	Policy      strategy.SizingPolicy
	Params      strategy.Params
	SettleDelay time.Duration
}

// NewMaker splits cfg.Params.AllocationPct across the configured sides.
func NewMaker(ex venue.Exchange, cfg MakerConfig, notifier alerts.Notifier, log *zap.Logger) *Maker {
	if log == nil {
		log = zap.NewNop()
	}
	params := cfg.Params
	params.AllocationPct = strategy.PerSideAllocation(params.AllocationPct, len(cfg.Sides))
	states := make(map[venue.Side]*strategy.QuoteState, len(cfg.Sides))
	ordered := make([]*strategy.QuoteState, 0, len(cfg.Sides))
	for _, side := range cfg.Sides {
		qs := strategy.NewQuoteState(side)
		states[side] = qs
		ordered = append(ordered, qs)
	}
	m := &Maker{
		symbol: cfg.Symbol,
		sides:  cfg.Sides,
		ex:     ex,
		policy: cfg.Policy,
		params: params,
		settle: cfg.SettleDelay,
		states: states,
		log:    log,
		now:    time.Now,
		sleep:  sleepContext,
	}
	m.guard = &Guard{
		symbol: cfg.Symbol,
		ex:     ex,
		settle: cfg.SettleDelay,
		states: ordered,
		alerts: notifier,
		log:    log,
		sleep:  func(ctx context.Context, d time.Duration) error { return m.sleep(ctx, d) },
	}
	return m
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (m *Maker) State(side venue.Side) *strategy.QuoteState {
	return m.states[side]
}

// RunCycle executes one guard, assess, cancel, settle, place pass. Venue
// calls are detached from ctx so an interrupt lands between steps, never
// in the middle of a request; ctx still cuts the settle wait short.
func (m *Maker) RunCycle(ctx context.Context) CycleResult {
	res := CycleResult{Time: m.now(), Symbol: m.symbol}
	callCtx := context.WithoutCancel(ctx)

	guard, err := m.guard.Enforce(ctx)
	res.Guard = guard
	if err != nil {
		res.Err = err
		return res
	}

	mark, err := m.ex.MarkPrice(callCtx, m.symbol)
	if err != nil {
		res.Err = fmt.Errorf("mark price: %w", err)
		return res
	}
	if !mark.IsPositive() {
		res.Err = fmt.Errorf("%w: non-positive mark %s", venue.ErrMarketDataUnavailable, mark)
		return res
	}
	res.Mark = mark
	balance, err := m.ex.Balance(callCtx)
	if err != nil {
		res.Err = fmt.Errorf("balance: %w", err)
		return res
	}
	res.Capital = strategy.CapitalBase(m.policy, balance)
	orders, err := m.ex.OpenOrders(callCtx, m.symbol)
	if err != nil {
		res.Err = fmt.Errorf("open orders: %w", err)
		return res
	}
	live := venue.LiveOrders(orders, m.symbol)

	now := m.now()
	cancelled := false
	blocked := make(map[venue.Side]bool, len(m.sides))
	for _, side := range m.sides {
		qs := m.states[side]
		tracked := ""
		if q, ok := qs.Current(); ok {
			tracked = q.OrderID
		}
		primary, extras := strategy.SplitSide(live, side, tracked)
		for _, dup := range extras {
			act := m.cancel(callCtx, side, dup.ID, strategy.ReasonDuplicate, dup.Price, dup.Quantity)
			res.Actions = append(res.Actions, act)
			if act.Err != nil {
				blocked[side] = true
				continue
			}
			cancelled = true
		}
		qs.Observe(primary, now)
		q, ok := qs.Current()
		if !ok {
			continue
		}
		eval := strategy.Assess(q, mark, m.params.Band)
		qs.Assessed(eval)
		if eval.Action == strategy.ActionKeep {
			res.Actions = append(res.Actions, ActionReport{
				Side:     side,
				Action:   strategy.ActionKeep,
				Reason:   eval.Reason,
				OrderID:  q.OrderID,
				Price:    q.Price,
				Quantity: q.Quantity,
			})
			continue
		}
		act := m.cancel(callCtx, side, q.OrderID, eval.Reason, q.Price, q.Quantity)
		res.Actions = append(res.Actions, act)
		if act.Err != nil {
			blocked[side] = true
			continue
		}
		qs.Clear()
		cancelled = true
	}

	if cancelled {
		if err := m.sleep(ctx, m.settle); err != nil {
			res.Err = err
			res.Sides = m.sideReports(mark, m.now())
			return res
		}
	}

	for _, side := range m.sides {
		qs := m.states[side]
		if _, ok := qs.Current(); ok || blocked[side] {
			continue
		}
		eval := strategy.Plan(side, mark, res.Capital, m.params)
		if eval.Action != strategy.ActionPlace {
			m.log.Info("quote skipped",
				zap.String("side", string(side)),
				zap.String("reason", eval.Reason),
				zap.String("capital", res.Capital.String()),
				zap.String("mark", mark.String()),
			)
			res.Actions = append(res.Actions, ActionReport{
				Side:     side,
				Action:   strategy.ActionSkip,
				Reason:   eval.Reason,
				Price:    eval.Price,
				Quantity: eval.Quantity,
			})
			continue
		}
		act := ActionReport{
			Side:     side,
			Action:   strategy.ActionPlace,
			Reason:   eval.Reason,
			Price:    eval.Price,
			Quantity: eval.Quantity,
		}
		orderID, err := m.ex.PlaceOrder(callCtx, venue.OrderRequest{
			Symbol:      m.symbol,
			Side:        side,
			Price:       eval.Price,
			Quantity:    eval.Quantity,
			Leverage:    m.params.Leverage,
			TimeInForce: venue.TifGTC,
		})
		if err != nil {
			act.Err = err
			res.Actions = append(res.Actions, act)
			continue
		}
		act.OrderID = orderID
		res.Actions = append(res.Actions, act)
		qs.Placed(orderID, eval.Price, eval.Quantity, m.now())
	}

	res.Sides = m.sideReports(mark, m.now())
	return res
}

func (m *Maker) cancel(ctx context.Context, side venue.Side, orderID, reason string, price, qty decimal.Decimal) ActionReport {
	act := ActionReport{
		Side:     side,
		Action:   strategy.ActionCancel,
		Reason:   reason,
		OrderID:  orderID,
		Price:    price,
		Quantity: qty,
	}
	if err := m.ex.CancelOrder(ctx, m.symbol, orderID); err != nil {
		act.Err = err
	}
	return act
}

func (m *Maker) sideReports(mark decimal.Decimal, now time.Time) []SideReport {
	out := make([]SideReport, 0, len(m.sides))
	for _, side := range m.sides {
		qs := m.states[side]
		report := SideReport{Side: side, State: qs.State()}
		if q, ok := qs.Current(); ok {
			bps := strategy.DistanceBps(q.Price, mark, side)
			report.Resting = true
			report.OrderID = q.OrderID
			report.Price = q.Price
			report.Quantity = q.Quantity
			report.DistanceBps = bps
			report.Tier = strategy.TierLabel(bps)
			report.OpenedAt = q.OpenedAt
			report.Uptime = qs.Uptime(now)
		}
		out = append(out, report)
	}
	return out
}

// Restore seeds side tracking from a persisted quote.
func (m *Maker) Restore(side venue.Side, q strategy.Quote) {
	if qs, ok := m.states[side]; ok {
		qs.Restore(q)
	}
}
