package app

import (
	"context"
	"sync"
	"time"

	"standx-maker-bot/internal/metrics"
	"standx-maker-bot/internal/points"
	"standx-maker-bot/internal/state"
	"standx-maker-bot/internal/strategy"
	"standx-maker-bot/internal/timescale"
	"standx-maker-bot/internal/venue"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SideReport is the state of one side at the end of a cycle.
type SideReport struct {
	Side        venue.Side
	State       strategy.SideState
	Resting     bool
	OrderID     string
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	DistanceBps decimal.Decimal
	Tier        string
	OpenedAt    time.Time
	Uptime      time.Duration
}

type ActionReport struct {
	Side     venue.Side
	Action   strategy.ActionKind
	Reason   string
	OrderID  string
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Err      error
}

type GuardReport struct {
	Size      decimal.Decimal
	Flattened bool
	Err       error
}

// CycleResult is everything one quoting cycle observed and did.
type CycleResult struct {
	Time    time.Time
	Symbol  string
	Mark    decimal.Decimal
	Capital decimal.Decimal
	Sides   []SideReport
	Actions []ActionReport
	Guard   *GuardReport
	Err     error
}

func (r CycleResult) side(side venue.Side) (SideReport, bool) {
	for _, s := range r.Sides {
		if s.Side == side {
			return s, true
		}
	}
	return SideReport{}, false
}

// lastAction returns the final action taken on side, if any.
func (r CycleResult) lastAction(side venue.Side) (ActionReport, bool) {
	for i := len(r.Actions) - 1; i >= 0; i-- {
		if r.Actions[i].Side == side {
			return r.Actions[i], true
		}
	}
	return ActionReport{}, false
}

type Reporter interface {
	Report(ctx context.Context, res CycleResult)
}

type logReporter struct {
	log *zap.Logger
}

func (r logReporter) Report(_ context.Context, res CycleResult) {
	if res.Err != nil {
		r.logActions(res.Actions)
		r.log.Warn("quoting cycle failed", zap.String("symbol", res.Symbol), zap.Error(res.Err))
		return
	}
	fields := []zap.Field{
		zap.String("symbol", res.Symbol),
		zap.String("mark", res.Mark.String()),
		zap.String("capital", res.Capital.String()),
	}
	for _, side := range res.Sides {
		if !side.Resting {
			fields = append(fields, zap.String(string(side.Side), "none"))
			continue
		}
		fields = append(fields, zap.Dict(string(side.Side),
			zap.String("price", side.Price.String()),
			zap.String("qty", side.Quantity.String()),
			zap.String("bps", side.DistanceBps.StringFixed(2)),
			zap.String("tier", side.Tier),
			zap.Duration("uptime", side.Uptime),
		))
	}
	r.log.Debug("cycle", fields...)
	r.logActions(res.Actions)
}

func (r logReporter) logActions(actions []ActionReport) {
	for _, act := range actions {
		if act.Action == strategy.ActionKeep {
			continue
		}
		fields := []zap.Field{
			zap.String("side", string(act.Side)),
			zap.String("action", string(act.Action)),
			zap.String("reason", act.Reason),
			zap.String("order_id", act.OrderID),
			zap.String("price", act.Price.String()),
			zap.String("qty", act.Quantity.String()),
		}
		if act.Err != nil {
			r.log.Warn("quote action failed", append(fields, zap.Error(act.Err))...)
			continue
		}
		r.log.Info("quote action", fields...)
	}
}

type metricsReporter struct {
	metrics *metrics.Metrics
}

func (r metricsReporter) Report(_ context.Context, res CycleResult) {
	if res.Err != nil {
		r.metrics.CyclesFailed.Inc()
	}
	if res.Guard != nil && res.Guard.Flattened {
		r.metrics.PositionFlattens.Inc()
	}
	if res.Mark.IsPositive() {
		r.metrics.MarkPrice.Set(res.Mark.InexactFloat64())
	}
	for _, side := range res.Sides {
		gauge := r.metrics.BuyDistanceBps
		if side.Side == venue.SideSell {
			gauge = r.metrics.SellDistanceBps
		}
		if side.Resting {
			gauge.Set(side.DistanceBps.InexactFloat64())
		} else {
			gauge.Set(0)
		}
	}
	for _, act := range res.Actions {
		switch act.Action {
		case strategy.ActionPlace:
			if act.Err != nil {
				r.metrics.OrdersFailed.Inc()
			} else {
				r.metrics.OrdersPlaced.Inc()
			}
		case strategy.ActionCancel:
			if act.Err != nil {
				r.metrics.CancelFailed.Inc()
			} else {
				r.metrics.OrdersCancelled.Inc()
			}
		case strategy.ActionSkip:
			r.metrics.SidesSkipped.Inc()
		}
	}
}

// snapshotReporter persists the tracked quotes so uptime survives a restart.
type snapshotReporter struct {
	store state.Store
	log   *zap.Logger
}

func (r snapshotReporter) Report(ctx context.Context, res CycleResult) {
	if r.store == nil || res.Err != nil {
		return
	}
	snapshot := state.QuoteSnapshot{
		Symbol:      res.Symbol,
		Mark:        res.Mark,
		UpdatedAtMS: res.Time.UnixMilli(),
	}
	for _, side := range res.Sides {
		if !side.Resting {
			continue
		}
		rec := &state.QuoteRecord{
			OrderID:    side.OrderID,
			Price:      side.Price,
			Quantity:   side.Quantity,
			OpenedAtMS: side.OpenedAt.UnixMilli(),
		}
		if side.Side == venue.SideBuy {
			snapshot.Buy = rec
		} else {
			snapshot.Sell = rec
		}
	}
	if err := state.SaveQuoteSnapshot(ctx, r.store, snapshot); err != nil {
		r.log.Warn("quote snapshot save failed", zap.Error(err))
	}
}

type timescaleReporter struct {
	writer *timescale.Writer
}

func (r timescaleReporter) Report(_ context.Context, res CycleResult) {
	if r.writer == nil {
		return
	}
	if res.Guard != nil {
		event := timescale.GuardEvent{Time: res.Time, Symbol: res.Symbol, Size: res.Guard.Size}
		if res.Guard.Err != nil {
			event.Err = res.Guard.Err.Error()
		}
		r.writer.EnqueueGuard(event)
	}
	if res.Err != nil {
		return
	}
	for _, side := range res.Sides {
		row := timescale.QuoteRow{
			Time:        res.Time,
			Symbol:      res.Symbol,
			Side:        string(side.Side),
			State:       string(side.State),
			Mark:        res.Mark,
			Capital:     res.Capital,
			Price:       side.Price,
			Quantity:    side.Quantity,
			DistanceBps: side.DistanceBps,
			Tier:        side.Tier,
			UptimeSec:   side.Uptime.Seconds(),
		}
		if act, ok := res.lastAction(side.Side); ok {
			row.Action = string(act.Action)
			row.Reason = act.Reason
			if !side.Resting && act.Action == strategy.ActionSkip {
				row.Price = act.Price
				row.Quantity = act.Quantity
			}
		}
		r.writer.EnqueueQuote(row)
	}
}

// pointsReporter feeds resting quotes into the points tracker and
// periodically persists the ledger.
type pointsReporter struct {
	tracker   *points.Tracker
	store     state.Store
	key       string
	metrics   *metrics.Metrics
	log       *zap.Logger
	saveEvery time.Duration

	mu       sync.Mutex
	lastSave time.Time
}

func (r *pointsReporter) Report(ctx context.Context, res CycleResult) {
	if r.tracker == nil || res.Err != nil {
		return
	}
	quotes := make([]points.SideQuote, 0, len(res.Sides))
	for _, side := range res.Sides {
		if !side.Resting {
			continue
		}
		quotes = append(quotes, points.SideQuote{
			Side:        side.Side,
			OrderID:     side.OrderID,
			Notional:    side.Price.Mul(side.Quantity),
			DistanceBps: side.DistanceBps,
		})
	}
	r.tracker.Record(res.Time, quotes)
	stats := r.tracker.Stats(res.Time)
	r.metrics.PointsTotal.Set(stats.TotalPoints.InexactFloat64())

	r.mu.Lock()
	due := r.saveEvery > 0 && res.Time.Sub(r.lastSave) >= r.saveEvery
	if due {
		r.lastSave = res.Time
	}
	r.mu.Unlock()
	if !due {
		return
	}
	if err := points.SaveLedger(ctx, r.store, r.key, r.tracker.Ledger()); err != nil {
		r.log.Warn("points ledger save failed", zap.Error(err))
		return
	}
	r.log.Info("points",
		zap.String("total", stats.TotalPoints.StringFixed(4)),
		zap.String("session", stats.SessionPoints.StringFixed(4)),
		zap.String("per_hour", stats.PointsPerHour.StringFixed(4)),
		zap.String("projected_daily", stats.ProjectedDaily.StringFixed(2)),
		zap.String("uptime_pct", stats.UptimePct.StringFixed(1)),
	)
}
