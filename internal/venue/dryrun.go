package venue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DryRun reads prices and balances from the wrapped venue and simulates
// every mutating call in memory. The simulated book never fills, so the
// simulated position stays flat.
type DryRun struct {
	inner Exchange
	log   *zap.Logger
	now   func() time.Time

	seq    atomic.Uint64
	mu     sync.Mutex
	orders map[string]dryOrder
}

type dryOrder struct {
	seq   uint64
	order Order
}

func NewDryRun(inner Exchange, log *zap.Logger) *DryRun {
	if log == nil {
		log = zap.NewNop()
	}
	return &DryRun{
		inner:  inner,
		log:    log,
		now:    time.Now,
		orders: make(map[string]dryOrder),
	}
}

func (d *DryRun) MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return d.inner.MarkPrice(ctx, symbol)
}

func (d *DryRun) Balance(ctx context.Context) (Balance, error) {
	return d.inner.Balance(ctx)
}

func (d *DryRun) Position(ctx context.Context, symbol string) (Position, error) {
	return Position{Symbol: symbol}, nil
}

func (d *DryRun) OpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	resting := make([]dryOrder, 0, len(d.orders))
	for _, entry := range d.orders {
		if entry.order.Symbol == symbol {
			resting = append(resting, entry)
		}
	}
	// Placement order, not id order: "dry-10" follows "dry-9".
	sort.Slice(resting, func(i, j int) bool { return resting[i].seq < resting[j].seq })
	out := make([]Order, len(resting))
	for i, entry := range resting {
		out[i] = entry.order
	}
	return out, nil
}

func (d *DryRun) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	seq := d.seq.Add(1)
	id := fmt.Sprintf("dry-%d", seq)
	d.mu.Lock()
	d.orders[id] = dryOrder{seq: seq, order: Order{
		ID:            id,
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Price:         req.Price,
		Quantity:      req.Quantity,
		Status:        StatusOpen,
		CreatedAt:     d.now(),
	}}
	d.mu.Unlock()
	d.log.Info("dry run: order not sent",
		zap.String("order_id", id),
		zap.String("side", string(req.Side)),
		zap.String("price", req.Price.String()),
		zap.String("quantity", req.Quantity.String()),
	)
	return id, nil
}

func (d *DryRun) CancelOrder(ctx context.Context, symbol, orderID string) error {
	d.mu.Lock()
	delete(d.orders, orderID)
	d.mu.Unlock()
	d.log.Info("dry run: cancel not sent", zap.String("symbol", symbol), zap.String("order_id", orderID))
	return nil
}

func (d *DryRun) CancelAllOrders(ctx context.Context, symbol string) error {
	d.mu.Lock()
	for id, entry := range d.orders {
		if entry.order.Symbol == symbol {
			delete(d.orders, id)
		}
	}
	d.mu.Unlock()
	d.log.Info("dry run: cancel all not sent", zap.String("symbol", symbol))
	return nil
}

func (d *DryRun) ClosePosition(ctx context.Context, symbol string) error {
	d.log.Info("dry run: close position not sent", zap.String("symbol", symbol))
	return nil
}

func (d *DryRun) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	d.log.Info("dry run: leverage not changed", zap.String("symbol", symbol), zap.Int("leverage", leverage))
	return nil
}
