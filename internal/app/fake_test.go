package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"standx-maker-bot/internal/strategy"
	"standx-maker-bot/internal/venue"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const testSymbol = "BTC-USD"

func d(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}

// fakeExchange is an in-memory venue that records every call in order.
type fakeExchange struct {
	mu sync.Mutex

	mark         decimal.Decimal
	markErr      error
	balance      venue.Balance
	balanceErr   error
	position     decimal.Decimal
	positionErr  error
	openErr      error
	closeErr     error
	cancelAllErr error
	placeErr     map[venue.Side]error
	cancelErr    map[string]error

	orders   []venue.Order
	seq      int
	placed   []venue.OrderRequest
	leverage int
	calls    []string
}

func newFakeExchange(mark string) *fakeExchange {
	return &fakeExchange{
		mark:      d(mark),
		balance:   venue.Balance{Available: d("1000"), Equity: d("1000")},
		placeErr:  make(map[venue.Side]error),
		cancelErr: make(map[string]error),
	}
}

func (f *fakeExchange) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeExchange) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Writes counts calls that would change venue state.
func (f *fakeExchange) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, call := range f.calls {
		if strings.HasPrefix(call, "place:") || strings.HasPrefix(call, "cancel") || call == "close" {
			n++
		}
	}
	return n
}

func (f *fakeExchange) SetMark(mark string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mark = d(mark)
}

func (f *fakeExchange) Live(side venue.Side) []venue.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []venue.Order
	for _, order := range f.orders {
		if order.Side == side {
			out = append(out, order)
		}
	}
	return out
}

func (f *fakeExchange) AddOrder(side venue.Side, price, qty string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("o%d", f.seq)
	f.orders = append(f.orders, venue.Order{
		ID:       id,
		Symbol:   testSymbol,
		Side:     side,
		Price:    d(price),
		Quantity: d(qty),
		Status:   venue.StatusOpen,
	})
	return id
}

func (f *fakeExchange) MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return decimal.Zero, f.markErr
	}
	return f.mark, nil
}

func (f *fakeExchange) Balance(ctx context.Context) (venue.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, f.balanceErr
}

func (f *fakeExchange) Position(ctx context.Context, symbol string) (venue.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.positionErr != nil {
		return venue.Position{}, f.positionErr
	}
	return venue.Position{Symbol: symbol, Size: f.position}, nil
}

func (f *fakeExchange) OpenOrders(ctx context.Context, symbol string) ([]venue.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	return append([]venue.Order(nil), f.orders...), nil
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, req venue.OrderRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("place:" + string(req.Side))
	if err := f.placeErr[req.Side]; err != nil {
		return "", err
	}
	f.seq++
	id := fmt.Sprintf("o%d", f.seq)
	f.placed = append(f.placed, req)
	f.orders = append(f.orders, venue.Order{
		ID:       id,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Price:    req.Price,
		Quantity: req.Quantity,
		Status:   venue.StatusOpen,
	})
	return id, nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, symbol, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("cancel:" + orderID)
	if err := f.cancelErr[orderID]; err != nil {
		return fmt.Errorf("%w: %w", venue.ErrCancelFailed, err)
	}
	kept := f.orders[:0]
	for _, order := range f.orders {
		if order.ID != orderID {
			kept = append(kept, order)
		}
	}
	f.orders = kept
	return nil
}

func (f *fakeExchange) CancelAllOrders(ctx context.Context, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("cancel_all")
	if f.cancelAllErr != nil {
		return f.cancelAllErr
	}
	f.orders = nil
	return nil
}

func (f *fakeExchange) ClosePosition(ctx context.Context, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("close")
	if f.closeErr != nil {
		return f.closeErr
	}
	f.position = decimal.Zero
	return nil
}

func (f *fakeExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("leverage")
	f.leverage = leverage
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Notify(ctx context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *fakeNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	return val, ok, nil
}

func (m *memoryStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string]string)
	}
	m.data[key] = value
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memoryStore) Close() error {
	return nil
}

var errBoom = errors.New("boom")

func testParams() strategy.Params {
	return strategy.Params{
		Band: strategy.Band{
			TargetBps: d("9"),
			MinBps:    d("8"),
			MaxBps:    d("10"),
		},
		Tick:          d("0.01"),
		Increment:     d("0.0001"),
		AllocationPct: d("100"),
		Leverage:      1,
	}
}

// newTestMaker quotes both sides and logs settle waits into ex's call log.
func newTestMaker(ex *fakeExchange, notifier *fakeNotifier) *Maker {
	if notifier == nil {
		notifier = &fakeNotifier{}
	}
	m := NewMaker(ex, MakerConfig{
		Symbol:      testSymbol,
		Sides:       []venue.Side{venue.SideBuy, venue.SideSell},
		Policy:      strategy.SizingTotalEquity,
		Params:      testParams(),
		SettleDelay: 2 * time.Second,
	}, notifier, zap.NewNop())
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }
	m.sleep = func(ctx context.Context, dur time.Duration) error {
		ex.mu.Lock()
		ex.record("sleep")
		ex.mu.Unlock()
		clock = clock.Add(dur)
		return ctx.Err()
	}
	return m
}
