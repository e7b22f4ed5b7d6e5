package venue

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide accepts the spellings venues use for order and position sides.
func ParseSide(raw string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy", "long", "bid", "b":
		return SideBuy, true
	case "sell", "short", "ask", "a", "s":
		return SideSell, true
	}
	return "", false
}

func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type OrderStatus string

const (
	StatusPending         OrderStatus = "pending"
	StatusOpen            OrderStatus = "open"
	StatusPartiallyFilled OrderStatus = "partially_filled"
	StatusFilled          OrderStatus = "filled"
	StatusCancelled       OrderStatus = "cancelled"
)

// Live reports whether an order in this status can still rest on the book.
func (s OrderStatus) Live() bool {
	switch s {
	case StatusPending, StatusOpen, StatusPartiallyFilled:
		return true
	}
	return false
}

type TimeInForce string

const (
	TifGTC TimeInForce = "gtc"
	TifIOC TimeInForce = "ioc"
)

type Order struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Side          Side
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	Status        OrderStatus
	CreatedAt     time.Time
}

type OrderRequest struct {
	Symbol        string
	Side          Side
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	Leverage      int
	TimeInForce   TimeInForce
	ReduceOnly    bool
	ClientOrderID string
}

type Position struct {
	Symbol string
	// Size is signed: positive long, negative short.
	Size        decimal.Decimal
	Leverage    int
	HasLeverage bool
}

func (p Position) Flat() bool {
	return p.Size.IsZero()
}

type Balance struct {
	Available decimal.Decimal
	Equity    decimal.Decimal
}

// Exchange is the trading surface the quoting engine drives. Cancel calls
// must treat already filled or cancelled orders as success.
type Exchange interface {
	MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	Balance(ctx context.Context) (Balance, error)
	Position(ctx context.Context, symbol string) (Position, error)
	OpenOrders(ctx context.Context, symbol string) ([]Order, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (string, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	CancelAllOrders(ctx context.Context, symbol string) error
	ClosePosition(ctx context.Context, symbol string) error
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}

// LiveOrders filters orders down to those still resting for symbol.
func LiveOrders(orders []Order, symbol string) []Order {
	out := make([]Order, 0, len(orders))
	for _, order := range orders {
		if symbol != "" && order.Symbol != "" && order.Symbol != symbol {
			continue
		}
		if !order.Status.Live() {
			continue
		}
		out = append(out, order)
	}
	return out
}
