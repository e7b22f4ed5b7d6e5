package standx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"standx-maker-bot/internal/standx/rest"
	"standx-maker-bot/internal/venue"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// clientIDPrefix marks order ids that are still known only by client id.
const clientIDPrefix = "cl:"

// MarkSource serves mark prices, typically the streaming feed.
type MarkSource interface {
	MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

type API interface {
	FetchMarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	Balance(ctx context.Context) (rest.Balance, error)
	Positions(ctx context.Context, symbol string) ([]rest.Position, error)
	OpenOrders(ctx context.Context, symbol string) ([]rest.Order, error)
	NewOrder(ctx context.Context, req rest.NewOrderRequest) (rest.NewOrderResponse, error)
	CancelOrder(ctx context.Context, orderID string) error
	CancelOrderByClientID(ctx context.Context, clientOrderID string) error
	CancelOrders(ctx context.Context, orderIDs []string) error
	ChangeLeverage(ctx context.Context, symbol string, leverage int) error
}

// Exchange adapts the StandX perps API to venue.Exchange.
type Exchange struct {
	api   API
	marks MarkSource
	log   *zap.Logger
}

func NewExchange(api API, marks MarkSource, log *zap.Logger) *Exchange {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exchange{api: api, marks: marks, log: log}
}

func (e *Exchange) MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if e.marks != nil {
		return e.marks.MarkPrice(ctx, symbol)
	}
	price, err := e.api.FetchMarkPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %w", venue.ErrMarketDataUnavailable, symbol, err)
	}
	return price, nil
}

func (e *Exchange) Balance(ctx context.Context) (venue.Balance, error) {
	bal, err := e.api.Balance(ctx)
	if err != nil {
		return venue.Balance{}, fmt.Errorf("query balance: %w", err)
	}
	equity := bal.Equity
	if equity.IsZero() {
		equity = bal.Balance
	}
	return venue.Balance{Available: bal.CrossAvailable, Equity: equity}, nil
}

func (e *Exchange) Position(ctx context.Context, symbol string) (venue.Position, error) {
	positions, err := e.api.Positions(ctx, symbol)
	if err != nil {
		return venue.Position{}, fmt.Errorf("query positions: %w", err)
	}
	out := venue.Position{Symbol: symbol}
	for _, p := range positions {
		if p.Symbol != symbol {
			continue
		}
		out.Size = out.Size.Add(signedSize(p))
		if lev, err := strconv.Atoi(p.Leverage.String()); err == nil && lev > 0 {
			out.Leverage = lev
			out.HasLeverage = true
		}
	}
	return out, nil
}

func signedSize(p rest.Position) decimal.Decimal {
	side, ok := venue.ParseSide(p.Side)
	if ok && side == venue.SideSell && p.Qty.IsPositive() {
		return p.Qty.Neg()
	}
	return p.Qty
}

func (e *Exchange) OpenOrders(ctx context.Context, symbol string) ([]venue.Order, error) {
	orders, err := e.api.OpenOrders(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("query open orders: %w", err)
	}
	out := make([]venue.Order, 0, len(orders))
	for _, o := range orders {
		side, ok := venue.ParseSide(o.Side)
		if !ok {
			e.log.Warn("open order with unknown side ignored", zap.String("order_id", o.ID.String()), zap.String("side", o.Side))
			continue
		}
		out = append(out, venue.Order{
			ID:            o.ID.String(),
			ClientOrderID: o.ClientOrdID,
			Symbol:        o.Symbol,
			Side:          side,
			Price:         o.Price,
			Quantity:      o.Qty.Sub(o.FillQty),
			Status:        parseStatus(o.Status),
			CreatedAt:     parseTime(o.CreatedAt),
		})
	}
	return out, nil
}

func parseStatus(raw string) venue.OrderStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "untriggered", "new_pending":
		return venue.StatusPending
	case "partially_filled", "partial_filled":
		return venue.StatusPartiallyFilled
	case "filled":
		return venue.StatusFilled
	case "canceled", "cancelled", "rejected", "expired":
		return venue.StatusCancelled
	default:
		return venue.StatusOpen
	}
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms)
	}
	return time.Time{}
}

func (e *Exchange) PlaceOrder(ctx context.Context, req venue.OrderRequest) (string, error) {
	wire := rest.NewOrderRequest{
		Symbol:      req.Symbol,
		Side:        string(req.Side),
		OrderType:   "limit",
		Qty:         req.Quantity.String(),
		TimeInForce: string(req.TimeInForce),
		ReduceOnly:  req.ReduceOnly,
		ClientOrdID: req.ClientOrderID,
		Leverage:    req.Leverage,
	}
	if req.Price.IsZero() {
		wire.OrderType = "market"
		if wire.TimeInForce == "" {
			wire.TimeInForce = string(venue.TifIOC)
		}
	} else {
		wire.Price = req.Price.String()
	}
	if wire.TimeInForce == "" {
		wire.TimeInForce = string(venue.TifGTC)
	}
	resp, err := e.api.NewOrder(ctx, wire)
	if err != nil {
		var apiErr *rest.APIError
		if errors.As(err, &apiErr) {
			return "", venue.Rejected(apiErr.Message)
		}
		return "", err
	}
	if id := resp.OrderID.String(); id != "" && id != "0" {
		return id, nil
	}
	// Orders are accepted asynchronously; resolve the id by client id.
	if req.ClientOrderID != "" {
		if orders, err := e.api.OpenOrders(ctx, req.Symbol); err == nil {
			for _, o := range orders {
				if o.ClientOrdID == req.ClientOrderID {
					return o.ID.String(), nil
				}
			}
		}
		return clientIDPrefix + req.ClientOrderID, nil
	}
	if resp.RequestID != "" {
		return resp.RequestID, nil
	}
	return "", errors.New("order accepted without an id")
}

func (e *Exchange) CancelOrder(ctx context.Context, symbol, orderID string) error {
	var err error
	if cloid, ok := strings.CutPrefix(orderID, clientIDPrefix); ok {
		err = e.api.CancelOrderByClientID(ctx, cloid)
	} else {
		err = e.api.CancelOrder(ctx, orderID)
	}
	if err != nil && alreadyGone(err) {
		e.log.Debug("cancel of finished order treated as success", zap.String("order_id", orderID), zap.Error(err))
		return nil
	}
	return err
}

// alreadyGone reports venue answers that mean the order no longer rests.
func alreadyGone(err error) bool {
	var apiErr *rest.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	for _, marker := range []string{"not found", "not exist", "already", "filled", "canceled", "cancelled"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func (e *Exchange) CancelAllOrders(ctx context.Context, symbol string) error {
	orders, err := e.OpenOrders(ctx, symbol)
	if err != nil {
		return err
	}
	live := venue.LiveOrders(orders, symbol)
	if len(live) == 0 {
		return nil
	}
	ids := make([]string, 0, len(live))
	for _, o := range live {
		ids = append(ids, o.ID)
	}
	if err := e.api.CancelOrders(ctx, ids); err != nil && !alreadyGone(err) {
		return err
	}
	return nil
}

func (e *Exchange) ClosePosition(ctx context.Context, symbol string) error {
	pos, err := e.Position(ctx, symbol)
	if err != nil {
		return err
	}
	if pos.Flat() {
		return nil
	}
	side := venue.SideSell
	if pos.Size.IsNegative() {
		side = venue.SideBuy
	}
	_, err = e.PlaceOrder(ctx, venue.OrderRequest{
		Symbol:      symbol,
		Side:        side,
		Quantity:    pos.Size.Abs(),
		TimeInForce: venue.TifIOC,
		ReduceOnly:  true,
	})
	if err != nil {
		return fmt.Errorf("close position %s: %w", symbol, err)
	}
	return nil
}

func (e *Exchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return e.api.ChangeLeverage(ctx, symbol, leverage)
}

var _ venue.Exchange = (*Exchange)(nil)
