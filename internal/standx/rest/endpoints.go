package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
)

func (c *Client) SymbolPrice(ctx context.Context, symbol string) (SymbolPrice, error) {
	var out SymbolPrice
	err := c.get(ctx, "/api/query_symbol_price", url.Values{"symbol": {symbol}}, false, &out)
	return out, err
}

func (c *Client) Balance(ctx context.Context) (Balance, error) {
	var out Balance
	err := c.get(ctx, "/api/query_balance", nil, true, &out)
	return out, err
}

func (c *Client) Positions(ctx context.Context, symbol string) ([]Position, error) {
	var query url.Values
	if symbol != "" {
		query = url.Values{"symbol": {symbol}}
	}
	var out []Position
	err := c.get(ctx, "/api/query_positions", query, true, &out)
	return out, err
}

func (c *Client) OpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	var query url.Values
	if symbol != "" {
		query = url.Values{"symbol": {symbol}}
	}
	var out openOrdersResponse
	if err := c.get(ctx, "/api/query_open_orders", query, true, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

func (c *Client) NewOrder(ctx context.Context, req NewOrderRequest) (NewOrderResponse, error) {
	var out NewOrderResponse
	err := c.post(ctx, "/api/new_order", req, &out)
	return out, err
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	return c.post(ctx, "/api/cancel_order", cancelOrderRequest{OrderID: json.Number(orderID)}, nil)
}

func (c *Client) CancelOrderByClientID(ctx context.Context, clientOrderID string) error {
	return c.post(ctx, "/api/cancel_order", cancelOrderRequest{ClientOrdID: clientOrderID}, nil)
}

func (c *Client) CancelOrders(ctx context.Context, orderIDs []string) error {
	if len(orderIDs) == 0 {
		return nil
	}
	ids := make([]json.Number, 0, len(orderIDs))
	for _, id := range orderIDs {
		ids = append(ids, json.Number(id))
	}
	return c.post(ctx, "/api/cancel_orders", cancelOrdersRequest{OrderIDList: ids}, nil)
}

func (c *Client) ChangeLeverage(ctx context.Context, symbol string, leverage int) error {
	return c.post(ctx, "/api/change_leverage", changeLeverageRequest{Symbol: symbol, Leverage: leverage}, nil)
}

// FetchMarkPrice reads the mark, falling back to mid and last when the
// venue leaves it empty.
func (c *Client) FetchMarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	price, err := c.SymbolPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	for _, candidate := range []decimal.Decimal{price.MarkPrice, price.MidPrice, price.LastPrice} {
		if candidate.Sign() > 0 {
			return candidate, nil
		}
	}
	return decimal.Zero, fmt.Errorf("no price for %s", symbol)
}
