package standx

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"standx-maker-bot/internal/standx/rest"
	"standx-maker-bot/internal/venue"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAPI struct {
	mark        decimal.Decimal
	balance     rest.Balance
	positions   []rest.Position
	orders      []rest.Order
	newOrderErr error
	newOrders   []rest.NewOrderRequest
	orderID     string
	cancelErr   error
	cancelled   []string
	cancelByCl  []string
	bulk        [][]string
	leverage    int
}

func (f *fakeAPI) FetchMarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if f.mark.IsZero() {
		return decimal.Zero, errors.New("no price")
	}
	return f.mark, nil
}

func (f *fakeAPI) Balance(ctx context.Context) (rest.Balance, error) { return f.balance, nil }

func (f *fakeAPI) Positions(ctx context.Context, symbol string) ([]rest.Position, error) {
	return f.positions, nil
}

func (f *fakeAPI) OpenOrders(ctx context.Context, symbol string) ([]rest.Order, error) {
	return f.orders, nil
}

func (f *fakeAPI) NewOrder(ctx context.Context, req rest.NewOrderRequest) (rest.NewOrderResponse, error) {
	f.newOrders = append(f.newOrders, req)
	if f.newOrderErr != nil {
		return rest.NewOrderResponse{}, f.newOrderErr
	}
	return rest.NewOrderResponse{OrderID: json.Number(f.orderID), RequestID: "req-1"}, nil
}

func (f *fakeAPI) CancelOrder(ctx context.Context, orderID string) error {
	f.cancelled = append(f.cancelled, orderID)
	return f.cancelErr
}

func (f *fakeAPI) CancelOrderByClientID(ctx context.Context, clientOrderID string) error {
	f.cancelByCl = append(f.cancelByCl, clientOrderID)
	return f.cancelErr
}

func (f *fakeAPI) CancelOrders(ctx context.Context, orderIDs []string) error {
	f.bulk = append(f.bulk, orderIDs)
	return nil
}

func (f *fakeAPI) ChangeLeverage(ctx context.Context, symbol string, leverage int) error {
	f.leverage = leverage
	return nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestMarkPriceUnavailable(t *testing.T) {
	ex := NewExchange(&fakeAPI{}, nil, zap.NewNop())
	_, err := ex.MarkPrice(context.Background(), "BTC-USD")
	assert.ErrorIs(t, err, venue.ErrMarketDataUnavailable)
}

func TestBalanceMapping(t *testing.T) {
	ex := NewExchange(&fakeAPI{balance: rest.Balance{Balance: d("900"), CrossAvailable: d("400")}}, nil, zap.NewNop())
	bal, err := ex.Balance(context.Background())
	require.NoError(t, err)
	assert.True(t, bal.Available.Equal(d("400")))
	assert.True(t, bal.Equity.Equal(d("900")), "equity falls back to balance")
}

func TestPositionSignedBySide(t *testing.T) {
	api := &fakeAPI{positions: []rest.Position{
		{Symbol: "BTC-USD", Qty: d("0.01"), Side: "short", Leverage: "3"},
		{Symbol: "ETH-USD", Qty: d("1"), Side: "long"},
	}}
	pos, err := NewExchange(api, nil, zap.NewNop()).Position(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.True(t, pos.Size.Equal(d("-0.01")), "got %s", pos.Size)
	assert.True(t, pos.HasLeverage)
	assert.Equal(t, 3, pos.Leverage)
}

func TestOpenOrdersMapping(t *testing.T) {
	api := &fakeAPI{orders: []rest.Order{
		{ID: "1", Symbol: "BTC-USD", Side: "buy", Price: d("99910"), Qty: d("0.02"), FillQty: d("0.005"), Status: "partially_filled"},
		{ID: "2", Symbol: "BTC-USD", Side: "ask", Price: d("100090"), Qty: d("0.02"), Status: "new"},
		{ID: "3", Symbol: "BTC-USD", Side: "???", Status: "open"},
	}}
	orders, err := NewExchange(api, nil, zap.NewNop()).OpenOrders(context.Background(), "BTC-USD")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, venue.StatusPartiallyFilled, orders[0].Status)
	assert.True(t, orders[0].Quantity.Equal(d("0.015")))
	assert.Equal(t, venue.SideSell, orders[1].Side)
	assert.Equal(t, venue.StatusOpen, orders[1].Status)
}

func TestPlaceOrderLimitAndRejection(t *testing.T) {
	api := &fakeAPI{orderID: "55"}
	ex := NewExchange(api, nil, zap.NewNop())
	id, err := ex.PlaceOrder(context.Background(), venue.OrderRequest{
		Symbol: "BTC-USD", Side: venue.SideBuy, Price: d("99910"), Quantity: d("0.01"), TimeInForce: venue.TifGTC, ClientOrderID: "c1",
	})
	require.NoError(t, err)
	assert.Equal(t, "55", id)
	assert.Equal(t, "limit", api.newOrders[0].OrderType)
	assert.Equal(t, "99910", api.newOrders[0].Price)
	assert.Equal(t, "gtc", api.newOrders[0].TimeInForce)

	api.newOrderErr = &rest.APIError{Code: 400, Message: "insufficient margin"}
	_, err = ex.PlaceOrder(context.Background(), venue.OrderRequest{Symbol: "BTC-USD", Side: venue.SideBuy, Price: d("1"), Quantity: d("1")})
	var rejected *venue.OrderRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "insufficient margin", rejected.Reason)
}

func TestPlaceOrderResolvesAsyncID(t *testing.T) {
	api := &fakeAPI{orders: []rest.Order{{ID: "77", ClientOrdID: "c9", Side: "buy", Status: "open"}}}
	ex := NewExchange(api, nil, zap.NewNop())
	id, err := ex.PlaceOrder(context.Background(), venue.OrderRequest{Symbol: "BTC-USD", Side: venue.SideBuy, Price: d("1"), Quantity: d("1"), ClientOrderID: "c9"})
	require.NoError(t, err)
	assert.Equal(t, "77", id)

	id, err = ex.PlaceOrder(context.Background(), venue.OrderRequest{Symbol: "BTC-USD", Side: venue.SideBuy, Price: d("1"), Quantity: d("1"), ClientOrderID: "c10"})
	require.NoError(t, err)
	assert.Equal(t, "cl:c10", id)
	require.NoError(t, ex.CancelOrder(context.Background(), "BTC-USD", id))
	assert.Equal(t, []string{"c10"}, api.cancelByCl)
}

func TestCancelOrderIdempotent(t *testing.T) {
	api := &fakeAPI{cancelErr: &rest.APIError{Code: 404, Message: "Order not found"}}
	ex := NewExchange(api, nil, zap.NewNop())
	assert.NoError(t, ex.CancelOrder(context.Background(), "BTC-USD", "1"))

	api.cancelErr = errors.New("connection reset")
	assert.Error(t, ex.CancelOrder(context.Background(), "BTC-USD", "1"))
}

func TestCancelAllOrdersCancelsLiveOnly(t *testing.T) {
	api := &fakeAPI{orders: []rest.Order{
		{ID: "1", Symbol: "BTC-USD", Side: "buy", Status: "open"},
		{ID: "2", Symbol: "BTC-USD", Side: "sell", Status: "filled"},
		{ID: "3", Symbol: "BTC-USD", Side: "sell", Status: "pending"},
	}}
	require.NoError(t, NewExchange(api, nil, zap.NewNop()).CancelAllOrders(context.Background(), "BTC-USD"))
	require.Len(t, api.bulk, 1)
	assert.Equal(t, []string{"1", "3"}, api.bulk[0])
}

func TestClosePositionPlacesReduceOnlyMarket(t *testing.T) {
	api := &fakeAPI{orderID: "9", positions: []rest.Position{{Symbol: "BTC-USD", Qty: d("-0.02")}}}
	require.NoError(t, NewExchange(api, nil, zap.NewNop()).ClosePosition(context.Background(), "BTC-USD"))
	require.Len(t, api.newOrders, 1)
	order := api.newOrders[0]
	assert.Equal(t, "buy", order.Side)
	assert.Equal(t, "market", order.OrderType)
	assert.Equal(t, "0.02", order.Qty)
	assert.True(t, order.ReduceOnly)
	assert.Empty(t, order.Price)
}

func TestClosePositionFlatIsNoop(t *testing.T) {
	api := &fakeAPI{}
	require.NoError(t, NewExchange(api, nil, zap.NewNop()).ClosePosition(context.Background(), "BTC-USD"))
	assert.Empty(t, api.newOrders)
}
