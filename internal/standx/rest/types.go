package rest

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type SymbolPrice struct {
	Symbol     string          `json:"symbol"`
	MarkPrice  decimal.Decimal `json:"mark_price"`
	IndexPrice decimal.Decimal `json:"index_price"`
	LastPrice  decimal.Decimal `json:"last_price"`
	MidPrice   decimal.Decimal `json:"mid_price"`
	Time       string          `json:"time"`
}

type Balance struct {
	Balance        decimal.Decimal `json:"balance"`
	CrossAvailable decimal.Decimal `json:"cross_available"`
	Equity         decimal.Decimal `json:"equity"`
	Upnl           decimal.Decimal `json:"upnl"`
}

type Position struct {
	Symbol     string          `json:"symbol"`
	Qty        decimal.Decimal `json:"qty"`
	Side       string          `json:"side"`
	Leverage   json.Number     `json:"leverage"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	MarginMode string          `json:"margin_mode"`
}

type Order struct {
	ID          json.Number     `json:"id"`
	ClientOrdID string          `json:"cl_ord_id"`
	Symbol      string          `json:"symbol"`
	Side        string          `json:"side"`
	OrderType   string          `json:"order_type"`
	Price       decimal.Decimal `json:"price"`
	Qty         decimal.Decimal `json:"qty"`
	FillQty     decimal.Decimal `json:"fill_qty"`
	Status      string          `json:"status"`
	CreatedAt   string          `json:"created_at"`
}

type openOrdersResponse struct {
	Result []Order `json:"result"`
}

type NewOrderRequest struct {
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"order_type"`
	Qty         string `json:"qty"`
	Price       string `json:"price,omitempty"`
	TimeInForce string `json:"time_in_force"`
	ReduceOnly  bool   `json:"reduce_only"`
	ClientOrdID string `json:"cl_ord_id,omitempty"`
	Leverage    int    `json:"leverage,omitempty"`
}

type NewOrderResponse struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"request_id"`
	OrderID   json.Number `json:"order_id"`
}

type cancelOrderRequest struct {
	OrderID     json.Number `json:"order_id,omitempty"`
	ClientOrdID string      `json:"cl_ord_id,omitempty"`
}

type cancelOrdersRequest struct {
	OrderIDList []json.Number `json:"order_id_list"`
}

type changeLeverageRequest struct {
	Symbol   string `json:"symbol"`
	Leverage int    `json:"leverage"`
}
