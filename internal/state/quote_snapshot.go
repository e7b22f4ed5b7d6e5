package state

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteSnapshotKey returns the store key holding the tracked quotes of symbol.
func QuoteSnapshotKey(symbol string) string {
	return "quotes:" + symbol
}

type QuoteRecord struct {
	OrderID    string          `json:"order_id"`
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	OpenedAtMS int64           `json:"opened_at_ms"`
}

func (r QuoteRecord) OpenedAt() time.Time {
	if r.OpenedAtMS == 0 {
		return time.Time{}
	}
	return time.UnixMilli(r.OpenedAtMS)
}

type QuoteSnapshot struct {
	Symbol      string          `json:"symbol"`
	Mark        decimal.Decimal `json:"mark"`
	Buy         *QuoteRecord    `json:"buy,omitempty"`
	Sell        *QuoteRecord    `json:"sell,omitempty"`
	UpdatedAtMS int64           `json:"updated_at_ms"`
}

func LoadQuoteSnapshot(ctx context.Context, store Store, symbol string) (QuoteSnapshot, bool, error) {
	if store == nil {
		return QuoteSnapshot{}, false, nil
	}
	raw, ok, err := store.Get(ctx, QuoteSnapshotKey(symbol))
	if err != nil {
		return QuoteSnapshot{}, false, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return QuoteSnapshot{}, false, nil
	}
	var snapshot QuoteSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return QuoteSnapshot{}, false, err
	}
	return snapshot, true, nil
}

func SaveQuoteSnapshot(ctx context.Context, store Store, snapshot QuoteSnapshot) error {
	if store == nil {
		return nil
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return store.Set(ctx, QuoteSnapshotKey(snapshot.Symbol), string(payload))
}
