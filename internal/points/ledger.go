package points

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"standx-maker-bot/internal/state"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

// MaxHistory bounds how many closed quotes the ledger keeps.
const MaxHistory = 100

type OrderRecord struct {
	OrderID    string `msgpack:"id"`
	Side       string `msgpack:"side"`
	Notional   string `msgpack:"notional"`
	Points     string `msgpack:"points"`
	OpenedAtMS int64  `msgpack:"opened"`
	ClosedAtMS int64  `msgpack:"closed"`
}

type Ledger struct {
	TotalPoints string        `msgpack:"total"`
	Orders      []OrderRecord `msgpack:"orders"`
}

func (l Ledger) Total() decimal.Decimal {
	total, err := decimal.NewFromString(l.TotalPoints)
	if err != nil {
		return decimal.Zero
	}
	return total
}

func (l *Ledger) append(rec OrderRecord) {
	l.Orders = append(l.Orders, rec)
	if extra := len(l.Orders) - MaxHistory; extra > 0 {
		l.Orders = append([]OrderRecord(nil), l.Orders[extra:]...)
	}
}

func EncodeLedger(l Ledger) ([]byte, error) {
	return msgpack.Marshal(&l)
}

func DecodeLedger(raw []byte) (Ledger, error) {
	var l Ledger
	if err := msgpack.Unmarshal(raw, &l); err != nil {
		return Ledger{}, err
	}
	return l, nil
}

// LoadLedger reads the ledger stored under key. The stored form is
// base64-wrapped msgpack so it fits the text value column.
func LoadLedger(ctx context.Context, store state.Store, key string) (Ledger, error) {
	if store == nil {
		return Ledger{}, nil
	}
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return Ledger{}, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return Ledger{}, nil
	}
	packed, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return Ledger{}, fmt.Errorf("decode points ledger: %w", err)
	}
	ledger, err := DecodeLedger(packed)
	if err != nil {
		return Ledger{}, fmt.Errorf("decode points ledger: %w", err)
	}
	return ledger, nil
}

func SaveLedger(ctx context.Context, store state.Store, key string, l Ledger) error {
	if store == nil {
		return nil
	}
	packed, err := EncodeLedger(l)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, base64.StdEncoding.EncodeToString(packed))
}
