package market

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"standx-maker-bot/internal/standx/ws"
	"standx-maker-bot/internal/venue"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const priceChannel = "price"

// PriceFetcher is the REST fallback for mark prices.
type PriceFetcher interface {
	FetchMarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

type markSample struct {
	price decimal.Decimal
	at    time.Time
}

// MarkFeed serves mark prices from the websocket stream while they are
// fresh and falls back to REST otherwise.
type MarkFeed struct {
	rest   PriceFetcher
	ws     *ws.Client
	maxAge time.Duration
	log    *zap.Logger
	now    func() time.Time

	mu     sync.RWMutex
	prices map[string]markSample
}

func NewMarkFeed(rest PriceFetcher, wsClient *ws.Client, maxAge time.Duration, log *zap.Logger) *MarkFeed {
	if log == nil {
		log = zap.NewNop()
	}
	return &MarkFeed{
		rest:   rest,
		ws:     wsClient,
		maxAge: maxAge,
		log:    log,
		now:    time.Now,
		prices: make(map[string]markSample),
	}
}

// Start subscribes to the price channel of each symbol and streams in the
// background until ctx ends.
func (m *MarkFeed) Start(ctx context.Context, symbols ...string) error {
	if m.ws == nil {
		return nil
	}
	for _, symbol := range symbols {
		if err := m.ws.Subscribe(ctx, ws.Subscription{Channel: priceChannel, Symbol: symbol}); err != nil {
			return err
		}
	}
	go func() {
		if err := m.ws.Run(ctx, m.handleMessage); err != nil && ctx.Err() == nil {
			m.log.Warn("mark price stream stopped", zap.Error(err))
		}
	}()
	return nil
}

type priceData struct {
	MarkPrice decimal.Decimal `json:"mark_price"`
}

func (m *MarkFeed) handleMessage(msg ws.Message) {
	if msg.Channel != priceChannel || msg.Symbol == "" {
		return
	}
	var data priceData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		m.log.Debug("price frame ignored", zap.Error(err))
		return
	}
	if data.MarkPrice.Sign() <= 0 {
		return
	}
	m.store(msg.Symbol, data.MarkPrice)
}

func (m *MarkFeed) store(symbol string, price decimal.Decimal) {
	m.mu.Lock()
	m.prices[symbol] = markSample{price: price, at: m.now()}
	m.mu.Unlock()
}

// Cached returns the streamed price for symbol if it is fresh enough.
func (m *MarkFeed) Cached(symbol string) (decimal.Decimal, bool) {
	m.mu.RLock()
	sample, ok := m.prices[symbol]
	m.mu.RUnlock()
	if !ok {
		return decimal.Zero, false
	}
	if m.maxAge > 0 && m.now().Sub(sample.at) > m.maxAge {
		return decimal.Zero, false
	}
	return sample.price, true
}

func (m *MarkFeed) MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if price, ok := m.Cached(symbol); ok {
		return price, nil
	}
	if m.rest == nil {
		return decimal.Zero, fmt.Errorf("%w: no fresh mark for %s", venue.ErrMarketDataUnavailable, symbol)
	}
	price, err := m.rest.FetchMarkPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %w", venue.ErrMarketDataUnavailable, symbol, err)
	}
	if price.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %s: non-positive mark %s", venue.ErrMarketDataUnavailable, symbol, price)
	}
	m.store(symbol, price)
	return price, nil
}
