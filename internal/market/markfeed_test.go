package market

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"standx-maker-bot/internal/standx/ws"
	"standx-maker-bot/internal/venue"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type stubFetcher struct {
	price decimal.Decimal
	err   error
	calls int
}

func (s *stubFetcher) FetchMarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	s.calls++
	return s.price, s.err
}

func TestMarkFeedPrefersFreshStream(t *testing.T) {
	fetcher := &stubFetcher{price: decimal.NewFromInt(1)}
	feed := NewMarkFeed(fetcher, nil, 5*time.Second, zap.NewNop())
	now := time.Unix(1700000000, 0)
	feed.now = func() time.Time { return now }

	feed.handleMessage(ws.Message{Channel: "price", Symbol: "BTC-USD", Data: json.RawMessage(`{"mark_price":"100000.5"}`)})
	price, err := feed.MarkPrice(context.Background(), "BTC-USD")
	if err != nil {
		t.Fatalf("mark price: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("100000.5")) {
		t.Fatalf("expected streamed mark, got %s", price)
	}
	if fetcher.calls != 0 {
		t.Fatalf("expected no rest calls, got %d", fetcher.calls)
	}

	now = now.Add(6 * time.Second)
	price, err = feed.MarkPrice(context.Background(), "BTC-USD")
	if err != nil {
		t.Fatalf("mark price: %v", err)
	}
	if !price.Equal(decimal.NewFromInt(1)) || fetcher.calls != 1 {
		t.Fatalf("expected rest fallback on stale stream, got %s (%d calls)", price, fetcher.calls)
	}
}

func TestMarkFeedIgnoresOtherChannels(t *testing.T) {
	feed := NewMarkFeed(nil, nil, time.Second, zap.NewNop())
	feed.handleMessage(ws.Message{Channel: "depth_book", Symbol: "BTC-USD", Data: json.RawMessage(`{"mark_price":"1"}`)})
	feed.handleMessage(ws.Message{Channel: "price", Symbol: "BTC-USD", Data: json.RawMessage(`{"mark_price":"0"}`)})
	if _, ok := feed.Cached("BTC-USD"); ok {
		t.Fatalf("expected no cached price")
	}
}

func TestMarkFeedUnavailable(t *testing.T) {
	feed := NewMarkFeed(&stubFetcher{err: errors.New("503")}, nil, time.Second, zap.NewNop())
	if _, err := feed.MarkPrice(context.Background(), "BTC-USD"); !errors.Is(err, venue.ErrMarketDataUnavailable) {
		t.Fatalf("expected ErrMarketDataUnavailable, got %v", err)
	}
	feed = NewMarkFeed(&stubFetcher{price: decimal.Zero}, nil, time.Second, zap.NewNop())
	if _, err := feed.MarkPrice(context.Background(), "BTC-USD"); !errors.Is(err, venue.ErrMarketDataUnavailable) {
		t.Fatalf("expected ErrMarketDataUnavailable for zero mark, got %v", err)
	}
}
