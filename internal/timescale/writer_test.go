package timescale

import (
	"testing"

	"standx-maker-bot/internal/config"

	"go.uber.org/zap"
)

func TestNewDisabledReturnsNil(t *testing.T) {
	w, err := New(config.TimescaleConfig{Enabled: false}, zap.NewNop())
	if err != nil || w != nil {
		t.Fatalf("expected nil writer when disabled, got %v, %v", w, err)
	}
	// nil writer is safe to use.
	w.EnqueueQuote(QuoteRow{})
	w.EnqueueGuard(GuardEvent{})
	if err := w.Close(); err != nil {
		t.Fatalf("close nil writer: %v", err)
	}
}

func TestNewRequiresDSN(t *testing.T) {
	if _, err := New(config.TimescaleConfig{Enabled: true}, zap.NewNop()); err == nil {
		t.Fatalf("expected error for missing dsn")
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	w := newWriter(nil, "public", 1, zap.NewNop())
	w.EnqueueQuote(QuoteRow{Symbol: "BTC-USD"})
	w.EnqueueQuote(QuoteRow{Symbol: "BTC-USD"})
	w.EnqueueQuote(QuoteRow{Symbol: "BTC-USD"})
	if got := w.dropQuote.Load(); got != 2 {
		t.Fatalf("expected 2 dropped rows, got %d", got)
	}
	if len(w.quotes) != 1 {
		t.Fatalf("expected one queued row, got %d", len(w.quotes))
	}
}

func TestTableQualifiedBySchema(t *testing.T) {
	w := newWriter(nil, "maker", 1, zap.NewNop())
	if got := w.table("quote_cycles"); got != "maker.quote_cycles" {
		t.Fatalf("unexpected table name %q", got)
	}
}
