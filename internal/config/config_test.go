package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"standx-maker-bot/internal/venue"

	"github.com/shopspring/decimal"
)

func validConfig() *Config {
	cfg := &Config{
		Venue:    VenueConfig{PrivateKey: "0xabc"},
		Strategy: StrategyConfig{Symbol: "BTC-USD"},
	}
	applyDefaults(cfg)
	return cfg
}

func TestStrategyDefaults(t *testing.T) {
	cfg := validConfig()
	s := cfg.Strategy
	if !s.TargetBps.Equal(decimal.NewFromInt(9)) || !s.MinBps.Equal(decimal.NewFromInt(8)) || !s.MaxBps.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected default band 8/9/10, got %s/%s/%s", s.MinBps, s.TargetBps, s.MaxBps)
	}
	if s.Interval != time.Second {
		t.Fatalf("expected interval default 1s, got %v", s.Interval)
	}
	if s.SettleDelay != 2*time.Second {
		t.Fatalf("expected settle delay default 2s, got %v", s.SettleDelay)
	}
	if s.SizingPolicy != "total_equity" {
		t.Fatalf("expected total_equity default, got %q", s.SizingPolicy)
	}
	if !s.FlattenOnExitValue() {
		t.Fatalf("expected flatten_on_exit default true")
	}
	if err := validate(cfg); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestExplicitBandNotOverwritten(t *testing.T) {
	cfg := &Config{Strategy: StrategyConfig{Symbol: "BTC-USD", MaxBps: decimal.NewFromInt(30)}}
	applyDefaults(cfg)
	if !cfg.Strategy.MaxBps.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected explicit max_bps to survive, got %s", cfg.Strategy.MaxBps)
	}
	if !cfg.Strategy.TargetBps.IsZero() {
		t.Fatalf("expected target_bps to stay zero, got %s", cfg.Strategy.TargetBps)
	}
}

func TestQuoteSidesFixedOrder(t *testing.T) {
	s := StrategyConfig{Sides: []string{"sell", "long", "ask"}}
	sides := s.QuoteSides()
	if len(sides) != 2 || sides[0] != venue.SideBuy || sides[1] != venue.SideSell {
		t.Fatalf("expected [buy sell], got %v", sides)
	}
}

func TestMetricsDefaults(t *testing.T) {
	cfg := validConfig()
	if !cfg.Metrics.EnabledValue() {
		t.Fatalf("expected metrics enabled default")
	}
	if cfg.Metrics.Address != "127.0.0.1:9001" {
		t.Fatalf("expected metrics address default, got %q", cfg.Metrics.Address)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Fatalf("expected metrics path default, got %q", cfg.Metrics.Path)
	}
}

func TestWSURLDerivedFromBase(t *testing.T) {
	cfg := &Config{Venue: VenueConfig{BaseURL: "http://localhost:8080/"}}
	applyDefaults(cfg)
	if cfg.Venue.WSURL != "ws://localhost:8080/ws-stream/v1" {
		t.Fatalf("expected derived ws url, got %q", cfg.Venue.WSURL)
	}
}

func TestValidateRejectsInvertedBand(t *testing.T) {
	cases := []struct {
		name             string
		min, target, max int64
	}{
		{"min above target", 10, 9, 12},
		{"target above max", 8, 11, 10},
		{"negative min", -1, 9, 10},
	}
	for _, tc := range cases {
		cfg := validConfig()
		cfg.Strategy.MinBps = decimal.NewFromInt(tc.min)
		cfg.Strategy.TargetBps = decimal.NewFromInt(tc.target)
		cfg.Strategy.MaxBps = decimal.NewFromInt(tc.max)
		err := validate(cfg)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", tc.name, err)
		}
	}
}

func TestValidateAcceptsDegenerateBand(t *testing.T) {
	cfg := validConfig()
	cfg.Strategy.MinBps = decimal.Zero
	cfg.Strategy.TargetBps = decimal.Zero
	cfg.Strategy.MaxBps = decimal.Zero
	if err := validate(cfg); err != nil {
		t.Fatalf("expected zero band to validate, got %v", err)
	}
}

func TestValidateRejectsUnknownSide(t *testing.T) {
	cfg := validConfig()
	cfg.Strategy.Sides = []string{"buy", "both"}
	if err := validate(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidateRejectsAllocationOverHundred(t *testing.T) {
	cfg := validConfig()
	cfg.Strategy.AllocationPct = decimal.NewFromInt(150)
	if err := validate(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidateRequiresPrivateKey(t *testing.T) {
	cfg := validConfig()
	cfg.Venue.PrivateKey = ""
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for missing private key")
	}
}

func TestValidateRejectsMetricsPathWithoutSlash(t *testing.T) {
	cfg := validConfig()
	cfg.Metrics.Path = "metrics"
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for metrics path without leading slash")
	}
}

func TestValidateRejectsTelegramEnabledWithoutConfig(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")
	cfg := validConfig()
	cfg.Telegram.Enabled = true
	applyEnvOverrides(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for missing telegram token/chat_id")
	}
}

func TestEnvOverridesConfig(t *testing.T) {
	t.Setenv("STANDX_PRIVATE_KEY", "0xenv")
	t.Setenv("STANDX_CHAIN", "solana")
	t.Setenv("TELEGRAM_TOKEN", "env-token")
	t.Setenv("TELEGRAM_CHAT_ID", "123")
	cfg := validConfig()
	cfg.Telegram = TelegramConfig{Enabled: true, Token: "config-token", ChatID: "999"}
	applyEnvOverrides(cfg)
	if cfg.Venue.PrivateKey != "0xenv" {
		t.Fatalf("expected env private key, got %q", cfg.Venue.PrivateKey)
	}
	if cfg.Venue.Chain != "solana" {
		t.Fatalf("expected env chain, got %q", cfg.Venue.Chain)
	}
	if cfg.Telegram.Token != "env-token" || cfg.Telegram.ChatID != "123" {
		t.Fatalf("expected env telegram override, got %q/%q", cfg.Telegram.Token, cfg.Telegram.ChatID)
	}
	if err := validate(cfg); err != nil {
		t.Fatalf("expected valid config with env overrides, got %v", err)
	}
}

func TestLoadDecodesDecimals(t *testing.T) {
	t.Setenv("STANDX_PRIVATE_KEY", "0xabc")
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "" +
		"strategy:\n" +
		"  symbol: ETH-USD\n" +
		"  sides: [buy]\n" +
		"  target_bps: 9.5\n" +
		"  min_bps: 8\n" +
		"  max_bps: \"10.25\"\n" +
		"  tick_size: 0.1\n" +
		"  flatten_on_exit: false\n" +
		"  interval: 500ms\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Strategy.TargetBps.Equal(decimal.RequireFromString("9.5")) {
		t.Fatalf("expected target 9.5, got %s", cfg.Strategy.TargetBps)
	}
	if !cfg.Strategy.MaxBps.Equal(decimal.RequireFromString("10.25")) {
		t.Fatalf("expected max 10.25, got %s", cfg.Strategy.MaxBps)
	}
	if cfg.Strategy.FlattenOnExitValue() {
		t.Fatalf("expected flatten_on_exit false")
	}
	if cfg.Strategy.Interval != 500*time.Millisecond {
		t.Fatalf("expected 500ms interval, got %v", cfg.Strategy.Interval)
	}
}

func TestLoadRejectsInvertedBand(t *testing.T) {
	t.Setenv("STANDX_PRIVATE_KEY", "0xabc")
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "strategy:\n  symbol: BTC-USD\n  target_bps: 5\n  min_bps: 8\n  max_bps: 10\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
