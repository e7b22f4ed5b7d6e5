package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"standx-maker-bot/internal/venue"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	Venue     VenueConfig     `yaml:"venue"`
	State     StateConfig     `yaml:"state"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	Exec      ExecConfig      `yaml:"exec"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Timescale TimescaleConfig `yaml:"timescale"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

type VenueConfig struct {
	BaseURL        string        `yaml:"base_url"`
	AuthURL        string        `yaml:"auth_url"`
	WSURL          string        `yaml:"ws_url"`
	Chain          string        `yaml:"chain"`
	Timeout        time.Duration `yaml:"timeout"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	// MaxPriceAge bounds how stale a streamed mark price may be before REST is used.
	MaxPriceAge time.Duration `yaml:"max_price_age"`
	PrivateKey  string        `yaml:"-"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
	PointsKey  string `yaml:"points_key"`
}

type StrategyConfig struct {
	Symbol        string          `yaml:"symbol"`
	Sides         []string        `yaml:"sides"`
	SizingPolicy  string          `yaml:"sizing_policy"`
	TargetBps     decimal.Decimal `yaml:"target_bps"`
	MinBps        decimal.Decimal `yaml:"min_bps"`
	MaxBps        decimal.Decimal `yaml:"max_bps"`
	AllocationPct decimal.Decimal `yaml:"allocation_pct"`
	Leverage      int             `yaml:"leverage"`
	TickSize      decimal.Decimal `yaml:"tick_size"`
	SizeIncrement decimal.Decimal `yaml:"size_increment"`
	Interval      time.Duration   `yaml:"interval"`
	SettleDelay   time.Duration   `yaml:"settle_delay"`
	FlattenOnExit *bool           `yaml:"flatten_on_exit"`
	DryRun        bool            `yaml:"dry_run"`
}

func (s StrategyConfig) FlattenOnExitValue() bool {
	return s.FlattenOnExit == nil || *s.FlattenOnExit
}

// QuoteSides returns the configured sides in fixed Buy, Sell order without duplicates.
func (s StrategyConfig) QuoteSides() []venue.Side {
	seen := map[venue.Side]bool{}
	for _, raw := range s.Sides {
		if side, ok := venue.ParseSide(raw); ok {
			seen[side] = true
		}
	}
	out := make([]venue.Side, 0, 2)
	for _, side := range []venue.Side{venue.SideBuy, venue.SideSell} {
		if seen[side] {
			out = append(out, side)
		}
	}
	return out
}

type ExecConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
}

type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

func (m MetricsConfig) EnabledValue() bool {
	return m.Enabled == nil || *m.Enabled
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Encoding == "" {
		cfg.Log.Encoding = "json"
	}
	if cfg.Venue.BaseURL == "" {
		cfg.Venue.BaseURL = "https://perps.standx.com"
	}
	if cfg.Venue.AuthURL == "" {
		cfg.Venue.AuthURL = "https://api.standx.com"
	}
	if cfg.Venue.WSURL == "" {
		cfg.Venue.WSURL = deriveWSURL(cfg.Venue.BaseURL)
	}
	if cfg.Venue.Chain == "" {
		cfg.Venue.Chain = "bsc"
	}
	if cfg.Venue.Timeout == 0 {
		cfg.Venue.Timeout = 10 * time.Second
	}
	if cfg.Venue.ReconnectDelay == 0 {
		cfg.Venue.ReconnectDelay = 3 * time.Second
	}
	if cfg.Venue.MaxPriceAge == 0 {
		cfg.Venue.MaxPriceAge = 5 * time.Second
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/standx-maker-bot.db"
	}
	if cfg.State.PointsKey == "" {
		cfg.State.PointsKey = "points_ledger"
	}
	if len(cfg.Strategy.Sides) == 0 {
		cfg.Strategy.Sides = []string{"buy", "sell"}
	}
	if cfg.Strategy.SizingPolicy == "" {
		cfg.Strategy.SizingPolicy = "total_equity"
	}
	if cfg.Strategy.TargetBps.IsZero() && cfg.Strategy.MinBps.IsZero() && cfg.Strategy.MaxBps.IsZero() {
		cfg.Strategy.TargetBps = decimal.NewFromInt(9)
		cfg.Strategy.MinBps = decimal.NewFromInt(8)
		cfg.Strategy.MaxBps = decimal.NewFromInt(10)
	}
	if cfg.Strategy.AllocationPct.IsZero() {
		cfg.Strategy.AllocationPct = decimal.NewFromInt(100)
	}
	if cfg.Strategy.Leverage == 0 {
		cfg.Strategy.Leverage = 1
	}
	if cfg.Strategy.TickSize.IsZero() {
		cfg.Strategy.TickSize = decimal.New(1, -2)
	}
	if cfg.Strategy.SizeIncrement.IsZero() {
		cfg.Strategy.SizeIncrement = decimal.New(1, -4)
	}
	if cfg.Strategy.Interval == 0 {
		cfg.Strategy.Interval = time.Second
	}
	if cfg.Strategy.SettleDelay == 0 {
		cfg.Strategy.SettleDelay = 2 * time.Second
	}
	if cfg.Exec.MaxAttempts == 0 {
		cfg.Exec.MaxAttempts = 3
	}
	if cfg.Exec.InitialBackoff == 0 {
		cfg.Exec.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.Metrics.Enabled == nil {
		enabled := true
		cfg.Metrics.Enabled = &enabled
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = "127.0.0.1:9001"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Timescale.Schema == "" {
		cfg.Timescale.Schema = "public"
	}
	if cfg.Timescale.QueueSize == 0 {
		cfg.Timescale.QueueSize = 256
	}
}

func deriveWSURL(base string) string {
	trimmed := strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(trimmed, "https://"):
		return "wss://" + strings.TrimPrefix(trimmed, "https://") + "/ws-stream/v1"
	case strings.HasPrefix(trimmed, "http://"):
		return "ws://" + strings.TrimPrefix(trimmed, "http://") + "/ws-stream/v1"
	default:
		return ""
	}
}

func applyEnvOverrides(cfg *Config) {
	if key := strings.TrimSpace(os.Getenv("STANDX_PRIVATE_KEY")); key != "" {
		cfg.Venue.PrivateKey = key
	}
	if chain := strings.TrimSpace(os.Getenv("STANDX_CHAIN")); chain != "" {
		cfg.Venue.Chain = chain
	}
	if token := strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")); token != "" {
		cfg.Telegram.Token = token
	}
	if chatID := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); chatID != "" {
		cfg.Telegram.ChatID = chatID
	}
	if dsn := strings.TrimSpace(os.Getenv("TIMESCALE_DSN")); dsn != "" {
		cfg.Timescale.DSN = dsn
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func validate(cfg *Config) error {
	s := cfg.Strategy
	if strings.TrimSpace(s.Symbol) == "" {
		return invalid("strategy.symbol is required")
	}
	for _, raw := range s.Sides {
		if _, ok := venue.ParseSide(raw); !ok {
			return invalid("strategy.sides: unknown side %q", raw)
		}
	}
	switch s.SizingPolicy {
	case "total_equity", "available_balance":
	default:
		return invalid("strategy.sizing_policy must be total_equity or available_balance, got %q", s.SizingPolicy)
	}
	if s.MinBps.IsNegative() || s.MinBps.GreaterThan(s.TargetBps) || s.TargetBps.GreaterThan(s.MaxBps) {
		return invalid("strategy band must satisfy 0 <= min_bps (%s) <= target_bps (%s) <= max_bps (%s)", s.MinBps, s.TargetBps, s.MaxBps)
	}
	if !s.AllocationPct.IsPositive() || s.AllocationPct.GreaterThan(decimal.NewFromInt(100)) {
		return invalid("strategy.allocation_pct must be in (0, 100]")
	}
	if s.Leverage < 1 {
		return invalid("strategy.leverage must be >= 1")
	}
	if !s.TickSize.IsPositive() {
		return invalid("strategy.tick_size must be > 0")
	}
	if !s.SizeIncrement.IsPositive() {
		return invalid("strategy.size_increment must be > 0")
	}
	if s.Interval <= 0 {
		return invalid("strategy.interval must be > 0")
	}
	if s.SettleDelay < 0 {
		return invalid("strategy.settle_delay must be >= 0")
	}
	if cfg.Exec.MaxAttempts < 1 {
		return invalid("exec.max_attempts must be >= 1")
	}
	if cfg.Exec.InitialBackoff < 0 {
		return invalid("exec.initial_backoff must be >= 0")
	}
	if cfg.Venue.PrivateKey == "" {
		return invalid("STANDX_PRIVATE_KEY is required")
	}
	if cfg.Metrics.EnabledValue() && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return invalid("metrics.path must start with /")
	}
	if cfg.Telegram.Enabled && (cfg.Telegram.Token == "" || cfg.Telegram.ChatID == "") {
		return invalid("telegram.token and telegram.chat_id are required when telegram is enabled")
	}
	if cfg.Timescale.Enabled && strings.TrimSpace(cfg.Timescale.DSN) == "" {
		return invalid("timescale.dsn is required when timescale is enabled")
	}
	return nil
}
