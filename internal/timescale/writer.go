package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"standx-maker-bot/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// QuoteRow is one side of one quoting cycle.
type QuoteRow struct {
	Time        time.Time
	Symbol      string
	Side        string
	State       string
	Action      string
	Reason      string
	Mark        decimal.Decimal
	Capital     decimal.Decimal
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	DistanceBps decimal.Decimal
	Tier        string
	UptimeSec   float64
}

// GuardEvent records a stray position being flattened.
type GuardEvent struct {
	Time   time.Time
	Symbol string
	Size   decimal.Decimal
	Err    string
}

type Writer struct {
	db        *sql.DB
	log       *zap.Logger
	schema    string
	quotes    chan QuoteRow
	guards    chan GuardEvent
	started   atomic.Bool
	dropQuote atomic.Uint64
	dropGuard atomic.Uint64
}

func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	writer := newWriter(db, schema, queueSize, log)
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func newWriter(db *sql.DB, schema string, queueSize int, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{
		db:     db,
		log:    log,
		schema: schema,
		quotes: make(chan QuoteRow, queueSize),
		guards: make(chan GuardEvent, queueSize),
	}
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) EnqueueQuote(row QuoteRow) {
	if w == nil {
		return
	}
	select {
	case w.quotes <- row:
	default:
		if w.dropQuote.Add(1) == 1 {
			w.log.Warn("timescale quote queue full")
		}
	}
}

func (w *Writer) EnqueueGuard(event GuardEvent) {
	if w == nil {
		return
	}
	select {
	case w.guards <- event:
	default:
		if w.dropGuard.Add(1) == 1 {
			w.log.Warn("timescale guard queue full")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case row := <-w.quotes:
			w.writeQuote(ctx, row)
		case event := <-w.guards:
			w.writeGuard(ctx, event)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("timescale db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		state TEXT NOT NULL,
		action TEXT NOT NULL,
		reason TEXT NOT NULL,
		mark NUMERIC NOT NULL,
		capital NUMERIC NOT NULL,
		price NUMERIC NOT NULL,
		quantity NUMERIC NOT NULL,
		distance_bps NUMERIC NOT NULL,
		tier TEXT NOT NULL,
		uptime_s DOUBLE PRECISION NOT NULL DEFAULT 0
	)`, w.table("quote_cycles"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		symbol TEXT NOT NULL,
		size NUMERIC NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	)`, w.table("guard_events"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		w.log.Warn("timescale extension ensure failed", zap.Error(err))
		return nil
	}
	for _, name := range []string{"quote_cycles", "guard_events"} {
		if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table(name))); err != nil {
			w.log.Warn("timescale hypertable create failed", zap.String("table", name), zap.Error(err))
		}
	}
	return nil
}

func (w *Writer) writeQuote(ctx context.Context, row QuoteRow) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, symbol, side, state, action, reason, mark, capital, price, quantity, distance_bps, tier, uptime_s
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
	)`, w.table("quote_cycles"))
	if _, err := w.db.ExecContext(ctx, query,
		row.Time,
		row.Symbol,
		row.Side,
		row.State,
		row.Action,
		row.Reason,
		row.Mark,
		row.Capital,
		row.Price,
		row.Quantity,
		row.DistanceBps,
		row.Tier,
		row.UptimeSec,
	); err != nil {
		w.log.Warn("timescale quote insert failed", zap.Error(err))
	}
}

func (w *Writer) writeGuard(ctx context.Context, event GuardEvent) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (ts, symbol, size, error) VALUES ($1,$2,$3,$4)`, w.table("guard_events"))
	if _, err := w.db.ExecContext(ctx, query, event.Time, event.Symbol, event.Size, event.Err); err != nil {
		w.log.Warn("timescale guard insert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
