package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"standx-maker-bot/internal/alerts"
	"standx-maker-bot/internal/config"
	"standx-maker-bot/internal/exec"
	"standx-maker-bot/internal/market"
	"standx-maker-bot/internal/metrics"
	"standx-maker-bot/internal/points"
	"standx-maker-bot/internal/standx"
	"standx-maker-bot/internal/standx/auth"
	"standx-maker-bot/internal/standx/rest"
	"standx-maker-bot/internal/standx/ws"
	"standx-maker-bot/internal/state"
	"standx-maker-bot/internal/state/sqlite"
	"standx-maker-bot/internal/strategy"
	"standx-maker-bot/internal/timescale"
	"standx-maker-bot/internal/venue"

	"go.uber.org/zap"
)

const (
	wsPingInterval    = 15 * time.Second
	ledgerSaveEvery   = time.Minute
	teardownTimeout   = 30 * time.Second
	metricsReadHeader = 5 * time.Second
)

type App struct {
	cfg       *config.Config
	log       *zap.Logger
	store     state.Store
	exchange  venue.Exchange
	feed      *market.MarkFeed
	metrics   *metrics.Metrics
	prom      *metrics.Prometheus
	alerts    alerts.Notifier
	timescale *timescale.Writer
	tracker   *points.Tracker
	maker     *Maker
	reporters []Reporter
	now       func() time.Time
}

// BuildExchange wires the StandX client stack behind venue.Exchange. The
// returned feed must be started for streamed mark prices to be used.
func BuildExchange(cfg *config.Config, log *zap.Logger) (venue.Exchange, *market.MarkFeed, error) {
	wallet, err := auth.NewWalletSigner(cfg.Venue.PrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("wallet: %w", err)
	}
	signer, err := auth.NewRequestSigner()
	if err != nil {
		return nil, nil, fmt.Errorf("request signer: %w", err)
	}
	session := auth.NewSession(cfg.Venue.AuthURL, cfg.Venue.Chain, cfg.Venue.Timeout, wallet, signer, log)
	restClient := rest.New(cfg.Venue.BaseURL, cfg.Venue.Timeout, session, log)
	var wsClient *ws.Client
	if cfg.Venue.WSURL != "" {
		wsClient = ws.New(cfg.Venue.WSURL, cfg.Venue.ReconnectDelay, wsPingInterval, log)
	}
	feed := market.NewMarkFeed(restClient, wsClient, cfg.Venue.MaxPriceAge, log)
	var ex venue.Exchange = standx.NewExchange(restClient, feed, log)
	if cfg.Strategy.DryRun {
		ex = venue.NewDryRun(ex, log)
	}
	log.Info("venue configured",
		zap.String("base_url", cfg.Venue.BaseURL),
		zap.String("wallet", wallet.Address().Hex()),
		zap.String("chain", cfg.Venue.Chain),
		zap.Bool("dry_run", cfg.Strategy.DryRun),
	)
	return ex, feed, nil
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}
	ex, feed, err := BuildExchange(cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	writer, err := timescale.New(cfg.Timescale, log)
	if err != nil {
		log.Warn("timescale disabled", zap.Error(err))
		writer = nil
	}
	var prom *metrics.Prometheus
	if cfg.Metrics.EnabledValue() {
		prom = metrics.NewPrometheus()
	}
	a, err := newApp(cfg, log, ex, store, alerts.NewTelegram(cfg.Telegram, cfg.Strategy.Symbol, log), prom, writer)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	a.feed = feed
	return a, nil
}

func newApp(cfg *config.Config, log *zap.Logger, ex venue.Exchange, store state.Store, notifier alerts.Notifier, prom *metrics.Prometheus, writer *timescale.Writer) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	policy, err := strategy.ParseSizingPolicy(cfg.Strategy.SizingPolicy)
	if err != nil {
		return nil, err
	}
	m := metrics.NewNoop()
	if prom != nil {
		m = prom.Metrics
	}
	executor := exec.New(ex, log, exec.Options{
		MaxAttempts:    cfg.Exec.MaxAttempts,
		InitialBackoff: cfg.Exec.InitialBackoff,
	})
	maker := NewMaker(executor, MakerConfig{
		Symbol: cfg.Strategy.Symbol,
		Sides:  cfg.Strategy.QuoteSides(),
		Policy: policy,
		Params: strategy.Params{
			Band: strategy.Band{
				TargetBps: cfg.Strategy.TargetBps,
				MinBps:    cfg.Strategy.MinBps,
				MaxBps:    cfg.Strategy.MaxBps,
			},
			Tick:          cfg.Strategy.TickSize,
			Increment:     cfg.Strategy.SizeIncrement,
			AllocationPct: cfg.Strategy.AllocationPct,
			Leverage:      cfg.Strategy.Leverage,
		},
		SettleDelay: cfg.Strategy.SettleDelay,
	}, notifier, log)

	ctx := context.Background()
	ledger, err := points.LoadLedger(ctx, store, cfg.State.PointsKey)
	if err != nil {
		log.Warn("points ledger load failed, starting fresh", zap.Error(err))
		ledger = points.Ledger{}
	}
	tracker := points.NewTracker(ledger, time.Now())
	if snapshot, ok, err := state.LoadQuoteSnapshot(ctx, store, cfg.Strategy.Symbol); err != nil {
		log.Warn("quote snapshot load failed", zap.Error(err))
	} else if ok {
		restoreQuotes(maker, snapshot)
	}

	a := &App{
		cfg:       cfg,
		log:       log,
		store:     store,
		exchange:  executor,
		metrics:   m,
		prom:      prom,
		alerts:    notifier,
		timescale: writer,
		tracker:   tracker,
		maker:     maker,
		now:       time.Now,
	}
	a.reporters = []Reporter{
		logReporter{log: log},
		metricsReporter{metrics: m},
		snapshotReporter{store: store, log: log},
		timescaleReporter{writer: writer},
		&pointsReporter{
			tracker:   tracker,
			store:     store,
			key:       cfg.State.PointsKey,
			metrics:   m,
			log:       log,
			saveEvery: ledgerSaveEvery,
			lastSave:  time.Now(),
		},
	}
	return a, nil
}

func restoreQuotes(maker *Maker, snapshot state.QuoteSnapshot) {
	records := map[venue.Side]*state.QuoteRecord{
		venue.SideBuy:  snapshot.Buy,
		venue.SideSell: snapshot.Sell,
	}
	for side, rec := range records {
		if rec == nil {
			continue
		}
		maker.Restore(side, strategy.Quote{
			OrderID:  rec.OrderID,
			Price:    rec.Price,
			Quantity: rec.Quantity,
			OpenedAt: rec.OpenedAt(),
		})
	}
}

// Run sets leverage once, then quotes on a fixed interval until ctx ends.
// Teardown always runs on a context detached from ctx.
func (a *App) Run(ctx context.Context) error {
	defer a.close()
	symbol := a.cfg.Strategy.Symbol

	a.timescale.Start(ctx)
	if a.feed != nil {
		if err := a.feed.Start(ctx, symbol); err != nil {
			a.log.Warn("mark price stream unavailable, using rest", zap.Error(err))
		}
	}
	server := a.startMetricsServer()
	if server != nil {
		defer a.stopMetricsServer(server)
	}

	if err := a.exchange.SetLeverage(context.WithoutCancel(ctx), symbol, a.cfg.Strategy.Leverage); err != nil {
		return fmt.Errorf("set leverage: %w", err)
	}
	a.log.Info("maker started",
		zap.String("symbol", symbol),
		zap.Int("leverage", a.cfg.Strategy.Leverage),
		zap.String("target_bps", a.cfg.Strategy.TargetBps.String()),
		zap.String("min_bps", a.cfg.Strategy.MinBps.String()),
		zap.String("max_bps", a.cfg.Strategy.MaxBps.String()),
		zap.Duration("interval", a.cfg.Strategy.Interval),
	)
	a.notify(ctx, alerts.StartMessage(symbol, a.cfg.Strategy.DryRun))
	defer a.teardown(ctx)

	ticker := time.NewTicker(a.cfg.Strategy.Interval)
	defer ticker.Stop()

	a.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.cycle(ctx)
		}
	}
}

func (a *App) cycle(ctx context.Context) CycleResult {
	res := a.maker.RunCycle(ctx)
	for _, r := range a.reporters {
		r.Report(context.WithoutCancel(ctx), res)
	}
	return res
}

// teardown cancels every quote and optionally flattens the account. It
// never returns early on failure.
func (a *App) teardown(parent context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), teardownTimeout)
	defer cancel()
	symbol := a.cfg.Strategy.Symbol

	if err := a.exchange.CancelAllOrders(ctx, symbol); err != nil {
		a.log.Warn("teardown cancel all failed", zap.String("symbol", symbol), zap.Error(err))
	} else {
		for _, side := range a.maker.sides {
			a.maker.State(side).Clear()
		}
	}
	if a.cfg.Strategy.FlattenOnExitValue() {
		pos, err := a.exchange.Position(ctx, symbol)
		switch {
		case err != nil:
			a.log.Warn("teardown position read failed", zap.Error(err))
		case !pos.Flat():
			if err := a.exchange.ClosePosition(ctx, symbol); err != nil {
				a.log.Warn("teardown flatten failed", zap.String("size", pos.Size.String()), zap.Error(err))
			} else {
				a.log.Info("teardown flattened position", zap.String("size", pos.Size.String()))
			}
		}
	}

	now := a.now()
	a.tracker.Finish(now)
	if err := points.SaveLedger(ctx, a.store, a.cfg.State.PointsKey, a.tracker.Ledger()); err != nil {
		a.log.Warn("points ledger save failed", zap.Error(err))
	}
	if err := state.SaveQuoteSnapshot(ctx, a.store, state.QuoteSnapshot{Symbol: symbol, UpdatedAtMS: now.UnixMilli()}); err != nil {
		a.log.Warn("quote snapshot save failed", zap.Error(err))
	}
	stats := a.tracker.Stats(now)
	a.log.Info("session summary",
		zap.String("symbol", symbol),
		zap.Duration("session", stats.SessionLength),
		zap.String("session_points", stats.SessionPoints.StringFixed(4)),
		zap.String("total_points", stats.TotalPoints.StringFixed(4)),
		zap.String("points_per_hour", stats.PointsPerHour.StringFixed(4)),
		zap.String("uptime_pct", stats.UptimePct.StringFixed(1)),
		zap.Int("quotes_closed", stats.ClosedQuotes),
	)
	a.notify(ctx, alerts.ShutdownMessage(symbol, stats.SessionPoints, stats.SessionLength))
}

func (a *App) notify(ctx context.Context, message string) {
	if a.alerts == nil {
		return
	}
	a.alerts.Notify(context.WithoutCancel(ctx), message)
}

func (a *App) startMetricsServer() *http.Server {
	if a.prom == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, a.prom.Handler())
	server := &http.Server{
		Addr:              a.cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeader,
	}
	go func() {
		a.log.Info("metrics server listening", zap.String("addr", server.Addr), zap.String("path", a.cfg.Metrics.Path))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	return server
}

func (a *App) stopMetricsServer(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		a.log.Warn("metrics server shutdown failed", zap.Error(err))
	}
}

func (a *App) close() {
	if err := a.timescale.Close(); err != nil {
		a.log.Warn("timescale close failed", zap.Error(err))
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("state store close failed", zap.Error(err))
		}
	}
}
