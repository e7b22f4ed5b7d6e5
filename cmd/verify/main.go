package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"standx-maker-bot/internal/app"
	"standx-maker-bot/internal/config"
	"standx-maker-bot/internal/logging"
	"standx-maker-bot/internal/strategy"
	"standx-maker-bot/internal/venue"

	"go.uber.org/zap"
)

const (
	defaultVerifyEnvFile = ".env"
	verifyTimeout        = 30 * time.Second
)

// verify is a one-shot connectivity check. It reads everything a cycle
// reads and prints the quotes the maker would place without placing them,
// unless -roundtrip is given.
func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to config file")
	roundtrip := flag.Bool("roundtrip", false, "place the planned buy quote and cancel it")
	flag.Parse()

	if err := config.LoadEnv(defaultVerifyEnvFile); err != nil {
		fatal(err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	log := logging.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	ex, _, err := app.BuildExchange(cfg, log)
	if err != nil {
		fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()

	symbol := cfg.Strategy.Symbol
	mark, err := ex.MarkPrice(ctx, symbol)
	if err != nil {
		fatal(fmt.Errorf("mark price: %w", err))
	}
	balance, err := ex.Balance(ctx)
	if err != nil {
		fatal(fmt.Errorf("balance: %w", err))
	}
	position, err := ex.Position(ctx, symbol)
	if err != nil {
		fatal(fmt.Errorf("position: %w", err))
	}
	orders, err := ex.OpenOrders(ctx, symbol)
	if err != nil {
		fatal(fmt.Errorf("open orders: %w", err))
	}

	policy, err := strategy.ParseSizingPolicy(cfg.Strategy.SizingPolicy)
	if err != nil {
		fatal(err)
	}
	capital := strategy.CapitalBase(policy, balance)
	sides := cfg.Strategy.QuoteSides()
	params := strategy.Params{
		Band: strategy.Band{
			TargetBps: cfg.Strategy.TargetBps,
			MinBps:    cfg.Strategy.MinBps,
			MaxBps:    cfg.Strategy.MaxBps,
		},
		Tick:          cfg.Strategy.TickSize,
		Increment:     cfg.Strategy.SizeIncrement,
		AllocationPct: strategy.PerSideAllocation(cfg.Strategy.AllocationPct, len(sides)),
		Leverage:      cfg.Strategy.Leverage,
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "symbol\t%s\n", symbol)
	fmt.Fprintf(w, "mark\t%s\n", mark)
	fmt.Fprintf(w, "available\t%s\n", balance.Available)
	fmt.Fprintf(w, "equity\t%s\n", balance.Equity)
	fmt.Fprintf(w, "capital (%s)\t%s\n", policy, capital)
	fmt.Fprintf(w, "position\t%s\n", position.Size)
	fmt.Fprintf(w, "open orders\t%d\n", len(venue.LiveOrders(orders, symbol)))
	for _, order := range venue.LiveOrders(orders, symbol) {
		bps := strategy.DistanceBps(order.Price, mark, order.Side)
		fmt.Fprintf(w, "  %s\t%s %s @ %s (%s bps, %s)\n", order.ID, order.Side, order.Quantity, order.Price, bps.StringFixed(2), order.Status)
	}
	fmt.Fprintln(w, "planned quotes")
	var plans []strategy.Evaluation
	for _, side := range sides {
		eval := strategy.Plan(side, mark, capital, params)
		plans = append(plans, eval)
		fmt.Fprintf(w, "  %s\t%s %s @ %s (%s bps, tier %s, notional %s)\n",
			side, eval.Action, eval.Quantity, eval.Price,
			eval.DistanceBps.StringFixed(2), strategy.TierLabel(eval.DistanceBps),
			eval.Price.Mul(eval.Quantity).StringFixed(2))
	}
	_ = w.Flush()

	if !*roundtrip {
		return
	}
	for _, eval := range plans {
		if eval.Side != venue.SideBuy || eval.Action != strategy.ActionPlace {
			continue
		}
		if err := placeAndCancel(ctx, ex, symbol, eval, cfg.Strategy.Leverage, log); err != nil {
			fatal(err)
		}
		return
	}
	fatal(fmt.Errorf("no placeable buy quote for %s", symbol))
}

func placeAndCancel(ctx context.Context, ex venue.Exchange, symbol string, eval strategy.Evaluation, leverage int, log *zap.Logger) error {
	orderID, err := ex.PlaceOrder(ctx, venue.OrderRequest{
		Symbol:      symbol,
		Side:        eval.Side,
		Price:       eval.Price,
		Quantity:    eval.Quantity,
		Leverage:    leverage,
		TimeInForce: venue.TifGTC,
	})
	if err != nil {
		return fmt.Errorf("place: %w", err)
	}
	log.Info("roundtrip order placed", zap.String("order_id", orderID), zap.String("price", eval.Price.String()))
	if err := ex.CancelOrder(ctx, symbol, orderID); err != nil {
		return fmt.Errorf("cancel %s: %w", orderID, err)
	}
	fmt.Printf("roundtrip ok: %s placed and cancelled (%s %s @ %s)\n", orderID, eval.Side, eval.Quantity, eval.Price)
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
