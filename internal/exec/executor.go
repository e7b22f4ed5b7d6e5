package exec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"standx-maker-bot/internal/venue"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Options struct {
	MaxAttempts    int
	InitialBackoff time.Duration
}

// Executor wraps a venue with bounded retries on writes. A placement keeps
// one client order id across its attempts so the venue can match a retry
// to an order that landed after a timeout. Reads pass straight through.
type Executor struct {
	venue venue.Exchange
	log   *zap.Logger
	opts  Options
}

func New(ex venue.Exchange, log *zap.Logger, opts Options) *Executor {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{venue: ex, log: log, opts: opts}
}

func NewClientOrderID() string {
	return uuid.NewString()
}

func (e *Executor) MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return e.venue.MarkPrice(ctx, symbol)
}

func (e *Executor) Balance(ctx context.Context) (venue.Balance, error) {
	return e.venue.Balance(ctx)
}

func (e *Executor) Position(ctx context.Context, symbol string) (venue.Position, error) {
	return e.venue.Position(ctx, symbol)
}

func (e *Executor) OpenOrders(ctx context.Context, symbol string) ([]venue.Order, error) {
	return e.venue.OpenOrders(ctx, symbol)
}

func (e *Executor) PlaceOrder(ctx context.Context, req venue.OrderRequest) (string, error) {
	if req.ClientOrderID == "" {
		req.ClientOrderID = NewClientOrderID()
	}
	return e.placeWithRetry(ctx, req)
}

func (e *Executor) CancelOrder(ctx context.Context, symbol, orderID string) error {
	err := e.retry(ctx, "cancel order", func() error {
		return e.venue.CancelOrder(ctx, symbol, orderID)
	})
	if err != nil {
		return fmt.Errorf("%w: order %s: %w", venue.ErrCancelFailed, orderID, err)
	}
	return nil
}

func (e *Executor) CancelAllOrders(ctx context.Context, symbol string) error {
	err := e.retry(ctx, "cancel all", func() error {
		return e.venue.CancelAllOrders(ctx, symbol)
	})
	if err != nil {
		return fmt.Errorf("%w: all orders on %s: %w", venue.ErrCancelFailed, symbol, err)
	}
	return nil
}

func (e *Executor) ClosePosition(ctx context.Context, symbol string) error {
	return e.retry(ctx, "close position", func() error {
		return e.venue.ClosePosition(ctx, symbol)
	})
}

func (e *Executor) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return e.retry(ctx, "set leverage", func() error {
		return e.venue.SetLeverage(ctx, symbol, leverage)
	})
}

func (e *Executor) placeWithRetry(ctx context.Context, req venue.OrderRequest) (string, error) {
	var orderID string
	err := e.retry(ctx, "place order", func() error {
		var err error
		orderID, err = e.venue.PlaceOrder(ctx, req)
		return err
	})
	if err != nil {
		return "", err
	}
	if orderID == "" {
		return "", errors.New("empty order id")
	}
	return orderID, nil
}

// retry runs fn until it succeeds, the venue rejects outright, ctx ends or
// attempts run out. Backoff doubles after each failure.
func (e *Executor) retry(ctx context.Context, op string, fn func() error) error {
	backoff := e.opts.InitialBackoff
	var err error
	for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if errors.Is(err, venue.ErrOrderRejected) {
			return err
		}
		if attempt == e.opts.MaxAttempts {
			break
		}
		e.log.Debug("retrying venue call", zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, e.opts.MaxAttempts, err)
}

var _ venue.Exchange = (*Executor)(nil)
