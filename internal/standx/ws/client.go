package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

type Subscription struct {
	Channel string `json:"channel"`
	Symbol  string `json:"symbol,omitempty"`
}

type subscribeMessage struct {
	Subscribe Subscription `json:"subscribe"`
}

// Message is one frame of the market stream.
type Message struct {
	Seq     int64           `json:"seq"`
	Channel string          `json:"channel"`
	Symbol  string          `json:"symbol"`
	Data    json.RawMessage `json:"data"`
}

// Client keeps a market stream connection open, replaying subscriptions
// after every reconnect.
type Client struct {
	url            string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	synced bool
	subs   []Subscription
}

func New(url string, reconnectDelay, pingInterval time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{url: url, reconnectDelay: reconnectDelay, pingInterval: pingInterval, log: log}
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

// Subscribe records sub and sends it on the live connection, if Run has
// one. Otherwise it is replayed on the next (re)connect.
func (c *Client) Subscribe(ctx context.Context, sub Subscription) error {
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	conn := c.conn
	synced := c.synced
	c.mu.Unlock()
	if conn == nil || !synced {
		return nil
	}
	return writeJSON(ctx, conn, subscribeMessage{Subscribe: sub})
}

func (c *Client) Run(ctx context.Context, handler func(Message)) error {
	for {
		err := c.ensureConnected(ctx)
		if err == nil {
			pingCtx, cancel := context.WithCancel(ctx)
			pingDone := make(chan struct{})
			go func() {
				defer close(pingDone)
				c.pingLoop(pingCtx)
			}()
			err = c.readLoop(ctx, handler)
			cancel()
			<-pingDone
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logReadLoopError(err)
		c.resetConn()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Client) ensureConnected(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	if c.synced {
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	subs := append([]Subscription(nil), c.subs...)
	c.synced = true
	c.mu.Unlock()
	for _, sub := range subs {
		if err := writeJSON(ctx, conn, subscribeMessage{Subscribe: sub}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context, handler func(Message)) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("ws not connected")
	}
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Debug("ws frame ignored", zap.Error(err))
			continue
		}
		if handler != nil && msg.Channel != "" {
			handler(msg)
		}
	}
}

func (c *Client) pingLoop(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	interval := c.pingInterval
	c.mu.Unlock()
	if conn == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, interval)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					c.log.Warn("ws ping failed", zap.Error(err))
					_ = conn.Close(websocket.StatusGoingAway, "ping timeout")
				}
				return
			}
		}
	}
}

func (c *Client) logReadLoopError(err error) {
	if err == nil {
		return
	}
	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure {
		var closeErr websocket.CloseError
		if errors.As(err, &closeErr) {
			c.log.Info("ws read loop ended", zap.Int("status", int(closeErr.Code)), zap.String("reason", closeErr.Reason))
			return
		}
		c.log.Info("ws read loop ended", zap.Error(err))
		return
	}
	c.log.Warn("ws read loop ended", zap.Error(err))
}

func (c *Client) resetConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "reset")
		c.conn = nil
	}
	c.synced = false
}

// Close ends the current connection; Run reconnects unless its ctx is done.
func (c *Client) Close() {
	c.resetConn()
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
