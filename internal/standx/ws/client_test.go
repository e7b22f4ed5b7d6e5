package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

func priceServer(t *testing.T, connects *atomic.Int32, dropFirst bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept ws: %v", err)
			return
		}
		n := connects.Add(1)
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
		ctx := r.Context()
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var sub subscribeMessage
		if err := json.Unmarshal(data, &sub); err != nil || sub.Subscribe.Channel != "price" {
			t.Errorf("unexpected subscribe frame %s", data)
			return
		}
		if dropFirst && n == 1 {
			return
		}
		frame := `{"seq":1,"channel":"price","symbol":"` + sub.Subscribe.Symbol + `","data":{"mark_price":"100000.5"}}`
		if err := conn.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
			return
		}
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}))
}

func TestClientDeliversSubscribedFrames(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var connects atomic.Int32
	server := priceServer(t, &connects, false)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client := New(wsURL, 10*time.Millisecond, 0, zap.NewNop())
	if err := client.Subscribe(ctx, Subscription{Channel: "price", Symbol: "BTC-USD"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	msgCh := make(chan Message, 1)
	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go func() {
		_ = client.Run(runCtx, func(msg Message) {
			select {
			case msgCh <- msg:
			default:
			}
		})
	}()

	select {
	case msg := <-msgCh:
		if msg.Channel != "price" || msg.Symbol != "BTC-USD" {
			t.Fatalf("unexpected message %+v", msg)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for price frame")
	}
}

func TestClientResubscribesAfterReconnect(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var connects atomic.Int32
	server := priceServer(t, &connects, true)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client := New(wsURL, 10*time.Millisecond, 0, zap.NewNop())
	_ = client.Subscribe(ctx, Subscription{Channel: "price", Symbol: "ETH-USD"})

	msgCh := make(chan Message, 1)
	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go func() {
		_ = client.Run(runCtx, func(msg Message) {
			select {
			case msgCh <- msg:
			default:
			}
		})
	}()

	select {
	case msg := <-msgCh:
		if msg.Symbol != "ETH-USD" {
			t.Fatalf("unexpected message %+v", msg)
		}
		if connects.Load() < 2 {
			t.Fatalf("expected a reconnect, got %d connects", connects.Load())
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for frame after reconnect")
	}
}
