package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"standx-maker-bot/internal/config"

	"go.uber.org/zap"
)

const telegramBaseURL = "https://api.telegram.org"

// Notifier delivers operator alerts. Delivery failures are the
// implementation's to log.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

type Telegram struct {
	enabled bool
	token   string
	chatID  string
	prefix  string
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

type sendMessageRequest struct {
	ChatID              string `json:"chat_id"`
	Text                string `json:"text"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func NewTelegram(cfg config.TelegramConfig, prefix string, log *zap.Logger) *Telegram {
	return newTelegram(cfg, prefix, log, telegramBaseURL, &http.Client{Timeout: 10 * time.Second})
}

func newTelegram(cfg config.TelegramConfig, prefix string, log *zap.Logger, baseURL string, client *http.Client) *Telegram {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Telegram{
		enabled: cfg.Enabled,
		token:   strings.TrimSpace(cfg.Token),
		chatID:  strings.TrimSpace(cfg.ChatID),
		prefix:  strings.TrimSpace(prefix),
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		log:     log,
	}
}

func (t *Telegram) Enabled() bool {
	return t != nil && t.enabled
}

func (t *Telegram) Send(ctx context.Context, message string) error {
	if !t.Enabled() {
		return nil
	}
	if t.token == "" || t.chatID == "" {
		return errors.New("telegram token and chat_id are required")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return errors.New("telegram message is empty")
	}
	if t.prefix != "" {
		message = "[" + t.prefix + "] " + message
	}
	body, err := json.Marshal(sendMessageRequest{ChatID: t.chatID, Text: message})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("telegram send failed: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var result sendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		desc := strings.TrimSpace(result.Description)
		if desc == "" {
			desc = "unknown telegram error"
		}
		return fmt.Errorf("telegram send failed: %s", desc)
	}
	return nil
}

// Notify sends without surfacing the error; failures are logged.
func (t *Telegram) Notify(ctx context.Context, message string) {
	if !t.Enabled() {
		return
	}
	if err := t.Send(ctx, message); err != nil {
		t.log.Warn("telegram alert failed", zap.Error(err))
	}
}
