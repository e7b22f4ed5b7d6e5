package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"standx-maker-bot/internal/standx/auth"

	"go.uber.org/zap"
)

// ErrUnauthorized is returned when the API rejects the bearer token.
var ErrUnauthorized = errors.New("standx: unauthorized")

// Credentials supplies the bearer token and body signer for private calls.
type Credentials interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
	Signer() *auth.RequestSigner
}

type Client struct {
	baseURL string
	http    *http.Client
	creds   Credentials
	log     *zap.Logger
}

func New(baseURL string, timeout time.Duration, creds Credentials, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
		},
		creds: creds,
		log:   log,
	}
}

// APIError is the venue's in-band failure for write calls.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("standx api error %d: %s", e.Code, e.Message)
}

type envelope struct {
	Code      *int   `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values, private bool, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, endpoint, nil, private, false, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, c.baseURL+path, payload, true, true, out)
}

// do retries once with a fresh token when the API answers 401.
func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte, private, signed bool, out any) error {
	err := c.doOnce(ctx, method, endpoint, payload, private, signed, out)
	if errors.Is(err, ErrUnauthorized) && private && c.creds != nil {
		c.creds.Invalidate()
		err = c.doOnce(ctx, method, endpoint, payload, private, signed, out)
	}
	return err
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, payload []byte, private, signed bool, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if private {
		if c.creds == nil {
			return errors.New("standx credentials are required")
		}
		token, err := c.creds.Token(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if signed {
			c.creds.Signer().Sign(payload).Apply(req)
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http %d: %s", resp.StatusCode, truncate(raw))
	}
	if method == http.MethodPost {
		var env envelope
		if err := json.Unmarshal(raw, &env); err == nil && env.Code != nil && *env.Code != 0 {
			return &APIError{Code: *env.Code, Message: env.Message}
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func truncate(raw []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(raw))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
