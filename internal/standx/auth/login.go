package auth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const tokenLifetime = 7 * 24 * time.Hour

// Session performs the wallet login and caches the bearer token.
type Session struct {
	authURL string
	chain   string
	http    *http.Client
	wallet  *WalletSigner
	signer  *RequestSigner
	log     *zap.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewSession(authURL, chain string, timeout time.Duration, wallet *WalletSigner, signer *RequestSigner, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		authURL: strings.TrimRight(authURL, "/"),
		chain:   chain,
		http:    &http.Client{Timeout: timeout},
		wallet:  wallet,
		signer:  signer,
		log:     log,
	}
}

func (s *Session) Signer() *RequestSigner {
	return s.signer
}

// Token returns a cached token, logging in again when none is valid.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && time.Now().Before(s.expiresAt) {
		return s.token, nil
	}
	token, err := s.login(ctx)
	if err != nil {
		return "", fmt.Errorf("standx login: %w", err)
	}
	s.token = token
	// Refresh an hour early.
	s.expiresAt = time.Now().Add(tokenLifetime - time.Hour)
	s.log.Info("standx session established", zap.String("address", s.wallet.Address().Hex()))
	return token, nil
}

// Invalidate drops the cached token after the API rejects it.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

type prepareSigninRequest struct {
	Address   string `json:"address"`
	RequestID string `json:"requestId"`
}

type prepareSigninResponse struct {
	Success    bool   `json:"success"`
	SignedData string `json:"signedData"`
}

type loginRequest struct {
	Signature      string `json:"signature"`
	SignedData     string `json:"signedData"`
	ExpiresSeconds int64  `json:"expiresSeconds"`
}

type loginResponse struct {
	Token   string `json:"token"`
	Address string `json:"address"`
}

func (s *Session) login(ctx context.Context) (string, error) {
	var prepared prepareSigninResponse
	err := s.post(ctx, "/v1/offchain/prepare-signin", prepareSigninRequest{
		Address:   s.wallet.Address().Hex(),
		RequestID: s.signer.RequestID(),
	}, &prepared)
	if err != nil {
		return "", fmt.Errorf("prepare signin: %w", err)
	}
	if !prepared.Success || prepared.SignedData == "" {
		return "", errors.New("prepare signin: no signed data")
	}
	message, err := signinMessage(prepared.SignedData)
	if err != nil {
		return "", err
	}
	signature, err := s.wallet.SignMessage(message)
	if err != nil {
		return "", err
	}
	var resp loginResponse
	err = s.post(ctx, "/v1/offchain/login", loginRequest{
		Signature:      signature,
		SignedData:     prepared.SignedData,
		ExpiresSeconds: int64(tokenLifetime / time.Second),
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if resp.Token == "" {
		return "", errors.New("login: empty token")
	}
	return resp.Token, nil
}

// signinMessage extracts the message to sign from the JWT payload segment.
func signinMessage(jwt string) (string, error) {
	parts := strings.Split(jwt, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("signed data is not a jwt")
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode signed data: %w", err)
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("decode signed data: %w", err)
	}
	if payload.Message == "" {
		return "", errors.New("signed data carries no message")
	}
	return payload.Message, nil
}

func (s *Session) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	endpoint := s.authURL + path + "?chain=" + url.QueryEscape(s.chain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
