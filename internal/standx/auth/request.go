package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

const signVersion = "v1"

// RequestSigner holds the session ed25519 key that signs trading request
// bodies. Its public key, base58 encoded, is the request id bound at login.
type RequestSigner struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	now  func() time.Time
}

func NewRequestSigner() (*RequestSigner, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &RequestSigner{priv: priv, pub: pub, now: time.Now}, nil
}

func (s *RequestSigner) RequestID() string {
	return base58.Encode(s.pub)
}

type SignedHeaders struct {
	Version   string
	ID        string
	Timestamp int64
	Signature string
}

func (h SignedHeaders) Apply(req *http.Request) {
	req.Header.Set("x-request-sign-version", h.Version)
	req.Header.Set("x-request-id", h.ID)
	req.Header.Set("x-request-timestamp", strconv.FormatInt(h.Timestamp, 10))
	req.Header.Set("x-request-signature", h.Signature)
}

// Sign covers "version,id,timestamp,body".
func (s *RequestSigner) Sign(body []byte) SignedHeaders {
	h := SignedHeaders{
		Version:   signVersion,
		ID:        uuid.NewString(),
		Timestamp: s.now().UnixMilli(),
	}
	sig := ed25519.Sign(s.priv, signingPayload(h, body))
	h.Signature = base64.StdEncoding.EncodeToString(sig)
	return h
}

// Verify checks headers produced by a signer with the given request id.
func Verify(requestID string, h SignedHeaders, body []byte) error {
	pub, err := base58.Decode(requestID)
	if err != nil {
		return err
	}
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("request id decodes to %d bytes", len(pub))
	}
	sig, err := base64.StdEncoding.DecodeString(h.Signature)
	if err != nil {
		return err
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), signingPayload(h, body), sig) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

func signingPayload(h SignedHeaders, body []byte) []byte {
	return []byte(fmt.Sprintf("%s,%s,%d,%s", h.Version, h.ID, h.Timestamp, body))
}
