package auth

import (
	"crypto/ecdsa"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// WalletSigner signs login messages with the account's EVM key.
type WalletSigner struct {
	privKey *ecdsa.PrivateKey
	address common.Address
}

func NewWalletSigner(hexKey string) (*WalletSigner, error) {
	clean := strings.TrimSpace(hexKey)
	if clean == "" {
		return nil, errors.New("private key is required")
	}
	clean = strings.TrimPrefix(clean, "0x")
	key, err := crypto.HexToECDSA(clean)
	if err != nil {
		return nil, err
	}
	return &WalletSigner{privKey: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *WalletSigner) Address() common.Address {
	return s.address
}

// SignMessage produces an EIP-191 personal_sign signature, 0x-prefixed with
// a 27/28 recovery byte.
func (s *WalletSigner) SignMessage(message string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), s.privKey)
	if err != nil {
		return "", err
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}
