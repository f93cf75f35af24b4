// Package vault implements authenticated encryption of integration secrets.
package vault

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/scrypt"
)

// KeySize is the AES-256 key length in bytes
const KeySize = 32

// KDFParams are the scrypt cost parameters
type KDFParams struct {
	N int
	R int
	P int
}

// DefaultKDFParams returns the production scrypt cost
func DefaultKDFParams() KDFParams {
	return KDFParams{N: 32768, R: 8, P: 1}
}

var (
	ErrEmptyMasterSecret = errors.New("vault: master secret is empty")
	ErrEmptySalt         = errors.New("vault: salt is empty")
	ErrInvalidKeySize    = errors.New("vault: key must be 32 bytes")
)

// KeyRing holds derived key material for the lifetime of the process. It is
// passed explicitly to the Vault so tests can inject deterministic keys.
type KeyRing struct {
	key []byte
}

// DeriveKeyRing derives the encryption key from a master secret with scrypt.
// The derivation is slow by design and should run once at startup.
func DeriveKeyRing(masterSecret, salt string, params KDFParams, logger *zap.Logger) (*KeyRing, error) {
	if masterSecret == "" {
		return nil, ErrEmptyMasterSecret
	}
	if salt == "" {
		return nil, ErrEmptySalt
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	start := time.Now()
	key, err := scrypt.Key([]byte(masterSecret), []byte(salt), params.N, params.R, params.P, KeySize)
	if err != nil {
		return nil, fmt.Errorf("vault: derive key: %w", err)
	}
	logger.Info("Vault key derived",
		zap.Int("scrypt_n", params.N),
		zap.Int("scrypt_r", params.R),
		zap.Int("scrypt_p", params.P),
		zap.Duration("duration", time.Since(start)),
	)
	return &KeyRing{key: key}, nil
}

// NewKeyRing wraps raw key material
func NewKeyRing(key []byte) (*KeyRing, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &KeyRing{key: k}, nil
}

// String never reveals key material
func (k *KeyRing) String() string {
	return "vault.KeyRing{redacted}"
}
