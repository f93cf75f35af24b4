package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledgerbridge/backend/internal/domain/integration"
	"github.com/ledgerbridge/backend/internal/domain/shared"
)

// IVSize is the GCM nonce length in bytes
const IVSize = 12

const tagSize = 16

// Vault seals secrets with AES-256-GCM. Stored ciphertext has the form
// hex(ciphertext):hex(tag); the IV is stored separately as hex.
type Vault struct {
	aead   cipher.AEAD
	random io.Reader
}

// Option configures a Vault
type Option func(*Vault)

// WithRandom overrides the IV source
func WithRandom(r io.Reader) Option {
	return func(v *Vault) {
		v.random = r
	}
}

// New creates a Vault bound to the given key ring
func New(ring *KeyRing, opts ...Option) (*Vault, error) {
	if ring == nil {
		return nil, errors.New("vault: key ring is required")
	}
	block, err := aes.NewCipher(ring.key)
	if err != nil {
		return nil, fmt.Errorf("vault: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: create GCM: %w", err)
	}
	v := &Vault{aead: aead, random: rand.Reader}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Encrypt seals plaintext under a fresh random IV
func (v *Vault) Encrypt(plaintext string) (integration.EncryptedValue, error) {
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(v.random, iv); err != nil {
		return integration.EncryptedValue{}, fmt.Errorf("vault: generate IV: %w", err)
	}
	sealed := v.aead.Seal(nil, iv, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]
	return integration.EncryptedValue{
		Ciphertext: hex.EncodeToString(ct) + ":" + hex.EncodeToString(tag),
		IV:         hex.EncodeToString(iv),
	}, nil
}

// Decrypt opens a stored value. Malformed input and tag mismatches return
// an error matching shared.ErrDecryption.
func (v *Vault) Decrypt(value integration.EncryptedValue) (string, error) {
	iv, err := hex.DecodeString(value.IV)
	if err != nil || len(iv) != IVSize {
		return "", decryptionError("malformed IV")
	}
	ctHex, tagHex, ok := strings.Cut(value.Ciphertext, ":")
	if !ok {
		return "", decryptionError("ciphertext is missing the authentication tag")
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil {
		return "", decryptionError("malformed ciphertext")
	}
	tag, err := hex.DecodeString(tagHex)
	if err != nil || len(tag) != tagSize {
		return "", decryptionError("malformed authentication tag")
	}

	sealed := make([]byte, 0, len(ct)+len(tag))
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)
	plaintext, err := v.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", decryptionError("authentication tag mismatch")
	}
	return string(plaintext), nil
}

func decryptionError(reason string) error {
	return shared.NewDomainError(shared.CodeDecryptionFailed, "decryption failed: "+reason)
}

var _ integration.SecretCipher = (*Vault)(nil)
