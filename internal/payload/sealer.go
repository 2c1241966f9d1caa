package payload

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// SealedPrefix marks payloads produced by Sealer.
const SealedPrefix = "opay1."

var (
	ErrNotSealed = errors.New("payload is not sealed")
	ErrTampered  = errors.New("sealed payload failed authentication")
)

var sealInfo = []byte("offpay payload v1")

// Sealer encrypts and authenticates payloads with XChaCha20-Poly1305 under a
// key derived from a secret shared by sender and receiver. Field values are
// percent-escaped before encryption, so ";" and "=" round-trip.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the payload key from secret with HKDF-SHA256.
func NewSealer(secret []byte) (*Sealer, error) {
	if len(secret) == 0 {
		return nil, errors.New("payload secret required")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, sealInfo), key); err != nil {
		return nil, fmt.Errorf("failed to derive payload key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// IsSealed reports whether text carries the sealed payload prefix.
func IsSealed(text string) bool {
	return strings.HasPrefix(text, SealedPrefix)
}

// Seal encodes f with escaped values and encrypts it.
func (s *Sealer) Seal(f Fields) (string, error) {
	plain := []byte(encode(f, url.QueryEscape))

	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plain)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := s.aead.Seal(nonce, nonce, plain, []byte(SealedPrefix))
	return SealedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open authenticates, decrypts and decodes a sealed payload.
func (s *Sealer) Open(text string) (*Fields, error) {
	if !IsSealed(text) {
		return nil, ErrNotSealed
	}

	sealed, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(text, SealedPrefix))
	if err != nil {
		return nil, ErrTampered
	}
	if len(sealed) < s.aead.NonceSize()+s.aead.Overhead() {
		return nil, ErrTampered
	}

	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, []byte(SealedPrefix))
	if err != nil {
		return nil, ErrTampered
	}

	return decode(string(plain), url.QueryUnescape)
}
