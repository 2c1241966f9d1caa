// Package vault keeps the single PIN credential encrypted at rest.
//
// The PIN is stored twice under one atomic write: sealed with
// XChaCha20-Poly1305 under a device master key so it can be read back, and
// as a bcrypt hash. Verification requires both to match.
package vault

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/mmynk/offpay/internal/auth"
	"github.com/mmynk/offpay/internal/storage"
)

var (
	// ErrVaultInit is returned when the vault cannot be constructed. It is
	// not retried; PIN-gated operations stay disabled until it is resolved.
	ErrVaultInit = errors.New("vault initialization failed")

	// ErrCorrupted is returned when a stored secret fails authentication.
	ErrCorrupted = errors.New("stored credential is corrupted")
)

const (
	keyPIN     = "pin"
	keyPINHash = "pin_hash"
)

var pinAD = []byte("offpay/vault/pin/v1")

// Options tunes vault behavior.
type Options struct {
	// HashCost is the bcrypt cost for the verification hash.
	// Zero uses bcrypt.DefaultCost.
	HashCost int
}

// Vault is the encrypted-at-rest store of the PIN credential.
// It is safe for concurrent use.
type Vault struct {
	store    storage.SecretStore
	aead     cipher.AEAD
	hashCost int
}

// Open loads (or creates) the master key at keyFile and opens the vault.
func Open(ctx context.Context, store storage.SecretStore, keyFile string, opts Options) (*Vault, error) {
	key, err := LoadOrCreateKey(keyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVaultInit, err)
	}
	return New(ctx, store, key, opts)
}

// New opens the vault with an explicit master key. Any PIN already stored
// must decrypt under key, otherwise construction fails with ErrVaultInit.
func New(ctx context.Context, store storage.SecretStore, key []byte, opts Options) (*Vault, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: no secret store", ErrVaultInit)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVaultInit, err)
	}

	v := &Vault{
		store:    store,
		aead:     aead,
		hashCost: opts.HashCost,
	}

	if _, _, err := v.PIN(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVaultInit, err)
	}

	return v, nil
}

// SetPIN overwrites the stored PIN.
func (v *Vault) SetPIN(ctx context.Context, pin string) error {
	sealed, err := v.seal([]byte(pin))
	if err != nil {
		return err
	}

	hash, err := auth.HashPIN(pin, v.hashCost)
	if err != nil {
		return err
	}

	if err := v.store.PutSecrets(ctx, map[string][]byte{
		keyPIN:     sealed,
		keyPINHash: hash,
	}); err != nil {
		return fmt.Errorf("failed to store PIN: %w", err)
	}
	return nil
}

// PIN returns the stored PIN. The boolean is false when none is set.
func (v *Vault) PIN(ctx context.Context) (string, bool, error) {
	sealed, err := v.store.GetSecret(ctx, keyPIN)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read PIN: %w", err)
	}

	plain, err := v.open(sealed)
	if err != nil {
		return "", false, err
	}
	return string(plain), true, nil
}

// IsPINSet reports whether a PIN is stored.
func (v *Vault) IsPINSet(ctx context.Context) (bool, error) {
	_, ok, err := v.PIN(ctx)
	return ok, err
}

// VerifyPIN reports whether a PIN is set and equals candidate exactly.
// The stored hash must agree as well, so a half-replaced credential never
// verifies.
func (v *Vault) VerifyPIN(ctx context.Context, candidate string) (bool, error) {
	pin, ok, err := v.PIN(ctx)
	if err != nil || !ok {
		return false, err
	}
	if subtle.ConstantTimeCompare([]byte(pin), []byte(candidate)) != 1 {
		return false, nil
	}

	hash, err := v.store.GetSecret(ctx, keyPINHash)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read PIN hash: %w", err)
	}
	return auth.ComparePIN(hash, candidate), nil
}

// ClearPIN removes the stored PIN.
func (v *Vault) ClearPIN(ctx context.Context) error {
	if err := v.store.DeleteSecrets(ctx, keyPIN, keyPINHash); err != nil {
		return fmt.Errorf("failed to clear PIN: %w", err)
	}
	return nil
}

func (v *Vault) seal(plain []byte) ([]byte, error) {
	nonce := make([]byte, v.aead.NonceSize(), v.aead.NonceSize()+len(plain)+v.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return v.aead.Seal(nonce, nonce, plain, pinAD), nil
}

func (v *Vault) open(sealed []byte) ([]byte, error) {
	if len(sealed) < v.aead.NonceSize()+v.aead.Overhead() {
		return nil, ErrCorrupted
	}
	nonce, ciphertext := sealed[:v.aead.NonceSize()], sealed[v.aead.NonceSize():]
	plain, err := v.aead.Open(nil, nonce, ciphertext, pinAD)
	if err != nil {
		return nil, ErrCorrupted
	}
	return plain, nil
}
