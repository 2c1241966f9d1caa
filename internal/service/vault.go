package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/offpay/internal/vault"
)

// PINVerifier is the vault capability the send flow depends on.
type PINVerifier interface {
	IsPINSet(ctx context.Context) (bool, error)
	VerifyPIN(ctx context.Context, candidate string) (bool, error)
}

// PINStore adds provisioning to PINVerifier.
type PINStore interface {
	PINVerifier
	SetPIN(ctx context.Context, pin string) error
	ClearPIN(ctx context.Context) error
}

var _ PINStore = (*vault.Vault)(nil)

// UnavailableVault stands in for a vault that failed to open. Every call
// returns the init error, so PIN-gated flows fail without retrying.
func UnavailableVault(err error) PINStore {
	if !errors.Is(err, vault.ErrVaultInit) {
		err = fmt.Errorf("%w: %v", vault.ErrVaultInit, err)
	}
	return unavailableVault{err: err}
}

type unavailableVault struct {
	err error
}

func (u unavailableVault) IsPINSet(context.Context) (bool, error)          { return false, u.err }
func (u unavailableVault) VerifyPIN(context.Context, string) (bool, error) { return false, u.err }
func (u unavailableVault) SetPIN(context.Context, string) error            { return u.err }
func (u unavailableVault) ClearPIN(context.Context) error                  { return u.err }
