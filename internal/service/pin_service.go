package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmynk/offpay/internal/auth"
)

// PINSetupService is the dedicated operation for provisioning the PIN.
type PINSetupService struct {
	vault PINStore
	opts  options
}

// NewPINSetupService creates a PINSetupService.
func NewPINSetupService(vault PINStore, opts ...Option) *PINSetupService {
	return &PINSetupService{
		vault: vault,
		opts:  buildOptions(opts),
	}
}

// Setup stores pin after checking it was entered twice and is well formed.
// An existing PIN is replaced.
func (s *PINSetupService) Setup(ctx context.Context, pin, confirm string) error {
	if strings.TrimSpace(pin) == "" {
		return ErrPINEmpty
	}
	if pin != confirm {
		return ErrPINMismatch
	}
	if err := auth.ValidatePIN(pin); err != nil {
		return err
	}

	if err := s.vault.SetPIN(ctx, pin); err != nil {
		s.opts.logger.Error("Failed to store PIN", "error", err)
		return fmt.Errorf("failed to set PIN: %w", err)
	}

	s.opts.logger.Info("PIN configured")
	return nil
}

// IsConfigured reports whether a PIN is stored.
func (s *PINSetupService) IsConfigured(ctx context.Context) (bool, error) {
	return s.vault.IsPINSet(ctx)
}

// Clear removes the stored PIN. Sends fail until a new one is set up.
func (s *PINSetupService) Clear(ctx context.Context) error {
	if err := s.vault.ClearPIN(ctx); err != nil {
		return fmt.Errorf("failed to clear PIN: %w", err)
	}
	s.opts.logger.Info("PIN cleared")
	return nil
}
