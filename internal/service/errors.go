package service

import (
	"errors"

	"github.com/mmynk/offpay/internal/payload"
	"github.com/mmynk/offpay/internal/storage"
	"github.com/mmynk/offpay/internal/vault"
)

var (
	ErrAmountOrPINEmpty = errors.New("amount and PIN cannot be empty")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrPINNotConfigured = errors.New("PIN not set up")
	ErrInvalidPIN       = errors.New("invalid PIN")

	// ErrLedgerIO wraps storage failures. It is surfaced, never swallowed.
	ErrLedgerIO = errors.New("ledger unavailable")

	ErrDuplicatePayload = errors.New("payment already recorded")
	ErrSealedPayload    = errors.New("payload is encrypted and no payload key is configured")
	ErrNotReissuable    = errors.New("only unsynced sent transactions can be reissued")

	ErrPINEmpty    = errors.New("PIN cannot be empty")
	ErrPINMismatch = errors.New("PIN entries do not match")
)

// resultLabel maps a flow error to a metrics label.
func resultLabel(err error) string {
	var perr *payload.ParseError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAmountOrPINEmpty), errors.Is(err, ErrPINEmpty):
		return "empty_input"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrPINNotConfigured):
		return "pin_not_configured"
	case errors.Is(err, ErrInvalidPIN):
		return "invalid_pin"
	case errors.Is(err, vault.ErrVaultInit):
		return "vault_unavailable"
	case errors.Is(err, ErrDuplicatePayload), errors.Is(err, storage.ErrDuplicate):
		return "duplicate"
	case errors.As(err, &perr), errors.Is(err, payload.ErrTampered), errors.Is(err, ErrSealedPayload):
		return "parse_error"
	case errors.Is(err, ErrLedgerIO):
		return "ledger_error"
	default:
		return "error"
	}
}
