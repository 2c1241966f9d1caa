package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/offpay/internal/models"
	"github.com/mmynk/offpay/internal/payload"
	"github.com/mmynk/offpay/internal/storage"
)

// sendDetails is the label carried by every outgoing payment.
const sendDetails = "Payment"

// SendForm holds the user-entered send inputs. Submit clears PIN after a
// wrong PIN and clears both fields after a successful send.
type SendForm struct {
	Amount string
	PIN    string
}

// SendResult is the outcome of a successful send.
type SendResult struct {
	Transaction *models.Transaction
	Payload     string
}

// SendService authorizes outgoing payments and produces their payloads.
type SendService struct {
	vault  PINVerifier
	ledger storage.Ledger
	opts   options
}

// NewSendService creates a SendService. There is no default PIN: until one is
// provisioned through PINSetupService every send fails with ErrPINNotConfigured.
func NewSendService(vault PINVerifier, ledger storage.Ledger, opts ...Option) *SendService {
	return &SendService{
		vault:  vault,
		ledger: ledger,
		opts:   buildOptions(opts),
	}
}

// Submit validates the form, verifies the PIN, records a SENT transaction and
// returns the payload to display. The ledger insert completes before the
// payload is returned. Each call creates a new transaction with a new
// correlation id.
func (s *SendService) Submit(ctx context.Context, form *SendForm) (*SendResult, error) {
	result, err := s.submit(ctx, form)
	s.opts.metrics.Send(resultLabel(err))
	return result, err
}

func (s *SendService) submit(ctx context.Context, form *SendForm) (*SendResult, error) {
	logger := s.opts.logger

	if strings.TrimSpace(form.Amount) == "" || strings.TrimSpace(form.PIN) == "" {
		return nil, ErrAmountOrPINEmpty
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(form.Amount))
	if err != nil || !amount.IsPositive() {
		logger.Warn("Send rejected", "reason", "invalid amount")
		return nil, ErrInvalidAmount
	}

	set, err := s.vault.IsPINSet(ctx)
	if err != nil {
		logger.Error("PIN check failed", "error", err)
		return nil, fmt.Errorf("failed to check PIN: %w", err)
	}
	if !set {
		logger.Warn("Send rejected", "reason", "PIN not configured")
		return nil, ErrPINNotConfigured
	}

	ok, err := s.vault.VerifyPIN(ctx, form.PIN)
	if err != nil {
		logger.Error("PIN verification failed", "error", err)
		return nil, fmt.Errorf("failed to verify PIN: %w", err)
	}
	if !ok {
		form.PIN = ""
		logger.Warn("Send rejected", "reason", "invalid PIN")
		return nil, ErrInvalidPIN
	}

	correlationID := s.opts.newID()
	tx, err := models.NewTransaction(models.TypeSent, amount, s.opts.now().UnixMilli(), sendDetails, correlationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	text, err := s.encode(tx)
	if err != nil {
		logger.Error("Payload encoding failed", "error", err)
		return nil, err
	}

	if _, err := s.ledger.InsertTransaction(ctx, tx); err != nil {
		logger.Error("Failed to record sent transaction", "correlation_id", correlationID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLedgerIO, err)
	}

	form.Amount = ""
	form.PIN = ""

	logger.Info("Payment authorized",
		"transaction_id", tx.ID,
		"correlation_id", correlationID,
		"amount", tx.Amount.String(),
		"sealed", s.opts.sealer != nil,
	)

	return &SendResult{Transaction: tx, Payload: text}, nil
}

// Reissue rebuilds the payload of an unsynced SENT transaction from its stored
// fields, for a send whose payload was never shown. It needs no PIN: the
// transaction was authorized when created, and the receiver's ledger rejects a
// second scan of the same correlation id.
func (s *SendService) Reissue(ctx context.Context, id int64) (*SendResult, error) {
	tx, err := s.ledger.GetTransaction(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerIO, err)
	}

	if tx.Type != models.TypeSent || tx.IsSynced {
		return nil, ErrNotReissuable
	}

	text, err := s.encode(tx)
	if err != nil {
		return nil, err
	}

	s.opts.logger.Info("Payment payload reissued", "transaction_id", tx.ID, "correlation_id", tx.CounterpartyID)
	return &SendResult{Transaction: tx, Payload: text}, nil
}

func (s *SendService) encode(tx *models.Transaction) (string, error) {
	if s.opts.sealer == nil {
		return payload.Encode(tx.Amount, tx.CounterpartyID, tx.Details, tx.Timestamp), nil
	}

	text, err := s.opts.sealer.Seal(payload.Fields{
		Amount:     tx.Amount,
		SenderTxID: tx.CounterpartyID,
		Details:    tx.Details,
		Timestamp:  tx.Timestamp,
	})
	if err != nil {
		return "", fmt.Errorf("failed to seal payload: %w", err)
	}
	return text, nil
}
