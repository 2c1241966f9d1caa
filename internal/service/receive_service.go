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

// ReceiveResult is the outcome of a successfully recorded payment.
type ReceiveResult struct {
	Transaction *models.Transaction
	Amount      decimal.Decimal
	Details     string
}

// ReceiveService records payments from scanned payloads.
type ReceiveService struct {
	ledger storage.Ledger
	opts   options
}

// NewReceiveService creates a ReceiveService.
func NewReceiveService(ledger storage.Ledger, opts ...Option) *ReceiveService {
	return &ReceiveService{
		ledger: ledger,
		opts:   buildOptions(opts),
	}
}

// Process decodes raw and records a RECEIVED transaction. Nothing is written
// when decoding fails.
func (s *ReceiveService) Process(ctx context.Context, raw string) (*ReceiveResult, error) {
	result, err := s.process(ctx, raw)
	s.opts.metrics.Receive(resultLabel(err))
	return result, err
}

func (s *ReceiveService) process(ctx context.Context, raw string) (*ReceiveResult, error) {
	logger := s.opts.logger

	fields, err := s.decode(strings.TrimSpace(raw))
	if err != nil {
		logger.Warn("Payload rejected", "error", err)
		return nil, err
	}

	tx, err := models.NewTransaction(models.TypeReceived, fields.Amount, fields.Timestamp, fields.Details, fields.SenderTxID)
	if err != nil {
		return nil, &payload.ParseError{Field: payload.KeyAmount, Err: err}
	}

	if _, err := s.ledger.InsertTransaction(ctx, tx); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			logger.Warn("Payload already recorded", "correlation_id", tx.CounterpartyID)
			return nil, ErrDuplicatePayload
		}
		logger.Error("Failed to record received transaction", "correlation_id", tx.CounterpartyID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLedgerIO, err)
	}

	logger.Info("Payment received",
		"transaction_id", tx.ID,
		"correlation_id", tx.CounterpartyID,
		"amount", tx.Amount.String(),
	)

	return &ReceiveResult{
		Transaction: tx,
		Amount:      tx.Amount,
		Details:     tx.Details,
	}, nil
}

func (s *ReceiveService) decode(raw string) (*payload.Fields, error) {
	if !payload.IsSealed(raw) {
		return payload.Decode(raw)
	}
	if s.opts.sealer == nil {
		return nil, ErrSealedPayload
	}
	return s.opts.sealer.Open(raw)
}
