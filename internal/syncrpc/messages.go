// Package syncrpc is the Connect transport between a device's reconciler and
// the sync server. Messages are google.protobuf.Struct values, so both ends
// share one procedure without generated stubs.
package syncrpc

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/offpay/internal/models"
)

// SubmitProcedure is the fully-qualified Connect procedure for Submit.
const SubmitProcedure = "/offpay.sync.v1.SyncService/Submit"

// Message field names.
const (
	fieldCorrelationID = "correlation_id"
	fieldLedgerID      = "ledger_id"
	fieldType          = "type"
	fieldAmount        = "amount"
	fieldTimestamp     = "timestamp"
	fieldDetails       = "details"
	fieldReceiptID     = "receipt_id"
	fieldDuplicate     = "duplicate"
)

var (
	ErrInvalidMessage = errors.New("invalid sync message")
	ErrEmptyReceipt   = errors.New("response carries no receipt id")
)

// submission is the decoded form of a Submit request.
type submission struct {
	CorrelationID string
	Type          models.TransactionType
	Amount        decimal.Decimal
	Timestamp     int64
	Details       string
}

// correlationKey is the dedup key the server stores. Records without a
// counterparty id fall back to their ledger id, which is stable per device.
func correlationKey(tx *models.Transaction) string {
	if tx.CounterpartyID != "" {
		return tx.CounterpartyID
	}
	return "ledger:" + strconv.FormatInt(tx.ID, 10)
}

func newSubmitRequest(tx *models.Transaction) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		fieldCorrelationID: correlationKey(tx),
		fieldLedgerID:      float64(tx.ID),
		fieldType:          string(tx.Type),
		fieldAmount:        tx.Amount.String(),
		// Epoch milliseconds stay exact in a float64 until year 287396.
		fieldTimestamp: float64(tx.Timestamp),
		fieldDetails:   tx.Details,
	})
}

func parseSubmitRequest(msg *structpb.Struct) (*submission, error) {
	fields := msg.GetFields()

	correlationID := fields[fieldCorrelationID].GetStringValue()
	if correlationID == "" {
		return nil, fmt.Errorf("%w: %s is required", ErrInvalidMessage, fieldCorrelationID)
	}

	txType := models.TransactionType(fields[fieldType].GetStringValue())
	if !txType.Valid() {
		return nil, fmt.Errorf("%w: %s %q", ErrInvalidMessage, fieldType, txType)
	}

	amount, err := decimal.NewFromString(fields[fieldAmount].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMessage, fieldAmount, err)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s must be positive", ErrInvalidMessage, fieldAmount)
	}

	ts, ok := fields[fieldTimestamp].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a number", ErrInvalidMessage, fieldTimestamp)
	}
	timestamp, ok := integral(ts.NumberValue)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be an integer, got %v", ErrInvalidMessage, fieldTimestamp, ts.NumberValue)
	}

	return &submission{
		CorrelationID: correlationID,
		Type:          txType,
		Amount:        amount,
		Timestamp:     timestamp,
		Details:       fields[fieldDetails].GetStringValue(),
	}, nil
}

// integral converts f to int64 when it is a whole number inside the int64
// range. float64(math.MaxInt64) rounds up to 2^63, hence the >=.
func integral(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func newSubmitResponse(receiptID string, duplicate bool) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		fieldReceiptID: receiptID,
		fieldDuplicate: duplicate,
	})
}
