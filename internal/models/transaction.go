package models

import (
	"errors"

	"github.com/shopspring/decimal"
)

// TransactionType records which side of a transfer a ledger entry belongs to.
type TransactionType string

const (
	// TypeSent is recorded by the payer when a payload is generated.
	TypeSent TransactionType = "SENT"
	// TypeReceived is recorded by the payee when a payload is scanned.
	TypeReceived TransactionType = "RECEIVED"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TypeSent || t == TypeReceived
}

// ErrNonPositiveAmount is returned when a transaction is built with amount <= 0.
var ErrNonPositiveAmount = errors.New("transaction amount must be positive")

// ErrUnknownType is returned when a transaction is built with an unknown type.
var ErrUnknownType = errors.New("unknown transaction type")

// Transaction is a single entry in the local ledger.
//
// Every field except IsSynced is fixed at creation. IsSynced only moves from
// false to true, and only the sync reconciler moves it.
type Transaction struct {
	// ID is the surrogate key assigned by the ledger on insert (0 before insert).
	ID int64

	// Type is SENT or RECEIVED.
	Type TransactionType

	// Amount is the transferred value, always > 0.
	Amount decimal.Decimal

	// Timestamp is the creation instant in epoch milliseconds.
	Timestamp int64

	// Details is free-form text, may be empty.
	Details string

	// CounterpartyID is the correlation id generated by the sender.
	// Both sides of the same transfer carry the same value.
	CounterpartyID string

	// IsSynced is true once the remote service acknowledged this record.
	IsSynced bool
}

// NewTransaction builds an unsynced transaction that has not been inserted yet.
func NewTransaction(txType TransactionType, amount decimal.Decimal, timestamp int64, details, counterpartyID string) (*Transaction, error) {
	if !txType.Valid() {
		return nil, ErrUnknownType
	}
	if !amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	return &Transaction{
		Type:           txType,
		Amount:         amount,
		Timestamp:      timestamp,
		Details:        details,
		CounterpartyID: counterpartyID,
	}, nil
}
