// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/offpay/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when an insert would repeat an existing
	// (type, counterparty id) pair.
	ErrDuplicate = errors.New("duplicate record")
)

// Ledger defines the append-only transaction store.
// This abstraction allows swapping storage backends without changing the
// service layer.
type Ledger interface {
	// InsertTransaction persists a new transaction and returns the assigned ID.
	// The tx.ID field is populated by the store. Inserts never overwrite.
	InsertTransaction(ctx context.Context, tx *models.Transaction) (int64, error)

	// GetTransaction retrieves a transaction by its ID.
	// Returns ErrNotFound if the transaction does not exist.
	GetTransaction(ctx context.Context, id int64) (*models.Transaction, error)

	// ListTransactions returns every transaction in insertion order.
	ListTransactions(ctx context.Context) ([]*models.Transaction, error)

	// ListUnsynced returns transactions not yet acknowledged, in insertion order.
	ListUnsynced(ctx context.Context) ([]*models.Transaction, error)

	// MarkSynced flags the transaction as acknowledged.
	// Unknown IDs are a no-op, as are already synced ones.
	MarkSynced(ctx context.Context, id int64) error
}

// SecretStore is a key-value store for opaque secret blobs.
// Values are stored as given; encryption is the caller's concern.
type SecretStore interface {
	// GetSecret returns the value for key, or ErrNotFound.
	GetSecret(ctx context.Context, key string) ([]byte, error)

	// PutSecrets writes all entries atomically, overwriting existing keys.
	PutSecrets(ctx context.Context, entries map[string][]byte) error

	// DeleteSecrets removes the given keys. Missing keys are ignored.
	DeleteSecrets(ctx context.Context, keys ...string) error
}

// ReceiptStore records transactions accepted by the sync server.
type ReceiptStore interface {
	// RecordReceipt durably stores r unless a receipt with the same
	// (DeviceID, Type, CorrelationID) exists. It returns the stored receipt
	// and whether it already existed.
	RecordReceipt(ctx context.Context, r *models.Receipt) (*models.Receipt, bool, error)
}
