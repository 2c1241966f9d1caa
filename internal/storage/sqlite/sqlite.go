// Package sqlite provides a SQLite-backed implementation of the storage interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/offpay/internal/models"
	"github.com/mmynk/offpay/internal/storage"
)

// Ensure SQLiteStore implements the storage interfaces
var (
	_ storage.Ledger       = (*SQLiteStore)(nil)
	_ storage.SecretStore  = (*SQLiteStore)(nil)
	_ storage.ReceiptStore = (*SQLiteStore)(nil)
)

// SQLiteStore implements the storage interfaces using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serializes writers; the ledger is a single-device store.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const transactionColumns = "id, type, amount, timestamp, details, counterparty_id, is_synced"

// InsertTransaction appends a transaction to the ledger in a single statement.
func (s *SQLiteStore) InsertTransaction(ctx context.Context, tx *models.Transaction) (int64, error) {
	if tx.ID != 0 {
		return 0, fmt.Errorf("transaction already has id %d", tx.ID)
	}

	var counterparty interface{} = nil
	if tx.CounterpartyID != "" {
		counterparty = tx.CounterpartyID
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (type, amount, timestamp, details, counterparty_id, is_synced)
		 VALUES (?, ?, ?, ?, ?, 0)
		 ON CONFLICT (type, counterparty_id) DO NOTHING`,
		string(tx.Type), tx.Amount, tx.Timestamp, tx.Details, counterparty,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transaction: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read insert result: %w", err)
	}
	if affected == 0 {
		return 0, fmt.Errorf("%w: %s %s", storage.ErrDuplicate, tx.Type, tx.CounterpartyID)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read transaction id: %w", err)
	}

	tx.ID = id
	tx.IsSynced = false
	return id, nil
}

// GetTransaction retrieves a transaction by ID.
func (s *SQLiteStore) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ?",
		id,
	)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %d", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// ListTransactions returns all transactions in insertion order.
func (s *SQLiteStore) ListTransactions(ctx context.Context) ([]*models.Transaction, error) {
	return s.queryTransactions(ctx,
		"SELECT "+transactionColumns+" FROM transactions ORDER BY id",
	)
}

// ListUnsynced returns transactions awaiting acknowledgment in insertion order.
func (s *SQLiteStore) ListUnsynced(ctx context.Context) ([]*models.Transaction, error) {
	return s.queryTransactions(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE is_synced = 0 ORDER BY id",
	)
}

// MarkSynced sets is_synced for exactly one transaction.
// Unknown IDs match no rows and are not an error.
func (s *SQLiteStore) MarkSynced(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE transactions SET is_synced = 1 WHERE id = ?",
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark transaction synced: %w", err)
	}
	return nil
}

func (s *SQLiteStore) queryTransactions(ctx context.Context, query string, args ...interface{}) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return txs, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row scanner) (*models.Transaction, error) {
	tx := &models.Transaction{}
	var txType string
	var counterparty sql.NullString

	if err := row.Scan(&tx.ID, &txType, &tx.Amount, &tx.Timestamp, &tx.Details, &counterparty, &tx.IsSynced); err != nil {
		return nil, err
	}

	tx.Type = models.TransactionType(txType)
	if counterparty.Valid {
		tx.CounterpartyID = counterparty.String
	}
	return tx, nil
}
