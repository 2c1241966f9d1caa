package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmynk/offpay/internal/models"
)

// RecordReceipt persists a receipt unless one exists for the same
// (device, type, correlation id). The second return value reports whether
// the receipt already existed.
func (s *SQLiteStore) RecordReceipt(ctx context.Context, r *models.Receipt) (*models.Receipt, bool, error) {
	// Generate ID if not set
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO receipts (id, device_id, correlation_id, type, amount, timestamp, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (device_id, type, correlation_id) DO NOTHING`,
		r.ID, r.DeviceID, r.CorrelationID, string(r.Type), r.Amount, r.Timestamp, r.Details, r.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert receipt: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read insert result: %w", err)
	}

	if affected == 1 {
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return r, false, nil
	}

	existing := &models.Receipt{}
	var txType string
	err = tx.QueryRowContext(ctx,
		`SELECT id, device_id, correlation_id, type, amount, timestamp, details, created_at
		 FROM receipts WHERE device_id = ? AND type = ? AND correlation_id = ?`,
		r.DeviceID, string(r.Type), r.CorrelationID,
	).Scan(&existing.ID, &existing.DeviceID, &existing.CorrelationID, &txType,
		&existing.Amount, &existing.Timestamp, &existing.Details, &existing.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get existing receipt: %w", err)
	}
	existing.Type = models.TransactionType(txType)

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return existing, true, nil
}
