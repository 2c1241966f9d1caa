// Package reconcile pushes unsynced ledger records to the remote payment
// service and marks them synced once acknowledged.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mmynk/offpay/internal/metrics"
	"github.com/mmynk/offpay/internal/models"
	"github.com/mmynk/offpay/internal/storage"
)

// DefaultSubmitTimeout bounds a single remote submit.
const DefaultSubmitTimeout = 10 * time.Second

// ErrNoAck is returned when the remote reports success without an ack.
var ErrNoAck = errors.New("remote returned no acknowledgment")

// Ack confirms durable acceptance of a transaction by the remote service.
type Ack struct {
	ReceiptID string
	Duplicate bool
}

// Remote is the payment backend. Submit must return an Ack only after the
// transaction is durably accepted, and should treat a resubmitted
// correlation id as the same transaction.
type Remote interface {
	Submit(ctx context.Context, tx *models.Transaction) (*Ack, error)
}

// SyncError is a per-record failure. The record stays unsynced and is retried
// by the next SyncAll.
type SyncError struct {
	TransactionID int64
	CorrelationID string
	Err           error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync transaction %d (%s): %v", e.TransactionID, e.CorrelationID, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Report summarizes one sync pass.
type Report struct {
	Attempted int
	Synced    int
	Failures  []*SyncError
}

// Reconciler drains unsynced ledger records against a Remote.
type Reconciler struct {
	ledger  storage.Ledger
	remote  Remote
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger

	group singleflight.Group
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithSubmitTimeout overrides DefaultSubmitTimeout.
func WithSubmitTimeout(d time.Duration) Option {
	return func(r *Reconciler) { r.timeout = d }
}

// WithMetrics records per-record outcomes and pass durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// WithLogger replaces slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// New creates a Reconciler.
func New(ledger storage.Ledger, remote Remote, opts ...Option) *Reconciler {
	r := &Reconciler{
		ledger:  ledger,
		remote:  remote,
		timeout: DefaultSubmitTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SyncAll submits every unsynced record once. Records are independent: a
// failure is collected in the report and the pass continues, and records
// already acknowledged stay synced. Concurrent calls share one pass.
//
// The pass is not tied to any caller's cancellation; each submit is bounded
// by the submit timeout instead. A caller whose ctx is done stops waiting and
// gets ctx.Err() while the pass finishes for the others. Per-record failures
// are in Report.Failures; the returned error is otherwise non-nil only when
// the ledger cannot be read.
func (r *Reconciler) SyncAll(ctx context.Context) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := r.group.DoChan("sync", func() (interface{}, error) {
		return r.syncAll(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Shared {
			r.logger.Debug("Joined in-flight sync pass")
		}
		report, _ := res.Val.(*Report)
		return report, res.Err
	case <-ctx.Done():
		r.logger.Warn("Stopped waiting for sync pass", "error", ctx.Err())
		return nil, ctx.Err()
	}
}

func (r *Reconciler) syncAll(ctx context.Context) (*Report, error) {
	start := time.Now()
	defer func() { r.metrics.SyncPass(time.Since(start)) }()

	unsynced, err := r.ledger.ListUnsynced(ctx)
	if err != nil {
		r.logger.Error("Failed to list unsynced transactions", "error", err)
		return nil, fmt.Errorf("failed to list unsynced transactions: %w", err)
	}

	report := &Report{}
	for _, tx := range unsynced {
		report.Attempted++
		if serr := r.syncOne(ctx, tx); serr != nil {
			report.Failures = append(report.Failures, serr)
			continue
		}
		report.Synced++
	}

	r.logger.Info("Sync pass completed",
		"attempted", report.Attempted,
		"synced", report.Synced,
		"failed", len(report.Failures),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

func (r *Reconciler) syncOne(ctx context.Context, tx *models.Transaction) *SyncError {
	submitCtx, cancel := context.WithTimeout(ctx, r.timeout)
	ack, err := r.remote.Submit(submitCtx, tx)
	cancel()
	if err == nil && ack == nil {
		err = ErrNoAck
	}
	if err != nil {
		r.metrics.SyncRecord("failed")
		r.logger.Warn("Sync record failed",
			"transaction_id", tx.ID,
			"correlation_id", tx.CounterpartyID,
			"error", err,
		)
		return &SyncError{TransactionID: tx.ID, CorrelationID: tx.CounterpartyID, Err: err}
	}

	if err := r.ledger.MarkSynced(ctx, tx.ID); err != nil {
		// The remote holds the record; resubmitting it next pass is deduplicated there.
		r.metrics.SyncRecord("mark_failed")
		r.logger.Error("Failed to mark transaction synced",
			"transaction_id", tx.ID,
			"receipt_id", ack.ReceiptID,
			"error", err,
		)
		return &SyncError{TransactionID: tx.ID, CorrelationID: tx.CounterpartyID, Err: err}
	}

	r.metrics.SyncRecord("acked")
	r.logger.Debug("Transaction synced",
		"transaction_id", tx.ID,
		"receipt_id", ack.ReceiptID,
		"duplicate", ack.Duplicate,
	)
	return nil
}
