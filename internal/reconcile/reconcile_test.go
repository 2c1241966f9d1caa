package reconcile

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/mmynk/offpay/internal/metrics"
	"github.com/mmynk/offpay/internal/models"
	"github.com/mmynk/offpay/internal/storage/sqlite"
)

// fakeRemote acks every transaction except those listed in fail.
type fakeRemote struct {
	mu    sync.Mutex
	fail  map[string]error
	delay time.Duration
	calls map[string]int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{fail: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeRemote) Submit(ctx context.Context, tx *models.Transaction) (*Ack, error) {
	f.mu.Lock()
	f.calls[tx.CounterpartyID]++
	err := f.fail[tx.CounterpartyID]
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &Ack{ReceiptID: "r-" + tx.CounterpartyID}, nil
}

func (f *fakeRemote) callsFor(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

// blockingRemote never answers before ctx expires.
type blockingRemote struct{}

func (blockingRemote) Submit(ctx context.Context, _ *models.Transaction) (*Ack, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// gateRemote blocks every submit until release is closed and signals
// started on the first call.
type gateRemote struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newGateRemote() *gateRemote {
	return &gateRemote{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gateRemote) Submit(ctx context.Context, tx *models.Transaction) (*Ack, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
		return &Ack{ReceiptID: "r-" + tx.CounterpartyID}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// nilAckRemote reports success without an ack.
type nilAckRemote struct{}

func (nilAckRemote) Submit(context.Context, *models.Transaction) (*Ack, error) { return nil, nil }

func setupLedger(t *testing.T, correlationIDs ...string) *sqlite.SQLiteStore {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	for _, id := range correlationIDs {
		tx, err := models.NewTransaction(models.TypeSent, decimal.NewFromInt(10), 1678886400000, "Payment", id)
		if err != nil {
			t.Fatalf("NewTransaction failed: %v", err)
		}
		if _, err := store.InsertTransaction(context.Background(), tx); err != nil {
			t.Fatalf("InsertTransaction failed: %v", err)
		}
	}
	return store
}

func unsyncedIDs(t *testing.T, store *sqlite.SQLiteStore) []string {
	t.Helper()
	txs, err := store.ListUnsynced(context.Background())
	if err != nil {
		t.Fatalf("ListUnsynced failed: %v", err)
	}
	var ids []string
	for _, tx := range txs {
		ids = append(ids, tx.CounterpartyID)
	}
	return ids
}

func TestSyncAll_AllAcked(t *testing.T) {
	store := setupLedger(t, "a", "b", "c")
	remote := newFakeRemote()
	r := New(store, remote, WithMetrics(metrics.New(prometheus.NewRegistry())))

	report, err := r.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}
	if report.Attempted != 3 || report.Synced != 3 || len(report.Failures) != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if ids := unsyncedIDs(t, store); len(ids) != 0 {
		t.Errorf("expected no unsynced records, got %v", ids)
	}
}

func TestSyncAll_PartialProgress(t *testing.T) {
	store := setupLedger(t, "a", "b", "c")
	remote := newFakeRemote()
	remote.fail["b"] = errors.New("backend unavailable")
	r := New(store, remote)

	report, err := r.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}
	if report.Attempted != 3 || report.Synced != 2 {
		t.Errorf("unexpected report: %+v", report)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(report.Failures))
	}
	if report.Failures[0].CorrelationID != "b" {
		t.Errorf("failure correlation id: got %q, want b", report.Failures[0].CorrelationID)
	}

	ids := unsyncedIDs(t, store)
	if len(ids) != 1 || ids[0] != "b" {
		t.Fatalf("expected only b to remain unsynced, got %v", ids)
	}

	t.Run("next pass retries only the failed record", func(t *testing.T) {
		delete(remote.fail, "b")

		report, err := r.SyncAll(context.Background())
		if err != nil {
			t.Fatalf("SyncAll failed: %v", err)
		}
		if report.Attempted != 1 || report.Synced != 1 {
			t.Errorf("unexpected report: %+v", report)
		}
		if remote.callsFor("a") != 1 {
			t.Errorf("expected a to be submitted once, got %d", remote.callsFor("a"))
		}
		if remote.callsFor("b") != 2 {
			t.Errorf("expected b to be submitted twice, got %d", remote.callsFor("b"))
		}
		if ids := unsyncedIDs(t, store); len(ids) != 0 {
			t.Errorf("expected no unsynced records, got %v", ids)
		}
	})
}

func TestSyncAll_Timeout(t *testing.T) {
	store := setupLedger(t, "slow")
	r := New(store, blockingRemote{}, WithSubmitTimeout(20*time.Millisecond))

	report, err := r.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(report.Failures))
	}
	if !errors.Is(report.Failures[0], context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", report.Failures[0])
	}
	if ids := unsyncedIDs(t, store); len(ids) != 1 {
		t.Errorf("expected record to remain unsynced, got %v", ids)
	}
}

func TestSyncAll_NilAck(t *testing.T) {
	store := setupLedger(t, "x")
	r := New(store, nilAckRemote{})

	report, err := r.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}
	if len(report.Failures) != 1 || !errors.Is(report.Failures[0], ErrNoAck) {
		t.Errorf("expected ErrNoAck failure, got %+v", report.Failures)
	}
}

func TestSyncAll_Cancelled(t *testing.T) {
	store := setupLedger(t, "a", "b")
	r := New(store, newFakeRemote())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.SyncAll(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if ids := unsyncedIDs(t, store); len(ids) != 2 {
		t.Errorf("expected records to remain unsynced, got %v", ids)
	}
}

func TestSyncAll_ConcurrentCallersSubmitOnce(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	store := setupLedger(t, ids...)
	remote := newFakeRemote()
	remote.delay = 10 * time.Millisecond
	r := New(store, remote)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.SyncAll(context.Background()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("SyncAll failed: %v", err)
	}
	for _, id := range ids {
		if n := remote.callsFor(id); n != 1 {
			t.Errorf("expected %s to be submitted once, got %d", id, n)
		}
	}
}

func TestSyncError(t *testing.T) {
	base := errors.New("boom")
	err := &SyncError{TransactionID: 7, CorrelationID: "c", Err: base}
	if !errors.Is(err, base) {
		t.Error("expected SyncError to unwrap")
	}
	if err.Error() != "sync transaction 7 (c): boom" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestSyncAll_CancelledCallerDoesNotFailOthers(t *testing.T) {
	store := setupLedger(t, "a", "b")
	remote := newGateRemote()
	r := New(store, remote, WithSubmitTimeout(5*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := r.SyncAll(ctx)
		first <- err
	}()
	<-remote.started

	type result struct {
		report *Report
		err    error
	}
	second := make(chan result, 1)
	go func() {
		report, err := r.SyncAll(context.Background())
		second <- result{report, err}
	}()

	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Errorf("first caller: expected context.Canceled, got %v", err)
	}

	// Give the second caller time to join the running pass.
	time.Sleep(10 * time.Millisecond)
	close(remote.release)

	res := <-second
	if res.err != nil {
		t.Fatalf("second caller failed: %v", res.err)
	}
	if len(res.report.Failures) != 0 {
		t.Errorf("expected no failures, got %v", res.report.Failures)
	}
	if ids := unsyncedIDs(t, store); len(ids) != 0 {
		t.Errorf("expected all records synced, got %v unsynced", ids)
	}
}
