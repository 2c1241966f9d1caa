package syncrpc

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/offpay/internal/metrics"
	"github.com/mmynk/offpay/internal/middleware"
	"github.com/mmynk/offpay/internal/models"
	"github.com/mmynk/offpay/internal/storage"
)

// SyncService accepts device submissions and records them as receipts.
type SyncService struct {
	store   storage.ReceiptStore
	metrics *metrics.Metrics
}

// NewSyncService creates a new SyncService. m may be nil.
func NewSyncService(store storage.ReceiptStore, m *metrics.Metrics) *SyncService {
	return &SyncService{store: store, metrics: m}
}

// NewHandler mounts svc at SubmitProcedure. Authentication is expected to
// run as an interceptor that stores the device ID in the context.
func NewHandler(svc *SyncService, opts ...connect.HandlerOption) (string, http.Handler) {
	return SubmitProcedure, connect.NewUnaryHandler(SubmitProcedure, svc.Submit, opts...)
}

// Submit records the transaction and acknowledges it. The acknowledgment is
// sent only after the receipt is durable. Resubmissions return the original
// receipt with duplicate set.
func (s *SyncService) Submit(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	deviceID := middleware.GetDeviceID(ctx)
	if deviceID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("device not authenticated"))
	}

	sub, err := parseSubmitRequest(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	receipt, duplicate, err := s.store.RecordReceipt(ctx, &models.Receipt{
		DeviceID:      deviceID,
		CorrelationID: sub.CorrelationID,
		Type:          sub.Type,
		Amount:        sub.Amount.String(),
		Timestamp:     sub.Timestamp,
		Details:       sub.Details,
	})
	if err != nil {
		slog.Error("Failed to record receipt", "device_id", deviceID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	s.metrics.Receipt(duplicate)

	slog.Info("Receipt recorded",
		"receipt_id", receipt.ID,
		"device_id", deviceID,
		"type", receipt.Type,
		"duplicate", duplicate,
	)

	msg, err := newSubmitResponse(receipt.ID, duplicate)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}
